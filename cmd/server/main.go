package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/scalesync/server/internal/config"
	"github.com/scalesync/server/internal/garmin"
	"github.com/scalesync/server/internal/handlers"
	custommw "github.com/scalesync/server/internal/middleware"
	"github.com/scalesync/server/internal/models"
	"github.com/scalesync/server/internal/observability"
	"github.com/scalesync/server/internal/repository"
	"github.com/scalesync/server/internal/services"
	"github.com/scalesync/server/internal/wyze"
)

const (
	serviceName    = "scalesync-server"
	serviceVersion = "1.0.0"
)

func main() {
	setup := flag.Bool("setup", false, "interactively log in to Garmin, persist the session, and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *setup {
		if err := runSetup(cfg); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	logger := observability.NewLoggerFromEnv(serviceName)

	// Initialize telemetry
	ctx := context.Background()
	telemetry, err := observability.Initialize(ctx, observability.NewConfig(serviceName, serviceVersion))
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	// Initialize database and history repository
	var historyRepo repository.SyncHistoryRepo
	if cfg.UsePostgres() {
		log.Println("Using PostgreSQL database")
		db, err := repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
		}
		defer db.Close()
		historyRepo = repository.NewSyncHistoryRepositoryPostgres(db)
	} else {
		log.Println("Using SQLite database")
		db, err := repository.NewSQLiteDB(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite database: %v", err)
		}
		defer db.Close()
		historyRepo = repository.NewSyncHistoryRepository(db)
	}

	// External clients
	wyzeClient := wyze.NewClient(cfg.Wyze.Email, cfg.Wyze.Password, cfg.Wyze.KeyID, cfg.Wyze.APIKey)
	garminClient := garmin.NewClient(cfg.Garmin.TokenDir)

	// Initialize services
	payloadService := services.NewPayloadService(cfg.Sync.PayloadPath)
	dedupService := services.NewDedupService(cfg.Sync.FingerprintPath)
	syncService := services.NewSyncService(
		wyzeClient,
		garminClient,
		payloadService,
		dedupService,
		historyRepo,
		logger,
		cfg.Garmin.Email,
		cfg.Garmin.Password,
	)

	hub := services.NewWebSocketHub()
	go hub.Run()
	syncService.SetWebSocketHub(hub)

	if syncMetrics, err := observability.NewSyncMetrics(); err != nil {
		log.Printf("Warning: Failed to create sync metrics: %v", err)
	} else {
		syncService.SetMetrics(syncMetrics)
	}

	scheduler := services.NewSchedulerService(syncService, logger, cfg.Sync.ScheduleAt)

	// Initialize handlers
	syncHandler := handlers.NewSyncHandler(syncService, scheduler, historyRepo)
	healthHandler := handlers.NewHealthHandler()
	wsHandler := handlers.NewWebSocketHandler(hub)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		log.Printf("Warning: Failed to create HTTP metrics: %v", err)
	}
	r.Use(observability.Middleware(httpMetrics))
	r.Use(custommw.APIKeyAuth(cfg.Security.APIKey, cfg.Security.APIKeyHeader))

	// Routes
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)

	r.Get("/webhook/sync", syncHandler.TriggerSync)
	r.Post("/webhook/sync", syncHandler.TriggerSync)

	r.Route("/api/sync", func(r chi.Router) {
		r.Get("/status", syncHandler.GetStatus)
		r.Get("/history", syncHandler.GetHistory)
	})

	r.Get("/ws", wsHandler.HandleConnection)

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // sync attempts wait on two upstream services
		IdleTimeout:  60 * time.Second,
	}

	// Run the initial sync in the background so health is live immediately
	if cfg.Sync.OnStart {
		go func() {
			log.Println("Running initial sync...")
			result := syncService.Run(context.Background(), models.TriggerStartup)
			log.Printf("Initial sync: %s", result.Message)
		}()
	}

	scheduler.Start()

	// Start server in goroutine
	go func() {
		log.Printf("ScaleSync Server starting on %s", cfg.ServerAddress)
		log.Printf("Daily sync scheduled at %s", cfg.Sync.ScheduleAt)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	telemetry.Shutdown(shutdownCtx)

	log.Println("Server stopped")
}
