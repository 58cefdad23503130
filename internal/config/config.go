package config

import (
	"encoding/json"
	"os"
)

// Config holds all application configuration. It is read once at startup
// and never mutated afterwards. Missing credentials are not an error here:
// they surface as an authentication failure on the first sync attempt so
// the health endpoint can come up regardless.
type Config struct {
	ServerAddress string          `json:"serverAddress"`
	DatabasePath  string          `json:"databasePath"`
	DatabaseURL   string          `json:"databaseUrl"`
	Wyze          WyzeCredentials `json:"wyze"`
	Garmin        GarminSettings  `json:"garmin"`
	Sync          SyncSettings    `json:"sync"`
	Security      Security        `json:"security"`
}

// WyzeCredentials for the measurement source
type WyzeCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	KeyID    string `json:"keyId"`
	APIKey   string `json:"apiKey"`
}

// GarminSettings for the upload destination
type GarminSettings struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TokenDir string `json:"tokenDir"`
}

// SyncSettings configuration for the sync pipeline and its scheduler
type SyncSettings struct {
	ScheduleAt      string `json:"scheduleAt"` // "HH:MM" local time
	OnStart         bool   `json:"onStart"`
	PayloadPath     string `json:"payloadPath"`
	FingerprintPath string `json:"fingerprintPath"`
}

// Security configuration
type Security struct {
	APIKey       string `json:"apiKey"`
	APIKeyHeader string `json:"apiKeyHeader"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5000",
		DatabasePath:  "scalesync.db",
		Garmin: GarminSettings{
			TokenDir: "./.garmin_tokens",
		},
		Sync: SyncSettings{
			ScheduleAt:      "08:00",
			OnStart:         true,
			PayloadPath:     "wyze_scale.fit",
			FingerprintPath: "cksum.txt",
		},
		Security: Security{
			APIKeyHeader: "X-API-Key",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if port := os.Getenv("WEBHOOK_PORT"); port != "" {
		cfg.ServerAddress = ":" + port
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	if v := os.Getenv("WYZE_EMAIL"); v != "" {
		cfg.Wyze.Email = v
	}
	if v := os.Getenv("WYZE_PASSWORD"); v != "" {
		cfg.Wyze.Password = v
	}
	if v := os.Getenv("WYZE_KEY_ID"); v != "" {
		cfg.Wyze.KeyID = v
	}
	if v := os.Getenv("WYZE_API_KEY"); v != "" {
		cfg.Wyze.APIKey = v
	}

	if v := os.Getenv("GARMIN_EMAIL"); v != "" {
		cfg.Garmin.Email = v
	}
	if v := os.Getenv("GARMIN_PASSWORD"); v != "" {
		cfg.Garmin.Password = v
	}
	if v := os.Getenv("GARMIN_TOKEN_DIR"); v != "" {
		cfg.Garmin.TokenDir = v
	}

	if v := os.Getenv("SYNC_TIME"); v != "" {
		cfg.Sync.ScheduleAt = v
	}
	if v := os.Getenv("SYNC_ON_START"); v != "" {
		cfg.Sync.OnStart = v == "true" || v == "1"
	}
	if v := os.Getenv("PAYLOAD_PATH"); v != "" {
		cfg.Sync.PayloadPath = v
	}
	if v := os.Getenv("FINGERPRINT_PATH"); v != "" {
		cfg.Sync.FingerprintPath = v
	}

	if v := os.Getenv("API_KEY"); v != "" {
		cfg.Security.APIKey = v
	}

	return cfg, nil
}
