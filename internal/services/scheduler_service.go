package services

import (
	"context"
	"sync"
	"time"

	"github.com/scalesync/server/internal/models"
	"github.com/scalesync/server/internal/observability"
)

// pollInterval is the resolution of the wall-clock check. The schedule is
// a daily fixed time, so coarse polling is enough.
const pollInterval = time.Minute

// SyncRunner is what the scheduler needs from the orchestrator.
type SyncRunner interface {
	Run(ctx context.Context, trigger string) models.SyncResult
}

// SchedulerService triggers one sync attempt per day at a fixed wall-clock
// time. It polls once a minute rather than arming a long timer so clock
// adjustments are picked up.
type SchedulerService struct {
	runner SyncRunner
	logger *observability.Logger
	at     string // "15:04"

	now func() time.Time

	mu         sync.RWMutex
	enabled    bool
	stopChan   chan struct{}
	ticker     *time.Ticker
	lastRun    time.Time
	lastResult *models.SyncResult
}

// NewSchedulerService creates a scheduler firing daily at the given
// "HH:MM" local time.
func NewSchedulerService(runner SyncRunner, logger *observability.Logger, at string) *SchedulerService {
	return &SchedulerService{
		runner: runner,
		logger: logger,
		at:     at,
		now:    time.Now,
	}
}

// Start begins the polling loop.
func (s *SchedulerService) Start() {
	s.mu.Lock()
	if s.ticker != nil {
		s.mu.Unlock()
		return // Already started
	}
	s.enabled = true
	s.stopChan = make(chan struct{})
	s.ticker = time.NewTicker(pollInterval)
	s.mu.Unlock()

	s.logger.Info("scheduler started", "at", s.at)

	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.tick()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop halts the polling loop. A sync attempt already underway runs to
// completion; nothing is cancellable once started.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.ticker = nil
	s.enabled = false
	close(s.stopChan)
	s.logger.Info("scheduler stopped")
}

func (s *SchedulerService) tick() {
	now := s.now()
	if !s.shouldFire(now) {
		return
	}

	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()

	result := s.runner.Run(context.Background(), models.TriggerSchedule)
	s.mu.Lock()
	s.lastResult = &result
	s.mu.Unlock()

	if result.Succeeded() {
		s.logger.Info("scheduled sync finished", "message", result.Message)
	} else {
		s.logger.Error("scheduled sync failed", "message", result.Message)
	}
}

// shouldFire reports whether the daily schedule is due: the current minute
// matches the configured time and the schedule has not fired today.
func (s *SchedulerService) shouldFire(now time.Time) bool {
	if now.Format("15:04") != s.at {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.enabled {
		return false
	}
	return s.lastRun.IsZero() || !sameDay(s.lastRun, now)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// NextRun computes the next scheduled fire time after now.
func (s *SchedulerService) NextRun() (time.Time, bool) {
	at, err := time.Parse("15:04", s.at)
	if err != nil {
		return time.Time{}, false
	}

	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, true
}

// Status reports scheduler state for the status endpoint.
func (s *SchedulerService) Status() (enabled bool, lastRun time.Time, lastResult *models.SyncResult) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled, s.lastRun, s.lastResult
}
