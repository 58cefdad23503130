package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/scalesync/server/internal/models"
	"github.com/scalesync/server/internal/observability"
	"github.com/scalesync/server/internal/repository"
)

// Terminal messages returned to callers. The webhook response body and the
// scheduler log both carry these verbatim.
const (
	msgNoNewMeasurement  = "No new measurement to sync"
	msgInitialSync       = "Initial sync completed successfully"
	msgNewMeasurement    = "New measurement synced successfully"
	msgWyzeLoginFailed   = "Failed to login to Wyze"
	msgGarminLoginFailed = "Failed to login to Garmin"
	msgUploadFailed      = "File upload failed"
)

// SourceClient is the narrow surface of the Wyze API the pipeline needs.
type SourceClient interface {
	Login(ctx context.Context) (string, error)
	ListDevices(ctx context.Context, token string) ([]models.ScaleDevice, error)
	LatestScaleRecord(ctx context.Context, token, mac string) (*models.MeasurementRecord, error)
}

// DestinationClient is the narrow surface of the Garmin API the pipeline
// needs. EnsureSession must prefer a persisted session over the given
// credentials and must never prompt interactively.
type DestinationClient interface {
	EnsureSession(ctx context.Context, email, password string) error
	Upload(ctx context.Context, payload []byte, filename string) error
}

// SyncService runs one idempotent sync attempt: login, fetch, encode,
// fingerprint, compare, then upload-and-commit or skip.
//
// A single mutex serializes attempts from all triggers; the payload file,
// the fingerprint file, and the Garmin session file are only touched while
// it is held. A trigger that loses the lock is rejected immediately with
// a "sync already in progress" result rather than queued. No timeout is
// imposed on the upstream calls here: if Wyze or Garmin hang, the attempt
// hangs with them.
type SyncService struct {
	source   SourceClient
	dest     DestinationClient
	payloads *PayloadService
	dedup    *DedupService
	history  repository.SyncHistoryRepo
	logger   *observability.Logger

	garminEmail    string
	garminPassword string

	hub     *WebSocketHub
	metrics *observability.SyncMetrics

	mu sync.Mutex
}

// NewSyncService creates the sync orchestrator.
func NewSyncService(
	source SourceClient,
	dest DestinationClient,
	payloads *PayloadService,
	dedup *DedupService,
	history repository.SyncHistoryRepo,
	logger *observability.Logger,
	garminEmail, garminPassword string,
) *SyncService {
	return &SyncService{
		source:         source,
		dest:           dest,
		payloads:       payloads,
		dedup:          dedup,
		history:        history,
		logger:         logger,
		garminEmail:    garminEmail,
		garminPassword: garminPassword,
	}
}

// SetWebSocketHub sets the hub for sync lifecycle notifications.
func (s *SyncService) SetWebSocketHub(hub *WebSocketHub) {
	s.hub = hub
}

// SetMetrics sets the sync metrics instruments.
func (s *SyncService) SetMetrics(m *observability.SyncMetrics) {
	s.metrics = m
}

// Run executes one sync attempt and always returns a terminal SyncResult;
// no error or panic from inside the pipeline escapes to the caller.
func (s *SyncService) Run(ctx context.Context, trigger string) models.SyncResult {
	if !s.mu.TryLock() {
		return models.ErrorResult(models.ErrSyncInProgress.Error())
	}
	defer s.mu.Unlock()

	attempt := models.NewSyncAttempt(trigger)
	log := s.logger.WithField("attempt", attempt.ID).WithField("trigger", trigger)
	log.Info("starting sync attempt")
	s.notify(WSTypeSyncStarted, attempt)

	result := s.runGuarded(ctx, attempt)
	result.AttemptID = attempt.ID
	attempt.Finish(result)

	if result.Succeeded() {
		log.Info("sync attempt finished", "status", result.Status, "message", result.Message)
	} else {
		log.Error("sync attempt failed", "message", result.Message)
	}
	s.metrics.RecordAttempt(ctx, trigger, result.Status)
	s.recordHistory(ctx, attempt)
	s.notify(WSTypeSyncCompleted, attempt)
	return result
}

// runGuarded converts every pipeline failure, including panics, into a
// terminal result.
func (s *SyncService) runGuarded(ctx context.Context, attempt *models.SyncAttempt) (result models.SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.ErrorResult(fmt.Sprintf("Sync failed: %v", r))
		}
	}()

	res, err := s.pipeline(ctx, attempt)
	if err != nil {
		return s.resultFromError(err)
	}
	return res
}

func (s *SyncService) resultFromError(err error) models.SyncResult {
	var authErr *models.AuthenticationError
	if errors.As(err, &authErr) {
		if authErr.Service == "wyze" {
			return models.ErrorResult(msgWyzeLoginFailed)
		}
		return models.ErrorResult(msgGarminLoginFailed)
	}

	var uploadErr *models.UploadError
	if errors.As(err, &uploadErr) {
		return models.ErrorResult(msgUploadFailed)
	}

	if errors.Is(err, models.ErrDeviceNotFound) || errors.Is(err, models.ErrNoMeasurement) {
		return models.ErrorResult(err.Error())
	}

	var encErr *models.EncodingError
	if errors.As(err, &encErr) {
		return models.ErrorResult(err.Error())
	}

	return models.ErrorResult(fmt.Sprintf("Sync failed: %v", err))
}

// pipeline is the state machine body. It runs with the mutex held.
func (s *SyncService) pipeline(ctx context.Context, attempt *models.SyncAttempt) (models.SyncResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "sync", "run")
	defer span.End()

	token, err := s.source.Login(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return models.SyncResult{}, &models.AuthenticationError{Service: "wyze", Cause: err}
	}

	devices, err := s.source.ListDevices(ctx, token)
	if err != nil {
		observability.RecordError(span, err)
		return models.SyncResult{}, fmt.Errorf("device lookup: %w", err)
	}

	var scale *models.ScaleDevice
	for i := range devices {
		if devices[i].Type == models.ScaleDeviceType {
			scale = &devices[i]
			break
		}
	}
	if scale == nil {
		return models.SyncResult{}, models.ErrDeviceNotFound
	}
	s.logger.Info("scale found", "mac", scale.MAC, "nickname", scale.Nickname)

	record, err := s.source.LatestScaleRecord(ctx, token, scale.MAC)
	if err != nil {
		observability.RecordError(span, err)
		return models.SyncResult{}, fmt.Errorf("record fetch: %w", err)
	}

	payload, err := s.payloads.Build(record)
	if err != nil {
		observability.RecordError(span, err)
		return models.SyncResult{}, err
	}
	if err := s.payloads.Write(payload); err != nil {
		return models.SyncResult{}, err
	}

	fingerprint := s.dedup.Fingerprint(payload)
	attempt.Fingerprint = fingerprint

	state, err := s.dedup.Check(fingerprint)
	if err != nil {
		return models.SyncResult{}, err
	}
	if state == DedupMatch {
		s.logger.Info("no new measurement", "fingerprint", fingerprint)
		s.metrics.RecordSkip(ctx)
		return models.SuccessResult(msgNoNewMeasurement), nil
	}

	if err := s.dest.EnsureSession(ctx, s.garminEmail, s.garminPassword); err != nil {
		observability.RecordError(span, err)
		return models.SyncResult{}, &models.AuthenticationError{Service: "garmin", Cause: err}
	}

	if err := s.dest.Upload(ctx, payload, filepath.Base(s.payloads.Path())); err != nil {
		// Fingerprint stays uncommitted so the next trigger retries
		// the same measurement.
		observability.RecordError(span, err)
		return models.SyncResult{}, &models.UploadError{Cause: err}
	}
	attempt.Uploaded = true
	s.metrics.RecordUpload(ctx)

	if err := s.dedup.Commit(fingerprint); err != nil {
		return models.SyncResult{}, err
	}

	if state == DedupUnknown {
		return models.SuccessResult(msgInitialSync), nil
	}
	return models.SuccessResult(msgNewMeasurement), nil
}

func (s *SyncService) recordHistory(ctx context.Context, attempt *models.SyncAttempt) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(ctx, attempt); err != nil {
		s.logger.Error("recording sync attempt failed", "error", err)
	}
}

func (s *SyncService) notify(eventType string, attempt *models.SyncAttempt) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(WSMessage{Type: eventType, Payload: attempt})
}
