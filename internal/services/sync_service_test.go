package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scalesync/server/internal/models"
)

type fakeSource struct {
	loginErr   error
	panicLogin bool
	devices    []models.ScaleDevice
	listErr    error
	record     *models.MeasurementRecord
	recordErr  error
}

func (f *fakeSource) Login(ctx context.Context) (string, error) {
	if f.panicLogin {
		panic("source client blew up")
	}
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return "token", nil
}

func (f *fakeSource) ListDevices(ctx context.Context, token string) ([]models.ScaleDevice, error) {
	return f.devices, f.listErr
}

func (f *fakeSource) LatestScaleRecord(ctx context.Context, token, mac string) (*models.MeasurementRecord, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	return f.record, nil
}

type fakeDest struct {
	ensureErr   error
	uploadErr   error
	uploadDelay time.Duration
	uploads     atomic.Int32
}

func (f *fakeDest) EnsureSession(ctx context.Context, email, password string) error {
	return f.ensureErr
}

func (f *fakeDest) Upload(ctx context.Context, payload []byte, filename string) error {
	f.uploads.Add(1)
	if f.uploadDelay > 0 {
		time.Sleep(f.uploadDelay)
	}
	return f.uploadErr
}

type memHistory struct {
	mu       sync.Mutex
	attempts []*models.SyncAttempt
}

func (m *memHistory) Record(ctx context.Context, attempt *models.SyncAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	return nil
}

func (m *memHistory) Recent(ctx context.Context, limit int) ([]*models.SyncAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.attempts) {
		limit = len(m.attempts)
	}
	out := make([]*models.SyncAttempt, 0, limit)
	for i := len(m.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.attempts[i])
	}
	return out, nil
}

func (m *memHistory) Last(ctx context.Context) (*models.SyncAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.attempts) == 0 {
		return nil, nil
	}
	return m.attempts[len(m.attempts)-1], nil
}

func scaleDevices() []models.ScaleDevice {
	return []models.ScaleDevice{
		{MAC: "CAM1", Nickname: "Porch Cam", Type: "Camera"},
		{MAC: "SCALE1", Nickname: "Bathroom Scale", Type: models.ScaleDeviceType},
	}
}

type syncFixture struct {
	svc             *SyncService
	source          *fakeSource
	dest            *fakeDest
	history         *memHistory
	fingerprintPath string
	payloadPath     string
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	dir := t.TempDir()

	source := &fakeSource{
		devices: scaleDevices(),
		record:  testRecord(),
	}
	dest := &fakeDest{}
	history := &memHistory{}

	payloadPath := filepath.Join(dir, "wyze_scale.fit")
	fingerprintPath := filepath.Join(dir, "cksum.txt")

	svc := NewSyncService(
		source,
		dest,
		NewPayloadService(payloadPath),
		NewDedupService(fingerprintPath),
		history,
		nil,
		"user@example.com",
		"secret",
	)

	return &syncFixture{
		svc:             svc,
		source:          source,
		dest:            dest,
		history:         history,
		fingerprintPath: fingerprintPath,
		payloadPath:     payloadPath,
	}
}

func TestSyncService_FirstRunUploadsAndCommits(t *testing.T) {
	f := newSyncFixture(t)

	result := f.svc.Run(context.Background(), models.TriggerWebhook)

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, msgInitialSync, result.Message)
	assert.EqualValues(t, 1, f.dest.uploads.Load())

	// The committed fingerprint matches the payload just written.
	payload, err := os.ReadFile(f.payloadPath)
	require.NoError(t, err)
	stored, err := os.ReadFile(f.fingerprintPath)
	require.NoError(t, err)
	assert.Equal(t, NewDedupService(f.fingerprintPath).Fingerprint(payload), string(stored))
}

func TestSyncService_SecondRunSkips(t *testing.T) {
	f := newSyncFixture(t)

	first := f.svc.Run(context.Background(), models.TriggerWebhook)
	second := f.svc.Run(context.Background(), models.TriggerWebhook)

	assert.Equal(t, models.StatusSuccess, first.Status)
	assert.Equal(t, models.StatusSuccess, second.Status)
	assert.Equal(t, msgNoNewMeasurement, second.Message)
	assert.EqualValues(t, 1, f.dest.uploads.Load(), "unchanged measurement must upload exactly once")
}

func TestSyncService_ChangedMeasurementUploadsAgain(t *testing.T) {
	f := newSyncFixture(t)

	first := f.svc.Run(context.Background(), models.TriggerWebhook)
	require.Equal(t, models.StatusSuccess, first.Status)

	before, err := os.ReadFile(f.fingerprintPath)
	require.NoError(t, err)

	rec := testRecord()
	rec.Weight = 155.8
	f.source.record = rec

	second := f.svc.Run(context.Background(), models.TriggerWebhook)
	assert.Equal(t, models.StatusSuccess, second.Status)
	assert.Equal(t, msgNewMeasurement, second.Message)
	assert.EqualValues(t, 2, f.dest.uploads.Load())

	after, err := os.ReadFile(f.fingerprintPath)
	require.NoError(t, err)
	assert.NotEqual(t, string(before), string(after))
}

func TestSyncService_UploadFailureDoesNotCommit(t *testing.T) {
	f := newSyncFixture(t)
	f.dest.uploadErr = errors.New("remote rejected the file")

	result := f.svc.Run(context.Background(), models.TriggerWebhook)

	assert.Equal(t, models.StatusError, result.Status)
	assert.Equal(t, msgUploadFailed, result.Message)
	assert.NoFileExists(t, f.fingerprintPath)

	// The same measurement is retried on the next trigger.
	f.dest.uploadErr = nil
	retry := f.svc.Run(context.Background(), models.TriggerWebhook)
	assert.Equal(t, models.StatusSuccess, retry.Status)
	assert.Equal(t, msgInitialSync, retry.Message)
	assert.EqualValues(t, 2, f.dest.uploads.Load())
}

func TestSyncService_SourceLoginFailure(t *testing.T) {
	f := newSyncFixture(t)
	f.source.loginErr = errors.New("bad credentials")

	result := f.svc.Run(context.Background(), models.TriggerSchedule)

	assert.Equal(t, models.StatusError, result.Status)
	assert.Equal(t, msgWyzeLoginFailed, result.Message)
	assert.EqualValues(t, 0, f.dest.uploads.Load())
}

func TestSyncService_DestinationSessionFailure(t *testing.T) {
	f := newSyncFixture(t)
	f.dest.ensureErr = errors.New("session expired and login rejected")

	result := f.svc.Run(context.Background(), models.TriggerWebhook)

	assert.Equal(t, models.StatusError, result.Status)
	assert.Equal(t, msgGarminLoginFailed, result.Message)
	assert.EqualValues(t, 0, f.dest.uploads.Load())
	assert.NoFileExists(t, f.fingerprintPath)
}

func TestSyncService_NoScaleDeviceIsAnError(t *testing.T) {
	f := newSyncFixture(t)
	f.source.devices = []models.ScaleDevice{{MAC: "CAM1", Type: "Camera"}}

	result := f.svc.Run(context.Background(), models.TriggerWebhook)

	assert.Equal(t, models.StatusError, result.Status)
	assert.Equal(t, models.ErrDeviceNotFound.Error(), result.Message)
	assert.EqualValues(t, 0, f.dest.uploads.Load())
}

func TestSyncService_NoMeasurementIsAnError(t *testing.T) {
	f := newSyncFixture(t)
	f.source.recordErr = models.ErrNoMeasurement

	result := f.svc.Run(context.Background(), models.TriggerWebhook)

	assert.Equal(t, models.StatusError, result.Status)
	assert.Equal(t, models.ErrNoMeasurement.Error(), result.Message)
}

func TestSyncService_PanicBecomesErrorResult(t *testing.T) {
	f := newSyncFixture(t)
	f.source.panicLogin = true

	result := f.svc.Run(context.Background(), models.TriggerWebhook)

	assert.Equal(t, models.StatusError, result.Status)
	assert.Contains(t, result.Message, "Sync failed")
}

func TestSyncService_ConcurrentTriggersRunOnce(t *testing.T) {
	f := newSyncFixture(t)
	f.dest.uploadDelay = 100 * time.Millisecond

	var wg sync.WaitGroup
	results := make([]models.SyncResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.svc.Run(context.Background(), models.TriggerWebhook)
		}(i)
	}
	wg.Wait()

	var rejected, succeeded int
	for _, r := range results {
		switch r.Message {
		case models.ErrSyncInProgress.Error():
			rejected++
		case msgInitialSync:
			succeeded++
		}
	}

	assert.Equal(t, 1, succeeded, "exactly one trigger wins the lock")
	assert.Equal(t, 1, rejected, "the loser is rejected immediately")
	assert.EqualValues(t, 1, f.dest.uploads.Load())
}

func TestSyncService_RecordsHistory(t *testing.T) {
	f := newSyncFixture(t)

	result := f.svc.Run(context.Background(), models.TriggerStartup)
	require.Equal(t, models.StatusSuccess, result.Status)

	last, err := f.history.Last(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, result.AttemptID, last.ID)
	assert.Equal(t, models.TriggerStartup, last.Trigger)
	assert.Equal(t, models.StatusSuccess, last.Status)
	assert.True(t, last.Uploaded)
	assert.NotEmpty(t, last.Fingerprint)
	assert.False(t, last.FinishedAt.IsZero())
}
