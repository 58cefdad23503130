package models

import "time"

// Sync result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SyncResult is the terminal value of one sync attempt, returned to every
// caller. It is never persisted as-is; history rows are built from it.
type SyncResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	AttemptID string `json:"attemptId,omitempty"`
}

// Succeeded reports whether the attempt ended in success.
func (r SyncResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// SuccessResult builds a success SyncResult.
func SuccessResult(message string) SyncResult {
	return SyncResult{Status: StatusSuccess, Message: message}
}

// ErrorResult builds an error SyncResult.
func ErrorResult(message string) SyncResult {
	return SyncResult{Status: StatusError, Message: message}
}

// HealthResponse for GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncStatusResponse for GET /api/sync/status
type SyncStatusResponse struct {
	Running          bool         `json:"running"`
	SchedulerEnabled bool         `json:"schedulerEnabled"`
	LastResult       *SyncAttempt `json:"lastResult,omitempty"`
	NextScheduledRun *time.Time   `json:"nextScheduledRun,omitempty"`
}

// SyncHistoryResponse for GET /api/sync/history
type SyncHistoryResponse struct {
	Attempts []*SyncAttempt `json:"attempts"`
}

// ErrorResponse is the generic error body for non-sync endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
