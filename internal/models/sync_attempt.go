package models

import (
	"time"

	"github.com/google/uuid"
)

// Trigger sources for a sync attempt.
const (
	TriggerWebhook  = "webhook"
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
)

// SyncAttempt is one recorded execution of the sync pipeline.
type SyncAttempt struct {
	ID          string    `json:"id"`
	Trigger     string    `json:"trigger"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Uploaded    bool      `json:"uploaded"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// NewSyncAttempt creates an attempt record for the given trigger.
func NewSyncAttempt(trigger string) *SyncAttempt {
	return &SyncAttempt{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}
}

// Finish stamps the terminal result onto the attempt.
func (a *SyncAttempt) Finish(result SyncResult) {
	a.Status = result.Status
	a.Message = result.Message
	a.FinishedAt = time.Now().UTC()
}
