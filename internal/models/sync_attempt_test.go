package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSyncAttempt(t *testing.T) {
	t.Run("creates attempt with trigger and start time", func(t *testing.T) {
		a := NewSyncAttempt(TriggerWebhook)

		assert.NotEmpty(t, a.ID)
		assert.Equal(t, TriggerWebhook, a.Trigger)
		assert.WithinDuration(t, time.Now().UTC(), a.StartedAt, time.Second*5)
		assert.True(t, a.FinishedAt.IsZero())
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		assert.NotEqual(t, NewSyncAttempt(TriggerWebhook).ID, NewSyncAttempt(TriggerWebhook).ID)
	})
}

func TestSyncAttempt_Finish(t *testing.T) {
	a := NewSyncAttempt(TriggerSchedule)
	a.Finish(ErrorResult("Failed to login to Wyze"))

	assert.Equal(t, StatusError, a.Status)
	assert.Equal(t, "Failed to login to Wyze", a.Message)
	assert.False(t, a.FinishedAt.IsZero())
}

func TestMeasurementRecord_WeightKilograms(t *testing.T) {
	rec := MeasurementRecord{Weight: 154.32}
	assert.InDelta(t, 69.9984, rec.WeightKilograms(), 0.001)
}

func TestSyncResult_Succeeded(t *testing.T) {
	assert.True(t, SuccessResult("done").Succeeded())
	assert.False(t, ErrorResult("broke").Succeeded())
}
