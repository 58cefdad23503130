package repository

import (
	"context"

	"github.com/scalesync/server/internal/models"
)

// SyncHistoryRepo defines the interface for sync attempt persistence
type SyncHistoryRepo interface {
	Record(ctx context.Context, attempt *models.SyncAttempt) error
	Recent(ctx context.Context, limit int) ([]*models.SyncAttempt, error)
	Last(ctx context.Context) (*models.SyncAttempt, error)
}
