package repository

import (
	"context"
	"database/sql"

	"github.com/scalesync/server/internal/models"
)

// SyncHistoryRepositoryPostgres handles sync attempt persistence (PostgreSQL)
type SyncHistoryRepositoryPostgres struct {
	db *sql.DB
}

// NewSyncHistoryRepositoryPostgres creates a new SyncHistoryRepositoryPostgres
func NewSyncHistoryRepositoryPostgres(db *sql.DB) *SyncHistoryRepositoryPostgres {
	return &SyncHistoryRepositoryPostgres{db: db}
}

// Record stores one terminal sync attempt
func (r *SyncHistoryRepositoryPostgres) Record(ctx context.Context, attempt *models.SyncAttempt) error {
	query := `INSERT INTO sync_attempts (id, trigger_source, status, message, fingerprint, uploaded, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.Trigger,
		attempt.Status,
		attempt.Message,
		attempt.Fingerprint,
		attempt.Uploaded,
		attempt.StartedAt,
		attempt.FinishedAt,
	)
	return err
}

// Recent returns the most recent attempts, newest first
func (r *SyncHistoryRepositoryPostgres) Recent(ctx context.Context, limit int) ([]*models.SyncAttempt, error) {
	query := `SELECT id, trigger_source, status, message, fingerprint, uploaded, started_at, finished_at
		FROM sync_attempts ORDER BY started_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttempts(rows)
}

// Last returns the most recent attempt, or nil when none exist
func (r *SyncHistoryRepositoryPostgres) Last(ctx context.Context) (*models.SyncAttempt, error) {
	attempts, err := r.Recent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return nil, nil
	}
	return attempts[0], nil
}
