package repository

import (
	"context"
	"database/sql"

	"github.com/scalesync/server/internal/models"
)

// SyncHistoryRepository handles sync attempt persistence (SQLite)
type SyncHistoryRepository struct {
	db *sql.DB
}

// NewSyncHistoryRepository creates a new SyncHistoryRepository
func NewSyncHistoryRepository(db *sql.DB) *SyncHistoryRepository {
	return &SyncHistoryRepository{db: db}
}

// Record stores one terminal sync attempt
func (r *SyncHistoryRepository) Record(ctx context.Context, attempt *models.SyncAttempt) error {
	query := `INSERT INTO sync_attempts (id, trigger_source, status, message, fingerprint, uploaded, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

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
func (r *SyncHistoryRepository) Recent(ctx context.Context, limit int) ([]*models.SyncAttempt, error) {
	query := `SELECT id, trigger_source, status, message, fingerprint, uploaded, started_at, finished_at
		FROM sync_attempts ORDER BY started_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttempts(rows)
}

// Last returns the most recent attempt, or nil when none exist
func (r *SyncHistoryRepository) Last(ctx context.Context) (*models.SyncAttempt, error) {
	attempts, err := r.Recent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return nil, nil
	}
	return attempts[0], nil
}

func scanAttempts(rows *sql.Rows) ([]*models.SyncAttempt, error) {
	var attempts []*models.SyncAttempt
	for rows.Next() {
		var a models.SyncAttempt
		if err := rows.Scan(
			&a.ID,
			&a.Trigger,
			&a.Status,
			&a.Message,
			&a.Fingerprint,
			&a.Uploaded,
			&a.StartedAt,
			&a.FinishedAt,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}
