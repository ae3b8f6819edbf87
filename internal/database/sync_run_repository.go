package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eventlens/eventlens/internal/models"
)

// SyncRunRepository records one row per completed batch run for operator
// history.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new sync run repository.
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Record persists a finished run report.
func (r *SyncRunRepository) Record(ctx context.Context, report *models.SyncReport) error {
	query := `
		INSERT INTO sync_runs (
			id, started_at, finished_at, succeeded, skipped, failed, total, forced, dry_run
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		report.RunID,
		report.StartedAt,
		report.FinishedAt,
		report.Succeeded,
		report.Skipped,
		report.Failed,
		report.Total,
		report.Forced,
		report.DryRun,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// Recent returns the most recent run reports, newest first.
func (r *SyncRunRepository) Recent(ctx context.Context, limit int) ([]models.SyncReport, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, succeeded, skipped, failed, total, forced, dry_run
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var reports []models.SyncReport
	for rows.Next() {
		var report models.SyncReport
		if err := rows.Scan(
			&report.RunID,
			&report.StartedAt,
			&report.FinishedAt,
			&report.Succeeded,
			&report.Skipped,
			&report.Failed,
			&report.Total,
			&report.Forced,
			&report.DryRun,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync runs: %w", err)
	}
	return reports, nil
}
