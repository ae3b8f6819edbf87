package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eventlens/eventlens/internal/models"
	"github.com/lib/pq"
)

// SettingsRepository reads and writes the single-row sync_settings table.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the current sync settings, falling back to defaults when the
// row does not exist yet.
func (r *SettingsRepository) Get(ctx context.Context) (models.SyncSettings, error) {
	var settings models.SyncSettings
	var communities, events pq.StringArray

	err := r.db.QueryRowContext(ctx,
		"SELECT disabled_communities, disabled_events, sync_interval_minutes FROM sync_settings WHERE id = 1",
	).Scan(&communities, &events, &settings.SyncIntervalMinutes)

	if err == sql.ErrNoRows {
		return models.DefaultSyncSettings(), nil
	}
	if err != nil {
		return models.SyncSettings{}, fmt.Errorf("failed to load sync settings: %w", err)
	}

	settings.DisabledCommunities = communities
	settings.DisabledEvents = events
	return settings, nil
}

// Save upserts the settings row.
func (r *SettingsRepository) Save(ctx context.Context, settings models.SyncSettings) error {
	query := `
		INSERT INTO sync_settings (id, disabled_communities, disabled_events, sync_interval_minutes)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			disabled_communities = EXCLUDED.disabled_communities,
			disabled_events = EXCLUDED.disabled_events,
			sync_interval_minutes = EXCLUDED.sync_interval_minutes
	`

	_, err := r.db.ExecContext(ctx, query,
		pq.Array(settings.DisabledCommunities),
		pq.Array(settings.DisabledEvents),
		settings.SyncIntervalMinutes,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync settings: %w", err)
	}
	return nil
}
