package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eventlens/eventlens/internal/models"
	"github.com/goccy/go-json"
)

// PostgresEventRepository persists one row per event, merging catalog
// metadata with the latest lead and engagement summaries.
type PostgresEventRepository struct {
	db *sql.DB
}

// NewPostgresEventRepository creates a new PostgreSQL event repository.
func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

// UpsertMetadata writes the catalog-sourced columns for an event. Stat
// columns and their synced_at timestamps are deliberately untouched so a
// metadata refresh never regresses previously persisted aggregates.
func (r *PostgresEventRepository) UpsertMetadata(ctx context.Context, ev models.Event, lifecycle models.Lifecycle, communityName string) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	var bannerURL, city, country, communityID, communityLogo, communityBanner *string
	if ev.Banner != nil && ev.Banner.ImageURL != "" {
		bannerURL = &ev.Banner.ImageURL
	}
	if ev.Address != nil {
		if ev.Address.City != "" {
			city = &ev.Address.City
		}
		if ev.Address.Country != "" {
			country = &ev.Address.Country
		}
	}
	if ev.Community != nil {
		if ev.Community.ID != "" {
			communityID = &ev.Community.ID
		}
		if ev.Community.LogoURL != "" {
			communityLogo = &ev.Community.LogoURL
		}
		if ev.Community.BannerImageURL != "" {
			communityBanner = &ev.Community.BannerImageURL
		}
	}

	updatedAt := ev.UpdatedAt
	if updatedAt == nil {
		updatedAt = ev.CreatedAt
	}

	query := `
		INSERT INTO events (
			id, slug, title, category, data, updated_at,
			registrations_count, exhibitors_count, speakers_count, sessions_count,
			begins_at, ends_at, banner_url, city, country,
			community_id, community_name, community_logo_url, community_banner_url,
			is_live, is_public, description_html
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19,
			$20, $21, $22
		)
		ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug,
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at,
			registrations_count = EXCLUDED.registrations_count,
			exhibitors_count = EXCLUDED.exhibitors_count,
			speakers_count = EXCLUDED.speakers_count,
			sessions_count = EXCLUDED.sessions_count,
			begins_at = EXCLUDED.begins_at,
			ends_at = EXCLUDED.ends_at,
			banner_url = EXCLUDED.banner_url,
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			community_id = EXCLUDED.community_id,
			community_name = EXCLUDED.community_name,
			community_logo_url = EXCLUDED.community_logo_url,
			community_banner_url = EXCLUDED.community_banner_url,
			is_live = EXCLUDED.is_live,
			is_public = EXCLUDED.is_public,
			description_html = EXCLUDED.description_html
	`

	_, err = r.db.ExecContext(ctx, query,
		ev.ID,
		ev.Slug,
		ev.Title,
		string(lifecycle),
		data,
		updatedAt,
		ev.Registrations(),
		ev.TotalExhibitors,
		ev.TotalSpeakers,
		ev.TotalPlannings,
		ev.BeginsAt,
		ev.EndsAt,
		bannerURL,
		city,
		country,
		communityID,
		communityName,
		communityLogo,
		communityBanner,
		ev.IsLive,
		ev.IsPublic,
		nullIfEmpty(ev.HTMLDescription),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event %s: %w", ev.ID, err)
	}

	return nil
}

// UpdateLeadStats overwrites the lead stat columns and analytics_synced_at
// for one event.
func (r *PostgresEventRepository) UpdateLeadStats(ctx context.Context, summary *models.LeadSummary) error {
	query := `
		UPDATE events SET
			stats_total_leads = $2,
			stats_badges_scanned = $3,
			stats_business_cards_scanned = $4,
			stats_connections_made = $5,
			stats_connection_requests_sent = $6,
			stats_messages_exchanged = $7,
			stats_meetings_created = $8,
			stats_exhibitor_views = $9,
			stats_exhibitor_bookmarks = $10,
			analytics_synced_at = $11
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		summary.EventID,
		summary.TotalLeads,
		summary.BadgesScanned,
		summary.BusinessCardsScanned,
		summary.ConnectionsMade,
		summary.ConnectionRequestsSent,
		summary.MessagesExchanged,
		summary.MeetingsCreated,
		summary.ExhibitorViews,
		summary.ExhibitorBookmarks,
		summary.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update lead stats for %s: %w", summary.EventID, err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("no event row for %s", summary.EventID)
	}

	return nil
}

// UpdateEngagementStats overwrites the engagement stat columns and
// engagement_synced_at for one event.
func (r *PostgresEventRepository) UpdateEngagementStats(ctx context.Context, summary *models.EngagementSummary) error {
	query := `
		UPDATE events SET
			stats_active_users = $2,
			stats_users_connected = $3,
			stats_users_meetings_confirmed = $4,
			stats_users_exhibitor_bookmarks = $5,
			stats_users_session_bookmarks = $6,
			engagement_synced_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		summary.EventID,
		summary.ActiveUsers,
		summary.UsersConnected,
		summary.UsersMeetingsConfirmed,
		summary.UsersExhibitorBookmarks,
		summary.UsersSessionBookmarks,
		summary.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update engagement stats for %s: %w", summary.EventID, err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("no event row for %s", summary.EventID)
	}

	return nil
}

// SyncTimestamps returns the persisted analytics and engagement synced_at
// columns for an event. Both are nil when the event has no row yet.
func (r *PostgresEventRepository) SyncTimestamps(ctx context.Context, id string) (*time.Time, *time.Time, error) {
	var analytics, engagement sql.NullTime

	err := r.db.QueryRowContext(ctx,
		"SELECT analytics_synced_at, engagement_synced_at FROM events WHERE id = $1", id,
	).Scan(&analytics, &engagement)

	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query sync timestamps for %s: %w", id, err)
	}

	return nullableTime(analytics), nullableTime(engagement), nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
