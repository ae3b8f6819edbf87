package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventlens/eventlens/internal/cache"
	"github.com/eventlens/eventlens/internal/models"
	"github.com/goccy/go-json"
)

// EngagementAggregator streams telemetry for one event and counts distinct
// actors per engagement category, as opposed to raw occurrences.
type EngagementAggregator struct {
	client *Client
	store  cache.Store
	maxAge time.Duration
	logger *slog.Logger
}

// NewEngagementAggregator wires the stream client to a snapshot store with
// the given snapshot max age.
func NewEngagementAggregator(client *Client, store cache.Store, maxAge time.Duration, logger *slog.Logger) *EngagementAggregator {
	return &EngagementAggregator{
		client: client,
		store:  store,
		maxAge: maxAge,
		logger: logger,
	}
}

// Aggregate returns the engagement summary for eventID over the given
// window. Cache semantics match the lead aggregator. Records without a user
// identifier count toward the raw total but can never join a distinct-actor
// set.
func (a *EngagementAggregator) Aggregate(ctx context.Context, eventID string, window Window, opts Options) (*models.EngagementSummary, error) {
	if opts.UseCache && !opts.Force {
		if cached := a.loadSnapshot(ctx, eventID); cached != nil {
			a.logger.Debug("returning cached engagement summary", "event_id", eventID, "synced_at", cached.SyncedAt)
			return cached, nil
		}
	}

	active := make(map[string]struct{})
	connected := make(map[string]struct{})
	meetingsConfirmed := make(map[string]struct{})
	exhibitorBookmarks := make(map[string]struct{})
	sessionBookmarks := make(map[string]struct{})

	req := StreamRequest{EventIDs: []string{eventID}, TimeGT: window.TimeGT, TimeLT: window.TimeLT}
	stats, err := a.client.Stream(ctx, req, func(rec Record) {
		if rec.UserID == "" {
			return
		}

		active[rec.UserID] = struct{}{}

		switch rec.Event {
		case ActionConnection, ActionContactConnection, ScannedAction(ActionConnection):
			connected[rec.UserID] = struct{}{}
		case ActionMeetingUpdate, ActionMeetingParticipant:
			if IsConfirmedMeeting(rec) {
				meetingsConfirmed[rec.UserID] = struct{}{}
			}
		case ActionExhibitorBookmark:
			exhibitorBookmarks[rec.UserID] = struct{}{}
		case ActionSessionBookmark:
			sessionBookmarks[rec.UserID] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}

	summary := &models.EngagementSummary{
		EventID:                 eventID,
		ActiveUsers:             len(active),
		UsersConnected:          len(connected),
		UsersMeetingsConfirmed:  len(meetingsConfirmed),
		UsersExhibitorBookmarks: len(exhibitorBookmarks),
		UsersSessionBookmarks:   len(sessionBookmarks),
		TotalRecords:            stats.Records,
		SkippedLines:            stats.SkippedLines,
		SyncedAt:                time.Now().UTC(),
		TimeGT:                  window.TimeGT,
		TimeLT:                  window.TimeLT,
	}

	if err := a.putSnapshot(ctx, eventID, summary); err != nil {
		return nil, err
	}

	a.logger.Info("engagement aggregation complete",
		"event_id", eventID,
		"records", stats.Records,
		"active_users", summary.ActiveUsers,
	)

	return summary, nil
}

func (a *EngagementAggregator) loadSnapshot(ctx context.Context, eventID string) *models.EngagementSummary {
	snap, err := a.store.Get(ctx, eventID, cache.KindEngagement)
	if err != nil {
		a.logger.Warn("failed to read engagement snapshot", "event_id", eventID, "error", err)
		return nil
	}
	if snap == nil || cache.IsStale(&snap.SyncedAt, a.maxAge, false) {
		return nil
	}

	var summary models.EngagementSummary
	if err := json.Unmarshal(snap.Payload, &summary); err != nil {
		return nil
	}
	return &summary
}

func (a *EngagementAggregator) putSnapshot(ctx context.Context, eventID string, summary *models.EngagementSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal engagement summary: %w", err)
	}
	if err := a.store.Put(ctx, eventID, cache.KindEngagement, payload, summary.SyncedAt); err != nil {
		return fmt.Errorf("failed to store engagement snapshot: %w", err)
	}
	return nil
}
