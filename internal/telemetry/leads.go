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

// Options control cache behavior for a single aggregation call.
type Options struct {
	// UseCache permits returning a fresh-enough snapshot without touching
	// the network.
	UseCache bool
	// Force refreshes regardless of snapshot age.
	Force bool
}

// leadStatTable maps upstream action names to their stat counters on the
// lead summary. The table is fixed: unknown actions still land in the raw
// breakdown but never in a stat field.
var leadStatTable = map[string]func(*models.LeadSummary, int){
	ActionBadgeScan:         func(s *models.LeadSummary, n int) { s.BadgesScanned += n },
	ActionContactConnection: func(s *models.LeadSummary, n int) { s.BusinessCardsScanned += n },
	ActionConnection:        func(s *models.LeadSummary, n int) { s.ConnectionsMade += n },
	ActionConnectionRequest: func(s *models.LeadSummary, n int) { s.ConnectionRequestsSent += n },
	ActionMessage:           func(s *models.LeadSummary, n int) { s.MessagesExchanged += n },
	ActionMeetingCreate:     func(s *models.LeadSummary, n int) { s.MeetingsCreated += n },
	ActionExhibitorView:     func(s *models.LeadSummary, n int) { s.ExhibitorViews += n },
	ActionExhibitorBookmark: func(s *models.LeadSummary, n int) { s.ExhibitorBookmarks += n },
}

// LeadAggregator streams telemetry for one event and produces occurrence
// counts per lead category.
type LeadAggregator struct {
	client *Client
	store  cache.Store
	maxAge time.Duration
	logger *slog.Logger
}

// NewLeadAggregator wires the stream client to a snapshot store with the
// given snapshot max age.
func NewLeadAggregator(client *Client, store cache.Store, maxAge time.Duration, logger *slog.Logger) *LeadAggregator {
	return &LeadAggregator{
		client: client,
		store:  store,
		maxAge: maxAge,
		logger: logger,
	}
}

// Aggregate returns the lead summary for eventID over the given window.
// With UseCache set and a snapshot younger than the max age, the cached
// summary is returned without any network call. Otherwise the stream is
// consumed in full and the snapshot is overwritten unconditionally, zero
// activity included.
func (a *LeadAggregator) Aggregate(ctx context.Context, eventID string, window Window, opts Options) (*models.LeadSummary, error) {
	if opts.UseCache && !opts.Force {
		if cached := a.loadSnapshot(ctx, eventID); cached != nil {
			a.logger.Debug("returning cached lead summary", "event_id", eventID, "synced_at", cached.SyncedAt)
			return cached, nil
		}
	}

	summary := &models.LeadSummary{
		EventID:   eventID,
		Breakdown: make(map[string]int),
		TimeGT:    window.TimeGT,
		TimeLT:    window.TimeLT,
	}

	req := StreamRequest{EventIDs: []string{eventID}, TimeGT: window.TimeGT, TimeLT: window.TimeLT}
	stats, err := a.client.Stream(ctx, req, func(rec Record) {
		c := Classify(rec)
		summary.Breakdown[c.Action]++
		if c.Scanned {
			summary.Breakdown[ScannedAction(c.Action)]++
		}
	})
	if err != nil {
		return nil, err
	}

	for action, count := range summary.Breakdown {
		if apply, ok := leadStatTable[action]; ok {
			apply(summary, count)
		}
	}

	// Scanned connections attribute to badge scans on top of their base
	// category counter. Intentional double attribution: a scanned
	// connection is both a connection and a badge scan.
	summary.BadgesScanned += summary.Breakdown[ScannedAction(ActionConnection)]
	summary.BadgesScanned += summary.Breakdown[ScannedAction(ActionContactConnection)]

	summary.TotalLeads = summary.ComputeTotal()
	summary.RawCount = stats.Records
	summary.SkippedLines = stats.SkippedLines
	summary.SyncedAt = time.Now().UTC()

	if err := a.putSnapshot(ctx, eventID, summary); err != nil {
		return nil, err
	}

	a.logger.Info("lead aggregation complete",
		"event_id", eventID,
		"records", stats.Records,
		"total_leads", summary.TotalLeads,
	)

	return summary, nil
}

func (a *LeadAggregator) loadSnapshot(ctx context.Context, eventID string) *models.LeadSummary {
	snap, err := a.store.Get(ctx, eventID, cache.KindLeads)
	if err != nil {
		a.logger.Warn("failed to read lead snapshot", "event_id", eventID, "error", err)
		return nil
	}
	if snap == nil || cache.IsStale(&snap.SyncedAt, a.maxAge, false) {
		return nil
	}

	var summary models.LeadSummary
	if err := json.Unmarshal(snap.Payload, &summary); err != nil {
		return nil
	}
	return &summary
}

func (a *LeadAggregator) putSnapshot(ctx context.Context, eventID string, summary *models.LeadSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal lead summary: %w", err)
	}
	if err := a.store.Put(ctx, eventID, cache.KindLeads, payload, summary.SyncedAt); err != nil {
		return fmt.Errorf("failed to store lead snapshot: %w", err)
	}
	return nil
}
