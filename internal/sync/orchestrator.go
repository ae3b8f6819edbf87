package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventlens/eventlens/internal/cache"
	"github.com/eventlens/eventlens/internal/catalog"
	"github.com/eventlens/eventlens/internal/config"
	"github.com/eventlens/eventlens/internal/metrics"
	"github.com/eventlens/eventlens/internal/models"
	"github.com/eventlens/eventlens/internal/telemetry"
	"github.com/google/uuid"
)

// Options select the scope and mode of one batch run.
type Options struct {
	// WindowDays overrides the configured lookback window when positive.
	WindowDays int
	// Force refreshes every entity regardless of snapshot age.
	Force bool
	// DryRun evaluates freshness decisions without streaming or writing.
	DryRun bool
	// Lifecycle restricts the run to one lifecycle bucket when set.
	Lifecycle models.Lifecycle
	// EventID restricts the run to a single event when set.
	EventID string
}

// Orchestrator drives full sync runs: fetch the catalog, then walk every
// entity through metadata upsert, staleness check, aggregation and stat
// persistence. Entity failures are isolated; only a catalog failure aborts
// the run.
type Orchestrator struct {
	catalog    CatalogSource
	leads      LeadSource
	engagement EngagementSource
	events     EventStore
	runs       RunStore
	settings   SettingsStore
	collector  *metrics.Collector
	logger     *slog.Logger

	resyncMaxAge time.Duration
	windowDays   int
	retry        RetryPolicy
}

// NewOrchestrator wires the orchestrator. The metrics collector may be nil.
func NewOrchestrator(
	cat CatalogSource,
	leads LeadSource,
	engagement EngagementSource,
	events EventStore,
	runs RunStore,
	settings SettingsStore,
	collector *metrics.Collector,
	cfg config.SyncConfig,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		catalog:      cat,
		leads:        leads,
		engagement:   engagement,
		events:       events,
		runs:         runs,
		settings:     settings,
		collector:    collector,
		logger:       logger,
		resyncMaxAge: cfg.ResyncMaxAge,
		windowDays:   cfg.WindowDays,
		retry:        DefaultRetryPolicy(),
	}
}

// Run executes one batch over the current catalog. The returned report is
// always non-nil when err is nil; a nil report means the run could not start
// at all (settings or catalog unavailable after retries).
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*models.SyncReport, error) {
	report := &models.SyncReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Forced:    opts.Force,
		DryRun:    opts.DryRun,
	}

	logger := o.logger.With("run_id", report.RunID)
	logger.Info("sync run starting", "forced", opts.Force, "dry_run", opts.DryRun)

	settings, err := o.settings.Get(ctx)
	if err != nil {
		logger.Warn("failed to load sync settings, using defaults", "error", err)
		settings = models.DefaultSyncSettings()
	}

	var cat *catalog.Catalog
	err = Retry(ctx, o.retry, func() error {
		var fetchErr error
		cat, fetchErr = o.catalog.FetchEvents(ctx, settings)
		if fetchErr != nil {
			return NewRetryableError(fetchErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event catalog: %w", err)
	}

	windowDays := o.windowDays
	if opts.WindowDays > 0 {
		windowDays = opts.WindowDays
	}
	window := telemetry.WindowFromDays(windowDays)

	for _, lc := range []models.Lifecycle{models.LifecycleActive, models.LifecycleFuture, models.LifecyclePast} {
		if opts.Lifecycle != "" && opts.Lifecycle != lc {
			continue
		}
		for _, ev := range cat.ByLifecycle[lc] {
			if opts.EventID != "" && opts.EventID != ev.ID {
				continue
			}

			res := o.syncOne(ctx, ev, lc, window, opts)
			report.Add(res)
			if o.collector != nil {
				o.collector.ObserveEntity(string(res.Outcome))
			}

			if res.Outcome == models.OutcomeFailed {
				logger.Error("entity sync failed",
					"event_id", res.EventID,
					"title", res.Title,
					"error", res.Err,
				)
			}
		}
	}

	report.FinishedAt = time.Now().UTC()

	logger.Info("sync run complete",
		"succeeded", report.Succeeded,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"total", report.Total,
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	if o.collector != nil {
		o.collector.ObserveRun(report.FinishedAt.Sub(report.StartedAt))
	}

	if !opts.DryRun && o.runs != nil {
		if err := o.runs.Record(ctx, report); err != nil {
			logger.Warn("failed to record sync run", "error", err)
		}
	}

	return report, nil
}

// syncOne walks one entity through the per-entity state machine. Any error
// lands in the result rather than propagating; the batch continues.
func (o *Orchestrator) syncOne(ctx context.Context, ev models.Event, lc models.Lifecycle, window telemetry.Window, opts Options) (res models.EntityResult) {
	res = models.EntityResult{
		EventID:   ev.ID,
		Title:     truncateTitle(ev.Title),
		Lifecycle: lc,
	}

	// A panic inside an aggregator or store must not take down the batch.
	defer func() {
		if r := recover(); r != nil {
			res.Outcome = models.OutcomeFailed
			res.Err = fmt.Errorf("panic during entity sync: %v", r)
		}
	}()

	leadsAt, engagementAt, err := o.events.SyncTimestamps(ctx, ev.ID)
	if err != nil {
		res.Outcome = models.OutcomeFailed
		res.Err = fmt.Errorf("failed to read sync timestamps: %w", err)
		return res
	}

	leadsStale := cache.IsStale(leadsAt, o.resyncMaxAge, opts.Force)
	engagementStale := cache.IsStale(engagementAt, o.resyncMaxAge, opts.Force)

	if opts.DryRun {
		res.Outcome = models.OutcomeDryRun
		if !leadsStale && !engagementStale {
			res.Outcome = models.OutcomeSkipped
		}
		return res
	}

	community := catalog.CleanCommunityName(ev.CommunityName())
	if err := o.events.UpsertMetadata(ctx, ev, lc, community); err != nil {
		res.Outcome = models.OutcomeFailed
		res.Err = fmt.Errorf("failed to upsert event metadata: %w", err)
		return res
	}

	// Both summaries fresh: metadata is updated above but the aggregates are
	// left untouched.
	if !leadsStale && !engagementStale {
		res.Outcome = models.OutcomeSkipped
		return res
	}

	aggOpts := telemetry.Options{UseCache: !opts.Force, Force: opts.Force}

	if leadsStale {
		summary, err := o.leads.Aggregate(ctx, ev.ID, window, aggOpts)
		if err != nil {
			res.Outcome = models.OutcomeFailed
			res.Err = fmt.Errorf("lead aggregation failed: %w", err)
			return res
		}
		if err := o.events.UpdateLeadStats(ctx, summary); err != nil {
			res.Outcome = models.OutcomeFailed
			res.Err = fmt.Errorf("failed to persist lead stats: %w", err)
			return res
		}
		if o.collector != nil {
			o.collector.ObserveStream(summary.RawCount, summary.SkippedLines)
		}
	}

	if engagementStale {
		summary, err := o.engagement.Aggregate(ctx, ev.ID, window, aggOpts)
		if err != nil {
			res.Outcome = models.OutcomeFailed
			res.Err = fmt.Errorf("engagement aggregation failed: %w", err)
			return res
		}
		if err := o.events.UpdateEngagementStats(ctx, summary); err != nil {
			res.Outcome = models.OutcomeFailed
			res.Err = fmt.Errorf("failed to persist engagement stats: %w", err)
			return res
		}
		if o.collector != nil {
			o.collector.ObserveStream(summary.TotalRecords, summary.SkippedLines)
		}
	}

	res.Outcome = models.OutcomeUpserted
	return res
}

// truncateTitle bounds titles for logs and reports.
func truncateTitle(title string) string {
	const max = 50
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return string(runes[:max])
}
