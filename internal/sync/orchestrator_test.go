package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eventlens/eventlens/internal/catalog"
	"github.com/eventlens/eventlens/internal/config"
	"github.com/eventlens/eventlens/internal/models"
	"github.com/eventlens/eventlens/internal/telemetry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCatalog struct {
	catalog *catalog.Catalog
	err     error
	calls   int
}

func (f *fakeCatalog) FetchEvents(ctx context.Context, settings models.SyncSettings) (*catalog.Catalog, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.catalog, nil
}

type fakeLeads struct {
	failFor map[string]bool
	calls   []string
}

func (f *fakeLeads) Aggregate(ctx context.Context, eventID string, window telemetry.Window, opts telemetry.Options) (*models.LeadSummary, error) {
	f.calls = append(f.calls, eventID)
	if f.failFor[eventID] {
		return nil, errors.New("stream exploded")
	}
	return &models.LeadSummary{EventID: eventID, TotalLeads: 5, SyncedAt: time.Now().UTC()}, nil
}

type fakeEngagement struct {
	calls []string
}

func (f *fakeEngagement) Aggregate(ctx context.Context, eventID string, window telemetry.Window, opts telemetry.Options) (*models.EngagementSummary, error) {
	f.calls = append(f.calls, eventID)
	return &models.EngagementSummary{EventID: eventID, ActiveUsers: 3, SyncedAt: time.Now().UTC()}, nil
}

func activeCatalog(ids ...string) *catalog.Catalog {
	events := make([]models.Event, len(ids))
	for i, id := range ids {
		events[i] = models.Event{ID: id, Title: "Event " + id}
	}
	return &catalog.Catalog{ByLifecycle: map[models.Lifecycle][]models.Event{
		models.LifecycleActive: events,
	}}
}

func syncConfig() config.SyncConfig {
	return config.SyncConfig{
		SnapshotMaxAge: 6 * time.Hour,
		ResyncMaxAge:   24 * time.Hour,
		WindowDays:     730,
	}
}

func newTestOrchestrator(cat CatalogSource, leads LeadSource, engagement EngagementSource, events EventStore, runs RunStore) *Orchestrator {
	o := NewOrchestrator(cat, leads, engagement, events, runs, StaticSettings{Settings: models.DefaultSyncSettings()}, nil, syncConfig(), testLogger())
	o.retry = RetryPolicy{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 1}
	return o
}

func TestRunHappyPath(t *testing.T) {
	store := NewMemoryEventStore()
	runs := NewMemoryRunStore()
	leads := &fakeLeads{}
	engagement := &fakeEngagement{}

	o := newTestOrchestrator(&fakeCatalog{catalog: activeCatalog("a", "b")}, leads, engagement, store, runs)

	report, err := o.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Succeeded != 2 || report.Failed != 0 || report.Total != 2 {
		t.Errorf("report = %+v, want 2 succeeded out of 2", report)
	}
	if report.RunID == "" {
		t.Error("expected a run ID")
	}

	for _, id := range []string{"a", "b"} {
		_, ls, es, ok := store.Get(id)
		if !ok {
			t.Fatalf("no row for %s", id)
		}
		if ls == nil || es == nil {
			t.Errorf("event %s missing summaries: leads=%v engagement=%v", id, ls, es)
		}
	}

	reports := runs.Reports()
	if len(reports) != 1 || reports[0].RunID != report.RunID {
		t.Errorf("recorded runs = %+v", reports)
	}
}

func TestRunIsolatesEntityFailure(t *testing.T) {
	store := NewMemoryEventStore()
	leads := &fakeLeads{failFor: map[string]bool{"bad": true}}
	engagement := &fakeEngagement{}

	o := newTestOrchestrator(&fakeCatalog{catalog: activeCatalog("good1", "bad", "good2")}, leads, engagement, store, NewMemoryRunStore())

	report, err := o.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Failed != 1 || report.Succeeded != 2 {
		t.Errorf("report = %+v, want 1 failed and 2 succeeded", report)
	}

	// The failing entity keeps its metadata row; only its stats are missing.
	_, ls, _, ok := store.Get("bad")
	if !ok {
		t.Fatal("failed entity should still have a metadata row")
	}
	if ls != nil {
		t.Error("failed entity should have no lead summary")
	}

	var failed *models.EntityResult
	for i := range report.Results {
		if report.Results[i].Outcome == models.OutcomeFailed {
			failed = &report.Results[i]
		}
	}
	if failed == nil || failed.EventID != "bad" || failed.Err == nil {
		t.Errorf("failed result = %+v", failed)
	}
}

func TestRunSkipsFreshEntities(t *testing.T) {
	store := NewMemoryEventStore()
	leads := &fakeLeads{}
	engagement := &fakeEngagement{}
	ctx := context.Background()

	// Seed a fresh row so both timestamps are within the resync window.
	ev := models.Event{ID: "fresh", Title: "Fresh"}
	if err := store.UpsertMetadata(ctx, ev, models.LifecycleActive, ""); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	if err := store.UpdateLeadStats(ctx, &models.LeadSummary{EventID: "fresh", TotalLeads: 9, SyncedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateEngagementStats(ctx, &models.EngagementSummary{EventID: "fresh", ActiveUsers: 4, SyncedAt: now}); err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator(&fakeCatalog{catalog: activeCatalog("fresh")}, leads, engagement, store, NewMemoryRunStore())

	report, err := o.Run(ctx, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Skipped != 1 || report.Succeeded != 0 {
		t.Errorf("report = %+v, want 1 skipped", report)
	}
	if len(leads.calls) != 0 || len(engagement.calls) != 0 {
		t.Error("aggregators must not run for fresh entities")
	}

	// The skip preserved the previously persisted stats.
	_, ls, _, _ := store.Get("fresh")
	if ls == nil || ls.TotalLeads != 9 {
		t.Errorf("lead summary after skip = %+v, want preserved TotalLeads 9", ls)
	}
}

func TestRunForceRefreshesFreshEntities(t *testing.T) {
	store := NewMemoryEventStore()
	leads := &fakeLeads{}
	engagement := &fakeEngagement{}
	ctx := context.Background()

	if err := store.UpsertMetadata(ctx, models.Event{ID: "fresh"}, models.LifecycleActive, ""); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	if err := store.UpdateLeadStats(ctx, &models.LeadSummary{EventID: "fresh", SyncedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateEngagementStats(ctx, &models.EngagementSummary{EventID: "fresh", SyncedAt: now}); err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator(&fakeCatalog{catalog: activeCatalog("fresh")}, leads, engagement, store, NewMemoryRunStore())

	report, err := o.Run(ctx, Options{Force: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Succeeded != 1 || report.Skipped != 0 {
		t.Errorf("report = %+v, want 1 succeeded", report)
	}
	if len(leads.calls) != 1 || len(engagement.calls) != 1 {
		t.Errorf("aggregator calls = %d/%d, want 1/1", len(leads.calls), len(engagement.calls))
	}
}

func TestRunDryRun(t *testing.T) {
	store := NewMemoryEventStore()
	runs := NewMemoryRunStore()
	leads := &fakeLeads{}
	engagement := &fakeEngagement{}

	o := newTestOrchestrator(&fakeCatalog{catalog: activeCatalog("a", "b")}, leads, engagement, store, runs)

	report, err := o.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Total != 2 {
		t.Errorf("Total = %d, want 2", report.Total)
	}
	if len(leads.calls) != 0 || len(engagement.calls) != 0 {
		t.Error("dry run must not aggregate")
	}
	if store.Len() != 0 {
		t.Errorf("dry run wrote %d rows", store.Len())
	}
	if len(runs.Reports()) != 0 {
		t.Error("dry run must not be recorded")
	}

	for _, res := range report.Results {
		if res.Outcome != models.OutcomeDryRun {
			t.Errorf("outcome = %v, want dry_run", res.Outcome)
		}
	}
}

func TestRunEventFilter(t *testing.T) {
	store := NewMemoryEventStore()
	leads := &fakeLeads{}
	engagement := &fakeEngagement{}

	o := newTestOrchestrator(&fakeCatalog{catalog: activeCatalog("a", "b", "c")}, leads, engagement, store, NewMemoryRunStore())

	report, err := o.Run(context.Background(), Options{EventID: "b"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Total != 1 {
		t.Errorf("Total = %d, want 1", report.Total)
	}
	if store.Len() != 1 {
		t.Errorf("rows = %d, want 1", store.Len())
	}
	if _, _, _, ok := store.Get("b"); !ok {
		t.Error("expected row for event b")
	}
}

func TestRunCatalogFailureAborts(t *testing.T) {
	o := newTestOrchestrator(&fakeCatalog{err: errors.New("catalog down")}, &fakeLeads{}, &fakeEngagement{}, NewMemoryEventStore(), NewMemoryRunStore())

	report, err := o.Run(context.Background(), Options{})
	if err == nil {
		t.Fatal("expected error when the catalog is unreachable")
	}
	if report != nil {
		t.Errorf("report = %+v, want nil", report)
	}
}

func TestRunCatalogRetries(t *testing.T) {
	failing := &flakyCatalog{failures: 1, catalog: activeCatalog("a")}

	o := newTestOrchestrator(failing, &fakeLeads{}, &fakeEngagement{}, NewMemoryEventStore(), NewMemoryRunStore())

	report, err := o.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if failing.calls != 2 {
		t.Errorf("catalog calls = %d, want 2", failing.calls)
	}
	if report.Succeeded != 1 {
		t.Errorf("report = %+v, want 1 succeeded", report)
	}
}

type flakyCatalog struct {
	failures int
	catalog  *catalog.Catalog
	calls    int
}

func (f *flakyCatalog) FetchEvents(ctx context.Context, settings models.SyncSettings) (*catalog.Catalog, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient")
	}
	return f.catalog, nil
}

func TestTruncateTitle(t *testing.T) {
	long := make([]rune, 80)
	for i := range long {
		long[i] = 'x'
	}

	if got := truncateTitle(string(long)); len([]rune(got)) != 50 {
		t.Errorf("truncated length = %d, want 50", len([]rune(got)))
	}
	if got := truncateTitle("short"); got != "short" {
		t.Errorf("truncateTitle(short) = %q", got)
	}
}
