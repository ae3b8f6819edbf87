package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eventlens/eventlens/internal/catalog"
	"github.com/eventlens/eventlens/internal/models"
	"github.com/eventlens/eventlens/internal/telemetry"
)

// EventStore is the durable per-event record the orchestrator merges into.
// Upserts are keyed by event ID and safe to repeat.
type EventStore interface {
	UpsertMetadata(ctx context.Context, ev models.Event, lifecycle models.Lifecycle, communityName string) error
	UpdateLeadStats(ctx context.Context, summary *models.LeadSummary) error
	UpdateEngagementStats(ctx context.Context, summary *models.EngagementSummary) error
	SyncTimestamps(ctx context.Context, id string) (*time.Time, *time.Time, error)
}

// SettingsStore supplies the mutable exclusion settings, reloaded once per
// batch run.
type SettingsStore interface {
	Get(ctx context.Context) (models.SyncSettings, error)
}

// RunStore records finished batch reports.
type RunStore interface {
	Record(ctx context.Context, report *models.SyncReport) error
}

// CatalogSource fetches the event population.
type CatalogSource interface {
	FetchEvents(ctx context.Context, settings models.SyncSettings) (*catalog.Catalog, error)
}

// LeadSource produces lead summaries for one event.
type LeadSource interface {
	Aggregate(ctx context.Context, eventID string, window telemetry.Window, opts telemetry.Options) (*models.LeadSummary, error)
}

// EngagementSource produces engagement summaries for one event.
type EngagementSource interface {
	Aggregate(ctx context.Context, eventID string, window telemetry.Window, opts telemetry.Options) (*models.EngagementSummary, error)
}

// eventRow is the in-memory shape of one persisted record.
type eventRow struct {
	Event         models.Event
	Lifecycle     models.Lifecycle
	CommunityName string
	Leads         *models.LeadSummary
	Engagement    *models.EngagementSummary
}

// MemoryEventStore is an in-memory EventStore for tests and local runs.
type MemoryEventStore struct {
	mu   sync.Mutex
	rows map[string]*eventRow
}

// NewMemoryEventStore creates an empty in-memory store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{rows: make(map[string]*eventRow)}
}

// UpsertMetadata stores catalog fields, preserving existing summaries.
func (s *MemoryEventStore) UpsertMetadata(ctx context.Context, ev models.Event, lifecycle models.Lifecycle, communityName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[ev.ID]
	if !ok {
		row = &eventRow{}
		s.rows[ev.ID] = row
	}
	row.Event = ev
	row.Lifecycle = lifecycle
	row.CommunityName = communityName
	return nil
}

// UpdateLeadStats replaces the lead summary for an existing row.
func (s *MemoryEventStore) UpdateLeadStats(ctx context.Context, summary *models.LeadSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[summary.EventID]
	if !ok {
		return fmt.Errorf("no event row for %s", summary.EventID)
	}
	row.Leads = summary
	return nil
}

// UpdateEngagementStats replaces the engagement summary for an existing row.
func (s *MemoryEventStore) UpdateEngagementStats(ctx context.Context, summary *models.EngagementSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[summary.EventID]
	if !ok {
		return fmt.Errorf("no event row for %s", summary.EventID)
	}
	row.Engagement = summary
	return nil
}

// SyncTimestamps reports the synced_at of both summaries, nil when absent.
func (s *MemoryEventStore) SyncTimestamps(ctx context.Context, id string) (*time.Time, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, nil, nil
	}

	var leads, engagement *time.Time
	if row.Leads != nil {
		t := row.Leads.SyncedAt
		leads = &t
	}
	if row.Engagement != nil {
		t := row.Engagement.SyncedAt
		engagement = &t
	}
	return leads, engagement, nil
}

// Get returns the stored row for inspection in tests.
func (s *MemoryEventStore) Get(id string) (models.Event, *models.LeadSummary, *models.EngagementSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return models.Event{}, nil, nil, false
	}
	return row.Event, row.Leads, row.Engagement, true
}

// Len reports how many rows exist.
func (s *MemoryEventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// MemoryRunStore collects reports in memory.
type MemoryRunStore struct {
	mu      sync.Mutex
	reports []models.SyncReport
}

// NewMemoryRunStore creates an empty run store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{}
}

// Record appends the report.
func (s *MemoryRunStore) Record(ctx context.Context, report *models.SyncReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, *report)
	return nil
}

// Reports returns all recorded reports.
func (s *MemoryRunStore) Reports() []models.SyncReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SyncReport(nil), s.reports...)
}

// StaticSettings is a SettingsStore returning a fixed value.
type StaticSettings struct {
	Settings models.SyncSettings
}

// Get returns the fixed settings.
func (s StaticSettings) Get(ctx context.Context) (models.SyncSettings, error) {
	return s.Settings, nil
}
