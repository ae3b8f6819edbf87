package models

import (
	"time"
)

// LeadSummary is the per-event aggregate of lead-generating actions,
// recomputed wholesale on each refresh and persisted as one snapshot.
type LeadSummary struct {
	EventID                string         `json:"event_id"`
	TotalLeads             int            `json:"stats_total_leads"`
	BadgesScanned          int            `json:"stats_badges_scanned"`
	BusinessCardsScanned   int            `json:"stats_business_cards_scanned"`
	ConnectionsMade        int            `json:"stats_connections_made"`
	ConnectionRequestsSent int            `json:"stats_connection_requests_sent"`
	MessagesExchanged      int            `json:"stats_messages_exchanged"`
	MeetingsCreated        int            `json:"stats_meetings_created"`
	ExhibitorViews         int            `json:"stats_exhibitor_views"`
	ExhibitorBookmarks     int            `json:"stats_exhibitor_bookmarks"`
	Breakdown              map[string]int `json:"event_breakdown"`
	RawCount               int            `json:"raw_count"`
	SkippedLines           int            `json:"skipped_lines,omitempty"`
	SyncedAt               time.Time      `json:"synced_at"`
	TimeGT                 string         `json:"time_gt"`
	TimeLT                 string         `json:"time_lt,omitempty"`
}

// ComputeTotal derives the total-leads figure. Only badge scans, business
// card scans, connections, exhibitor views and exhibitor bookmarks count;
// connection requests, messages and meetings are tracked but excluded.
func (s *LeadSummary) ComputeTotal() int {
	return s.BadgesScanned +
		s.BusinessCardsScanned +
		s.ConnectionsMade +
		s.ExhibitorViews +
		s.ExhibitorBookmarks
}

// EngagementSummary is the per-event aggregate of distinct-actor engagement.
// Counts are set cardinalities, not raw occurrence counts.
type EngagementSummary struct {
	EventID                 string    `json:"event_id"`
	ActiveUsers             int       `json:"stats_active_users"`
	UsersConnected          int       `json:"stats_users_connected"`
	UsersMeetingsConfirmed  int       `json:"stats_users_meetings_confirmed"`
	UsersExhibitorBookmarks int       `json:"stats_users_exhibitor_bookmarks"`
	UsersSessionBookmarks   int       `json:"stats_users_session_bookmarks"`
	TotalRecords            int       `json:"total_records"`
	SkippedLines            int       `json:"skipped_lines,omitempty"`
	SyncedAt                time.Time `json:"synced_at"`
	TimeGT                  string    `json:"time_gt"`
	TimeLT                  string    `json:"time_lt,omitempty"`
}
