package cache

import (
	"context"
	"time"
)

// Kind selects which aggregator a snapshot belongs to. Each event carries at
// most one snapshot per kind.
type Kind string

const (
	KindLeads      Kind = "leads"
	KindEngagement Kind = "engagement"
)

// Snapshot is one persisted aggregation result. Payload is the summary
// serialized as JSON; SyncedAt is the fetch timestamp the staleness policy
// is judged against.
type Snapshot struct {
	EventID  string    `json:"event_id"`
	Kind     Kind      `json:"kind"`
	Payload  []byte    `json:"payload"`
	SyncedAt time.Time `json:"synced_at"`
}

// Store persists aggregation snapshots keyed by event and kind. A snapshot is
// either absent or complete: implementations must never expose a partial
// write. Get returns (nil, nil) when no snapshot exists.
type Store interface {
	Get(ctx context.Context, eventID string, kind Kind) (*Snapshot, error)
	Put(ctx context.Context, eventID string, kind Kind, payload []byte, syncedAt time.Time) error
	Close() error
}

// IsStale reports whether a snapshot taken at syncedAt must be refreshed.
// A forced refresh, an absent timestamp, or an age beyond maxAge all count
// as stale.
func IsStale(syncedAt *time.Time, maxAge time.Duration, force bool) bool {
	if force || syncedAt == nil {
		return true
	}
	return time.Since(*syncedAt) > maxAge
}
