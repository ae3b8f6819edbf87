package models

// SyncSettings is the mutable allow/deny configuration for the catalog
// fetcher and sync scheduler. It is stored in the database and reloaded once
// per batch run, never per entity.
type SyncSettings struct {
	DisabledCommunities []string `json:"disabled_communities"`
	DisabledEvents      []string `json:"disabled_events"`
	SyncIntervalMinutes int      `json:"sync_interval_minutes"`
}

// DefaultSyncSettings is used when no settings row exists yet.
func DefaultSyncSettings() SyncSettings {
	return SyncSettings{
		DisabledCommunities: []string{},
		DisabledEvents:      []string{},
		SyncIntervalMinutes: 60,
	}
}

// EventDisabled reports whether the given event ID is excluded from syncing.
func (s SyncSettings) EventDisabled(id string) bool {
	for _, disabled := range s.DisabledEvents {
		if disabled == id {
			return true
		}
	}
	return false
}

// CommunityDisabled reports whether the given community name is excluded.
func (s SyncSettings) CommunityDisabled(name string) bool {
	for _, disabled := range s.DisabledCommunities {
		if disabled == name {
			return true
		}
	}
	return false
}
