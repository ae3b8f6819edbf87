package models

import (
	"time"
)

// Event represents one event (entity) from the upstream catalog API. It is
// read-only to the sync engine: catalog fields are merged into the persisted
// record but never modified locally.
type Event struct {
	ID              string     `json:"id"`
	Slug            string     `json:"slug"`
	Title           string     `json:"title"`
	BeginsAt        *time.Time `json:"beginsAt,omitempty"`
	EndsAt          *time.Time `json:"endsAt,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
	IsLive          bool       `json:"isLive"`
	IsPublic        bool       `json:"isPublic"`
	TotalPlannings  int        `json:"totalPlannings"`
	TotalExhibitors int        `json:"totalExhibitors"`
	TotalSpeakers   int        `json:"totalSpeakers"`
	Banner          *Banner    `json:"banner,omitempty"`
	Groups          []Group    `json:"groups,omitempty"`
	Community       *Community `json:"community,omitempty"`
	Address         *Address   `json:"address,omitempty"`
	HTMLDescription string     `json:"htmlDescription,omitempty"`
}

// Banner holds the event banner image reference.
type Banner struct {
	ImageURL string `json:"imageUrl"`
}

// Group is an attendee group within an event; peopleCount feeds the
// registrations total.
type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PeopleCount int    `json:"peopleCount"`
}

// Community is the grouping an event belongs to in the upstream catalog.
type Community struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	LogoURL        string `json:"logoUrl,omitempty"`
	BannerImageURL string `json:"bannerImageUrl,omitempty"`
}

// Address holds the venue location of an event.
type Address struct {
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Lifecycle classifies an event relative to the current time.
type Lifecycle string

const (
	LifecycleActive Lifecycle = "Active"
	LifecycleFuture Lifecycle = "Future"
	LifecyclePast   Lifecycle = "Past"
)

// farFutureWindow is the default applied when an event has no begin or end
// timestamp; it pushes the event into the Future bucket instead of erroring.
const farFutureWindow = 365 * 24 * time.Hour

// Classify buckets the event into exactly one lifecycle category.
// An event the upstream marks live is Active regardless of its window.
func (e *Event) Classify(now time.Time) Lifecycle {
	beginsAt := now.Add(farFutureWindow)
	endsAt := now.Add(farFutureWindow)

	if e.BeginsAt != nil {
		beginsAt = *e.BeginsAt
	}
	if e.EndsAt != nil {
		endsAt = *e.EndsAt
	}

	switch {
	case now.After(endsAt):
		return LifecyclePast
	case e.IsLive || (!now.Before(beginsAt) && !now.After(endsAt)):
		return LifecycleActive
	default:
		return LifecycleFuture
	}
}

// Registrations sums peopleCount across the event's groups.
func (e *Event) Registrations() int {
	total := 0
	for _, g := range e.Groups {
		total += g.PeopleCount
	}
	return total
}

// CommunityName returns the community name or "" when absent.
func (e *Event) CommunityName() string {
	if e.Community == nil {
		return ""
	}
	return e.Community.Name
}
