package models

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	ts := func(offset time.Duration) *time.Time {
		v := now.Add(offset)
		return &v
	}

	tests := []struct {
		name  string
		event Event
		want  Lifecycle
	}{
		{
			name:  "window contains now",
			event: Event{BeginsAt: ts(-time.Hour), EndsAt: ts(time.Hour)},
			want:  LifecycleActive,
		},
		{
			name:  "ended yesterday",
			event: Event{BeginsAt: ts(-48 * time.Hour), EndsAt: ts(-24 * time.Hour)},
			want:  LifecyclePast,
		},
		{
			name:  "starts tomorrow",
			event: Event{BeginsAt: ts(24 * time.Hour), EndsAt: ts(48 * time.Hour)},
			want:  LifecycleFuture,
		},
		{
			name:  "live overrides future window",
			event: Event{BeginsAt: ts(24 * time.Hour), EndsAt: ts(48 * time.Hour), IsLive: true},
			want:  LifecycleActive,
		},
		{
			name:  "live does not resurrect ended event",
			event: Event{BeginsAt: ts(-48 * time.Hour), EndsAt: ts(-24 * time.Hour), IsLive: true},
			want:  LifecyclePast,
		},
		{
			name:  "missing timestamps default to future",
			event: Event{},
			want:  LifecycleFuture,
		},
		{
			name:  "missing end with past begin",
			event: Event{BeginsAt: ts(-time.Hour)},
			want:  LifecycleActive,
		},
		{
			name:  "boundary start is active",
			event: Event{BeginsAt: &now, EndsAt: ts(time.Hour)},
			want:  LifecycleActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Classify(now); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistrations(t *testing.T) {
	ev := Event{Groups: []Group{
		{Name: "Attendees", PeopleCount: 120},
		{Name: "Speakers", PeopleCount: 8},
		{Name: "Staff", PeopleCount: 0},
	}}

	if got := ev.Registrations(); got != 128 {
		t.Errorf("Registrations() = %d, want 128", got)
	}

	empty := Event{}
	if got := empty.Registrations(); got != 0 {
		t.Errorf("Registrations() on empty event = %d, want 0", got)
	}
}

func TestCommunityName(t *testing.T) {
	ev := Event{Community: &Community{Name: "Tech Summit"}}
	if got := ev.CommunityName(); got != "Tech Summit" {
		t.Errorf("CommunityName() = %q, want %q", got, "Tech Summit")
	}

	none := Event{}
	if got := none.CommunityName(); got != "" {
		t.Errorf("CommunityName() without community = %q, want empty", got)
	}
}
