package models

import (
	"time"
)

// Outcome is the terminal per-entity state reached during a sync run.
type Outcome string

const (
	OutcomeUpserted Outcome = "upserted"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
	OutcomeDryRun   Outcome = "dry_run"
)

// EntityResult is the explicit per-entity result of the orchestrator's inner
// loop. Errors are carried as values so that one bad entity never aborts the
// batch.
type EntityResult struct {
	EventID   string    `json:"event_id"`
	Title     string    `json:"title"`
	Lifecycle Lifecycle `json:"lifecycle"`
	Outcome   Outcome   `json:"outcome"`
	Err       error     `json:"-"`
}

// SyncReport summarizes one batch run.
type SyncReport struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Succeeded  int            `json:"succeeded"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Total      int            `json:"total"`
	Forced     bool           `json:"forced"`
	DryRun     bool           `json:"dry_run"`
	Results    []EntityResult `json:"results,omitempty"`
}

// Add records one per-entity result and updates the counters.
func (r *SyncReport) Add(res EntityResult) {
	r.Results = append(r.Results, res)
	r.Total++

	switch res.Outcome {
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Succeeded++
	}
}
