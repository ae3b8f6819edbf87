package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/eventlens/eventlens/internal/models"
)

// ErrRunInProgress is returned when a run is requested while another is
// still executing. Runs never overlap.
var ErrRunInProgress = errors.New("sync run already in progress")

// RunStatus is a point-in-time view of the runner for status endpoints.
type RunStatus struct {
	Running    bool               `json:"running"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	LastReport *models.SyncReport `json:"last_report,omitempty"`
	LastError  string             `json:"last_error,omitempty"`
}

// Runner serializes sync runs over a single orchestrator. At most one run
// executes at a time, whether triggered by the scheduler or the API.
type Runner struct {
	orchestrator *Orchestrator
	logger       *slog.Logger

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	last      *models.SyncReport
	lastErr   error
}

// NewRunner creates a runner over the orchestrator.
func NewRunner(orchestrator *Orchestrator, logger *slog.Logger) *Runner {
	return &Runner{orchestrator: orchestrator, logger: logger}
}

// Run executes one sync synchronously. Returns ErrRunInProgress when another
// run holds the slot.
func (r *Runner) Run(ctx context.Context, opts Options) (*models.SyncReport, error) {
	if !r.acquire() {
		return nil, ErrRunInProgress
	}

	report, err := r.orchestrator.Run(ctx, opts)
	r.release(report, err)
	return report, err
}

// Start launches a run in the background. Returns ErrRunInProgress without
// starting anything when another run holds the slot. The run detaches from
// the caller's context so an HTTP trigger returning early cannot cancel it.
func (r *Runner) Start(ctx context.Context, opts Options) error {
	if !r.acquire() {
		return ErrRunInProgress
	}

	go func() {
		report, err := r.orchestrator.Run(context.WithoutCancel(ctx), opts)
		if err != nil {
			r.logger.Error("background sync run failed", "error", err)
		}
		r.release(report, err)
	}()

	return nil
}

// Status reports whether a run is active and the outcome of the last one.
func (r *Runner) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := RunStatus{
		Running:    r.running,
		LastReport: r.last,
	}
	if r.running {
		t := r.startedAt
		status.StartedAt = &t
	}
	if r.lastErr != nil {
		status.LastError = r.lastErr.Error()
	}
	return status
}

func (r *Runner) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return false
	}
	r.running = true
	r.startedAt = time.Now().UTC()
	return true
}

func (r *Runner) release(report *models.SyncReport, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.running = false
	if report != nil {
		r.last = report
	}
	r.lastErr = err
}
