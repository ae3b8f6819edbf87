package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventlens/eventlens/internal/models"
)

// Scheduler runs periodic background syncs. The interval is read from the
// settings store at the top of every cycle, so operators can retune it
// without a restart.
type Scheduler struct {
	runner   *Runner
	settings SettingsStore
	logger   *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewScheduler creates a scheduler driving the given runner.
func NewScheduler(runner *Runner, settings SettingsStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		settings: settings,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background loop. The first run fires immediately;
// subsequent runs wait out the configured interval.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop signals the loop to exit and waits for the current cycle to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	s.logger.Info("sync scheduler started")

	for {
		s.runOnce(ctx)

		interval := s.interval(ctx)
		s.logger.Debug("sync scheduler sleeping", "interval", interval.String())

		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped", "reason", ctx.Err())
			return
		case <-s.stopCh:
			s.logger.Info("sync scheduler stopped")
			return
		case <-time.After(interval):
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	_, err := s.runner.Run(ctx, Options{})
	if err == ErrRunInProgress {
		s.logger.Info("skipping scheduled sync, run already in progress")
		return
	}
	if err != nil {
		s.logger.Error("scheduled sync failed", "error", err)
	}
}

// interval returns the configured cycle length, clamped to one minute.
func (s *Scheduler) interval(ctx context.Context) time.Duration {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Warn("failed to load scheduler interval, using default", "error", err)
		settings = models.DefaultSyncSettings()
	}

	minutes := settings.SyncIntervalMinutes
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}
