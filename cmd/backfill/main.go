package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/eventlens/eventlens/internal/cache"
	"github.com/eventlens/eventlens/internal/catalog"
	"github.com/eventlens/eventlens/internal/config"
	"github.com/eventlens/eventlens/internal/database"
	"github.com/eventlens/eventlens/internal/logging"
	"github.com/eventlens/eventlens/internal/models"
	syncpkg "github.com/eventlens/eventlens/internal/sync"
	"github.com/eventlens/eventlens/internal/telemetry"
)

func main() {
	days := flag.Int("days", 0, "lookback window in days (default: configured window)")
	force := flag.Bool("force", false, "refresh every event regardless of snapshot age")
	dryRun := flag.Bool("dry-run", false, "report freshness decisions without syncing")
	lifecycle := flag.String("category", "", "restrict to one lifecycle: Active, Future or Past")
	eventID := flag.String("event", "", "restrict to a single event ID")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	switch models.Lifecycle(*lifecycle) {
	case "", models.LifecycleActive, models.LifecycleFuture, models.LifecyclePast:
	default:
		logger.Error("invalid -category", "value", *lifecycle)
		os.Exit(2)
	}

	ctx := context.Background()

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	snapshotStore, err := openSnapshotStore(cfg.Cache)
	if err != nil {
		logger.Error("failed to open snapshot cache", "error", err)
		os.Exit(1)
	}
	defer snapshotStore.Close()

	telemetryClient := telemetry.NewClient(cfg.Platform, logging.ForComponent(logger, "telemetry"))
	catalogClient := catalog.NewClient(cfg.Platform, logging.ForComponent(logger, "catalog"))
	leadAgg := telemetry.NewLeadAggregator(telemetryClient, snapshotStore, cfg.Sync.SnapshotMaxAge, logging.ForComponent(logger, "leads"))
	engagementAgg := telemetry.NewEngagementAggregator(telemetryClient, snapshotStore, cfg.Sync.SnapshotMaxAge, logging.ForComponent(logger, "engagement"))

	orchestrator := syncpkg.NewOrchestrator(
		catalogClient,
		leadAgg,
		engagementAgg,
		database.NewPostgresEventRepository(db),
		database.NewSyncRunRepository(db),
		database.NewSettingsRepository(db),
		nil,
		cfg.Sync,
		logging.ForComponent(logger, "sync"),
	)

	report, err := orchestrator.Run(ctx, syncpkg.Options{
		WindowDays: *days,
		Force:      *force,
		DryRun:     *dryRun,
		Lifecycle:  models.Lifecycle(*lifecycle),
		EventID:    *eventID,
	})
	if err != nil {
		logger.Error("backfill failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("backfill complete: %d succeeded, %d skipped, %d failed out of %d\n",
		report.Succeeded, report.Skipped, report.Failed, report.Total)

	if report.Failed > 0 {
		os.Exit(1)
	}
}

func openSnapshotStore(cfg config.CacheConfig) (cache.Store, error) {
	if cfg.Backend == "badger" {
		return cache.NewBadgerStore(cfg.Dir)
	}
	return cache.NewFileStore(cfg.Dir)
}
