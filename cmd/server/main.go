package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/eventlens/eventlens/internal/api"
	"github.com/eventlens/eventlens/internal/auth"
	"github.com/eventlens/eventlens/internal/cache"
	"github.com/eventlens/eventlens/internal/catalog"
	"github.com/eventlens/eventlens/internal/config"
	"github.com/eventlens/eventlens/internal/database"
	"github.com/eventlens/eventlens/internal/logging"
	"github.com/eventlens/eventlens/internal/metrics"
	"github.com/eventlens/eventlens/internal/server"
	syncpkg "github.com/eventlens/eventlens/internal/sync"
	"github.com/eventlens/eventlens/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting eventlens")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("connecting to database")
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(db, "./migrations", logger); err != nil {
		logger.Warn("failed to run migrations, continuing anyway", "error", err)
	}

	snapshotStore, err := openSnapshotStore(cfg.Cache)
	if err != nil {
		logger.Error("failed to open snapshot cache", "error", err, "backend", cfg.Cache.Backend)
		os.Exit(1)
	}
	defer snapshotStore.Close()
	logger.Info("snapshot cache ready", "backend", cfg.Cache.Backend, "dir", cfg.Cache.Dir)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	// Repositories
	eventRepo := database.NewPostgresEventRepository(db)
	settingsRepo := database.NewSettingsRepository(db)
	runRepo := database.NewSyncRunRepository(db)

	// Upstream clients and aggregators
	telemetryClient := telemetry.NewClient(cfg.Platform, logging.ForComponent(logger, "telemetry"))
	catalogClient := catalog.NewClient(cfg.Platform, logging.ForComponent(logger, "catalog"))
	leadAgg := telemetry.NewLeadAggregator(telemetryClient, snapshotStore, cfg.Sync.SnapshotMaxAge, logging.ForComponent(logger, "leads"))
	engagementAgg := telemetry.NewEngagementAggregator(telemetryClient, snapshotStore, cfg.Sync.SnapshotMaxAge, logging.ForComponent(logger, "engagement"))

	// Sync pipeline
	orchestrator := syncpkg.NewOrchestrator(
		catalogClient,
		leadAgg,
		engagementAgg,
		eventRepo,
		runRepo,
		settingsRepo,
		collector,
		cfg.Sync,
		logging.ForComponent(logger, "sync"),
	)
	runner := syncpkg.NewRunner(orchestrator, logging.ForComponent(logger, "runner"))
	scheduler := syncpkg.NewScheduler(runner, settingsRepo, logging.ForComponent(logger, "scheduler"))

	authConfig := auth.LoadConfigFromEnv()
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	mux := http.NewServeMux()
	api.SetupRoutes(mux, db, runner, runRepo, settingsRepo, authConfig, collector, logger)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	scheduler.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	scheduler.Stop()

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("eventlens stopped")
}

func openSnapshotStore(cfg config.CacheConfig) (cache.Store, error) {
	if cfg.Backend == "badger" {
		return cache.NewBadgerStore(cfg.Dir)
	}
	return cache.NewFileStore(cfg.Dir)
}
