package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Platform PlatformConfig
	Sync     SyncConfig
	Cache    CacheConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds the Postgres connection string.
type DatabaseConfig struct {
	URL string
}

// PlatformConfig holds credentials and endpoints for the upstream events
// platform. APIKey is required: without it neither the catalog nor the
// analytics export can be reached, so Load fails before any work starts.
type PlatformConfig struct {
	APIKey        string
	AnalyticsURL  string
	CatalogURL    string
	StreamTimeout time.Duration
}

// SyncConfig holds aggregation and orchestration thresholds.
type SyncConfig struct {
	// SnapshotMaxAge bounds reuse of cached aggregator snapshots on
	// on-demand refresh paths.
	SnapshotMaxAge time.Duration
	// ResyncMaxAge bounds the bulk sync's own re-fetch policy, judged
	// against the synced_at columns in the store. Independent of
	// SnapshotMaxAge.
	ResyncMaxAge time.Duration
	// WindowDays is the default lookback window for telemetry streams.
	WindowDays int
}

// CacheConfig selects and locates the snapshot cache backend.
type CacheConfig struct {
	// Backend is "file" or "badger".
	Backend string
	Dir     string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultAnalyticsURL  = "https://api.eventsplatform.io/event-admin/export/analytics"
	defaultCatalogURL    = "https://api.eventsplatform.io/event-admin/graphql"
	defaultStreamTimeout = 5 * time.Minute

	defaultSnapshotMaxAge = 6 * time.Hour
	defaultResyncMaxAge   = 24 * time.Hour
	defaultWindowDays     = 730

	defaultCacheBackend = "file"
	defaultCacheDir     = "./data/cache"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid. A missing PLATFORM_API_KEY is fatal.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	apiKey := os.Getenv("PLATFORM_API_KEY")
	if apiKey == "" {
		return Config{}, fmt.Errorf("PLATFORM_API_KEY is not set")
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Platform: PlatformConfig{
			APIKey:        apiKey,
			AnalyticsURL:  getEnv("PLATFORM_ANALYTICS_URL", defaultAnalyticsURL),
			CatalogURL:    getEnv("PLATFORM_CATALOG_URL", defaultCatalogURL),
			StreamTimeout: defaultStreamTimeout,
		},
		Sync: SyncConfig{
			SnapshotMaxAge: defaultSnapshotMaxAge,
			ResyncMaxAge:   defaultResyncMaxAge,
			WindowDays:     defaultWindowDays,
		},
		Cache: CacheConfig{
			Backend: getEnv("CACHE_BACKEND", defaultCacheBackend),
			Dir:     getEnv("CACHE_DIR", defaultCacheDir),
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("STREAM_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid STREAM_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Platform.StreamTimeout = d
	}

	if v := os.Getenv("SNAPSHOT_MAX_AGE_HOURS"); v != "" {
		d, err := parseHours(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SNAPSHOT_MAX_AGE_HOURS: %w", err)
		}
		cfg.Sync.SnapshotMaxAge = d
	}

	if v := os.Getenv("RESYNC_MAX_AGE_HOURS"); v != "" {
		d, err := parseHours(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RESYNC_MAX_AGE_HOURS: %w", err)
		}
		cfg.Sync.ResyncMaxAge = d
	}

	if v := os.Getenv("SYNC_WINDOW_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return Config{}, fmt.Errorf("invalid SYNC_WINDOW_DAYS: must be a positive integer")
		}
		cfg.Sync.WindowDays = days
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	switch cfg.Cache.Backend {
	case "file", "badger":
	default:
		return Config{}, fmt.Errorf("invalid CACHE_BACKEND: must be 'file' or 'badger'")
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseHours(raw string) (time.Duration, error) {
	hours, err := strconv.Atoi(raw)
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(hours) * time.Hour, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
