package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/eventlens/eventlens/internal/auth"
	"github.com/eventlens/eventlens/internal/database"
	"github.com/eventlens/eventlens/internal/metrics"
	syncpkg "github.com/eventlens/eventlens/internal/sync"
	"github.com/goccy/go-json"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	mux *http.ServeMux,
	db *sql.DB,
	runner *syncpkg.Runner,
	history RunHistory,
	settings SettingsStore,
	authConfig auth.Config,
	collector *metrics.Collector,
	logger *slog.Logger,
) {
	authHandler := NewAuthHandler(authConfig, logger)
	syncHandler := NewSyncHandler(runner, history, logger)
	settingsHandler := NewSettingsHandler(settings, logger)

	authMiddleware := auth.Middleware(authConfig)
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authMiddleware(h).ServeHTTP(w, r)
		}
	}

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/validate", protected(authHandler.ValidateToken))

	// Sync control routes (operator only)
	mux.HandleFunc("/api/sync/manual", protected(syncHandler.Trigger))
	mux.HandleFunc("/api/sync/status", protected(syncHandler.Status))
	mux.HandleFunc("/api/sync/runs", protected(syncHandler.Runs))
	mux.HandleFunc("/api/sync/settings", protected(settingsHandler.Handle))

	// Operational routes (public)
	mux.HandleFunc("/healthz", healthHandler(db, logger))
	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}
}

// healthHandler reports liveness plus database reachability.
func healthHandler(db *sql.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK

		if db != nil {
			if err := database.HealthCheck(r.Context(), db); err != nil {
				logger.Warn("health check failed", "error", err)
				status["status"] = "degraded"
				status["database"] = err.Error()
				code = http.StatusServiceUnavailable
			} else {
				status["database"] = "ok"
			}
		}

		writeJSON(w, code, status, logger)
	}
}

// writeJSON serializes v to the response, logging encode failures.
func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
