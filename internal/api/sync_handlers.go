package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eventlens/eventlens/internal/models"
	syncpkg "github.com/eventlens/eventlens/internal/sync"
	"github.com/goccy/go-json"
)

// RunHistory lists recorded sync runs.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]models.SyncReport, error)
}

// SyncHandler exposes manual sync control and run visibility.
type SyncHandler struct {
	runner  *syncpkg.Runner
	history RunHistory
	logger  *slog.Logger
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(runner *syncpkg.Runner, history RunHistory, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		runner:  runner,
		history: history,
		logger:  logger,
	}
}

// TriggerRequest selects the scope of a manual run. All fields are optional.
type TriggerRequest struct {
	Force      bool   `json:"force"`
	DryRun     bool   `json:"dry_run"`
	WindowDays int    `json:"window_days"`
	Lifecycle  string `json:"lifecycle"`
	EventID    string `json:"event_id"`
}

// Trigger handles POST /api/sync/manual. The run executes in the background;
// a 202 means it was accepted, not that it finished.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TriggerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	opts := syncpkg.Options{
		Force:      req.Force,
		DryRun:     req.DryRun,
		WindowDays: req.WindowDays,
		Lifecycle:  models.Lifecycle(req.Lifecycle),
		EventID:    req.EventID,
	}

	if err := h.runner.Start(r.Context(), opts); err != nil {
		if errors.Is(err, syncpkg.ErrRunInProgress) {
			http.Error(w, "Sync run already in progress", http.StatusConflict)
			return
		}
		h.logger.Error("failed to start manual sync", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("manual sync accepted", "forced", req.Force, "dry_run", req.DryRun)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"}, h.logger)
}

// Status handles GET /api/sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.runner.Status(), h.logger)
}

// Runs handles GET /api/sync/runs?limit=N.
func (h *SyncHandler) Runs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	reports, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list sync runs", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []models.SyncReport{}
	}

	writeJSON(w, http.StatusOK, reports, h.logger)
}
