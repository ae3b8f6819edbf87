package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/eventlens/eventlens/internal/models"
	"github.com/goccy/go-json"
)

// SettingsStore reads and writes the sync settings row.
type SettingsStore interface {
	Get(ctx context.Context) (models.SyncSettings, error)
	Save(ctx context.Context, settings models.SyncSettings) error
}

// SettingsHandler exposes the sync exclusion and interval settings.
type SettingsHandler struct {
	store  SettingsStore
	logger *slog.Logger
}

// NewSettingsHandler creates a settings handler.
func NewSettingsHandler(store SettingsStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, logger: logger}
}

// Handle routes GET and PUT on /api/sync/settings.
func (h *SettingsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to load sync settings", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, settings, h.logger)
}

func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request) {
	var settings models.SyncSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if settings.SyncIntervalMinutes < 1 {
		http.Error(w, "sync_interval_minutes must be at least 1", http.StatusBadRequest)
		return
	}

	if err := h.store.Save(r.Context(), settings); err != nil {
		h.logger.Error("failed to save sync settings", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("sync settings updated",
		"disabled_communities", len(settings.DisabledCommunities),
		"disabled_events", len(settings.DisabledEvents),
		"interval_minutes", settings.SyncIntervalMinutes,
	)
	writeJSON(w, http.StatusOK, settings, h.logger)
}
