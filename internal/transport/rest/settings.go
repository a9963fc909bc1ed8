package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

// settingsStore is the persistence surface SettingsHandler needs.
type settingsStore interface {
	GetSettings(ctx context.Context) (*domain.Settings, error)
	PutSettings(ctx context.Context, settings domain.Settings) error
}

// SettingsHandler serves the §6 `/settings` endpoint. Settings are opaque to
// the core (§3) so the handler passes the decoded body straight through
// without a DTO layer.
type SettingsHandler struct {
	store settingsStore
	log   *slog.Logger
}

func NewSettingsHandler(store settingsStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, log: logger.With("handler", "settings")}
}

// Get handles GET /settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, settings.Data)
}

// Put handles PUT /settings.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeAPIError(w, http.StatusBadRequest, "BadInput", "invalid request body", nil)
		return
	}

	settings := domain.Settings{Data: data}
	if err := h.store.PutSettings(r.Context(), settings); err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "settings updated",
		"settings": settings.Data,
	})
}
