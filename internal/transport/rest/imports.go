package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

// importProgress is the surface ImportHandler needs to poll job state.
type importProgress interface {
	Progress(ctx context.Context, importID string) (*domain.ImportJob, error)
	List(ctx context.Context, limit int) ([]domain.ImportJob, error)
}

// ImportHandler serves the §6 `/imports*` endpoints.
type ImportHandler struct {
	importer importProgress
	log      *slog.Logger
}

func NewImportHandler(importer importProgress, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{importer: importer, log: logger.With("handler", "imports")}
}

// Get handles GET /imports/{id}.
func (h *ImportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeAPIError(w, http.StatusBadRequest, "BadInput", "missing import id", nil)
		return
	}

	job, err := h.importer.Progress(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportJobDTO(*job))
}

// List handles GET /imports.
func (h *ImportHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := atoiDefault(r.URL.Query().Get("limit"), 20)

	jobs, err := h.importer.List(r.Context(), limit)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportJobDTOs(jobs))
}
