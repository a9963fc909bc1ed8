package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

// wordbookStore is the minimal persistence surface WordbookHandler needs.
type wordbookStore interface {
	CreateWordbook(ctx context.Context, in domain.CreateWordbookInput) (*domain.Wordbook, error)
	ListWordbooks(ctx context.Context) ([]domain.Wordbook, error)
	ActiveWordbook(ctx context.Context) (*domain.Wordbook, error)
	ActivateWordbook(ctx context.Context, id int) (*domain.Wordbook, error)
	DeleteWordbook(ctx context.Context, id int) error
	WordbookStats(ctx context.Context, id int) (*domain.WordbookStats, error)
}

// WordbookHandler serves the §6 `/wordbooks` endpoints.
type WordbookHandler struct {
	store wordbookStore
	log   *slog.Logger
}

func NewWordbookHandler(store wordbookStore, logger *slog.Logger) *WordbookHandler {
	return &WordbookHandler{store: store, log: logger.With("handler", "wordbooks")}
}

type createWordbookRequest struct {
	Name        string `json:"name"`
	Language    string `json:"language"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Version     string `json:"version"`
}

// Create handles POST /wordbooks.
func (h *WordbookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createWordbookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "BadInput", "invalid request body", nil)
		return
	}

	wb, err := h.store.CreateWordbook(r.Context(), domain.CreateWordbookInput{
		Name:        req.Name,
		Language:    req.Language,
		Description: req.Description,
		Author:      req.Author,
		Version:     req.Version,
	})
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWordbookDTO(*wb))
}

// List handles GET /wordbooks.
func (h *WordbookHandler) List(w http.ResponseWriter, r *http.Request) {
	wbs, err := h.store.ListWordbooks(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toWordbookDTOs(wbs))
}

// Active handles GET /wordbooks/active.
func (h *WordbookHandler) Active(w http.ResponseWriter, r *http.Request) {
	wb, err := h.store.ActiveWordbook(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toWordbookDTO(*wb))
}

// Activate handles POST /wordbooks/{id}/activate.
func (h *WordbookHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "BadInput", "invalid wordbook id", nil)
		return
	}

	wb, err := h.store.ActivateWordbook(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "wordbook activated",
		"wordbook": toWordbookDTO(*wb),
	})
}

// Delete handles DELETE /wordbooks/{id}.
func (h *WordbookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "BadInput", "invalid wordbook id", nil)
		return
	}

	if err := h.store.DeleteWordbook(r.Context(), id); err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "wordbook deleted"})
}

// Stats handles GET /wordbooks/{id}/stats.
func (h *WordbookHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "BadInput", "invalid wordbook id", nil)
		return
	}

	stats, err := h.store.WordbookStats(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wordbook":    toWordbookDTO(stats.Wordbook),
		"total_words": stats.Total,
		"by_cefr":     stats.ByCEFR,
		"by_pos":      stats.ByPOS,
		"by_lesson":   stats.ByLesson,
	})
}

// GlobalStats handles GET /stats. The spec scopes "global word stats" to the
// active wordbook (falling back to an explicit ?wordbook_id= override), for
// symmetry with how /study/stats resolves its wordbook.
func (h *WordbookHandler) GlobalStats(w http.ResponseWriter, r *http.Request) {
	id, err := h.resolveWordbookID(r)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	stats, err := h.store.WordbookStats(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_words": stats.Total,
		"by_lesson":   stats.ByLesson,
		"by_cefr":     stats.ByCEFR,
		"by_pos":      stats.ByPOS,
	})
}

func (h *WordbookHandler) resolveWordbookID(r *http.Request) (int, error) {
	if v := r.URL.Query().Get("wordbook_id"); v != "" {
		return strconv.Atoi(v)
	}
	wb, err := h.store.ActiveWordbook(r.Context())
	if err != nil {
		return 0, err
	}
	return wb.ID, nil
}

// pathInt parses an integer path value set by net/http's {name} pattern.
func pathInt(r *http.Request, name string) (int, error) {
	return strconv.Atoi(r.PathValue(name))
}
