package rest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

// wordImporter is the background-import surface WordHandler needs.
type wordImporter interface {
	Start(ctx context.Context, data []byte, filename string, format domain.ImportFormat, wordbookID *int) (string, error)
}

// wordSearcher is the search surface WordHandler needs.
type wordSearcher interface {
	Search(ctx context.Context, filter domain.WordFilter) ([]domain.Word, int, error)
	Suggest(ctx context.Context, wordbookID *int, q string, limit int) ([]string, error)
}

// wordGetter is the Store method exposed for GET /words/{id}.
type wordGetter interface {
	GetWord(ctx context.Context, id int) (*domain.Word, error)
}

// WordHandler serves the §6 `/words*` endpoints.
type WordHandler struct {
	importer wordImporter
	search   wordSearcher
	words    wordGetter
	log      *slog.Logger
}

func NewWordHandler(importer wordImporter, search wordSearcher, words wordGetter, logger *slog.Logger) *WordHandler {
	return &WordHandler{importer: importer, search: search, words: words, log: logger.With("handler", "words")}
}

// maxUploadSize bounds the multipart form the bulk endpoint will buffer
// in memory (§4.2/§4.3 both work on an in-memory byte buffer).
const maxUploadSize = 32 << 20 // 32 MiB

// BulkImport handles POST /words/bulk (multipart file=..., optional wordbook_id).
func (h *WordHandler) BulkImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeAPIError(w, http.StatusBadRequest, "BadInput", "invalid multipart form", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "BadInput", "missing file field", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "BadInput", "failed to read uploaded file", nil)
		return
	}

	var wordbookID *int
	if v := r.FormValue("wordbook_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "BadInput", "wordbook_id must be an integer", nil)
			return
		}
		wordbookID = &id
	}

	importID, err := h.importer.Start(r.Context(), data, header.Filename, domain.ImportFormatAuto, wordbookID)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"import_id": importID,
		"status":    string(domain.ImportStatusPending),
		"message":   "import started",
	})
}

// Search handles GET /words/search.
func (h *WordHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.WordFilter{
		Q:       q.Get("q"),
		Lesson:  q.Get("lesson"),
		CEFR:    domain.CEFR(q.Get("cefr")),
		POS:     q.Get("pos"),
		Page:    atoiDefault(q.Get("page"), 1),
		PerPage: atoiDefault(q.Get("per_page"), 20),
	}
	if v := q.Get("wordbook_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			filter.WordbookID = &id
		}
	}
	filter = filter.Normalize()

	words, total, err := h.search.Search(r.Context(), filter)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"words":    toWordDTOs(words),
		"total":    total,
		"page":     filter.Page,
		"per_page": filter.PerPage,
	})
}

// Suggest handles GET /words/suggest?q=....
func (h *WordHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	limit := atoiDefault(q.Get("limit"), 10)

	var wordbookID *int
	if v := q.Get("wordbook_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			wordbookID = &id
		}
	}

	if query == "" {
		writeJSON(w, http.StatusOK, []string{})
		return
	}

	lemmas, err := h.search.Suggest(r.Context(), wordbookID, query, limit)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, lemmas)
}

// Get handles GET /words/{id}.
func (h *WordHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "BadInput", "invalid word id", nil)
		return
	}

	word, err := h.words.GetWord(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toWordDTO(*word))
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
