package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

// statsService is the §4.7 read-model surface StudyHandler needs.
type statsService interface {
	Today(ctx context.Context, wordbookID *int) (*domain.TodayStats, error)
	Progress(ctx context.Context, days int) (*domain.ProgressStats, error)
	DueForecast(ctx context.Context, wordbookID *int, days int) ([]domain.DueForecastEntry, error)
}

// StudyHandler serves the §6 `/study/*` and `/review` endpoints.
type StudyHandler struct {
	scheduler schedulerAdapterFn
	apply     applyFn
	stats     statsService
	log       *slog.Logger
}

// schedulerAdapterFn and applyFn decouple this package from the concrete
// scheduler/srs service types (both take a time.Time, which the interface
// above can't spell without importing "time" into the interface itself —
// using a plain function type avoids the awkward interface and keeps the
// handler trivially fakeable in tests).
type schedulerAdapterFn func(ctx context.Context, opts domain.QueueOptions) (*SchedulerResult, error)
type applyFn func(ctx context.Context, cardID int, grade domain.ReviewGrade, elapsedMs *int) (*SRSResult, error)

// SchedulerResult is the adapter-facing mirror of scheduler.Result.
type SchedulerResult struct {
	Cards []domain.QueuedCard
	Stats domain.QueueStats
}

// SRSResult is the adapter-facing mirror of srs.Result.
type SRSResult struct {
	State  domain.SRSState
	Review domain.Review
}

func NewStudyHandler(scheduler schedulerAdapterFn, apply applyFn, stats statsService, logger *slog.Logger) *StudyHandler {
	return &StudyHandler{scheduler: scheduler, apply: apply, stats: stats, log: logger.With("handler", "study")}
}

// Next handles GET /study/next.
func (h *StudyHandler) Next(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := domain.DefaultQueueOptions()
	opts.Limit = atoiDefault(q.Get("limit"), opts.Limit)
	opts.NewLimit = atoiDefault(q.Get("new_limit"), opts.NewLimit)
	if v := q.Get("include_rolling"); v != "" {
		opts.IncludeRolling, _ = strconv.ParseBool(v)
	}
	if v := q.Get("wordbook_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			opts.WordbookID = &id
		}
	}

	result, err := h.scheduler(r.Context(), opts)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cards":      toQueuedCardDTOs(result.Cards),
		"stats":      toQueueStatsDTO(result.Stats),
		"session_id": uuid.New().String(),
		"queue_info": map[string]any{
			"limit":           opts.Limit,
			"new_limit":       opts.NewLimit,
			"include_rolling": opts.IncludeRolling,
			"wordbook_id":     opts.WordbookID,
		},
	})
}

type reviewRequest struct {
	CardID    int  `json:"card_id"`
	Grade     int  `json:"grade"`
	ElapsedMs *int `json:"elapsed_ms,omitempty"`
}

// Review handles POST /review.
func (h *StudyHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "BadInput", "invalid request body", nil)
		return
	}

	grade := domain.ReviewGrade(req.Grade)
	if !grade.IsValid() {
		writeAPIError(w, http.StatusBadRequest, "BadInput", "grade must be one of 0,1,2,3", nil)
		return
	}

	result, err := h.apply(r.Context(), req.CardID, grade, req.ElapsedMs)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "review recorded",
		"result": map[string]any{
			"srs":    toSRSStateDTO(result.State),
			"review": toReviewDTO(result.Review),
		},
	})
}

// Stats handles GET /study/stats.
func (h *StudyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var wordbookID *int
	if v := r.URL.Query().Get("wordbook_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			wordbookID = &id
		}
	}

	today, err := h.stats.Today(r.Context(), wordbookID)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toTodayStatsDTO(*today))
}

// Progress handles GET /study/progress?days=N.
func (h *StudyHandler) Progress(w http.ResponseWriter, r *http.Request) {
	days := atoiDefault(r.URL.Query().Get("days"), 7)

	progress, err := h.stats.Progress(r.Context(), days)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressStatsDTO(*progress))
}

// DueForecast handles GET /study/due-forecast?days=N.
func (h *StudyHandler) DueForecast(w http.ResponseWriter, r *http.Request) {
	days := atoiDefault(r.URL.Query().Get("days"), 7)

	var wordbookID *int
	if v := r.URL.Query().Get("wordbook_id"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			wordbookID = &id
		}
	}

	forecast, err := h.stats.DueForecast(r.Context(), wordbookID, days)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toDueForecastDTOs(forecast))
}
