package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/wordflow-backend/internal/domain"
)

// errorResponse is the §7 wire shape: `{error:{kind, message, details?}}`.
// details is always display-safe (field names, row numbers, counts); it
// never carries stack traces or file paths.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// writeAPIError writes the §7 error envelope at status.
func writeAPIError(w http.ResponseWriter, status int, kind, message string, details any) {
	writeJSON(w, status, errorResponse{Error: errorBody{Kind: kind, Message: message, Details: details}})
}

// handleServiceError maps a domain sentinel error to the §7 status/kind
// pairing and writes the envelope. Unrecognized errors are logged with full
// context and surfaced to the caller as a bare "internal error" (§7: Fatal
// "logged with full context; does not crash the process").
func handleServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeAPIError(w, http.StatusBadRequest, "BadInput", ve.Error(), validationDetails(ve))
	case errors.Is(err, domain.ErrValidation):
		writeAPIError(w, http.StatusBadRequest, "BadInput", err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		writeAPIError(w, http.StatusNotFound, "NotFound", err.Error(), nil)
	case errors.Is(err, domain.ErrAlreadyExists):
		writeAPIError(w, http.StatusConflict, "Conflict", err.Error(), nil)
	case errors.Is(err, domain.ErrConflict):
		details := conflictDetails(err)
		writeAPIError(w, http.StatusConflict, "Conflict", err.Error(), details)
	case errors.Is(err, domain.ErrPreconditionFailed):
		writeAPIError(w, http.StatusConflict, "PreconditionFailed", err.Error(), nil)
	case errors.Is(err, domain.ErrTransient):
		writeAPIError(w, http.StatusServiceUnavailable, "Transient", "temporarily unavailable, please retry", nil)
	case errors.Is(err, domain.ErrFatal):
		log.Error("fatal invariant violation", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "Fatal", "internal server error", nil)
	default:
		log.Error("unhandled service error", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "Fatal", "internal server error", nil)
	}
}

func validationDetails(ve *domain.ValidationError) any {
	if len(ve.Errors) == 0 {
		return nil
	}
	out := make([]map[string]string, 0, len(ve.Errors))
	for _, f := range ve.Errors {
		out = append(out, map[string]string{"field": f.Field, "message": f.Message})
	}
	return out
}

func conflictDetails(err error) any {
	var ce *domain.ConflictError
	if errors.As(err, &ce) && ce.ConflictID != "" {
		return map[string]string{"conflict_id": ce.ConflictID}
	}
	return nil
}
