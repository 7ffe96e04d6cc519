package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/oliver453/lochlann-se/internal/model"
)

const allocationRetryAfter = 2 // seconds

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// errorStatus maps the domain error taxonomy onto HTTP.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrOutOfWindow):
		return http.StatusUnprocessableEntity, "out_of_window"
	case errors.Is(err, model.ErrNoAvailability):
		return http.StatusConflict, "no_availability"
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, model.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate_request"
	case errors.Is(err, model.ErrAllocationTimeout):
		return http.StatusServiceUnavailable, "allocation_timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	message := err.Error()
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		message = verr.Error()
	case errors.Is(err, model.ErrNoAvailability):
		message = "No tables available for the selected time"
	case status == http.StatusInternalServerError:
		h.Logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		message = "internal server error"
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(allocationRetryAfter))
	}
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
