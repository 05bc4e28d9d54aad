package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"medbook/internal/domain"
	"medbook/internal/lock"
	"medbook/internal/logging"
)

const (
	msgSlotTaken        = "slot taken, please pick another time"
	msgCannotModify     = "this appointment can no longer be modified"
	msgModifiedMeantime = "appointment was changed in the meantime, please reload"
	msgScheduleBusy     = "schedule is busy, please retry"
	msgInternal         = "internal error"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// statusFor maps an engine error to the HTTP status and the message shown
// to the caller. Infrastructure faults get a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, msgSlotTaken
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return http.StatusConflict, msgCannotModify
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict, msgModifiedMeantime
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, lock.ErrLockTimeout):
		return http.StatusServiceUnavailable, msgScheduleBusy
	}
	return http.StatusInternalServerError, msgInternal
}

func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code != http.StatusInternalServerError {
		writeError(w, code, msg)
		return
	}

	requestID := middleware.GetReqID(r.Context())
	logger := logging.FromContext(r.Context(), s.logger)
	logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
	writeJSON(w, code, map[string]string{"error": msg, "request_id": requestID})
}

// logLevelFor keeps expected client outcomes out of the error log.
func logLevelFor(status int) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}
