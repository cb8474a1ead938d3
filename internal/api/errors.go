package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"semsql/internal/domain"
	"semsql/internal/ratelimit"
)

// Error is the JSON body of every non-2xx response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var validation *domain.ValidationError
	var notConfigured *domain.NotConfiguredError
	var exhausted *ratelimit.ExhaustedError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case domain.IsCompileError(err):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &exhausted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	var exhausted *ratelimit.ExhaustedError
	if errors.As(err, &exhausted) {
		return "upstream_exhausted"
	}
	return domain.ErrorKind(err)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as an Error body. Internal errors are logged and
// their message is not echoed to the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromDomainError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, Error{Code: status, Message: msg, Kind: errorKind(err)})
}

