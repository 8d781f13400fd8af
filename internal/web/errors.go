package web

// errors.go maps pipeline errors onto JSON error responses. The full
// technical error is logged with the request ID; the client gets the
// user-facing message, suggested action, and stable code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nmalhotra/shopdesk/internal/migrate"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error and writes the mapped user
// message with a status derived from the error kind.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := migrate.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusFor classifies pipeline errors: bad input is 400, illegal state
// transitions and concurrent runs are 409, everything else 500.
func statusFor(err error) int {
	var (
		missing    *migrate.MissingColumnsError
		transition *migrate.InvalidTransitionError
	)
	switch {
	case errors.Is(err, migrate.ErrEmptyFile),
		errors.As(err, &missing),
		strings.Contains(err.Error(), "unknown entity kind"):
		return http.StatusBadRequest
	case errors.Is(err, migrate.ErrRunInFlight),
		errors.Is(err, migrate.ErrNothingToRetry),
		errors.As(err, &transition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// logExportError records a CSV write failure mid-stream; headers are
// already out so no error response is possible.
func logExportError(r *http.Request, err error) {
	slog.Error("csv export failed",
		"path", r.URL.Path,
		"error", err.Error(),
		"request_id", middleware.GetReqID(r.Context()),
	)
}

// writeJSON encodes v to the response. Encoding errors are only logged
// since the status line is already out.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode", "error", err)
	}
}
