package web

// errors.go maps service errors to HTTP responses.
//
// Every failure is:
//   - logged with the technical error, support code and request id
//   - returned as {"success": false, "message": ..., "code": ...}
//
// The message is the user-facing text from core; the code lets a report
// like "I got CSV002" be matched to the log line.

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/JonMunkholm/csvingest/internal/core"
	"github.com/JonMunkholm/csvingest/internal/logging"
)

// Response is the envelope shared by every JSON endpoint.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// statusFor picks the HTTP status for an upload or query error.
func statusFor(err error) int {
	var pe *core.PersistenceError
	if errors.As(err, &pe) {
		return http.StatusInternalServerError
	}

	var procErr *core.ProcessingError
	switch {
	case errors.Is(err, core.ErrNoFile),
		errors.Is(err, core.ErrInvalidFileType),
		errors.As(err, &procErr):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrBatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSpoolFailed):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the failure envelope. message overrides
// the mapped user message when non-empty.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int, message string) {
	userMsg := core.MapError(err)
	if message == "" {
		message = userMsg.Message
	}

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"user_message", core.FormatUserError(err),
	}
	// Unmapped errors are logged loudly whatever the status.
	if status >= http.StatusInternalServerError || !core.IsUserFacing(err) {
		log.Error("request error", attrs...)
	} else {
		log.Info("request rejected", attrs...)
	}

	writeJSON(w, r, status, Response{
		Success: false,
		Message: message,
		Code:    userMsg.Code,
	})
}

// writeJSON encodes v with the given status. Encoding errors are logged
// since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
