package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/redact"
)

// SuccessResponse is the envelope of every successful API response.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorBody carries the machine-readable code and the client-safe message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the envelope of every failed API response.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
	TraceID string    `json:"traceId,omitempty"`
}

// RespondWithJSON writes v as JSON with the given status code.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithData wraps data in the success envelope.
func RespondWithData(w http.ResponseWriter, r *http.Request, status int, data any) {
	RespondWithJSON(w, r, status, SuccessResponse{Success: true, Data: data})
}

// RespondWithError writes an error envelope without logging a cause.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	RespondWithErrorAndLog(w, r, status, code, message, nil)
}

// RespondWithErrorAndLog writes an error envelope and logs err, redacted.
// Only code and message reach the client.
//
// 5xx responses are logged at ERROR, everything else at DEBUG.
func RespondWithErrorAndLog(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	code, message string,
	err error,
) {
	traceID := GetTraceID(r.Context())

	attrs := []slog.Attr{
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", status),
		slog.String("code", code),
		slog.String("user_message", message),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("error", redact.Error(err)),
			slog.String("error_type", fmt.Sprintf("%T", err)))
	}

	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.FromContext(r.Context()).LogAttrs(r.Context(), level, "API error response", attrs...)

	RespondWithJSON(w, r, status, ErrorResponse{
		Success: false,
		Error:   ErrorBody{Code: code, Message: message},
		TraceID: traceID,
	})
}
