package middleware

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
)

// NewTraceMiddleware gives every request a trace ID and a request-scoped
// logger carrying it. The trace ID is echoed in the X-Trace-ID header.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			traceID := shared.GetTraceID(ctx)

			attrs := []any{slog.String("trace_id", traceID)}
			if reqID := chimw.GetReqID(ctx); reqID != "" {
				ctx = logger.WithRequestID(ctx, reqID)
				attrs = append(attrs, slog.String("request_id", reqID))
			}
			log := base.With(attrs...)
			ctx = logger.WithLogger(ctx, log)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			w.Header().Set("X-Trace-ID", traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
