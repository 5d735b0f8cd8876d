package middleware

import (
	"context"
	"net/http"

	"github.com/frahmantamala/document-management/pkg/logger"

	"github.com/google/uuid"
)

type requestIDCtxKey struct{}

// RequestID assigns every request a trace id, honoring an inbound X-Trace-ID
// header. The id is stored in the request context for the logging middleware,
// attached to the context logger, and echoed back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDCtxKey{}, traceID)
		ctx = logger.With(ctx, "traceID", traceID)

		// propagate back to response
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the trace id set by RequestID, or empty when
// the middleware is not installed.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDCtxKey{}).(string); ok {
		return id
	}
	return ""
}
