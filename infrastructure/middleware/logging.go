package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/aerocristobal/label-verify/infrastructure/logging"
)

// LoggingMiddleware logs each intake request with its trace ID, status,
// and latency, propagating an inbound X-Trace-ID header or minting a
// new one.
func LoggingMiddleware(logger *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := r.Header.Get("X-Trace-ID")
			if traceID == "" {
				traceID = logging.NewTraceID()
			}
			ctx := logging.WithTraceID(r.Context(), traceID)
			r = r.WithContext(ctx)

			r.Header.Set("X-Trace-ID", traceID)
			w.Header().Set("X-Trace-ID", traceID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.LogRequest(ctx, r.Method, r.URL.Path, rec.status, time.Since(start))
		})
	}
}
