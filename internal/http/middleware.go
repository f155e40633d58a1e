package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/seat-reservation-service/internal/obs"
)

const requestIDHeader = "X-Request-Id"

// requestIDKey keys the request id stored by WithRequestID.
type requestIDKey struct{}

// RequestIDFromContext returns the id WithRequestID attached to ctx, or ""
// outside a request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// statusRecorder captures the status code and body size for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// WithRequestID propagates the caller's X-Request-Id, or a fresh uuid when
// absent, into the response header and the request context.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithLogging writes one http_request line per request once it completes.

func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		obs.Logger.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", r.Pattern,
			"status", sr.status,
			"bytes", sr.bytes,
			"latency_ms", float64(time.Since(start).Microseconds())/1000.0,
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}
