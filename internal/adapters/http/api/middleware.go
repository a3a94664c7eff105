package api

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/okian/quorum/internal/domain/types"
	"github.com/okian/quorum/pkg/metrics"
	"golang.org/x/time/rate"
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		metrics.RecordHTTPRequest(endpoint, r.Method, strconv.Itoa(wrapped.statusCode), durationMs)
		if wrapped.statusCode >= http.StatusInternalServerError {
			metrics.RecordErrorByComponent("http", endpoint)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}

// RateLimiter hands out one token bucket per caller. A nil RateLimiter
// allows everything.
type RateLimiter struct {
	limiters sync.Map // caller -> *rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewRateLimiter returns a limiter allowing rps calls per second per caller
// with the given burst. It returns nil, meaning unlimited, when rps <= 0.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = int(rps*2) + 1
	}
	return &RateLimiter{rps: rate.Limit(rps), burst: burst}
}

// Allow reports whether caller may proceed now.
func (l *RateLimiter) Allow(caller string) bool {
	if l == nil {
		return true
	}
	v, ok := l.limiters.Load(caller)
	if !ok {
		v, _ = l.limiters.LoadOrStore(caller, rate.NewLimiter(l.rps, l.burst))
	}
	return v.(*rate.Limiter).Allow()
}

func rateLimited(w http.ResponseWriter, endpoint string) {
	metrics.RecordRateLimited(endpoint)
	w.Header().Set("Retry-After", "1")
	writeError(w, http.StatusTooManyRequests, "rate_limited", types.NewKind("api."+endpoint, ErrRateLimited))
}
