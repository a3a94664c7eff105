// Package api exposes the oracle over JSON/HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/quorum/internal/adapters/http/auth"
	"github.com/okian/quorum/internal/domain/dedupe"
	"github.com/okian/quorum/internal/domain/oracle"
	"github.com/okian/quorum/internal/domain/types"
	"github.com/okian/quorum/pkg/logger"
)

// Oracle is the core surface the handlers call.
type Oracle interface {
	CreateRequest(ctx context.Context, caller types.ProviderID) (types.RequestID, error)
	SubmitReading(ctx context.Context, caller types.ProviderID, id types.RequestID, value types.Value) (oracle.SubmitResult, error)
	SetProvider(ctx context.Context, caller, id types.ProviderID, authorized bool) error
	LatestValue(ctx context.Context) (types.RequestID, types.Value, error)
	Value(ctx context.Context, id types.RequestID) (types.Value, error)
	Submissions(ctx context.Context, id types.RequestID) []types.Submission
	Request(ctx context.Context, id types.RequestID) (types.Request, error)
	Providers(ctx context.Context) []types.Provider
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAuthenticator sets how callers are identified. The default trusts the
// X-Oracle-Caller header.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(s *Server) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithDeduper enables Idempotency-Key handling on submissions.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Server) {
		s.dedupe = d
	}
}

// WithRateLimiter throttles mutating calls per caller.
func WithRateLimiter(l *RateLimiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithValueDecimals sets the scale used to render the display field of
// values. Zero renders integers.
func WithValueDecimals(decimals int32) Option {
	return func(s *Server) {
		if decimals >= 0 {
			s.decimals = decimals
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Server wires HTTP routes for the oracle API.
type Server struct {
	oracle   Oracle
	auth     auth.Authenticator
	dedupe   dedupe.Deduper
	limiter  *RateLimiter
	decimals int32
	log      logger.Logger

	stats      StatsProvider
	exposition http.Handler
}

// NewServer creates a new API server with all handlers.
func NewServer(o Oracle, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		oracle:     o,
		auth:       auth.NewHeaderAuthenticator(),
		log:        logger.Discard(),
		stats:      statsProvider,
		exposition: newExposition(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.handleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.handleStats, "stats"))

	mux.HandleFunc("POST /requests", MetricsMiddleware(s.handleCreateRequest, "create_request"))
	mux.HandleFunc("GET /requests/{id}", MetricsMiddleware(s.handleGetRequest, "get_request"))
	mux.HandleFunc("POST /requests/{id}/submissions", MetricsMiddleware(s.handleSubmitReading, "submit_reading"))
	mux.HandleFunc("GET /requests/{id}/submissions", MetricsMiddleware(s.handleListSubmissions, "list_submissions"))
	mux.HandleFunc("GET /requests/{id}/value", MetricsMiddleware(s.handleGetValue, "get_value"))
	mux.HandleFunc("GET /value/latest", MetricsMiddleware(s.handleLatestValue, "latest_value"))

	mux.HandleFunc("PUT /providers/{id}", MetricsMiddleware(s.handleSetProvider, "set_provider"))
	mux.HandleFunc("GET /providers", MetricsMiddleware(s.handleListProviders, "list_providers"))
}

// caller authenticates r and applies the rate limit. It writes the error
// response itself and reports false when the call must stop.
func (s *Server) caller(w http.ResponseWriter, r *http.Request, endpoint string) (types.ProviderID, bool) {
	const op = "api.authenticate"
	id, err := s.auth.Authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", types.WrapKind(op, ErrUnauthenticated, err))
		return "", false
	}
	if !s.limiter.Allow(string(id)) {
		rateLimited(w, endpoint)
		return "", false
	}
	return id, true
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
