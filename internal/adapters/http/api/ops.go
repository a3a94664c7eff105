package api

import (
	"net/http"

	"github.com/okian/quorum/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider reports runtime statistics for GET /stats.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

func newExposition() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}

// handleHealth serves GET /healthz as the Prometheus exposition of the
// service registry; answering at all means the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.exposition.ServeHTTP(w, r)
}

// handleStats serves GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := map[string]interface{}{}
	if s.stats != nil {
		stats = s.stats.GetStats()
	}
	writeJSON(w, http.StatusOK, stats)
}
