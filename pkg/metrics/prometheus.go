// Package metrics provides Prometheus metrics for the quorum oracle service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the oracle service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Oracle lifecycle
	requestsCreated     prometheus.Counter
	submissionsAccepted prometheus.Counter
	submissionsRejected *prometheus.CounterVec
	finalizations       prometheus.Counter
	resolutionLatency   prometheus.Histogram
	openRequests        prometheus.Gauge
	authorizedProviders prometheus.Gauge
	authorizationChange *prometheus.CounterVec

	// Notification dispatch
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDropped     *prometheus.CounterVec
	eventsDispatched *prometheus.CounterVec
	dispatchLatency  prometheus.Histogram
	workerCount      prometheus.Gauge

	// Journal
	journalAppends prometheus.Counter
	journalErrors  prometheus.Counter

	// Transport
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	idempotentReplays   prometheus.Counter
	rateLimited         *prometheus.CounterVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
// Metrics are registered on the configured registry; registering two managers
// with the same names on one registry panics, as promauto does.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "quorum",
		subsystem:        "oracle",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.requestsCreated = auto.NewCounter(m.counterOpts("requests_created_total", "Total number of requests created"))
	m.submissionsAccepted = auto.NewCounter(m.counterOpts("submissions_accepted_total", "Total number of readings recorded"))
	m.submissionsRejected = auto.NewCounterVec(
		m.counterOpts("submissions_rejected_total", "Total number of readings rejected, by reason"),
		[]string{"reason"},
	)
	m.finalizations = auto.NewCounter(m.counterOpts("finalizations_total", "Total number of requests finalized"))
	m.resolutionLatency = auto.NewHistogram(m.histogramOpts(
		"resolution_latency_milliseconds",
		"Time spent resolving and finalizing a request once quorum is reached",
		m.histogramBuckets,
	))
	m.openRequests = auto.NewGauge(m.gaugeOpts("open_requests", "Number of requests still collecting readings"))
	m.authorizedProviders = auto.NewGauge(m.gaugeOpts("authorized_providers", "Number of providers currently authorized"))
	m.authorizationChange = auto.NewCounterVec(
		m.counterOpts("authorization_changes_total", "Provider authorization changes, by new state"),
		[]string{"authorized"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("dispatch_queue_size", "Current number of undelivered notifications"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("dispatch_queue_capacity", "Capacity of the notification queue"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("dispatch_queue_utilization", "Notification queue utilization ratio (0-1)"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("dispatch_enqueued_total", "Total number of notifications queued"))
	m.queueDropped = auto.NewCounterVec(
		m.counterOpts("dispatch_dropped_total", "Notifications dropped before delivery, by reason"),
		[]string{"reason"},
	)
	m.eventsDispatched = auto.NewCounterVec(
		m.counterOpts("events_dispatched_total", "Notifications delivered to sinks, by sink and outcome"),
		[]string{"sink", "outcome"},
	)
	m.dispatchLatency = auto.NewHistogram(m.histogramOpts(
		"dispatch_latency_milliseconds",
		"Time spent delivering one notification to all sinks",
		m.histogramBuckets,
	))
	m.workerCount = auto.NewGauge(m.gaugeOpts("dispatch_workers", "Number of notification dispatch workers"))

	m.journalAppends = auto.NewCounter(m.counterOpts("journal_appends_total", "Total number of journal records written"))
	m.journalErrors = auto.NewCounter(m.counterOpts("journal_errors_total", "Total number of failed journal writes"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.idempotentReplays = auto.NewCounter(m.counterOpts("idempotent_replays_total", "Submissions answered from the idempotency cache"))
	m.rateLimited = auto.NewCounterVec(
		m.counterOpts("rate_limited_total", "Calls refused by the per-caller rate limiter"),
		[]string{"endpoint"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	))
}

// RecordRequestCreated increments the created requests counter.
func (m *Manager) RecordRequestCreated() { m.requestsCreated.Inc() }

// RecordSubmissionAccepted increments the accepted submissions counter.
func (m *Manager) RecordSubmissionAccepted() { m.submissionsAccepted.Inc() }

// RecordSubmissionRejected increments the rejected submissions counter for reason.
func (m *Manager) RecordSubmissionRejected(reason string) {
	m.submissionsRejected.WithLabelValues(reason).Inc()
}

// RecordFinalization records a finalized request and how long resolution took.
func (m *Manager) RecordFinalization(latencyMs float64) {
	m.finalizations.Inc()
	m.resolutionLatency.Observe(latencyMs)
}

// UpdateOpenRequests sets the open requests gauge.
func (m *Manager) UpdateOpenRequests(count int) { m.openRequests.Set(float64(count)) }

// UpdateAuthorizedProviders sets the authorized providers gauge.
func (m *Manager) UpdateAuthorizedProviders(count int) { m.authorizedProviders.Set(float64(count)) }

// RecordAuthorizationChange counts an authorization flip.
func (m *Manager) RecordAuthorizationChange(authorized bool) {
	label := "false"
	if authorized {
		label = "true"
	}
	m.authorizationChange.WithLabelValues(label).Inc()
}

// UpdateQueueSize sets the current queue size.
func (m *Manager) UpdateQueueSize(size int) { m.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func (m *Manager) UpdateQueueCapacity(capacity int) { m.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func (m *Manager) UpdateQueueUtilization(utilization float64) { m.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func (m *Manager) RecordQueueEnqueue() { m.queueEnqueued.Inc() }

// RecordQueueDrop increments the dropped notifications counter for reason.
func (m *Manager) RecordQueueDrop(reason string) { m.queueDropped.WithLabelValues(reason).Inc() }

// RecordEventDispatched counts one delivery attempt to sink.
func (m *Manager) RecordEventDispatched(sink, outcome string) {
	m.eventsDispatched.WithLabelValues(sink, outcome).Inc()
}

// RecordDispatchLatency records notification delivery latency in milliseconds.
func (m *Manager) RecordDispatchLatency(latencyMs float64) { m.dispatchLatency.Observe(latencyMs) }

// UpdateWorkerCount sets the dispatch worker count.
func (m *Manager) UpdateWorkerCount(count int) { m.workerCount.Set(float64(count)) }

// RecordJournalAppend increments the journal append counter.
func (m *Manager) RecordJournalAppend() { m.journalAppends.Inc() }

// RecordJournalError increments the journal error counter.
func (m *Manager) RecordJournalError() { m.journalErrors.Inc() }

// RecordHTTPRequest records an HTTP request and its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordIdempotentReplay increments the idempotent replay counter.
func (m *Manager) RecordIdempotentReplay() { m.idempotentReplays.Inc() }

// RecordRateLimited increments the rate limited counter for endpoint.
func (m *Manager) RecordRateLimited(endpoint string) { m.rateLimited.WithLabelValues(endpoint).Inc() }

// RecordErrorByComponent records an error by component and type.
func (m *Manager) RecordErrorByComponent(component, errorType string) {
	m.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) { m.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func (m *Manager) UpdateSystemGoroutineCount(count int) { m.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func (m *Manager) RecordSystemGCPauseTime(pauseMs float64) { m.systemGCPauseTime.Observe(pauseMs) }

// Global returns the process-wide manager registered on GetRegistry.
func Global() *Manager { return globalManager }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level shortcuts onto the global manager.

// RecordRequestCreated increments the created requests counter.
func RecordRequestCreated() { globalManager.RecordRequestCreated() }

// RecordSubmissionAccepted increments the accepted submissions counter.
func RecordSubmissionAccepted() { globalManager.RecordSubmissionAccepted() }

// RecordSubmissionRejected increments the rejected submissions counter for reason.
func RecordSubmissionRejected(reason string) { globalManager.RecordSubmissionRejected(reason) }

// RecordFinalization records a finalized request and its resolution latency.
func RecordFinalization(latencyMs float64) { globalManager.RecordFinalization(latencyMs) }

// UpdateOpenRequests sets the open requests gauge.
func UpdateOpenRequests(count int) { globalManager.UpdateOpenRequests(count) }

// UpdateAuthorizedProviders sets the authorized providers gauge.
func UpdateAuthorizedProviders(count int) { globalManager.UpdateAuthorizedProviders(count) }

// RecordAuthorizationChange counts an authorization flip.
func RecordAuthorizationChange(authorized bool) { globalManager.RecordAuthorizationChange(authorized) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.UpdateQueueSize(size) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.UpdateQueueCapacity(capacity) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.UpdateQueueUtilization(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.RecordQueueEnqueue() }

// RecordQueueDrop increments the dropped notifications counter.
func RecordQueueDrop(reason string) { globalManager.RecordQueueDrop(reason) }

// RecordEventDispatched counts one delivery attempt to sink.
func RecordEventDispatched(sink, outcome string) { globalManager.RecordEventDispatched(sink, outcome) }

// RecordDispatchLatency records notification delivery latency.
func RecordDispatchLatency(latencyMs float64) { globalManager.RecordDispatchLatency(latencyMs) }

// UpdateWorkerCount sets the dispatch worker count.
func UpdateWorkerCount(count int) { globalManager.UpdateWorkerCount(count) }

// RecordJournalAppend increments the journal append counter.
func RecordJournalAppend() { globalManager.RecordJournalAppend() }

// RecordJournalError increments the journal error counter.
func RecordJournalError() { globalManager.RecordJournalError() }

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// RecordIdempotentReplay increments the idempotent replay counter.
func RecordIdempotentReplay() { globalManager.RecordIdempotentReplay() }

// RecordRateLimited increments the rate limited counter.
func RecordRateLimited(endpoint string) { globalManager.RecordRateLimited(endpoint) }

// RecordErrorByComponent records an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.RecordErrorByComponent(component, errorType)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.UpdateSystemMemoryUsage(bytes) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.UpdateSystemGoroutineCount(count) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.RecordSystemGCPauseTime(pauseMs) }
