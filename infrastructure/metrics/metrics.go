// Package metrics provides Prometheus metrics collection for the intake
// service and worker.
package metrics

import (
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aerocristobal/label-verify/infrastructure/runtime"
)

// Metrics holds all Prometheus metrics. An instance is constructed once at
// startup and threaded explicitly through the application state; there is no
// package-level singleton.
type Metrics struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Pipeline metrics
	JobsSubmittedTotal  *prometheus.CounterVec
	JobsCompletedTotal  *prometheus.CounterVec
	JobProcessingSecs   *prometheus.HistogramVec
	VisionRequestsTotal *prometheus.CounterVec
	VisionRequestSecs   prometheus.Histogram
	RegistryLookupTotal *prometheus.CounterVec
	QueueDepth          prometheus.Gauge
	QueueInFlightDepth  prometheus.Gauge

	// Database metrics
	DatabaseQueriesTotal    *prometheus.CounterVec
	DatabaseQueryDuration   *prometheus.HistogramVec
	DatabaseConnectionsOpen prometheus.Gauge

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance registered against the default registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of errors",
			},
			[]string{"service", "type", "operation"},
		),

		JobsSubmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verification_jobs_submitted_total",
				Help: "Total number of verification jobs submitted",
			},
			[]string{"service"},
		),
		JobsCompletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verification_jobs_completed_total",
				Help: "Total number of verification jobs finished, by terminal status",
			},
			[]string{"service", "status"},
		),
		JobProcessingSecs: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verification_job_processing_seconds",
				Help:    "Time from dequeue to terminal job state",
				Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"service", "status"},
		),
		VisionRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vision_model_requests_total",
				Help: "Total number of vision-model extraction calls",
			},
			[]string{"service", "status"},
		),
		VisionRequestSecs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vision_model_request_seconds",
				Help:    "Vision-model extraction call duration in seconds",
				Buckets: []float64{.1, .5, 1, 2, 5, 10, 20, 30},
			},
		),
		RegistryLookupTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ttb_registry_lookups_total",
				Help: "Total number of TTB COLA registry lookups, by outcome",
			},
			[]string{"service", "outcome"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "verification_queue_depth",
				Help: "Current number of pending jobs on the reliable queue",
			},
		),
		QueueInFlightDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "verification_queue_inflight_depth",
				Help: "Current number of dequeued-but-not-yet-completed jobs",
			},
		),

		DatabaseQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"service", "operation", "status"},
		),
		DatabaseQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "database_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"service", "operation"},
		),
		DatabaseConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "database_connections_open",
				Help: "Current number of open database connections",
			},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.JobsSubmittedTotal,
			m.JobsCompletedTotal,
			m.JobProcessingSecs,
			m.VisionRequestsTotal,
			m.VisionRequestSecs,
			m.RegistryLookupTotal,
			m.QueueDepth,
			m.QueueInFlightDepth,
			m.DatabaseQueriesTotal,
			m.DatabaseQueryDuration,
			m.DatabaseConnectionsOpen,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", getEnvironment()).Set(1)

	return m
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records an error.
func (m *Metrics) RecordError(service, errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(service, errorType, operation).Inc()
}

// RecordJobSubmitted records a newly-submitted verification job.
func (m *Metrics) RecordJobSubmitted(service string) {
	m.JobsSubmittedTotal.WithLabelValues(service).Inc()
}

// RecordJobCompleted records a job reaching a terminal state.
func (m *Metrics) RecordJobCompleted(service, status string, duration time.Duration) {
	m.JobsCompletedTotal.WithLabelValues(service, status).Inc()
	m.JobProcessingSecs.WithLabelValues(service, status).Observe(duration.Seconds())
}

// RecordVisionRequest records a vision-model extraction call.
func (m *Metrics) RecordVisionRequest(service, status string, duration time.Duration) {
	m.VisionRequestsTotal.WithLabelValues(service, status).Inc()
	m.VisionRequestSecs.Observe(duration.Seconds())
}

// RecordRegistryLookup records a TTB COLA registry lookup outcome.
func (m *Metrics) RecordRegistryLookup(service, outcome string) {
	m.RegistryLookupTotal.WithLabelValues(service, outcome).Inc()
}

// SetQueueDepth sets the current pending/in-flight queue depths.
func (m *Metrics) SetQueueDepth(pending, inFlight int) {
	m.QueueDepth.Set(float64(pending))
	m.QueueInFlightDepth.Set(float64(inFlight))
}

// RecordDatabaseQuery records a database query.
func (m *Metrics) RecordDatabaseQuery(service, operation, status string, duration time.Duration) {
	m.DatabaseQueriesTotal.WithLabelValues(service, operation, status).Inc()
	m.DatabaseQueryDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// SetDatabaseConnections sets the number of open database connections.
func (m *Metrics) SetDatabaseConnections(count int) {
	m.DatabaseConnectionsOpen.Set(float64(count))
}

// UpdateUptime updates the service uptime.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// IncrementInFlight increments the in-flight HTTP requests counter.
func (m *Metrics) IncrementInFlight() {
	m.RequestsInFlight.Inc()
}

// DecrementInFlight decrements the in-flight HTTP requests counter.
func (m *Metrics) DecrementInFlight() {
	m.RequestsInFlight.Dec()
}

func getEnvironment() string {
	return string(runtime.Env())
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return !runtime.IsProduction()
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
