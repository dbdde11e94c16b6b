// Package metrics provides performance tracking and observability for
// gridbase using Prometheus metrics. It covers the tabular data engine
// (operation counts and latency per table) and the HTTP boundary.
//
// # Basic Usage
//
//	// Record a completed engine operation
//	metrics.EngineOperations.WithLabelValues("add_column", "success").Inc()
//
//	// Track operation latency
//	timer := metrics.NewTimer()
//	doWork()
//	metrics.OperationLatency.WithLabelValues("project_rows").Observe(timer.Stop().Seconds())
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., operations executed)
// Gauge: Values that can go up or down (e.g., tables currently defined)
// Histogram: Distribution of values (e.g., latency percentiles)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EngineOperations counts engine operations by kind and outcome.
	// Labels: operation (add_column/remove_column/set_cell/...), status (success/failure/conflict)
	EngineOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbase_engine_operations_total",
			Help: "Total number of engine operations",
		},
		[]string{"operation", "status"},
	)

	// OperationLatency tracks the distribution of engine operation latencies.
	// Labels: operation
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridbase_operation_latency_seconds",
			Help:    "Engine operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// MutationWaits counts mutations that timed out waiting for a table lock
	MutationWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbase_mutation_lock_timeouts_total",
			Help: "Total number of mutations that timed out waiting for a table",
		},
		[]string{"operation"},
	)

	// TablesDefined tracks the number of tables currently defined
	TablesDefined = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridbase_tables_defined",
			Help: "Number of tables currently defined",
		},
	)

	// HTTPRequests counts HTTP requests by route and status code class.
	// Labels: route, code
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridbase_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code"},
	)

	// HTTPDuration tracks HTTP request duration.
	// Labels: route
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridbase_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Timer measures elapsed time for a single operation
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time since the timer started
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
