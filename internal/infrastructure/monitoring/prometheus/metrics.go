package prometheus

import (
	"database/sql"
	"time"

	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// DefaultDBDurationBuckets covers single statements up to multi-table cascades.
var DefaultDBDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}

// Operation outcomes used as the status label.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// RepositoryMetrics records repository and cache activity. A nil
// *RepositoryMetrics is valid and records nothing.
type RepositoryMetrics struct {
	OperationsTotal   CounterVec
	OperationDuration HistogramVec
	PoolConnections   GaugeVec
	CacheRequests     CounterVec
}

// NewRepositoryMetrics registers the storage metrics on collector.
func NewRepositoryMetrics(collector MetricsCollector) *RepositoryMetrics {
	return &RepositoryMetrics{
		OperationsTotal: collector.RegisterCounter("repository_operations_total",
			"Repository operations by repository, operation and outcome.",
			"repository", "operation", "status"),
		OperationDuration: collector.RegisterHistogram("repository_operation_duration_seconds",
			"Repository operation latency in seconds.",
			DefaultDBDurationBuckets, "repository", "operation"),
		PoolConnections: collector.RegisterGauge("db_pool_connections",
			"Database pool connections by state.",
			"state"),
		CacheRequests: collector.RegisterCounter("cache_requests_total",
			"Risk catalogue cache lookups by result.",
			"result"),
	}
}

// Observe records one repository operation that took d and ended with err.
func (m *RepositoryMetrics) Observe(repository, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(repository, operation, statusOf(err)).Inc()
	m.OperationDuration.WithLabelValues(repository, operation).Observe(d.Seconds())
}

// RecordPoolStats publishes a database/sql pool snapshot.
func (m *RepositoryMetrics) RecordPoolStats(s sql.DBStats) {
	if m == nil {
		return
	}
	m.PoolConnections.WithLabelValues("open").Set(float64(s.OpenConnections))
	m.PoolConnections.WithLabelValues("in_use").Set(float64(s.InUse))
	m.PoolConnections.WithLabelValues("idle").Set(float64(s.Idle))
	m.PoolConnections.WithLabelValues("max_open").Set(float64(s.MaxOpenConnections))
}

// CacheHit and CacheMiss count risk catalogue cache lookups.
func (m *RepositoryMetrics) CacheHit() {
	if m != nil {
		m.CacheRequests.WithLabelValues("hit").Inc()
	}
}

func (m *RepositoryMetrics) CacheMiss() {
	if m != nil {
		m.CacheRequests.WithLabelValues("miss").Inc()
	}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.IsNotFound(err):
		return StatusNotFound
	default:
		return StatusError
	}
}
