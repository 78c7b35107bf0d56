// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Snapshot intake
	SnapshotsProduced  prometheus.Counter
	SnapshotsProcessed prometheus.Counter
	SnapshotsDiscarded *prometheus.CounterVec
	SnapshotOverdue    prometheus.Gauge
	LastBlock          prometheus.Gauge

	// Evaluation pass
	PathsEvaluated     prometheus.Counter
	PathsSkipped       prometheus.Counter
	PathsFailed        prometheus.Counter
	OpportunitiesFound prometheus.Counter
	EvaluationDuration prometheus.Histogram

	// Data acquisition
	AggregationDuration prometheus.Histogram
	ReserveFetchErrors  prometheus.Counter
	WSReconnects        prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "swap_path"
	}

	return &Metrics{
		SnapshotsProduced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datasync",
			Name:      "snapshots_produced_total",
			Help:      "Total number of market snapshots produced",
		}),
		SnapshotsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "snapshots_processed_total",
			Help:      "Total number of market snapshots evaluated",
		}),
		SnapshotsDiscarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "snapshots_discarded_total",
			Help:      "Total number of snapshots discarded by reason",
		}, []string{"reason"}),
		SnapshotOverdue: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "snapshot_overdue",
			Help:      "1 when no snapshot arrived within the expected interval",
		}),
		LastBlock: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "last_block",
			Help:      "Block number of the last processed snapshot",
		}),

		PathsEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "paths_evaluated_total",
			Help:      "Total number of path evaluations performed",
		}),
		PathsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "paths_skipped_total",
			Help:      "Total number of paths skipped (disabled pool or missing reserves)",
		}),
		PathsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "paths_failed_total",
			Help:      "Total number of paths failed with numeric errors",
		}),
		OpportunitiesFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "opportunities_found_total",
			Help:      "Total number of profitable opportunities emitted",
		}),
		EvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of one full evaluation pass in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),

		AggregationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "datasync",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of reserve aggregation per block in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ReserveFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datasync",
			Name:      "reserve_fetch_errors_total",
			Help:      "Total number of failed pool reserve queries",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datasync",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnections",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
