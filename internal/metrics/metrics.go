package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	// Health probe metrics
	ProbesTotal *prometheus.CounterVec
	ShardHealth *prometheus.GaugeVec

	// Failover metrics
	FailoversTotal      *prometheus.CounterVec
	FailoverDuration    prometheus.Histogram
	ReplicationTimeouts prometheus.Counter
}

// NewMetrics creates and registers Prometheus metrics on the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates metrics registered on the given registerer. Tests
// pass a fresh registry to avoid duplicate-registration panics.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_requests_total",
				Help: "Total number of cache operations processed",
			},
			[]string{"operation", "shard"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coordinator_request_duration_seconds",
				Help:    "Duration of cache operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		RequestErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_request_errors_total",
				Help: "Total number of cache operation errors",
			},
			[]string{"operation", "error_kind"},
		),

		ProbesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_health_probes_total",
				Help: "Total number of health probes by result",
			},
			[]string{"shard", "result"},
		),

		ShardHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coordinator_shard_healthy",
				Help: "Shard health (1 healthy, 0 otherwise)",
			},
			[]string{"shard"},
		),

		FailoversTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_failovers_total",
				Help: "Total number of failover attempts by result",
			},
			[]string{"result"},
		),

		FailoverDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coordinator_failover_duration_seconds",
				Help:    "Duration of successful failover promotions",
				Buckets: prometheus.DefBuckets,
			},
		),

		ReplicationTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "coordinator_replication_timeouts_total",
				Help: "Total number of sync writes not confirmed by a replica in time",
			},
		),
	}
}
