package popular

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricAggregationRunsTotal   = "popular_aggregation_runs_total"
	MetricAggregationDuration    = "popular_aggregation_duration_seconds"
	MetricAggregationErrorsTotal = "popular_aggregation_errors_total"
	MetricSnapshotEntries        = "popular_snapshot_entries"
)

// Status constants for run completion.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics contains Prometheus metrics for the aggregation jobs.
// All operations are thread-safe.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	runsDuration *prometheus.HistogramVec
	runErrors    *prometheus.CounterVec
	snapshotSize *prometheus.GaugeVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAggregationRunsTotal,
				Help: "Total number of popularity aggregation runs by period and status",
			},
			[]string{"period", "status"},
		),
		runsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricAggregationDuration,
				Help:    "Histogram of aggregation run duration in seconds by period",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
			[]string{"period"},
		),
		runErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAggregationErrorsTotal,
				Help: "Total number of aggregation run errors by period and error type",
			},
			[]string{"period", "error_type"},
		),
		snapshotSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricSnapshotEntries,
				Help: "Number of ranked entries in the most recent snapshot by period",
			},
			[]string{"period"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.runsTotal,
		m.runsDuration,
		m.runErrors,
		m.snapshotSize,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRunsTotal increments the runs total counter.
func (m *Metrics) IncRunsTotal(period, status string) {
	m.runsTotal.WithLabelValues(period, status).Inc()
}

// ObserveRunDuration records a run duration sample.
func (m *Metrics) ObserveRunDuration(period string, seconds float64) {
	m.runsDuration.WithLabelValues(period).Observe(seconds)
}

// IncRunErrors increments the run errors counter.
func (m *Metrics) IncRunErrors(period, errorType string) {
	m.runErrors.WithLabelValues(period, errorType).Inc()
}

// SetSnapshotSize records the entry count of the latest published snapshot.
func (m *Metrics) SetSnapshotSize(period string, entries float64) {
	m.snapshotSize.WithLabelValues(period).Set(entries)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.runsTotal,
		m.runsDuration,
		m.runErrors,
		m.snapshotSize,
	}
}
