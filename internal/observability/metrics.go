// Package observability records check outcomes on a private Prometheus
// registry that can be exported as a node-exporter textfile.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kwhcheck"

// Result labels for checks_total.
const (
	ResultPassed = "passed"
	ResultFailed = "failed"
)

// Metrics aggregates per-run counters, gauges and stage timings.
type Metrics struct {
	registry     *prometheus.Registry
	checks       *prometheus.CounterVec
	failures     *prometheus.CounterVec
	rowsVerified prometheus.Gauge
	rows         *prometheus.GaugeVec
	distinctKeys *prometheus.GaugeVec
	stages       *prometheus.HistogramVec
	lastRun      prometheus.Gauge
}

// NewMetrics registers the check collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Consistency checks run, by result.",
		}, []string{"result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed consistency checks, by failure kind.",
		}, []string{"kind"}),
		rowsVerified: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows_verified",
			Help:      "Sampled rows whose target matched the original in the last run.",
		}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows",
			Help:      "Row counts per table in the last run.",
		}, []string{"table"}),
		distinctKeys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distinct_keys",
			Help:      "Distinct join keys per table in the last run.",
		}, []string{"table"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of check stages.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage", "status"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last check finished.",
		}),
	}
	m.registry.MustRegister(m.checks, m.failures, m.rowsVerified, m.rows, m.distinctKeys, m.stages, m.lastRun)
	return m
}

// Registry exposes the underlying registry for exporters and tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveStage records how long a stage took and whether it succeeded.
func (m *Metrics) ObserveStage(stage string, success bool, d time.Duration) {
	if m == nil || stage == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	m.stages.WithLabelValues(stage, status).Observe(d.Seconds())
}

// TableSizes holds the row and distinct-key counts of one table.
type TableSizes struct {
	Rows int
	Keys int
}

// ObserveTables sets the per-table gauges.
func (m *Metrics) ObserveTables(sizes map[string]TableSizes) {
	if m == nil {
		return
	}
	for name, s := range sizes {
		m.rows.WithLabelValues(name).Set(float64(s.Rows))
		m.distinctKeys.WithLabelValues(name).Set(float64(s.Keys))
	}
}

// ObserveResult counts one finished check. kind is empty on success.
func (m *Metrics) ObserveResult(kind string, rowsVerified int, at time.Time) {
	if m == nil {
		return
	}
	m.rowsVerified.Set(float64(rowsVerified))
	m.lastRun.Set(float64(at.Unix()))
	if kind == "" {
		m.checks.WithLabelValues(ResultPassed).Inc()
		return
	}
	m.checks.WithLabelValues(ResultFailed).Inc()
	m.failures.WithLabelValues(kind).Inc()
}

// WriteTextfile atomically writes the registry in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
