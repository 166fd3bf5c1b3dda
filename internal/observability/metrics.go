// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Run metrics
	RunsTotal    *prometheus.CounterVec
	RunDuration  prometheus.Histogram
	MonitorsDone *prometheus.CounterVec

	// Labelling metrics
	StageDuration  *prometheus.HistogramVec
	SamplesKept    prometheus.Counter
	DaysRejected   prometheus.Counter
	LabelsAssigned *prometheus.CounterVec
	RowsWritten    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
	UptimeSeconds     prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered on the default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a new Metrics instance registered on reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "pv_fault_lab"
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total number of labelling runs by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Labelling run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		MonitorsDone: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "monitors_total",
			Help:      "Total number of monitors processed by outcome",
		}, []string{"outcome"}),

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "labelling",
			Name:      "stage_duration_seconds",
			Help:      "Per-monitor stage duration in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}, []string{"stage"}),
		SamplesKept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "labelling",
			Name:      "samples_kept_total",
			Help:      "Total number of samples surviving the daylight filter and preprocessing",
		}),
		DaysRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "labelling",
			Name:      "days_rejected_total",
			Help:      "Total number of monitor-days dropped for missing data",
		}),
		LabelsAssigned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "labelling",
			Name:      "labels_assigned_total",
			Help:      "Total number of samples carrying each fault label",
		}, []string{"label"}),
		RowsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "labelling",
			Name:      "rows_written_total",
			Help:      "Total number of label rows written to storage",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last completed labelling run",
		}),
		UptimeSeconds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRun records a finished labelling run.
func (m *Metrics) RecordRun(status string, d time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
	if status == "COMPLETED" {
		m.LastSuccessfulRun.SetToCurrentTime()
	}
}

// RecordMonitor counts one monitor by outcome: labelled, skipped or failed.
func (m *Metrics) RecordMonitor(outcome string) {
	m.MonitorsDone.WithLabelValues(outcome).Inc()
}

// RecordStage observes the duration of one labelling stage.
func (m *Metrics) RecordStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordLabels adds per-label sample counts.
func (m *Metrics) RecordLabels(counts map[string]int) {
	for label, n := range counts {
		m.LabelsAssigned.WithLabelValues(label).Add(float64(n))
	}
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, d time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordDBQuery records database query metrics on DefaultMetrics.
func RecordDBQuery(database, operation string, d time.Duration, err error) {
	DefaultMetrics.RecordDBQuery(database, operation, d, err)
}

// RecordRun records a finished labelling run on DefaultMetrics.
func RecordRun(status string, d time.Duration) {
	DefaultMetrics.RecordRun(status, d)
}
