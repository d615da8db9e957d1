package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's collectors. Each server owns a registry so
// several servers can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	RunsStarted   prometheus.Counter
	RunsFinished  *prometheus.CounterVec
	RunsActive    prometheus.Gauge
	Snapshots     prometheus.Counter
	RunDurationS  prometheus.Histogram
	SnapshotScore prometheus.Histogram
}

// NewMetrics creates and registers the run collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridopt_runs_started_total",
			Help: "Total number of optimization runs started",
		}),
		RunsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridopt_runs_finished_total",
			Help: "Total number of finished runs by final state",
		}, []string{"state"}),
		RunsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridopt_runs_active",
			Help: "Number of runs currently executing",
		}),
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridopt_snapshots_total",
			Help: "Total number of progress snapshots produced",
		}),
		RunDurationS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridopt_run_duration_seconds",
			Help:    "Wall time of finished runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}),
		SnapshotScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridopt_snapshot_score",
			Help:    "Distribution of snapshot scores",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		}),
	}

	m.registry.MustRegister(
		m.RunsStarted,
		m.RunsFinished,
		m.RunsActive,
		m.Snapshots,
		m.RunDurationS,
		m.SnapshotScore,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
