package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the coordinator's Prometheus instruments. Each coordinator
// owns a registry so several can live in one process.
type Metrics struct {
	Registry *prometheus.Registry

	dispatched   prometheus.Counter
	results      *prometheus.CounterVec
	requeued     prometheus.Counter
	discarded    prometheus.Counter
	taskDuration prometheus.Histogram
	queueDepth   prometheus.Gauge
	workers      prometheus.Gauge
	upperBound   *prometheus.GaugeVec
}

// NewMetrics registers the coordinator instruments on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		dispatched: f.NewCounter(prometheus.CounterOpts{
			Name: "tspgrid_tasks_dispatched_total",
			Help: "Tasks sent to workers",
		}),
		results: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tspgrid_task_results_total",
			Help: "Task results by outcome",
		}, []string{"outcome"}),
		requeued: f.NewCounter(prometheus.CounterOpts{
			Name: "tspgrid_tasks_requeued_total",
			Help: "Tasks queued again after their worker left",
		}),
		discarded: f.NewCounter(prometheus.CounterOpts{
			Name: "tspgrid_tasks_discarded_total",
			Help: "Queued tasks dropped because their hint exceeded the bound",
		}),
		taskDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tspgrid_task_duration_seconds",
			Help:    "Wall time from dispatch to result",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "tspgrid_queue_depth",
			Help: "Queued tasks across sessions",
		}),
		workers: f.NewGauge(prometheus.GaugeOpts{
			Name: "tspgrid_workers_registered",
			Help: "Workers currently registered",
		}),
		upperBound: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tspgrid_upper_bound",
			Help: "Global upper bound per session",
		}, []string{"session"}),
	}
}
