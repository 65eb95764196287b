// Package metrics exposes Prometheus collectors for the sync runner.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fcisync"

// Sync holds the collectors updated by the batch runner.
type Sync struct {
	registry *prometheus.Registry

	Tasks        *prometheus.CounterVec
	FetchErrors  *prometheus.CounterVec
	Progress     prometheus.Gauge
	TaskListSize prometheus.Gauge
	FetchSeconds prometheus.Histogram
}

// NewSync creates the collectors on a private registry, which also carries
// the Go runtime and process collectors.
func NewSync() *Sync {
	reg := prometheus.NewRegistry()
	m := &Sync{
		registry: reg,
		Tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Processed sync tasks by reconciliation outcome.",
		}, []string{"action"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Detail fetch failures by kind.",
		}, []string{"kind"}),
		Progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_ratio",
			Help:      "Fraction of the current task list already processed.",
		}),
		TaskListSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_list_size",
			Help:      "Number of (fund, class) tasks in the current run.",
		}),
		FetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detail_fetch_seconds",
			Help:      "Latency of detail fetches including retries.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
		}),
	}

	reg.MustRegister(
		m.Tasks,
		m.FetchErrors,
		m.Progress,
		m.TaskListSize,
		m.FetchSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Sync) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Sync) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
