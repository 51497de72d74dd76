// Package metrics exposes scheduler state to Prometheus.
//
// Metrics:
//   - mise_tasks{status} - tasks per status in the latest snapshot
//   - mise_transitions_total{event} - runner events dispatched
//   - mise_ticks_total - snapshots evaluated by the runner
//   - mise_shortfall_seconds - how far the current plan overruns the serve time
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/korjavin/mise/pkg/scheduler"
)

var statuses = []scheduler.Status{
	scheduler.StatusPending,
	scheduler.StatusReady,
	scheduler.StatusDriverBusy,
	scheduler.StatusRunning,
	scheduler.StatusFinished,
}

// Metrics holds the collectors on their own registry
type Metrics struct {
	registry *prometheus.Registry

	Tasks       *prometheus.GaugeVec
	Transitions *prometheus.CounterVec
	Ticks       prometheus.Counter
	Shortfall   prometheus.Gauge
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Tasks: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mise_tasks",
				Help: "Number of tasks per status in the latest snapshot",
			},
			[]string{"status"},
		),
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mise_transitions_total",
				Help: "Total number of task events dispatched by the runner",
			},
			[]string{"event"}, // ready, overdue, violated, finished
		),
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Name: "mise_ticks_total",
			Help: "Total number of snapshots evaluated",
		}),
		Shortfall: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mise_shortfall_seconds",
			Help: "Seconds the current plan finishes after the serve time",
		}),
	}
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSnapshot implements scheduler.Observer
func (m *Metrics) ObserveSnapshot(snap scheduler.Snapshot) {
	m.Ticks.Inc()
	counts := make(map[scheduler.Status]int, len(statuses))
	for _, st := range snap.Status {
		counts[st]++
	}
	for _, st := range statuses {
		m.Tasks.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
}

// ObserveEvent implements scheduler.Observer
func (m *Metrics) ObserveEvent(ev scheduler.Event) {
	m.Transitions.WithLabelValues(string(ev.Kind)).Inc()
}

// SetShortfall records the overrun of the latest plan
func (m *Metrics) SetShortfall(d time.Duration) {
	m.Shortfall.Set(d.Seconds())
}
