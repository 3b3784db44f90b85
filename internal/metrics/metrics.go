// Package metrics exposes pomodoro engine activity to Prometheus.
//
//	pomodoro_phases_completed_total{phase}   phases that ran to zero
//	pomodoro_clock_ticks_total               tick events applied by engines
//	pomodoro_persist_failures_total{key}     failed loads/saves of engine state
//	pomodoro_active_engines                  engines currently held in memory
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"toolsite/backend/internal/session"
)

type Collector struct {
	registry *prometheus.Registry

	phasesCompleted *prometheus.CounterVec
	clockTicks      prometheus.Counter
	persistFailures *prometheus.CounterVec
	activeEngines   prometheus.Gauge
}

// NewCollector registers every metric on a fresh registry so several
// collectors can live in one process (tests, embedded servers).
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		phasesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pomodoro_phases_completed_total",
			Help: "Pomodoro phases that counted down to zero.",
		}, []string{"phase"}),
		clockTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pomodoro_clock_ticks_total",
			Help: "Countdown tick events applied by session engines.",
		}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pomodoro_persist_failures_total",
			Help: "Failed loads or saves of pomodoro state.",
		}, []string{"key"}),
		activeEngines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pomodoro_active_engines",
			Help: "Session engines currently held in memory.",
		}),
	}

	c.registry.MustRegister(
		c.phasesCompleted,
		c.clockTicks,
		c.persistFailures,
		c.activeEngines,
		collectors.NewGoCollector(),
	)
	return c
}

func (c *Collector) RecordTick() {
	c.clockTicks.Inc()
}

func (c *Collector) RecordPhaseCompleted(phase session.Phase) {
	c.phasesCompleted.WithLabelValues(string(phase)).Inc()
}

func (c *Collector) RecordPersistFailure(key string) {
	c.persistFailures.WithLabelValues(key).Inc()
}

func (c *Collector) SetActiveEngines(n int) {
	c.activeEngines.Set(float64(n))
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

var _ session.Recorder = (*Collector)(nil)
