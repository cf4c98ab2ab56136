// Package metrics exposes the harvester's prometheus instruments
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters and gauges the engine updates. The JSON
// progress snapshot stays authoritative; these exist for the status listener
type Metrics struct {
	Outcomes *prometheus.CounterVec
	Attempts prometheus.Counter
	Retries  prometheus.Counter
	Skipped  prometheus.Counter
	Pending  prometheus.Gauge
	InFlight prometheus.Gauge
}

// New registers the instruments on reg and returns them
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dpwharvest",
			Name:      "outcomes_total",
			Help:      "Terminal outcomes per category",
		}, []string{"category"}),
		Attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dpwharvest",
			Name:      "attempts_total",
			Help:      "HTTP attempts issued",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dpwharvest",
			Name:      "retries_total",
			Help:      "Attempts beyond the first per unit",
		}),
		Skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dpwharvest",
			Name:      "skipped_total",
			Help:      "Units skipped because they were already harvested",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dpwharvest",
			Name:      "pending_units",
			Help:      "Units not yet terminal",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dpwharvest",
			Name:      "inflight_workers",
			Help:      "Workers currently processing a unit",
		}),
	}
	reg.MustRegister(m.Outcomes, m.Attempts, m.Retries, m.Skipped, m.Pending, m.InFlight)
	return m
}
