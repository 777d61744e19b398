// Package metrics exposes Prometheus metrics for the monitoring core.
//
// A small CounterVec/GaugeVec set covering
// exit reasons split by side, registered via prometheus.NewRegistry rather
// than the global default registry so a library consumer can mount it
// alongside its own metrics without collisions.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the core's Prometheus collectors.
type Registry struct {
	reg *prometheus.Registry

	Exits           *prometheus.CounterVec // position_exits_total{kind,side}
	ExitFailures    *prometheus.CounterVec // position_exit_failures_total{side}
	Monitored       prometheus.Gauge       // positions_monitored
	PriceFetchFails prometheus.Counter     // price_check_failures_total
}

// New creates and registers the core's metric collectors.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		Exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "position_exits_total",
				Help: "Total successful position exits, split by exit kind and side.",
			},
			[]string{"kind", "side"},
		),
		ExitFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "position_exit_failures_total",
				Help: "Total exit attempts that ended in the failed state, split by side.",
			},
			[]string{"side"},
		),
		Monitored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "positions_monitored",
				Help: "Number of positions currently held in the registry.",
			},
		),
		PriceFetchFails: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "price_check_failures_total",
				Help: "Total price-oracle fetches that returned not-ok or errored.",
			},
		),
	}

	reg.MustRegister(m.Exits, m.ExitFailures, m.Monitored, m.PriceFetchFails)
	return m
}

// Gatherer exposes the underlying registry for an HTTP /metrics handler.
func (m *Registry) Gatherer() prometheus.Gatherer {
	return m.reg
}
