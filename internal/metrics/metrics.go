// Package metrics exports guard decisions as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smvora4u/restaurant-management/internal/guard"
)

const namespace = "orders"

// GuardMetrics counts reconciliation decisions. It implements
// guard.Observer.
type GuardMetrics struct {
	registry  *prometheus.Registry
	Decisions *prometheus.CounterVec
	Pushes    *prometheus.CounterVec
	Halts     prometheus.Counter
}

// NewGuardMetrics creates the collectors on a private registry, so tests
// and multiple guards in one process never collide on registration.
func NewGuardMetrics() *GuardMetrics {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "decisions_total",
		Help:      "Reconciliation decisions by origin and outcome.",
	}, []string{"origin", "outcome"})
	pushes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "pushes_total",
		Help:      "Status pushes accepted by the store, by pushed status.",
	}, []string{"origin", "status"})
	halts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "halted_drops_total",
		Help:      "Notifications dropped while the emergency halt was active.",
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(decisions, pushes, halts)
	return &GuardMetrics{
		registry:  reg,
		Decisions: decisions,
		Pushes:    pushes,
		Halts:     halts,
	}
}

// Observe implements guard.Observer.
func (m *GuardMetrics) Observe(d guard.Decision) {
	m.Decisions.WithLabelValues(string(d.Origin), d.Outcome.String()).Inc()
	switch d.Outcome {
	case guard.OutcomePushed:
		m.Pushes.WithLabelValues(string(d.Origin), string(d.Calculated)).Inc()
	case guard.OutcomeHalted:
		m.Halts.Inc()
	}
}

// WatchGuard exports live gauges for g: pending debounce tasks and whether
// the emergency halt is active.
func (m *GuardMetrics) WatchGuard(g *guard.Guard) {
	pending := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "pending_tasks",
		Help:      "Debounced push tasks waiting to fire.",
	}, func() float64 { return float64(g.Pending()) })
	halted := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "halted",
		Help:      "1 while the emergency halt is active.",
	}, func() float64 {
		if on, _ := g.Halted(); on {
			return 1
		}
		return 0
	})
	m.registry.MustRegister(pending, halted)
}

// Registry exposes the private registry.
func (m *GuardMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *GuardMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
