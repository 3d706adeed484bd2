package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors shared by the placement core. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Placements        *prometheus.CounterVec // order_placements_total{outcome}
	PlacementDuration *prometheus.HistogramVec
	Reservations      *prometheus.CounterVec // stock_reservations_total{outcome}
	Compensations     *prometheus.CounterVec // stock_compensations_total{outcome}
	Repairs           *prometheus.CounterVec // saga_repairs_total{outcome}
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Placements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_placements_total",
				Help: "Total number of order placement attempts by outcome.",
			},
			[]string{"outcome"},
		),
		PlacementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "order_placement_duration_seconds",
				Help:    "Duration of order placement in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		Reservations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stock_reservations_total",
				Help: "Per-line stock reservations by outcome.",
			},
			[]string{"outcome"},
		),
		Compensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stock_compensations_total",
				Help: "Per-line stock restorations by outcome.",
			},
			[]string{"outcome"},
		),
		Repairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saga_repairs_total",
				Help: "Repairs of abandoned placement intents by outcome.",
			},
			[]string{"outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Placements, m.PlacementDuration, m.Reservations, m.Compensations, m.Repairs)
	}
	return m
}

func (m *Metrics) PlacementDone(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Placements.WithLabelValues(outcome).Inc()
	m.PlacementDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) Reserved(outcome string) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Restored(outcome string) {
	if m == nil {
		return
	}
	m.Compensations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Repaired(outcome string) {
	if m == nil {
		return
	}
	m.Repairs.WithLabelValues(outcome).Inc()
}
