// Package metrics exposes Prometheus instruments for the engine and its
// HTTP gateway.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trustmesh/backend/internal/engine"
	"github.com/trustmesh/backend/internal/events"
)

// Metrics holds all Prometheus metrics for the staking/escrow engine.
type Metrics struct {
	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Engine state metrics
	VaultHeld        prometheus.Gauge
	AgentsRegistered prometheus.Gauge
	DealsCreated     prometheus.Gauge

	// Economic event metrics
	SlashedTotal  prometheus.Counter
	EscrowedTotal prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustmesh_operations_total",
				Help: "Total engine operations processed by the gateway",
			},
			[]string{"op", "result"}, // result: ok, rejected, error
		),

		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trustmesh_operation_duration_seconds",
				Help:    "Duration of engine operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),

		VaultHeld: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "trustmesh_vault_held_units",
				Help: "Total units in vault custody (staked + active escrow)",
			},
		),

		AgentsRegistered: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "trustmesh_agents_registered",
				Help: "Number of registered agents",
			},
		),

		DealsCreated: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "trustmesh_deals_created",
				Help: "Number of deals ever created",
			},
		),

		SlashedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "trustmesh_slashed_units_total",
				Help: "Total units slashed from stakes in disputes",
			},
		),

		EscrowedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "trustmesh_escrowed_units_total",
				Help: "Total units ever locked into deal escrow",
			},
		),
	}
}

// RecordOperation records one gateway operation outcome.
func (m *Metrics) RecordOperation(op, result string, seconds float64) {
	m.OperationsTotal.WithLabelValues(op, result).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(seconds)
}

// UpdateEngineState refreshes the engine state gauges.
func (m *Metrics) UpdateEngineState(agents, deals int, vaultHeld uint64) {
	m.AgentsRegistered.Set(float64(agents))
	m.DealsCreated.Set(float64(deals))
	m.VaultHeld.Set(float64(vaultHeld))
}

// WatchBus feeds the economic counters from the event stream until the
// context ends. The counters track escrow and slash flows, which only the
// engine knows; reading them off the bus keeps the engine metrics-free.
func (m *Metrics) WatchBus(ctx context.Context, bus *events.Bus) {
	sub := bus.Subscribe(engine.EventDealCreated, engine.EventSlashed)
	defer bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			amount, ok := event.Data["amount"].(uint64)
			if !ok {
				continue
			}
			switch event.Type {
			case engine.EventDealCreated:
				m.EscrowedTotal.Add(float64(amount))
			case engine.EventSlashed:
				m.SlashedTotal.Add(float64(amount))
			}
		}
	}
}
