// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"axonflow/router/shared/types"
)

// Metrics is the Prometheus instrumentation for the routing service. It
// doubles as the engine's Observer so every decision, degradation and
// failure is counted without the engine knowing about Prometheus.
type Metrics struct {
	decisions      *prometheus.CounterVec
	failures       *prometheus.CounterVec
	degradations   *prometheus.CounterVec
	routingLatency prometheus.Histogram
	selectedAgent  *prometheus.CounterVec
}

// NewMetrics creates and registers the service metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_decisions_total",
			Help: "Routing decisions made, by scoring strategy.",
		}, []string{"strategy"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_failures_total",
			Help: "Requests that terminated with no agent, by reason.",
		}, []string{"reason"}),
		degradations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_scorer_degradations_total",
			Help: "Pipeline stages that failed and fell back to defaults.",
		}, []string{"stage"}),
		routingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_decision_latency_seconds",
			Help:    "End-to-end routing pipeline latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		selectedAgent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_selected_agent_total",
			Help: "Selections per agent.",
		}, []string{"agent", "provider", "model"}),
	}

	reg.MustRegister(m.decisions, m.failures, m.degradations, m.routingLatency, m.selectedAgent)
	return m
}

// DecisionMade implements routing.Observer.
func (m *Metrics) DecisionMade(response *types.RoutingResponse) {
	m.decisions.WithLabelValues(response.Strategy).Inc()
	m.routingLatency.Observe(float64(response.LatencyMs) / 1000)
	m.selectedAgent.WithLabelValues(
		response.Selected.Agent.ID,
		response.Selected.Agent.Provider,
		response.Selected.Agent.Model,
	).Inc()
}

// ScorerDegraded implements routing.Observer.
func (m *Metrics) ScorerDegraded(stage string, err error) {
	m.degradations.WithLabelValues(stage).Inc()
}

// RoutingFailed implements routing.Observer.
func (m *Metrics) RoutingFailed(reason string) {
	m.failures.WithLabelValues(reason).Inc()
}
