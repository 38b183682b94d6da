// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package types provides shared type definitions used across the routing
// engine components. This file defines the read-only agent snapshot consumed
// by the routing pipeline.
package types

// HealthStatus represents the health state of an agent.
type HealthStatus string

const (
	// HealthStatusHealthy indicates the agent is fully operational.
	HealthStatusHealthy HealthStatus = "healthy"

	// HealthStatusDegraded indicates the agent is working but with issues.
	HealthStatusDegraded HealthStatus = "degraded"

	// HealthStatusUnhealthy indicates the agent is not operational.
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// AgentTier represents the modeled capability tier of an agent.
type AgentTier string

const (
	// TierEconomy covers small, cheap models suited to simple requests.
	TierEconomy AgentTier = "economy"

	// TierStandard covers mid-range models for everyday workloads.
	TierStandard AgentTier = "standard"

	// TierPremium covers frontier models for complex reasoning.
	TierPremium AgentTier = "premium"
)

// Ordinal returns the tier as an integer for distance comparisons.
// Unknown tiers map to standard.
func (t AgentTier) Ordinal() int {
	switch t {
	case TierEconomy:
		return 1
	case TierPremium:
		return 3
	default:
		return 2
	}
}

// LoadMetrics describes the current load on an agent.
type LoadMetrics struct {
	// CurrentLoad is the number of in-flight requests.
	CurrentLoad int `json:"current_load"`

	// MaxConcurrency is the maximum number of concurrent requests the
	// agent accepts before queueing.
	MaxConcurrency int `json:"max_concurrency"`

	// QueueLength is the number of requests waiting for a slot.
	QueueLength int `json:"queue_length"`

	// AverageResponseTime is the trailing average response time in milliseconds.
	AverageResponseTime float64 `json:"average_response_time_ms"`

	// RequestsPerMinute is the recent request throughput.
	RequestsPerMinute float64 `json:"requests_per_minute"`
}

// HealthInfo describes the health state of an agent.
type HealthInfo struct {
	// Status is the derived health status.
	Status HealthStatus `json:"status"`

	// ErrorRate is the fraction of recent requests that failed (0.0-1.0).
	ErrorRate float64 `json:"error_rate"`
}

// AgentSnapshot is a point-in-time, read-only view of a routable agent as
// reported by the agent pool. The routing engine never mutates a snapshot;
// the only side effect it performs against the pool is an increment-load
// call after selection.
type AgentSnapshot struct {
	// ID uniquely identifies the agent instance.
	ID string `json:"id"`

	// Provider is the upstream provider name (e.g. "openai", "anthropic").
	Provider string `json:"provider"`

	// Model is the concrete model identifier (e.g. "gpt-4").
	Model string `json:"model"`

	// Capabilities lists the skill tags the agent claims to support.
	Capabilities []string `json:"capabilities"`

	// CostPerToken is the blended per-token price in USD.
	CostPerToken float64 `json:"cost_per_token"`

	// Tier is the modeled capability tier used for complexity alignment.
	Tier AgentTier `json:"tier"`

	// Uptime is the trailing availability ratio (0.0-1.0).
	Uptime float64 `json:"uptime"`

	// Accuracy is the trailing task-accuracy ratio (0.0-1.0).
	Accuracy float64 `json:"accuracy"`

	// Load describes the agent's current load.
	Load LoadMetrics `json:"load"`

	// Health describes the agent's current health.
	Health HealthInfo `json:"health"`
}

// SupportsCapability reports whether the snapshot lists the given capability.
func (a *AgentSnapshot) SupportsCapability(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Utilization returns the load ratio of the agent (0.0 when capacity is unknown).
func (a *AgentSnapshot) Utilization() float64 {
	if a.Load.MaxConcurrency <= 0 {
		return 0
	}
	return float64(a.Load.CurrentLoad) / float64(a.Load.MaxConcurrency)
}
