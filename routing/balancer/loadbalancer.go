// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package balancer

import (
	"math"

	"axonflow/router/shared/types"
)

// Strategy selects how the load balancer weighs agent load signals.
type Strategy string

const (
	// StrategyResponseTimeFirst ranks purely on observed response time.
	// Chosen for critical-priority requests where latency dominates.
	StrategyResponseTimeFirst Strategy = "response-time-first"

	// StrategyAdaptive blends capacity, performance, health, queue depth
	// and stability. Chosen for high-priority requests and large pools.
	StrategyAdaptive Strategy = "adaptive"

	// StrategyLeastConnections ranks on current load then queue length.
	// The default for everything else.
	StrategyLeastConnections Strategy = "least-connections"
)

// adaptivePoolThreshold is the pool size above which adaptive scoring pays
// for itself even at normal priority.
const adaptivePoolThreshold = 10

// LoadBalancer scores agents on their current load. It keeps a bounded
// rolling response-time history per agent, fed by RecordResponseTime after
// real calls complete. Safe for concurrent use.
type LoadBalancer struct {
	responseTimes *sampleMap
}

// NewLoadBalancer creates a LoadBalancer with empty histories.
func NewLoadBalancer() *LoadBalancer {
	return &LoadBalancer{responseTimes: newSampleMap()}
}

// SelectStrategy picks the scoring strategy for a request.
func (lb *LoadBalancer) SelectStrategy(priority types.Priority, poolSize int) Strategy {
	switch {
	case priority == types.PriorityCritical:
		return StrategyResponseTimeFirst
	case priority == types.PriorityHigh || poolSize > adaptivePoolThreshold:
		return StrategyAdaptive
	default:
		return StrategyLeastConnections
	}
}

// Score rates the agent 0-100 under the given strategy. Higher is better.
func (lb *LoadBalancer) Score(agent *types.AgentSnapshot, strategy Strategy) float64 {
	switch strategy {
	case StrategyResponseTimeFirst:
		return lb.performanceScore(agent)
	case StrategyAdaptive:
		return lb.adaptiveScore(agent)
	default:
		return leastConnectionsScore(agent)
	}
}

// RecordResponseTime feeds an observed response time (milliseconds) into the
// agent's rolling history.
func (lb *LoadBalancer) RecordResponseTime(agentID string, milliseconds float64) {
	if milliseconds < 0 {
		return
	}
	lb.responseTimes.Record(agentID, milliseconds)
}

// ResponseTimeStats exposes the rolling response-time statistics for an agent.
func (lb *LoadBalancer) ResponseTimeStats(agentID string) SeriesStats {
	return lb.responseTimes.Stats(agentID)
}

// adaptiveScore blends five load signals:
// 30% capacity, 25% performance, 20% health, 15% queue, 10% stability.
func (lb *LoadBalancer) adaptiveScore(agent *types.AgentSnapshot) float64 {
	capacity := clampScore((1 - agent.Utilization()) * 100)
	performance := lb.performanceScore(agent)
	health := healthTierScore(agent.Health.Status)
	queue := clampScore(100 - 20*float64(agent.Load.QueueLength))
	stability := clampScore((1 - agent.Health.ErrorRate) * 100)

	return 0.30*capacity + 0.25*performance + 0.20*health + 0.15*queue + 0.10*stability
}

// performanceScore maps observed mean response time to 0-100: instant is
// 100, one second is 50, decaying hyperbolically. Falls back to the pool's
// reported average, then to neutral when nothing is known.
func (lb *LoadBalancer) performanceScore(agent *types.AgentSnapshot) float64 {
	meanMs, ok := lb.responseTimes.Mean(agent.ID)
	if !ok {
		if agent.Load.AverageResponseTime > 0 {
			meanMs = agent.Load.AverageResponseTime
		} else {
			return neutralScore
		}
	}
	return 100 * 1000 / (1000 + meanMs)
}

// leastConnectionsScore orders agents by current load, breaking ties on
// queue length. Strictly decreasing in both so the ordering never inverts.
func leastConnectionsScore(agent *types.AgentSnapshot) float64 {
	load := float64(agent.Load.CurrentLoad)
	queue := float64(agent.Load.QueueLength)
	return 100 / (1 + load + 0.5*queue)
}

func healthTierScore(status types.HealthStatus) float64 {
	switch status {
	case types.HealthStatusHealthy:
		return 100
	case types.HealthStatusDegraded:
		return 70
	default:
		return 30
	}
}

func clampScore(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}
