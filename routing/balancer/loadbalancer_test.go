// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package balancer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"axonflow/router/shared/types"
)

func healthyAgent(id string, currentLoad, queueLength int) types.AgentSnapshot {
	return types.AgentSnapshot{
		ID: id,
		Load: types.LoadMetrics{
			CurrentLoad:    currentLoad,
			MaxConcurrency: 10,
			QueueLength:    queueLength,
		},
		Health: types.HealthInfo{Status: types.HealthStatusHealthy},
	}
}

func TestSelectStrategy(t *testing.T) {
	lb := NewLoadBalancer()

	tests := []struct {
		name     string
		priority types.Priority
		poolSize int
		want     Strategy
	}{
		{"critical always latency-first", types.PriorityCritical, 2, StrategyResponseTimeFirst},
		{"high priority adaptive", types.PriorityHigh, 2, StrategyAdaptive},
		{"large pool adaptive", types.PriorityNormal, 11, StrategyAdaptive},
		{"small pool normal least-connections", types.PriorityNormal, 5, StrategyLeastConnections},
		{"low priority least-connections", types.PriorityLow, 10, StrategyLeastConnections},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lb.SelectStrategy(tt.priority, tt.poolSize))
		})
	}
}

func TestAdaptiveScoreBlend(t *testing.T) {
	lb := NewLoadBalancer()

	agent := healthyAgent("agent-1", 2, 1)
	agent.Load.AverageResponseTime = 500
	agent.Health.ErrorRate = 0.05

	// 0.30*80 (capacity) + 0.25*66.67 (perf) + 0.20*100 (health)
	// + 0.15*80 (queue) + 0.10*95 (stability)
	got := lb.Score(&agent, StrategyAdaptive)
	assert.InDelta(t, 82.1667, got, 0.001)
}

func TestAdaptiveScorePenalizesDegradation(t *testing.T) {
	lb := NewLoadBalancer()

	healthy := healthyAgent("healthy", 1, 0)
	degraded := healthyAgent("degraded", 1, 0)
	degraded.Health.Status = types.HealthStatusDegraded
	degraded.Health.ErrorRate = 0.2

	saturated := healthyAgent("saturated", 10, 6)

	healthyScore := lb.Score(&healthy, StrategyAdaptive)
	assert.Greater(t, healthyScore, lb.Score(&degraded, StrategyAdaptive))
	assert.Greater(t, healthyScore, lb.Score(&saturated, StrategyAdaptive))
}

func TestResponseTimeScoreUsesObservedHistory(t *testing.T) {
	lb := NewLoadBalancer()

	fast := healthyAgent("fast", 0, 0)
	slow := healthyAgent("slow", 0, 0)
	unknown := healthyAgent("unknown", 0, 0)

	for i := 0; i < 10; i++ {
		lb.RecordResponseTime("fast", 200)
		lb.RecordResponseTime("slow", 3000)
	}

	fastScore := lb.Score(&fast, StrategyResponseTimeFirst)
	slowScore := lb.Score(&slow, StrategyResponseTimeFirst)
	assert.Greater(t, fastScore, slowScore)

	// No history and no reported average falls back to neutral.
	assert.Equal(t, neutralScore, lb.Score(&unknown, StrategyResponseTimeFirst))

	// A reported pool average is used before giving up.
	unknown.Load.AverageResponseTime = 1000
	assert.InDelta(t, 50.0, lb.Score(&unknown, StrategyResponseTimeFirst), 0.001)

	// Negative samples are ignored.
	lb.RecordResponseTime("fast", -1)
	assert.Equal(t, 10, lb.responseTimes.Len("fast"))
}

func TestLeastConnectionsOrdering(t *testing.T) {
	lb := NewLoadBalancer()

	idle := healthyAgent("idle", 0, 0)
	busy := healthyAgent("busy", 1, 0)
	queued := healthyAgent("queued", 1, 2)

	idleScore := lb.Score(&idle, StrategyLeastConnections)
	busyScore := lb.Score(&busy, StrategyLeastConnections)
	queuedScore := lb.Score(&queued, StrategyLeastConnections)

	// Load dominates; queue length breaks ties.
	assert.Greater(t, idleScore, busyScore)
	assert.Greater(t, busyScore, queuedScore)
}

func TestRollingHistoryBounds(t *testing.T) {
	lb := NewLoadBalancer()
	for i := 0; i < maxSamples+50; i++ {
		lb.RecordResponseTime("agent-1", float64(i))
	}
	assert.Equal(t, maxSamples, lb.responseTimes.Len("agent-1"))

	// Only the newest samples survive the trim.
	mean, ok := lb.responseTimes.Mean("agent-1")
	assert.True(t, ok)
	assert.Greater(t, mean, 49.0)
}

func TestSeriesStatsTrendAndVolatility(t *testing.T) {
	lb := NewLoadBalancer()

	// Step change from 100ms to 200ms: rising trend, high volatility.
	for i := 0; i < 10; i++ {
		lb.RecordResponseTime("stepped", 100)
	}
	for i := 0; i < 10; i++ {
		lb.RecordResponseTime("stepped", 200)
	}
	stats := lb.ResponseTimeStats("stepped")
	assert.Equal(t, TrendRising, stats.Trend)
	assert.Equal(t, VolatilityHigh, stats.Volatility)
	assert.InDelta(t, 150, stats.Mean, 0.001)

	// Constant series: stable and low.
	for i := 0; i < 20; i++ {
		lb.RecordResponseTime("flat", 100)
	}
	stats = lb.ResponseTimeStats("flat")
	assert.Equal(t, TrendStable, stats.Trend)
	assert.Equal(t, VolatilityLow, stats.Volatility)

	// Unknown agent reports an empty, neutral series.
	stats = lb.ResponseTimeStats("never-seen")
	assert.Zero(t, stats.Samples)
	assert.Equal(t, TrendStable, stats.Trend)
	assert.Equal(t, VolatilityLow, stats.Volatility)
}
