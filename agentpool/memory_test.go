// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package agentpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/router/shared/types"
)

func testAgent(id string, errorRate float64) types.AgentSnapshot {
	return types.AgentSnapshot{
		ID:           id,
		Provider:     "openai",
		Model:        "gpt-4",
		Capabilities: []string{"text-generation", "code-generation"},
		CostPerToken: 0.00003,
		Uptime:       0.999,
		Load:         types.LoadMetrics{MaxConcurrency: 10},
		Health:       types.HealthInfo{ErrorRate: errorRate},
	}
}

func TestMemoryPoolRegisterAndGet(t *testing.T) {
	pool := NewMemoryPool()
	pool.Register(testAgent("agent-b", 0.0))
	pool.Register(testAgent("agent-a", 0.0))

	agents, err := pool.GetAvailableAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)

	// Deterministic ordering by ID.
	assert.Equal(t, "agent-a", agents[0].ID)
	assert.Equal(t, "agent-b", agents[1].ID)

	// Health and tier are derived on registration.
	assert.Equal(t, types.HealthStatusHealthy, agents[0].Health.Status)
	assert.Equal(t, types.TierPremium, agents[0].Tier)
}

func TestMemoryPoolExcludesUnhealthy(t *testing.T) {
	pool := NewMemoryPool()
	pool.Register(testAgent("healthy", 0.01))
	pool.Register(testAgent("failing", 0.75))

	agents, err := pool.GetAvailableAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "healthy", agents[0].ID)
	assert.Equal(t, 2, pool.Size())
}

func TestMemoryPoolSnapshotIsolation(t *testing.T) {
	pool := NewMemoryPool()
	pool.Register(testAgent("agent-a", 0.0))

	agents, err := pool.GetAvailableAgents(context.Background())
	require.NoError(t, err)

	// Mutating the returned snapshot must not leak into the pool.
	agents[0].Load.CurrentLoad = 99
	agents[0].Capabilities[0] = "mutated"

	fresh, err := pool.GetAvailableAgents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, fresh[0].Load.CurrentLoad)
	assert.Equal(t, "text-generation", fresh[0].Capabilities[0])
}

func TestMemoryPoolLoadAccounting(t *testing.T) {
	pool := NewMemoryPool()
	agent := testAgent("agent-a", 0.0)
	agent.Load.MaxConcurrency = 2
	pool.Register(agent)

	// Increment is accumulative, overflow goes to the queue.
	pool.IncrementAgentLoad("agent-a")
	pool.IncrementAgentLoad("agent-a")
	pool.IncrementAgentLoad("agent-a")

	agents, err := pool.GetAvailableAgents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, agents[0].Load.CurrentLoad)
	assert.Equal(t, 1, agents[0].Load.QueueLength)

	pool.ReleaseAgent("agent-a")
	pool.ReleaseAgent("agent-a")

	agents, err = pool.GetAvailableAgents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, agents[0].Load.CurrentLoad)
	assert.Equal(t, 0, agents[0].Load.QueueLength)

	// Unknown IDs are ignored.
	pool.IncrementAgentLoad("missing")
}

func TestMemoryPoolCancelledContext(t *testing.T) {
	pool := NewMemoryPool()
	pool.Register(testAgent("agent-a", 0.0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.GetAvailableAgents(ctx)
	assert.Error(t, err)
}

func TestMemoryPoolUpdateHealth(t *testing.T) {
	pool := NewMemoryPool()
	pool.Register(testAgent("agent-a", 0.0))

	pool.UpdateHealth("agent-a", 0.2)

	agents, err := pool.GetAvailableAgents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.HealthStatusDegraded, agents[0].Health.Status)
}
