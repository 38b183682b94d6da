// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package agentpool

import (
	"context"
	"sort"
	"sync"

	"axonflow/router/shared/types"
)

// MemoryPool is an in-process Pool implementation. Production deployments
// back the pool with the agent registry service; MemoryPool serves tests,
// local development and single-node installs.
type MemoryPool struct {
	mu     sync.RWMutex
	agents map[string]*types.AgentSnapshot
}

// NewMemoryPool creates an empty MemoryPool.
func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		agents: make(map[string]*types.AgentSnapshot),
	}
}

// Register adds or replaces an agent. Health status is derived from the
// snapshot's error rate when unset.
func (p *MemoryPool) Register(agent types.AgentSnapshot) {
	if agent.Health.Status == "" {
		agent.Health.Status = deriveHealthStatus(agent.Health.ErrorRate)
	}
	if agent.Tier == "" {
		agent.Tier = deriveTier(agent.CostPerToken)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	copy := agent
	p.agents[agent.ID] = &copy
}

// Remove deletes an agent from the pool.
func (p *MemoryPool) Remove(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.agents, agentID)
}

// GetAvailableAgents returns copies of all non-unhealthy agents, ordered by
// ID for deterministic iteration.
func (p *MemoryPool) GetAvailableAgents(ctx context.Context) ([]types.AgentSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshots := make([]types.AgentSnapshot, 0, len(p.agents))
	for _, agent := range p.agents {
		if agent.Health.Status == types.HealthStatusUnhealthy {
			continue
		}
		snapshot := *agent
		snapshot.Capabilities = append([]string(nil), agent.Capabilities...)
		snapshots = append(snapshots, snapshot)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].ID < snapshots[j].ID
	})

	return snapshots, nil
}

// IncrementAgentLoad bumps the in-flight counter for the agent. Unknown
// agent IDs are ignored; the selection already happened and must not fail.
func (p *MemoryPool) IncrementAgentLoad(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if agent, ok := p.agents[agentID]; ok {
		if agent.Load.CurrentLoad < agent.Load.MaxConcurrency || agent.Load.MaxConcurrency <= 0 {
			agent.Load.CurrentLoad++
		} else {
			agent.Load.QueueLength++
		}
	}
}

// ReleaseAgent decrements the in-flight counter once the routed call has
// completed. The counterpart to IncrementAgentLoad.
func (p *MemoryPool) ReleaseAgent(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if agent, ok := p.agents[agentID]; ok {
		if agent.Load.QueueLength > 0 {
			agent.Load.QueueLength--
		} else if agent.Load.CurrentLoad > 0 {
			agent.Load.CurrentLoad--
		}
	}
}

// UpdateHealth records a fresh error rate for the agent and re-derives its
// health status.
func (p *MemoryPool) UpdateHealth(agentID string, errorRate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if agent, ok := p.agents[agentID]; ok {
		agent.Health.ErrorRate = errorRate
		agent.Health.Status = deriveHealthStatus(errorRate)
	}
}

// Size returns the number of registered agents, healthy or not.
func (p *MemoryPool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.agents)
}

func deriveHealthStatus(errorRate float64) types.HealthStatus {
	switch {
	case errorRate >= 0.5:
		return types.HealthStatusUnhealthy
	case errorRate >= 0.1:
		return types.HealthStatusDegraded
	default:
		return types.HealthStatusHealthy
	}
}

// deriveTier buckets agents by blended token price when the registry did not
// supply an explicit tier.
func deriveTier(costPerToken float64) types.AgentTier {
	switch {
	case costPerToken >= 0.00003:
		return types.TierPremium
	case costPerToken >= 0.000005:
		return types.TierStandard
	default:
		return types.TierEconomy
	}
}
