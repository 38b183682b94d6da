// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package agentpool defines the agent pool collaborator consumed by the
// routing engine. The pool owns agent lifecycle, registration and health
// probing; the engine only reads snapshots and reports selections back.
package agentpool

import (
	"context"

	"axonflow/router/shared/types"
)

// Pool is the external collaborator interface the routing engine depends on.
// Implementations must be safe for concurrent use. GetAvailableAgents is
// expected to return a consistent snapshot; it is not required to be
// transactionally fresh. IncrementAgentLoad is accumulative, not idempotent.
type Pool interface {
	// GetAvailableAgents returns snapshots of all agents currently
	// accepting traffic.
	GetAvailableAgents(ctx context.Context) ([]types.AgentSnapshot, error)

	// IncrementAgentLoad records that a request was routed to the agent.
	IncrementAgentLoad(agentID string)
}
