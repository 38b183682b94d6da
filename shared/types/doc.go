// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package types provides the shared data model of the AxonFlow routing
service.

# Overview

This package contains the types exchanged between the routing engine, its
scoring subsystems and the HTTP service layer. It provides a single source
of truth for the structures that cross package boundaries:

  - AgentSnapshot: a point-in-time view of one agent in the pool, with its
    capabilities, pricing, load and health
  - RequestContext: the analyzed prompt (intent, complexity, required
    capabilities, urgency)
  - RoutingRequest / RoutingResponse: the routing operation's wire types
  - CostPrediction and the cost analysis types (budget, risk, history)
  - RoutingOutcome: post-execution feedback fed back into the engine

# Usage

Inspect an agent snapshot:

	if agent.SupportsCapability("code-generation") && agent.Utilization() < 0.8 {
	    // candidate
	}

Map a complexity score onto a pricing tier:

	tier := reqContext.ComplexityTier() // economy, standard or premium

# Thread Safety

All types in this package are value types and are safe for concurrent use.
*/
package types
