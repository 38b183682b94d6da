// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package routing

import "errors"

// Terminal routing errors. These are the only errors RouteRequest returns;
// every other internal failure is logged and absorbed by a conservative
// default so the pipeline still produces a ranked list.
var (
	// ErrNoAgentsAvailable means the pool returned no agents, failed, or
	// timed out.
	ErrNoAgentsAvailable = errors.New("no agents available")

	// ErrNoCapabilityMatch means no agent supports every required
	// capability.
	ErrNoCapabilityMatch = errors.New("no agent matches the required capabilities")
)
