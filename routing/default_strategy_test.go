// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package routing

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/router/agentpool"
	"axonflow/router/shared/logger"
	"axonflow/router/shared/types"
)

func TestWithDefaultStrategy(t *testing.T) {
	tests := []struct {
		name         string
		configured   string
		wantStrategy string
	}{
		{name: "ml-assisted", configured: "ml-assisted", wantStrategy: "ml-assisted"},
		{name: "standard", configured: "standard", wantStrategy: "standard"},
		{name: "unknown falls back to standard", configured: "bogus", wantStrategy: "standard"},
		{name: "empty falls back to standard", configured: "", wantStrategy: "standard"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pool := agentpool.NewMemoryPool()
			pool.Register(types.AgentSnapshot{
				ID:           "llama-1",
				Provider:     "meta",
				Model:        "llama2-7b",
				Capabilities: []string{"text-generation", "general-query"},
				CostPerToken: 0.0000002,
				Uptime:       0.99,
				Accuracy:     0.85,
				Load:         types.LoadMetrics{MaxConcurrency: 20},
				Health:       types.HealthInfo{Status: types.HealthStatusHealthy},
			})

			engine := NewEngine(pool,
				WithDefaultStrategy(tc.configured),
				WithLogger(logger.NewWithWriter("test", io.Discard)),
			)

			resp, err := engine.RouteRequest(context.Background(), types.RoutingRequest{
				UserID: "user-1",
				Prompt: "Tell me about the weather",
			})
			require.NoError(t, err)
			assert.Equal(t, tc.wantStrategy, resp.Strategy)
		})
	}
}
