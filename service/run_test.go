// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/router/agentpool"
)

func TestSeedAgents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: gpt-4
  provider: openai
  model: gpt-4
  capabilities: [code-generation, text-generation, general-query]
  cost_per_token: 0.000045
  max_concurrency: 10
  uptime: 0.999
  accuracy: 0.95
- id: llama-1
  provider: meta
  model: llama2-7b
  capabilities: [text-generation, general-query]
  cost_per_token: 0.0000002
  max_concurrency: 20
  uptime: 0.99
  accuracy: 0.85
`), 0o644))

	pool := agentpool.NewMemoryPool()
	count, err := seedAgents(pool, path)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	agents, err := pool.GetAvailableAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "gpt-4", agents[0].ID)
	assert.Equal(t, 10, agents[0].Load.MaxConcurrency)
}

func TestSeedAgentsRejectsIncompleteEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: nameless
  provider: openai
`), 0o644))

	pool := agentpool.NewMemoryPool()
	_, err := seedAgents(pool, path)
	assert.Error(t, err)
}

func TestSeedAgentsMissingFile(t *testing.T) {
	pool := agentpool.NewMemoryPool()
	_, err := seedAgents(pool, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
