// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/router/shared/types"
)

func agent(id string, tier types.AgentTier, capabilities ...string) types.AgentSnapshot {
	return types.AgentSnapshot{
		ID:           id,
		Provider:     "test",
		Model:        id,
		Capabilities: capabilities,
		Tier:         tier,
		Uptime:       0.995,
		Accuracy:     0.95,
	}
}

func TestFilterByCapabilitiesRequiresAll(t *testing.T) {
	m := NewMatcher()
	pool := []types.AgentSnapshot{
		agent("gpt-4", types.TierPremium, "text-generation", "code-generation", "reasoning"),
		agent("llama2-7b", types.TierEconomy, "text-generation", "general-query"),
	}

	eligible := m.FilterByCapabilities(pool, []string{"code-generation"})
	require.Len(t, eligible, 1)
	assert.Equal(t, "gpt-4", eligible[0].ID)

	// Partial matches are excluded outright.
	eligible = m.FilterByCapabilities(pool, []string{"text-generation", "code-generation"})
	require.Len(t, eligible, 1)
	assert.Equal(t, "gpt-4", eligible[0].ID)
}

func TestFilterByCapabilitiesSynonyms(t *testing.T) {
	m := NewMatcher()
	pool := []types.AgentSnapshot{
		agent("writer", types.TierStandard, "content-generation"),
	}

	// text-generation ~ content-generation counts as a full match.
	eligible := m.FilterByCapabilities(pool, []string{"text-generation"})
	require.Len(t, eligible, 1)
}

func TestFilterByCapabilitiesIsPure(t *testing.T) {
	m := NewMatcher()
	pool := []types.AgentSnapshot{
		agent("a", types.TierStandard, "text-generation"),
		agent("b", types.TierStandard, "code-generation"),
		agent("c", types.TierStandard, "text-generation", "code-generation"),
	}
	required := []string{"text-generation"}

	first := m.FilterByCapabilities(pool, required)
	second := m.FilterByCapabilities(pool, required)

	assert.Equal(t, first, second)
	// The input slice order is preserved.
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].ID)
	assert.Equal(t, "c", first[1].ID)
}

func TestFilterByCapabilitiesEmptyRequired(t *testing.T) {
	m := NewMatcher()
	pool := []types.AgentSnapshot{
		agent("a", types.TierStandard, "text-generation"),
	}

	eligible := m.FilterByCapabilities(pool, nil)
	assert.Len(t, eligible, 1)
}

func TestScoreComponents(t *testing.T) {
	m := NewMatcher()

	full := agent("full", types.TierPremium, "text-generation", "code-generation", "reasoning")
	partial := agent("partial", types.TierPremium, "text-generation")

	fullScore := m.Score(&full, []string{"text-generation", "code-generation"}, []string{"reasoning"}, types.TierPremium)
	partialScore := m.Score(&partial, []string{"text-generation", "code-generation"}, nil, types.TierPremium)

	// Full match: 10*2 + 5 preferred + 5 data types + 3 tier + 2 + 2 = 37.
	assert.InDelta(t, 37.0, fullScore.Score, 0.001)
	assert.Equal(t, 2, fullScore.MatchedRequired)
	assert.Equal(t, 1, fullScore.MatchedPreferred)

	// Missing required capabilities scale the match reward down: 10*1*(1/2) = 5.
	assert.Less(t, partialScore.Score, fullScore.Score)
	assert.Equal(t, 1, partialScore.MatchedRequired)
}

func TestScoreTierAlignment(t *testing.T) {
	m := NewMatcher()
	required := []string{"text-generation"}

	exact := agent("exact", types.TierStandard, "text-generation")
	adjacent := agent("adjacent", types.TierPremium, "text-generation")
	distant := agent("distant", types.TierPremium, "text-generation")

	exactScore := m.Score(&exact, required, nil, types.TierStandard)
	adjacentScore := m.Score(&adjacent, required, nil, types.TierStandard)
	distantScore := m.Score(&distant, required, nil, types.TierEconomy)

	assert.Greater(t, exactScore.Score, adjacentScore.Score)
	assert.Greater(t, adjacentScore.Score, distantScore.Score)
}

func TestScoreDataTypePenalty(t *testing.T) {
	m := NewMatcher()
	required := []string{"image-understanding", "text-generation"}

	multimodal := agent("multimodal", types.TierPremium, "text-generation", "vision")
	textOnly := agent("text-only", types.TierPremium, "text-generation")

	withImages := m.Score(&multimodal, required, nil, types.TierPremium)
	withoutImages := m.Score(&textOnly, required, nil, types.TierPremium)

	assert.Greater(t, withImages.Score, withoutImages.Score)
}

func TestScoreConfidenceBlend(t *testing.T) {
	m := NewMatcher()

	a := agent("a", types.TierStandard, "text-generation", "code-generation")
	score := m.Score(&a, []string{"text-generation"}, nil, types.TierStandard)

	// requiredRatio 1.0, density 0.5, uptime 0.995, score magnitude small.
	assert.Greater(t, score.Confidence, 0.7)
	assert.LessOrEqual(t, score.Confidence, 1.0)

	// An agent matching nothing should be low confidence.
	unrelated := agent("unrelated", types.TierEconomy, "translation")
	low := m.Score(&unrelated, []string{"code-generation"}, nil, types.TierPremium)
	assert.Less(t, low.Confidence, score.Confidence)
}

func TestScoreBounds(t *testing.T) {
	m := NewMatcher()

	// Many required matches must still cap at 100.
	caps := []string{
		"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l",
	}
	super := agent("super", types.TierStandard, caps...)
	score := m.Score(&super, caps, nil, types.TierStandard)
	assert.LessOrEqual(t, score.Score, 100.0)

	// A hopeless candidate floors at 0, never negative.
	empty := agent("empty", types.TierPremium)
	empty.Uptime = 0.5
	empty.Accuracy = 0.5
	floor := m.Score(&empty, []string{"image-understanding"}, nil, types.TierEconomy)
	assert.GreaterOrEqual(t, floor.Score, 0.0)
}
