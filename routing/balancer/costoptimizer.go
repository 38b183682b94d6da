// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package balancer

import (
	"math"

	"axonflow/router/shared/types"
)

// costTier maps a per-token price ceiling to a base cost score.
type costTier struct {
	maxCostPerToken float64
	score           float64
}

// costTiers is the fixed price ladder from ultra-cheap open-source serving
// up to frontier commercial pricing. First matching ceiling wins.
var costTiers = []costTier{
	{0.0000005, 95}, // ultra-cheap
	{0.000001, 85},  // very cheap
	{0.000005, 72},  // cheap
	{0.00001, 60},   // moderate
	{0.00003, 45},   // expensive
	{0.0001, 30},    // very expensive
}

// extremelyExpensiveScore is the floor for prices beyond the last tier.
const extremelyExpensiveScore = 15.0

// CostOptimizer scores agents on cost efficiency. It keeps a bounded rolling
// history of observed per-request costs per agent for trend and volatility
// analysis. Safe for concurrent use.
type CostOptimizer struct {
	costs *sampleMap
}

// NewCostOptimizer creates a CostOptimizer with empty histories.
func NewCostOptimizer() *CostOptimizer {
	return &CostOptimizer{costs: newSampleMap()}
}

// Score rates the agent's cost efficiency 0-100. Returns 0 outright when a
// request budget is supplied and the estimated cost exceeds it, and a
// neutral 50 when the agent carries no pricing information.
func (co *CostOptimizer) Score(agent *types.AgentSnapshot, estimatedTokens int, maxCost float64) float64 {
	if agent.CostPerToken <= 0 {
		return neutralScore
	}

	estimatedCost := agent.CostPerToken * float64(estimatedTokens)
	if maxCost > 0 && estimatedCost > maxCost {
		return 0
	}

	score := tierScore(agent.CostPerToken)
	score += co.efficiencyBonus(agent)
	score += co.volumeBonus(agent.ID)
	score += co.loyaltyBonus(agent.ID)

	return math.Min(100, score)
}

// RecordCost feeds an observed per-request cost into the agent's history.
func (co *CostOptimizer) RecordCost(agentID string, cost float64) {
	if cost < 0 {
		return
	}
	co.costs.Record(agentID, cost)
}

// CostStats exposes the rolling cost statistics for an agent.
func (co *CostOptimizer) CostStats(agentID string) SeriesStats {
	return co.costs.Stats(agentID)
}

func tierScore(costPerToken float64) float64 {
	for _, tier := range costTiers {
		if costPerToken <= tier.maxCostPerToken {
			return tier.score
		}
	}
	return extremelyExpensiveScore
}

// efficiencyBonus rewards quality per dollar: accurate agents justify their
// price.
func (co *CostOptimizer) efficiencyBonus(agent *types.AgentSnapshot) float64 {
	switch {
	case agent.Accuracy >= 0.9:
		return 8
	case agent.Accuracy >= 0.8:
		return 4
	default:
		return 0
	}
}

// volumeBonus rewards agents with a well-characterized cost history; a large
// sample means the tier placement is trustworthy.
func (co *CostOptimizer) volumeBonus(agentID string) float64 {
	switch n := co.costs.Len(agentID); {
	case n >= 50:
		return 5
	case n >= 20:
		return 3
	default:
		return 0
	}
}

// loyaltyBonus rewards agents whose observed costs are stable or falling;
// erratic pricing earns nothing.
func (co *CostOptimizer) loyaltyBonus(agentID string) float64 {
	stats := co.costs.Stats(agentID)
	if stats.Samples < 10 {
		return 0
	}
	if stats.Trend == TrendFalling {
		return 4
	}
	if stats.Trend == TrendStable && stats.Volatility == VolatilityLow {
		return 3
	}
	return 0
}
