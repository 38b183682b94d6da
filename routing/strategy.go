// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package routing

import (
	"fmt"
	"hash/fnv"
	"sync"

	"axonflow/router/routing/capability"
	"axonflow/router/shared/types"
)

// ScoreInput carries the per-candidate signals a scoring strategy blends.
type ScoreInput struct {
	Agent      *types.AgentSnapshot
	Context    *types.RequestContext
	Capability capability.MatchScore
	CostScore  float64
	LoadScore  float64
}

// ScoringStrategy turns per-candidate signals into one composite score in
// [0,100] plus the reasons that dominated it. Implementations must be safe
// for concurrent use.
type ScoringStrategy interface {
	Name() string
	Score(in ScoreInput) (float64, []string)
}

// Weights controls how a strategy blends the component scores. The three
// weights should sum to 1.
type Weights struct {
	Capability float64 `json:"capability"`
	Cost       float64 `json:"cost"`
	Load       float64 `json:"load"`
}

// DefaultWeights is the standard blend: capability fit dominates, cost and
// load split the rest.
var DefaultWeights = Weights{Capability: 0.40, Cost: 0.30, Load: 0.30}

// StandardStrategy is the deterministic weighted blend of capability, cost
// and load scores.
type StandardStrategy struct {
	Weights Weights
}

// NewStandardStrategy creates a StandardStrategy with the default weights.
func NewStandardStrategy() *StandardStrategy {
	return &StandardStrategy{Weights: DefaultWeights}
}

// Name identifies the strategy in responses and experiment configs.
func (s *StandardStrategy) Name() string { return "standard" }

// Score blends the component scores by weight.
func (s *StandardStrategy) Score(in ScoreInput) (float64, []string) {
	total := s.Weights.Capability*in.Capability.Score +
		s.Weights.Cost*in.CostScore +
		s.Weights.Load*in.LoadScore
	return total, scoreReasons(in, nil)
}

// mlMinObservations is the outcome count below which the ML component stays
// neutral.
const mlMinObservations = 5

// ewAlpha is the exponential-weighting factor for outcome statistics.
const ewAlpha = 0.1

const statsShardCount = 16

// agentOutcomeStats tracks exponentially-weighted outcome averages for one
// agent.
type agentOutcomeStats struct {
	quality      float64
	successRate  float64
	observations int
}

type statsShard struct {
	mu    sync.RWMutex
	stats map[string]*agentOutcomeStats
}

// MLAssistedStrategy augments the standard blend with online per-agent
// outcome statistics fed by TrainWithOutcome. No model inference happens;
// the "ML" component is a pair of exponentially-weighted moving averages
// over observed quality and success.
type MLAssistedStrategy struct {
	Weights Weights

	// MLWeight is the share of the final score taken by the outcome
	// component; the standard blend takes the rest.
	MLWeight float64

	shards [statsShardCount]*statsShard
}

// NewMLAssistedStrategy creates an MLAssistedStrategy with default weights
// and a 25% outcome share.
func NewMLAssistedStrategy() *MLAssistedStrategy {
	s := &MLAssistedStrategy{Weights: DefaultWeights, MLWeight: 0.25}
	for i := range s.shards {
		s.shards[i] = &statsShard{stats: make(map[string]*agentOutcomeStats)}
	}
	return s
}

// Name identifies the strategy in responses and experiment configs.
func (s *MLAssistedStrategy) Name() string { return "ml-assisted" }

func (s *MLAssistedStrategy) shard(agentID string) *statsShard {
	h := fnv.New32a()
	h.Write([]byte(agentID))
	return s.shards[h.Sum32()%statsShardCount]
}

// Score blends the standard score with the agent's observed outcome score.
func (s *MLAssistedStrategy) Score(in ScoreInput) (float64, []string) {
	standard := s.Weights.Capability*in.Capability.Score +
		s.Weights.Cost*in.CostScore +
		s.Weights.Load*in.LoadScore

	mlScore, confident := s.outcomeScore(in.Agent.ID)
	total := (1-s.MLWeight)*standard + s.MLWeight*mlScore

	var mlReasons []string
	if confident {
		mlReasons = append(mlReasons, fmt.Sprintf("observed outcome score %.0f", mlScore))
	}
	return total, scoreReasons(in, mlReasons)
}

// outcomeScore maps the agent's outcome statistics to 0-100. Agents with
// too few observations score a neutral 50.
func (s *MLAssistedStrategy) outcomeScore(agentID string) (float64, bool) {
	shard := s.shard(agentID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	stats, ok := shard.stats[agentID]
	if !ok || stats.observations < mlMinObservations {
		return 50, false
	}
	return (0.7*stats.quality + 0.3*stats.successRate) * 100, true
}

// Train feeds one observed outcome into the agent's statistics.
func (s *MLAssistedStrategy) Train(agentID string, outcome types.RoutingOutcome) {
	shard := s.shard(agentID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	stats, ok := shard.stats[agentID]
	if !ok {
		stats = &agentOutcomeStats{quality: 0.5, successRate: 0.5}
		shard.stats[agentID] = stats
	}

	success := 0.0
	if outcome.Success {
		success = 1.0
	}
	quality := outcome.Quality
	if quality < 0 {
		quality = 0
	} else if quality > 1 {
		quality = 1
	}

	stats.quality = ewAlpha*quality + (1-ewAlpha)*stats.quality
	stats.successRate = ewAlpha*success + (1-ewAlpha)*stats.successRate
	stats.observations++
}

// Observations returns the outcome count recorded for an agent.
func (s *MLAssistedStrategy) Observations(agentID string) int {
	shard := s.shard(agentID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	if stats, ok := shard.stats[agentID]; ok {
		return stats.observations
	}
	return 0
}

// scoreReasons names the signals that dominated a candidate's score.
func scoreReasons(in ScoreInput, extra []string) []string {
	var reasons []string

	switch {
	case in.Capability.Score >= 30:
		reasons = append(reasons, fmt.Sprintf("strong capability match (%.0f, confidence %.2f)",
			in.Capability.Score, in.Capability.Confidence))
	case in.Capability.Score >= 15:
		reasons = append(reasons, fmt.Sprintf("adequate capability match (%.0f)", in.Capability.Score))
	}
	if in.CostScore >= 70 {
		reasons = append(reasons, "competitive cost")
	} else if in.CostScore <= 30 {
		reasons = append(reasons, "expensive for this request")
	}
	if in.LoadScore >= 70 {
		reasons = append(reasons, "low current load")
	} else if in.LoadScore <= 30 {
		reasons = append(reasons, "heavily loaded")
	}

	return append(reasons, extra...)
}
