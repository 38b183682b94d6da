// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package capability filters the agent pool down to agents that support a
// request's required capabilities and scores how well each candidate fits.
// Filtering is a pure function of its inputs: identical inputs always
// produce identical eligible sets.
package capability

import (
	"math"

	"axonflow/router/shared/types"
)

// synonyms maps capability tags that count as full matches for each other.
// The table is symmetric: both directions are listed explicitly so lookups
// stay a single map access.
var synonyms = map[string][]string{
	"text-generation":     {"content-generation"},
	"content-generation":  {"text-generation"},
	"general-query":       {"question-answering", "chat"},
	"question-answering":  {"general-query", "chat"},
	"chat":                {"general-query", "question-answering"},
	"analysis":            {"analysis-request", "analytical-reasoning"},
	"analysis-request":    {"analysis"},
	"code-generation":     {"code-assistance"},
	"code-assistance":     {"code-generation"},
	"image-understanding": {"vision"},
	"vision":              {"image-understanding"},
}

// MatchScore is the capability-fit assessment for one agent.
type MatchScore struct {
	// Score is the capability fit in [0,100].
	Score float64 `json:"score"`

	// Confidence expresses how much the score can be trusted (0.0-1.0).
	Confidence float64 `json:"confidence"`

	// MatchedRequired counts required capabilities the agent supports.
	MatchedRequired int `json:"matched_required"`

	// MatchedPreferred counts preferred capabilities the agent supports.
	MatchedPreferred int `json:"matched_preferred"`
}

// Matcher scores capability fit between requests and agents.
type Matcher struct{}

// NewMatcher creates a Matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// supports reports whether the agent supports the capability directly or via
// the synonym table. Synonym matches count as full matches.
func supports(agent *types.AgentSnapshot, capability string) bool {
	if agent.SupportsCapability(capability) {
		return true
	}
	for _, syn := range synonyms[capability] {
		if agent.SupportsCapability(syn) {
			return true
		}
	}
	return false
}

// FilterByCapabilities returns the agents that support every required
// capability. Partial matches are excluded. The input slices are not
// modified and the result preserves input order.
func (m *Matcher) FilterByCapabilities(agents []types.AgentSnapshot, required []string) []types.AgentSnapshot {
	if len(required) == 0 {
		return append([]types.AgentSnapshot(nil), agents...)
	}

	eligible := make([]types.AgentSnapshot, 0, len(agents))
	for i := range agents {
		agent := &agents[i]
		all := true
		for _, capability := range required {
			if !supports(agent, capability) {
				all = false
				break
			}
		}
		if all {
			eligible = append(eligible, agents[i])
		}
	}
	return eligible
}

// Score rates the capability fit of one agent in [0,100].
//
// Components: +10 per matched required capability, scaled down
// proportionally when any required capability is missing (soft-matching
// call sites pass unfiltered agents); +5 per matched preferred capability;
// +5 for full data-type compatibility, -5 for partial; a tier alignment
// term (+3 exact, +1 adjacent, -2 distant); and small fixed bonuses for
// uptime > 0.99 and accuracy > 0.9.
func (m *Matcher) Score(agent *types.AgentSnapshot, required, preferred []string, complexityTier types.AgentTier) MatchScore {
	matchedRequired := 0
	for _, capability := range required {
		if supports(agent, capability) {
			matchedRequired++
		}
	}

	matchedPreferred := 0
	for _, capability := range preferred {
		if supports(agent, capability) {
			matchedPreferred++
		}
	}

	score := 0.0

	if len(required) > 0 {
		requiredRatio := float64(matchedRequired) / float64(len(required))
		score += 10 * float64(matchedRequired) * requiredRatio
	}

	score += 5 * float64(matchedPreferred)

	if fullDataTypeCompatibility(agent, required) {
		score += 5
	} else {
		score -= 5
	}

	distance := tierDistance(agent.Tier, complexityTier)
	switch distance {
	case 0:
		score += 3
	case 1:
		score += 1
	default:
		score -= 2
	}

	if agent.Uptime > 0.99 {
		score += 2
	}
	if agent.Accuracy > 0.9 {
		score += 2
	}

	score = math.Max(0, math.Min(100, score))

	return MatchScore{
		Score:            score,
		Confidence:       m.confidence(agent, required, matchedRequired, matchedPreferred, score),
		MatchedRequired:  matchedRequired,
		MatchedPreferred: matchedPreferred,
	}
}

// confidence blends the required-match ratio (40%), matched-capability
// density relative to the agent's total capabilities (30%), agent uptime
// (20%) and score magnitude (10%).
func (m *Matcher) confidence(agent *types.AgentSnapshot, required []string, matchedRequired, matchedPreferred int, score float64) float64 {
	requiredRatio := 1.0
	if len(required) > 0 {
		requiredRatio = float64(matchedRequired) / float64(len(required))
	}

	density := 0.0
	if len(agent.Capabilities) > 0 {
		density = float64(matchedRequired+matchedPreferred) / float64(len(agent.Capabilities))
		density = math.Min(1, density)
	}

	confidence := 0.4*requiredRatio + 0.3*density + 0.2*agent.Uptime + 0.1*(score/100)
	return math.Max(0, math.Min(1, confidence))
}

// fullDataTypeCompatibility checks whether the agent handles every data
// type the request implies. Today the only non-text data type is images,
// implied by image-understanding requests.
func fullDataTypeCompatibility(agent *types.AgentSnapshot, required []string) bool {
	needsImages := false
	for _, capability := range required {
		if capability == "image-understanding" || capability == "vision" {
			needsImages = true
			break
		}
	}
	if !needsImages {
		return true
	}
	return supports(agent, "image-understanding")
}

func tierDistance(a, b types.AgentTier) int {
	d := a.Ordinal() - b.Ordinal()
	if d < 0 {
		d = -d
	}
	return d
}
