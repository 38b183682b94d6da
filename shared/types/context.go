// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package types

// Priority represents the urgency of a routing request. It doubles as the
// urgency classification produced by context analysis.
type Priority string

const (
	// PriorityLow is for deferrable, cost-sensitive requests.
	PriorityLow Priority = "low"

	// PriorityNormal is the default priority.
	PriorityNormal Priority = "normal"

	// PriorityHigh is for latency-sensitive requests.
	PriorityHigh Priority = "high"

	// PriorityCritical is for requests that must preempt others.
	PriorityCritical Priority = "critical"
)

// IsValid returns true if the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Multiplier returns the fixed cost multiplier applied for this priority.
func (p Priority) Multiplier() float64 {
	switch p {
	case PriorityLow:
		return 0.8
	case PriorityHigh:
		return 1.3
	case PriorityCritical:
		return 1.8
	default:
		return 1.0
	}
}

// Intent captures the classified intent of a prompt.
type Intent struct {
	// Primary is the highest-confidence intent (e.g. "code-assistance").
	Primary string `json:"primary"`

	// Secondary lists runner-up intents in descending confidence order.
	Secondary []string `json:"secondary,omitempty"`

	// Confidence is the classifier confidence for the primary intent (0.0-1.0).
	Confidence float64 `json:"confidence"`

	// Reasoning explains which patterns drove the classification.
	Reasoning string `json:"reasoning,omitempty"`
}

// Complexity scores a prompt on 0-100 scales.
type Complexity struct {
	// Overall is the weighted blend of the sub-scores.
	Overall float64 `json:"overall"`

	// Linguistic scores sentence length, technical-term density and input length.
	Linguistic float64 `json:"linguistic"`

	// Computational scores compute/data/algorithm/multi-step indicators.
	Computational float64 `json:"computational"`

	// Reasoning scores why/how/compare/logic indicators.
	Reasoning float64 `json:"reasoning"`

	// Factors names the signals that contributed to the scores.
	Factors []string `json:"factors,omitempty"`
}

// ContextPatterns captures structural properties of the conversation.
type ContextPatterns struct {
	IsFollowUp           bool     `json:"is_follow_up"`
	HasPersonalContext   bool     `json:"has_personal_context"`
	RequiresExternalData bool     `json:"requires_external_data"`
	IsCreativeTask       bool     `json:"is_creative_task"`
	IsAnalyticalTask     bool     `json:"is_analytical_task"`
	HasPreviousContext   bool     `json:"has_previous_context"`
	Patterns             []string `json:"patterns,omitempty"`
}

// ContextMetadata carries token and presentation estimates for a prompt.
type ContextMetadata struct {
	// EstimatedTokens is the estimated input token count (words * 1.3).
	EstimatedTokens int `json:"estimated_tokens"`

	// ExpectedResponseLength is the estimated response token count.
	ExpectedResponseLength int `json:"expected_response_length"`

	// Language is the detected prompt language (BCP 47 tag, "en" default).
	Language string `json:"language"`

	// TopicTags lists detected topic keywords.
	TopicTags []string `json:"topic_tags,omitempty"`

	// Sentiment is "positive", "negative" or "neutral".
	Sentiment string `json:"sentiment"`

	// Formality is "formal", "informal" or "neutral".
	Formality string `json:"formality"`

	// TechnicalLevel is "basic", "intermediate" or "advanced".
	TechnicalLevel string `json:"technical_level"`
}

// RequestContext is the structured analysis of a raw prompt. It is created
// fresh per request, immutable after analysis, and never persisted beyond the
// request's lifetime.
type RequestContext struct {
	Intent       Intent          `json:"intent"`
	Complexity   Complexity      `json:"complexity"`
	Capabilities []string        `json:"capabilities"`
	Domain       string          `json:"domain"`
	Urgency      Priority        `json:"urgency"`
	Patterns     ContextPatterns `json:"patterns"`
	Metadata     ContextMetadata `json:"metadata"`
}

// ComplexityTier maps the overall complexity score onto an agent tier so the
// capability matcher can reward tier alignment.
func (c *RequestContext) ComplexityTier() AgentTier {
	switch {
	case c.Complexity.Overall >= 70:
		return TierPremium
	case c.Complexity.Overall >= 40:
		return TierStandard
	default:
		return TierEconomy
	}
}
