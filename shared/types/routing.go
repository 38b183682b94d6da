// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package types

import "time"

// RoutingRequest is the engine's inbound request. Budget figures come from
// the billing collaborator and are passed through as plain parameters; the
// engine never calls billing directly.
type RoutingRequest struct {
	// RequestID identifies the request. Assigned by the engine when empty.
	RequestID string `json:"request_id,omitempty"`

	// UserID identifies the requesting user. Used for experiment assignment
	// and volume discounts. Optional.
	UserID string `json:"user_id,omitempty"`

	// Prompt is the raw prompt text to analyze and route.
	Prompt string `json:"prompt"`

	// Priority overrides the analyzer's urgency classification when set.
	Priority Priority `json:"priority,omitempty"`

	// MaxCost is the per-request budget ceiling in USD. Zero means unlimited.
	MaxCost float64 `json:"max_cost,omitempty"`

	// MonthlyBudget is the user's monthly budget in USD, used only for
	// budget analysis in cost predictions. Zero means unknown.
	MonthlyBudget float64 `json:"monthly_budget,omitempty"`

	// PreferredCapabilities are soft capability preferences that add to
	// match scores without filtering agents out.
	PreferredCapabilities []string `json:"preferred_capabilities,omitempty"`

	// PreviousContext is the context of the prior turn, if any.
	PreviousContext *RequestContext `json:"previous_context,omitempty"`
}

// RankedAgent is one scored candidate in a routing decision.
type RankedAgent struct {
	// Agent is the snapshot the score applies to.
	Agent AgentSnapshot `json:"agent"`

	// Score is the composite score in [0,100], higher is better.
	Score float64 `json:"score"`

	// Rank is the 1-based position in the final ordering.
	Rank int `json:"rank"`

	// Cost is the cost prediction for this candidate, when available.
	Cost *CostPrediction `json:"cost,omitempty"`

	// Reasons lists the factors that dominated this candidate's score.
	Reasons []string `json:"reasons,omitempty"`
}

// RoutingResponse is the engine's decision for one request.
type RoutingResponse struct {
	// RequestID echoes (or assigns) the request identifier.
	RequestID string `json:"request_id"`

	// Selected is the rank-1 candidate.
	Selected RankedAgent `json:"selected"`

	// Alternatives holds up to 3 runner-up candidates in descending score order.
	Alternatives []RankedAgent `json:"alternatives,omitempty"`

	// Context is the analyzed request context the decision was based on.
	Context *RequestContext `json:"context,omitempty"`

	// Strategy names the scoring strategy that produced the ranking.
	Strategy string `json:"strategy"`

	// ExperimentVariants maps test ID to the variant assigned for this request.
	ExperimentVariants map[string]string `json:"experiment_variants,omitempty"`

	// Explanation is a human-readable summary of why the agent was selected.
	Explanation string `json:"explanation"`

	// DecidedAt is when the decision was made.
	DecidedAt time.Time `json:"decided_at"`

	// LatencyMs is the total routing pipeline latency in milliseconds.
	LatencyMs int64 `json:"latency_ms"`
}

// RoutingOutcome is the post-execution feedback for a routed request, fed
// back through TrainWithOutcome once the real AI call completed.
type RoutingOutcome struct {
	RequestID      string  `json:"request_id"`
	AgentID        string  `json:"agent_id"`
	Success        bool    `json:"success"`
	Quality        float64 `json:"quality"`
	ResponseTimeMs float64 `json:"response_time_ms"`
	ActualCost     float64 `json:"actual_cost"`
}
