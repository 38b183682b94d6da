// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package types

import "time"

// CostBreakdown itemizes how a predicted cost was composed. The final cost
// always satisfies:
//
//	FinalCost = (BaseTokenCost + ComputeCost) * PriorityMultiplier *
//	            (1 + DemandSurcharge) * (1 - VolumeDiscount)
type CostBreakdown struct {
	// InputTokens is the estimated input token count (40% of the estimate).
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the estimated output token count (60% of the estimate).
	OutputTokens int `json:"output_tokens"`

	// BaseTokenCost is inputTokens*inputPrice + outputTokens*outputPrice.
	BaseTokenCost float64 `json:"base_token_cost"`

	// ComputeCost is the per-model compute surcharge scaled by complexity.
	ComputeCost float64 `json:"compute_cost"`

	// PriorityMultiplier is the fixed multiplier for the request priority.
	PriorityMultiplier float64 `json:"priority_multiplier"`

	// DemandSurcharge is the time-of-day surcharge fraction (0.0-0.5).
	DemandSurcharge float64 `json:"demand_surcharge"`

	// VolumeDiscount is the spend-tier discount fraction (0.0-0.15).
	VolumeDiscount float64 `json:"volume_discount"`

	// FinalCost is the fully adjusted predicted cost in USD.
	FinalCost float64 `json:"final_cost"`
}

// CostRange expresses prediction uncertainty as an interval around the
// expected cost.
type CostRange struct {
	Minimum    float64 `json:"minimum"`
	Expected   float64 `json:"expected"`
	Maximum    float64 `json:"maximum"`
	Confidence float64 `json:"confidence"`
}

// CostFactor is a named, signed contributor to a prediction, carried for
// explainability. Impact is in USD (positive raises cost, negative lowers it).
type CostFactor struct {
	Name        string  `json:"name"`
	Impact      float64 `json:"impact"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description,omitempty"`
}

// CostPrediction is the per-(agent, request) output of the cost model.
// Predictions are ephemeral; they feed recommendations and risk assessment
// but are not stored beyond the response.
type CostPrediction struct {
	Provider      string        `json:"provider"`
	Model         string        `json:"model"`
	PredictedCost float64       `json:"predicted_cost"`
	Breakdown     CostBreakdown `json:"cost_breakdown"`
	Range         CostRange     `json:"cost_range"`
	Factors       []CostFactor  `json:"factors,omitempty"`
}

// HistoricalCostRecord is an observed (predicted, actual) cost pair appended
// after the real AI call executed. Records live in a bounded in-process ring
// buffer; durable persistence is a collaborator concern.
type HistoricalCostRecord struct {
	UserID        string    `json:"user_id"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	Timestamp     time.Time `json:"timestamp"`
	ActualCost    float64   `json:"actual_cost"`
	PredictedCost float64   `json:"predicted_cost"`
	Tokens        int       `json:"tokens"`

	// RequestMeta carries free-form request metadata for later analysis.
	RequestMeta map[string]string `json:"request_meta,omitempty"`
}
