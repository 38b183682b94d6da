// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package costmodel predicts the monetary cost of routing a request to each
// eligible agent, with confidence intervals, budget analysis, risk
// assessment and optimization recommendations. Predictions are pure
// computation over the pricing feed and in-memory history; the model never
// performs network calls on the request path.
package costmodel

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"axonflow/router/shared/logger"
	"axonflow/router/shared/types"
)

// ModelVersion identifies the prediction formula generation.
const ModelVersion = "cost-model/v1"

// volumeDiscountWindow is the trailing spend window for discount tiers.
const volumeDiscountWindow = 30 * 24 * time.Hour

// accuracyRecomputeEvery schedules a background accuracy recompute after
// this many learned records.
const accuracyRecomputeEvery = 100

// Input is one cost prediction request covering all eligible candidates.
type Input struct {
	// UserID drives volume discounts. Optional.
	UserID string `json:"user_id,omitempty"`

	// Candidates are the eligible agents to price.
	Candidates []types.AgentSnapshot `json:"candidates"`

	// EstimatedTokens is the analyzer's token estimate for the request.
	EstimatedTokens int `json:"estimated_tokens"`

	// Complexity is the overall request complexity (0-100).
	Complexity float64 `json:"complexity"`

	// Priority is the request priority.
	Priority types.Priority `json:"priority"`

	// MaxCost is the per-request budget ceiling. Zero means unlimited.
	MaxCost float64 `json:"max_cost,omitempty"`

	// MonthlyBudget is the user's monthly budget. Zero means unknown.
	MonthlyBudget float64 `json:"monthly_budget,omitempty"`

	// Now pins the prediction time. Zero means time.Now(). Pinning keeps
	// repeated predictions bit-identical for the same inputs.
	Now time.Time `json:"-"`
}

// Output is the full prediction result.
type Output struct {
	Predictions     []types.CostPrediction `json:"predictions"`
	Recommendations []Recommendation       `json:"recommendations,omitempty"`
	BudgetAnalysis  BudgetAnalysis         `json:"budget_analysis"`
	RiskAssessment  RiskAssessment         `json:"risk_assessment"`
	Confidence      float64                `json:"confidence"`
	ModelVersion    string                 `json:"model_version"`
}

// Store is an optional durable sink for learned cost records. The in-memory
// history is authoritative for the process; the store only mirrors it.
type Store interface {
	SaveCostRecord(ctx context.Context, record types.HistoricalCostRecord) error
}

// Model is the cost prediction model. Safe for concurrent use.
type Model struct {
	feed    *Feed
	history *costHistory
	store   Store
	log     *logger.Logger

	// accuracy is the trailing prediction accuracy (0.0-1.0), stored as
	// math.Float64bits for atomic access.
	accuracy atomic.Uint64
}

// Option configures a Model.
type Option func(*Model)

// WithStore attaches a durable record sink.
func WithStore(store Store) Option {
	return func(m *Model) { m.store = store }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(m *Model) { m.log = log }
}

// NewModel creates a Model reading prices from feed.
func NewModel(feed *Feed, opts ...Option) *Model {
	if feed == nil {
		feed = NewFeed()
	}
	m := &Model{
		feed:    feed,
		history: newCostHistory(),
	}
	m.accuracy.Store(math.Float64bits(0.5))
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.New("cost-model")
	}
	return m
}

// Accuracy returns the trailing prediction accuracy (0.0-1.0).
func (m *Model) Accuracy() float64 {
	return math.Float64frombits(m.accuracy.Load())
}

// PredictCosts prices every candidate and derives recommendations, budget
// analysis and risk assessment. The factor list is deterministic for the
// same inputs apart from the live demand and volume lookups.
func (m *Model) PredictCosts(ctx context.Context, input Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(input.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates to price")
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}
	priority := input.Priority
	if !priority.IsValid() {
		priority = types.PriorityNormal
	}

	predictions := make([]types.CostPrediction, 0, len(input.Candidates))
	for i := range input.Candidates {
		predictions = append(predictions, m.predictOne(&input.Candidates[i], input, priority, now))
	}

	output := &Output{
		Predictions:     predictions,
		Recommendations: m.recommend(predictions, input, priority, now),
		BudgetAnalysis:  m.analyzeBudget(predictions, input, now),
		RiskAssessment:  m.assessRisk(predictions, input),
		Confidence:      m.overallConfidence(predictions),
		ModelVersion:    ModelVersion,
	}
	return output, nil
}

// predictOne prices a single candidate.
//
// finalCost = (baseTokenCost + computeCost) * priorityMultiplier *
// (1 + demandSurcharge) * (1 - volumeDiscount)
func (m *Model) predictOne(agent *types.AgentSnapshot, input Input, priority types.Priority, now time.Time) types.CostPrediction {
	pricing := m.feed.Pricing(agent.Provider, agent.Model)
	profile := m.feed.Provider(agent.Provider)

	// Token split: roughly 40% input, 60% output of the total estimate.
	inputTokens := int(math.Round(float64(input.EstimatedTokens) * 0.4))
	outputTokens := input.EstimatedTokens - inputTokens

	baseTokenCost := float64(inputTokens)*pricing.InputPricePerToken +
		float64(outputTokens)*pricing.OutputPricePerToken

	// Complexity scales compute linearly: 1.0x at 0 up to 2.0x at 100.
	complexityMultiplier := 1 + math.Min(100, math.Max(0, input.Complexity))/100
	computeCost := pricing.ComputeRatePerToken * float64(input.EstimatedTokens) * complexityMultiplier

	priorityMultiplier := priority.Multiplier()
	surcharge := m.feed.DemandSurcharge(agent.Provider, now.Hour())
	discount := m.volumeDiscount(input.UserID, agent.Provider, agent.Model, now)

	finalCost := (baseTokenCost + computeCost) * priorityMultiplier * (1 + surcharge) * (1 - discount)

	// Uncertainty: provider base rate, inflated 1.3x for very complex
	// requests, deflated 0.8x for critical priority (priority access
	// reduces variance).
	uncertainty := profile.BaseUncertainty
	if input.Complexity > 80 {
		uncertainty *= 1.3
	}
	if priority == types.PriorityCritical {
		uncertainty *= 0.8
	}

	prediction := types.CostPrediction{
		Provider:      agent.Provider,
		Model:         agent.Model,
		PredictedCost: finalCost,
		Breakdown: types.CostBreakdown{
			InputTokens:        inputTokens,
			OutputTokens:       outputTokens,
			BaseTokenCost:      baseTokenCost,
			ComputeCost:        computeCost,
			PriorityMultiplier: priorityMultiplier,
			DemandSurcharge:    surcharge,
			VolumeDiscount:     discount,
			FinalCost:          finalCost,
		},
		Range: types.CostRange{
			Minimum:    finalCost * (1 - uncertainty),
			Expected:   finalCost,
			Maximum:    finalCost * (1 + 1.5*uncertainty),
			Confidence: math.Max(0.6, 1-uncertainty),
		},
	}
	prediction.Factors = m.buildFactors(&prediction, pricing, input, priority, surcharge, discount)
	return prediction
}

// volumeDiscount is tiered on the user's trailing-30-day spend with the
// exact (provider, model) pair.
func (m *Model) volumeDiscount(userID, provider, model string, now time.Time) float64 {
	if userID == "" {
		return 0
	}
	spend := m.history.TrailingSpend(userID, provider, model, now, volumeDiscountWindow)
	switch {
	case spend > 1000:
		return 0.15
	case spend > 500:
		return 0.10
	case spend > 100:
		return 0.05
	default:
		return 0
	}
}

// buildFactors lists the named, signed cost contributors in a fixed order
// so the factor list is reproducible from the same inputs.
func (m *Model) buildFactors(p *types.CostPrediction, pricing ModelPricing, input Input, priority types.Priority, surcharge, discount float64) []types.CostFactor {
	var factors []types.CostFactor
	subtotal := p.Breakdown.BaseTokenCost + p.Breakdown.ComputeCost

	if input.EstimatedTokens > 1000 {
		factors = append(factors, types.CostFactor{
			Name:        "high-token-count",
			Impact:      p.Breakdown.BaseTokenCost,
			Confidence:  0.9,
			Description: fmt.Sprintf("%d estimated tokens dominate the base cost", input.EstimatedTokens),
		})
	}
	if input.Complexity > 70 {
		factors = append(factors, types.CostFactor{
			Name:        "high-complexity",
			Impact:      p.Breakdown.ComputeCost / 2,
			Confidence:  0.8,
			Description: "complexity multiplier inflates compute cost",
		})
	}
	if mult := priority.Multiplier(); mult != 1.0 {
		factors = append(factors, types.CostFactor{
			Name:        "priority-" + string(priority),
			Impact:      subtotal * (mult - 1),
			Confidence:  0.95,
			Description: fmt.Sprintf("%s priority multiplier %.1fx", priority, mult),
		})
	}
	switch {
	case surcharge >= 0.15:
		factors = append(factors, types.CostFactor{
			Name:        "peak-hour",
			Impact:      subtotal * priority.Multiplier() * surcharge,
			Confidence:  0.7,
			Description: fmt.Sprintf("provider demand surcharge %.0f%%", surcharge*100),
		})
	case surcharge <= 0.05:
		factors = append(factors, types.CostFactor{
			Name:        "off-peak-hour",
			Impact:      0,
			Confidence:  0.7,
			Description: "low provider demand, no meaningful surcharge",
		})
	}
	if pricing.Premium {
		factors = append(factors, types.CostFactor{
			Name:        "premium-model",
			Impact:      p.Breakdown.BaseTokenCost * 0.3,
			Confidence:  0.6,
			Description: "frontier commercial model pricing",
		})
	} else {
		factors = append(factors, types.CostFactor{
			Name:        "open-source-model",
			Impact:      -p.Breakdown.BaseTokenCost * 0.3,
			Confidence:  0.6,
			Description: "open-source model pricing",
		})
	}
	if discount > 0 {
		factors = append(factors, types.CostFactor{
			Name:        "volume-discount",
			Impact:      -subtotal * discount,
			Confidence:  0.85,
			Description: fmt.Sprintf("trailing 30-day spend earns %.0f%% off", discount*100),
		})
	}
	return factors
}

func (m *Model) overallConfidence(predictions []types.CostPrediction) float64 {
	if len(predictions) == 0 {
		return 0
	}
	sum := 0.0
	for i := range predictions {
		sum += predictions[i].Range.Confidence
	}
	rangeConfidence := sum / float64(len(predictions))

	// Blend the interval confidence with the trailing model accuracy.
	return 0.7*rangeConfidence + 0.3*m.Accuracy()
}

// LearnFromActualCost records an observed cost after the real AI call
// executed. It never fails the request path: storage errors are logged and
// swallowed, and the periodic accuracy recompute runs off-path.
func (m *Model) LearnFromActualCost(record types.HistoricalCostRecord) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error(record.UserID, "", "cost learning panicked",
				map[string]interface{}{"panic": fmt.Sprint(r)})
		}
	}()

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if n := m.history.Append(record); n%accuracyRecomputeEvery == 0 {
		go m.recomputeAccuracy()
	}

	if m.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.store.SaveCostRecord(ctx, record); err != nil {
				m.log.ErrorWithErr(record.UserID, "", "failed to persist cost record", err, nil)
			}
		}()
	}
}

func (m *Model) recomputeAccuracy() {
	accuracy := m.history.Accuracy()
	m.accuracy.Store(math.Float64bits(accuracy))
	m.log.Info("", "", "cost model accuracy recomputed", map[string]interface{}{
		"accuracy": accuracy,
		"records":  m.history.Len(),
	})
}

// cheapestAndDearest returns the indexes of the lowest and highest expected
// cost predictions.
func cheapestAndDearest(predictions []types.CostPrediction) (int, int) {
	cheapest, dearest := 0, 0
	for i := range predictions {
		if predictions[i].Range.Expected < predictions[cheapest].Range.Expected {
			cheapest = i
		}
		if predictions[i].Range.Expected > predictions[dearest].Range.Expected {
			dearest = i
		}
	}
	return cheapest, dearest
}

// sortedExpectedCosts returns the expected costs in ascending order.
func sortedExpectedCosts(predictions []types.CostPrediction) []float64 {
	costs := make([]float64, len(predictions))
	for i := range predictions {
		costs[i] = predictions[i].Range.Expected
	}
	sort.Float64s(costs)
	return costs
}
