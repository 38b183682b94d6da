// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package costmodel

import (
	"fmt"
	"math"
	"time"

	"axonflow/router/shared/types"
)

// RecommendationType categorizes optimization recommendations.
type RecommendationType string

const (
	// RecommendationProviderSwitch suggests a cheaper eligible provider.
	RecommendationProviderSwitch RecommendationType = "provider-switch"

	// RecommendationPriorityDowngrade quantifies the saving of running
	// the same request one priority tier lower.
	RecommendationPriorityDowngrade RecommendationType = "priority-downgrade"

	// RecommendationOffPeakTiming flags a peak-hour surcharge.
	RecommendationOffPeakTiming RecommendationType = "off-peak-timing"

	// RecommendationBudgetOverrun flags predictions above the request budget.
	RecommendationBudgetOverrun RecommendationType = "budget-overrun"
)

// Recommendation is one actionable cost optimization.
type Recommendation struct {
	Type             RecommendationType `json:"type"`
	Description      string             `json:"description"`
	EstimatedSavings float64            `json:"estimated_savings,omitempty"`
}

// BudgetAnalysis relates the predictions to the caller-supplied budgets.
type BudgetAnalysis struct {
	MaxCost           float64 `json:"max_cost,omitempty"`
	MonthlyBudget     float64 `json:"monthly_budget,omitempty"`
	MonthlySpend      float64 `json:"monthly_spend"`
	CheapestCost      float64 `json:"cheapest_cost"`
	AverageCost       float64 `json:"average_cost"`
	MostExpensiveCost float64 `json:"most_expensive_cost"`

	// WithinBudget is true when the cheapest prediction fits MaxCost
	// (always true when no MaxCost was supplied).
	WithinBudget bool `json:"within_budget"`

	// BudgetUtilization is trailing monthly spend over the monthly budget
	// (0 when no budget was supplied).
	BudgetUtilization float64 `json:"budget_utilization"`
}

// RiskLevel buckets the overall prediction risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// CostDistribution is the percentile view of the predicted cost.
type CostDistribution struct {
	P10 float64 `json:"p10"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
}

// RiskAssessment aggregates cost variance, budget proximity, complexity and
// provider reliability into an overall risk tier.
type RiskAssessment struct {
	OverallRisk       RiskLevel        `json:"overall_risk"`
	RiskScore         float64          `json:"risk_score"`
	CostVariance      float64          `json:"cost_variance"`
	BudgetOverrunRisk float64          `json:"budget_overrun_risk"`
	Distribution      CostDistribution `json:"distribution"`
	Factors           []string         `json:"factors,omitempty"`
}

// recommend compares the eligible predictions and emits cost optimizations.
func (m *Model) recommend(predictions []types.CostPrediction, input Input, priority types.Priority, now time.Time) []Recommendation {
	var recommendations []Recommendation

	cheapest, dearest := cheapestAndDearest(predictions)
	cheapestPrediction := &predictions[cheapest]

	// Provider switch: only worth surfacing above a cent of savings.
	if savings := predictions[dearest].Range.Expected - cheapestPrediction.Range.Expected; savings > 0.01 {
		recommendations = append(recommendations, Recommendation{
			Type: RecommendationProviderSwitch,
			Description: fmt.Sprintf("switching from %s/%s to %s/%s saves $%.4f per request",
				predictions[dearest].Provider, predictions[dearest].Model,
				cheapestPrediction.Provider, cheapestPrediction.Model, savings),
			EstimatedSavings: savings,
		})
	}

	// Priority downgrade: price the cheapest candidate one tier lower.
	if lower, ok := lowerPriority(priority); ok {
		current := cheapestPrediction.Breakdown
		subtotal := current.BaseTokenCost + current.ComputeCost
		downgraded := subtotal * lower.Multiplier() * (1 + current.DemandSurcharge) * (1 - current.VolumeDiscount)
		if savings := cheapestPrediction.Breakdown.FinalCost - downgraded; savings > 0.01 {
			recommendations = append(recommendations, Recommendation{
				Type: RecommendationPriorityDowngrade,
				Description: fmt.Sprintf("running at %s instead of %s priority saves $%.4f",
					lower, priority, savings),
				EstimatedSavings: savings,
			})
		}
	}

	// Peak-hour timing.
	if cheapestPrediction.Breakdown.DemandSurcharge >= 0.15 {
		subtotal := cheapestPrediction.Breakdown.BaseTokenCost + cheapestPrediction.Breakdown.ComputeCost
		savings := subtotal * priority.Multiplier() * cheapestPrediction.Breakdown.DemandSurcharge *
			(1 - cheapestPrediction.Breakdown.VolumeDiscount)
		recommendations = append(recommendations, Recommendation{
			Type: RecommendationOffPeakTiming,
			Description: fmt.Sprintf("hour %d carries a %.0f%% demand surcharge; off-peak submission avoids it",
				now.Hour(), cheapestPrediction.Breakdown.DemandSurcharge*100),
			EstimatedSavings: savings,
		})
	}

	// Budget overrun.
	if input.MaxCost > 0 && cheapestPrediction.Range.Expected > input.MaxCost {
		recommendations = append(recommendations, Recommendation{
			Type: RecommendationBudgetOverrun,
			Description: fmt.Sprintf("cheapest prediction $%.4f exceeds the $%.4f request budget",
				cheapestPrediction.Range.Expected, input.MaxCost),
		})
	}

	return recommendations
}

func (m *Model) analyzeBudget(predictions []types.CostPrediction, input Input, now time.Time) BudgetAnalysis {
	cheapest, dearest := cheapestAndDearest(predictions)

	total := 0.0
	for i := range predictions {
		total += predictions[i].Range.Expected
	}

	analysis := BudgetAnalysis{
		MaxCost:           input.MaxCost,
		MonthlyBudget:     input.MonthlyBudget,
		CheapestCost:      predictions[cheapest].Range.Expected,
		AverageCost:       total / float64(len(predictions)),
		MostExpensiveCost: predictions[dearest].Range.Expected,
		WithinBudget:      true,
	}

	if input.MaxCost > 0 {
		analysis.WithinBudget = analysis.CheapestCost <= input.MaxCost
	}
	if input.UserID != "" {
		analysis.MonthlySpend = m.history.TrailingUserSpend(input.UserID, now, volumeDiscountWindow)
		if input.MonthlyBudget > 0 {
			analysis.BudgetUtilization = analysis.MonthlySpend / input.MonthlyBudget
		}
	}
	return analysis
}

// assessRisk derives the overall risk tier and percentile distribution.
func (m *Model) assessRisk(predictions []types.CostPrediction, input Input) RiskAssessment {
	var factors []string

	// Cost variance across eligible predictions.
	costs := sortedExpectedCosts(predictions)
	mean := 0.0
	for _, c := range costs {
		mean += c
	}
	mean /= float64(len(costs))

	variance := 0.0
	for _, c := range costs {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(len(costs))

	// Normalized spread: coefficient of variation against the mean.
	spread := 0.0
	if mean > 0 {
		spread = math.Sqrt(variance) / mean
	}

	score := math.Min(40, spread*40)
	if spread > 0.5 {
		factors = append(factors, "wide cost spread across providers")
	}

	// Budget overrun proximity.
	overrunRisk := 0.0
	if input.MaxCost > 0 {
		cheapest := costs[0]
		ratio := cheapest / input.MaxCost
		overrunRisk = math.Min(1, math.Max(0, ratio))
		score += overrunRisk * 30
		if ratio > 0.8 {
			factors = append(factors, "predictions close to the request budget")
		}
	}

	// Complexity risk.
	score += input.Complexity / 100 * 15
	if input.Complexity > 80 {
		factors = append(factors, "very high request complexity")
	}

	// Provider reliability: take the least reliable candidate.
	worst := 1.0
	for i := range predictions {
		reliability := m.feed.Provider(predictions[i].Provider).Reliability
		if reliability < worst {
			worst = reliability
		}
	}
	score += (1 - worst) * 100 * 0.15
	if worst < 0.95 {
		factors = append(factors, "low provider reliability in candidate set")
	}

	score = math.Min(100, score)

	level := RiskLow
	switch {
	case score >= 75:
		level = RiskCritical
	case score >= 50:
		level = RiskHigh
	case score >= 25:
		level = RiskMedium
	}

	// Percentile distribution around the mean expected cost using the
	// average relative uncertainty of the candidate set.
	avgUncertainty := 0.0
	for i := range predictions {
		avgUncertainty += 1 - predictions[i].Range.Confidence
	}
	avgUncertainty = math.Max(avgUncertainty/float64(len(predictions)), 0.05)

	return RiskAssessment{
		OverallRisk:       level,
		RiskScore:         score,
		CostVariance:      variance,
		BudgetOverrunRisk: overrunRisk,
		Distribution: CostDistribution{
			P10: mean * (1 - 1.28*avgUncertainty),
			P50: mean,
			P90: mean * (1 + 1.28*avgUncertainty),
			P99: mean * (1 + 2.33*avgUncertainty),
		},
		Factors: factors,
	}
}

func lowerPriority(p types.Priority) (types.Priority, bool) {
	switch p {
	case types.PriorityCritical:
		return types.PriorityHigh, true
	case types.PriorityHigh:
		return types.PriorityNormal, true
	case types.PriorityNormal:
		return types.PriorityLow, true
	default:
		return "", false
	}
}
