// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package costmodel

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/router/shared/logger"
	"axonflow/router/shared/types"
)

var (
	gpt4 = types.AgentSnapshot{
		ID: "gpt-4", Provider: "openai", Model: "gpt-4",
		Capabilities: []string{"text-generation", "code-generation", "reasoning"},
	}
	llama = types.AgentSnapshot{
		ID: "llama2-7b", Provider: "meta", Model: "llama2-7b",
		Capabilities: []string{"text-generation", "general-query"},
	}
)

func newTestModel(opts ...Option) *Model {
	opts = append(opts, WithLogger(logger.NewWithWriter("cost-model", io.Discard)))
	return NewModel(NewFeed(), opts...)
}

// noon pins predictions to a peak business hour.
var noon = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

// midnight pins predictions to an off-peak hour.
var midnight = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func TestPredictCostsBreakdownIdentity(t *testing.T) {
	m := newTestModel()

	out, err := m.PredictCosts(context.Background(), Input{
		UserID:          "user-1",
		Candidates:      []types.AgentSnapshot{gpt4, llama},
		EstimatedTokens: 2000,
		Complexity:      60,
		Priority:        types.PriorityHigh,
		Now:             noon,
	})
	require.NoError(t, err)
	require.Len(t, out.Predictions, 2)

	for _, p := range out.Predictions {
		b := p.Breakdown
		want := (b.BaseTokenCost + b.ComputeCost) * b.PriorityMultiplier *
			(1 + b.DemandSurcharge) * (1 - b.VolumeDiscount)
		assert.InDelta(t, want, b.FinalCost, 1e-12, "provider %s", p.Provider)
		assert.InDelta(t, b.FinalCost, p.PredictedCost, 1e-12)

		// Token split is 40/60 of the estimate.
		assert.Equal(t, 800, b.InputTokens)
		assert.Equal(t, 1200, b.OutputTokens)
	}

	assert.Equal(t, ModelVersion, out.ModelVersion)
}

func TestPredictCostsPriorityMonotonicity(t *testing.T) {
	m := newTestModel()
	priorities := []types.Priority{
		types.PriorityLow, types.PriorityNormal, types.PriorityHigh, types.PriorityCritical,
	}

	var previous float64
	for i, priority := range priorities {
		out, err := m.PredictCosts(context.Background(), Input{
			Candidates:      []types.AgentSnapshot{gpt4},
			EstimatedTokens: 1000,
			Complexity:      50,
			Priority:        priority,
			Now:             noon,
		})
		require.NoError(t, err)
		cost := out.Predictions[0].Breakdown.FinalCost
		if i > 0 {
			assert.GreaterOrEqual(t, cost, previous, "priority %s should not be cheaper than the tier below", priority)
		}
		previous = cost
	}
}

func TestPredictCostsDeterministic(t *testing.T) {
	m := newTestModel()
	input := Input{
		UserID:          "user-1",
		Candidates:      []types.AgentSnapshot{gpt4, llama},
		EstimatedTokens: 1500,
		Complexity:      85,
		Priority:        types.PriorityNormal,
		Now:             noon,
	}

	first, err := m.PredictCosts(context.Background(), input)
	require.NoError(t, err)
	second, err := m.PredictCosts(context.Background(), input)
	require.NoError(t, err)

	// Bit-identical with no intervening learning.
	assert.Equal(t, first.Predictions, second.Predictions)
	assert.Equal(t, first.BudgetAnalysis, second.BudgetAnalysis)
	assert.Equal(t, first.RiskAssessment, second.RiskAssessment)
}

func TestPredictCostsEmptyCandidates(t *testing.T) {
	m := newTestModel()
	_, err := m.PredictCosts(context.Background(), Input{EstimatedTokens: 100})
	assert.Error(t, err)
}

func TestVolumeDiscountTiers(t *testing.T) {
	tests := []struct {
		name  string
		spend float64
		want  float64
	}{
		{"no history", 0, 0},
		{"below first tier", 90, 0},
		{"five percent", 150, 0.05},
		{"ten percent", 600, 0.10},
		{"fifteen percent", 1500, 0.15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel()
			if tt.spend > 0 {
				// Spread the spend across several recent records.
				for i := 0; i < 10; i++ {
					m.LearnFromActualCost(types.HistoricalCostRecord{
						UserID:     "user-1",
						Provider:   "openai",
						Model:      "gpt-4",
						Timestamp:  noon.Add(-time.Duration(i) * 24 * time.Hour),
						ActualCost: tt.spend / 10,
						Tokens:     1000,
					})
				}
			}

			out, err := m.PredictCosts(context.Background(), Input{
				UserID:          "user-1",
				Candidates:      []types.AgentSnapshot{gpt4},
				EstimatedTokens: 1000,
				Priority:        types.PriorityNormal,
				Now:             noon,
			})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, out.Predictions[0].Breakdown.VolumeDiscount, 1e-9)
		})
	}
}

func TestVolumeDiscountRequiresExactPair(t *testing.T) {
	m := newTestModel()
	for i := 0; i < 10; i++ {
		m.LearnFromActualCost(types.HistoricalCostRecord{
			UserID:     "user-1",
			Provider:   "openai",
			Model:      "gpt-3.5-turbo", // different model, same provider
			Timestamp:  noon.Add(-time.Hour),
			ActualCost: 200,
		})
	}

	out, err := m.PredictCosts(context.Background(), Input{
		UserID:          "user-1",
		Candidates:      []types.AgentSnapshot{gpt4},
		EstimatedTokens: 1000,
		Priority:        types.PriorityNormal,
		Now:             noon,
	})
	require.NoError(t, err)
	assert.Zero(t, out.Predictions[0].Breakdown.VolumeDiscount)
}

func TestDemandSurchargePeakVsOffPeak(t *testing.T) {
	m := newTestModel()
	input := Input{
		Candidates:      []types.AgentSnapshot{gpt4},
		EstimatedTokens: 1000,
		Priority:        types.PriorityNormal,
	}

	input.Now = noon
	peak, err := m.PredictCosts(context.Background(), input)
	require.NoError(t, err)

	input.Now = midnight
	offPeak, err := m.PredictCosts(context.Background(), input)
	require.NoError(t, err)

	assert.Greater(t, peak.Predictions[0].Breakdown.FinalCost, offPeak.Predictions[0].Breakdown.FinalCost)
	assert.LessOrEqual(t, peak.Predictions[0].Breakdown.DemandSurcharge, MaxDemandSurcharge)

	// The factor list names the hour regime.
	assert.True(t, hasFactor(peak.Predictions[0].Factors, "peak-hour"))
	assert.True(t, hasFactor(offPeak.Predictions[0].Factors, "off-peak-hour"))
}

func TestUncertaintyShapesCostRange(t *testing.T) {
	m := newTestModel()

	out, err := m.PredictCosts(context.Background(), Input{
		Candidates:      []types.AgentSnapshot{gpt4},
		EstimatedTokens: 1000,
		Complexity:      90, // inflates uncertainty 1.3x
		Priority:        types.PriorityNormal,
		Now:             midnight,
	})
	require.NoError(t, err)

	r := out.Predictions[0].Range
	assert.Less(t, r.Minimum, r.Expected)
	assert.Greater(t, r.Maximum, r.Expected)
	assert.GreaterOrEqual(t, r.Confidence, 0.6)

	// Maximum skews further from expected than minimum (1.5x factor).
	assert.Greater(t, r.Maximum-r.Expected, r.Expected-r.Minimum)

	// Critical priority deflates uncertainty, narrowing the range.
	critical, err := m.PredictCosts(context.Background(), Input{
		Candidates:      []types.AgentSnapshot{gpt4},
		EstimatedTokens: 1000,
		Complexity:      90,
		Priority:        types.PriorityCritical,
		Now:             midnight,
	})
	require.NoError(t, err)
	normalSpread := (r.Maximum - r.Minimum) / r.Expected
	cr := critical.Predictions[0].Range
	criticalSpread := (cr.Maximum - cr.Minimum) / cr.Expected
	assert.Less(t, criticalSpread, normalSpread)
}

func TestRecommendationsProviderSwitchAndBudget(t *testing.T) {
	m := newTestModel()

	out, err := m.PredictCosts(context.Background(), Input{
		Candidates:      []types.AgentSnapshot{gpt4, llama},
		EstimatedTokens: 5000,
		Complexity:      50,
		Priority:        types.PriorityHigh,
		MaxCost:         0.00001, // far below any prediction
		Now:             noon,
	})
	require.NoError(t, err)

	assert.True(t, hasRecommendation(out.Recommendations, RecommendationProviderSwitch))
	assert.True(t, hasRecommendation(out.Recommendations, RecommendationBudgetOverrun))
	assert.False(t, out.BudgetAnalysis.WithinBudget)
}

func TestRecommendationsTimingAndDowngrade(t *testing.T) {
	m := newTestModel()

	// A single premium candidate at lunchtime peak (25% surcharge) priced
	// at high priority triggers both timing and downgrade advice.
	out, err := m.PredictCosts(context.Background(), Input{
		Candidates:      []types.AgentSnapshot{gpt4},
		EstimatedTokens: 5000,
		Complexity:      50,
		Priority:        types.PriorityHigh,
		Now:             noon,
	})
	require.NoError(t, err)

	assert.True(t, hasRecommendation(out.Recommendations, RecommendationOffPeakTiming))
	assert.True(t, hasRecommendation(out.Recommendations, RecommendationPriorityDowngrade))

	for _, r := range out.Recommendations {
		if r.Type == RecommendationOffPeakTiming || r.Type == RecommendationPriorityDowngrade {
			assert.Greater(t, r.EstimatedSavings, 0.0)
		}
	}
}

func TestRiskAssessmentBounds(t *testing.T) {
	m := newTestModel()

	out, err := m.PredictCosts(context.Background(), Input{
		Candidates:      []types.AgentSnapshot{gpt4, llama},
		EstimatedTokens: 2000,
		Complexity:      95,
		Priority:        types.PriorityNormal,
		MaxCost:         0.001,
		Now:             noon,
	})
	require.NoError(t, err)

	risk := out.RiskAssessment
	assert.Contains(t, []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}, risk.OverallRisk)
	assert.GreaterOrEqual(t, risk.RiskScore, 0.0)
	assert.LessOrEqual(t, risk.RiskScore, 100.0)

	d := risk.Distribution
	assert.LessOrEqual(t, d.P10, d.P50)
	assert.LessOrEqual(t, d.P50, d.P90)
	assert.LessOrEqual(t, d.P90, d.P99)
}

type failingStore struct{}

func (failingStore) SaveCostRecord(ctx context.Context, record types.HistoricalCostRecord) error {
	return assert.AnError
}

func TestLearnFromActualCostNeverFailsRequestPath(t *testing.T) {
	m := newTestModel(WithStore(failingStore{}))

	// Store failures are logged and dropped; the call itself must not panic.
	assert.NotPanics(t, func() {
		m.LearnFromActualCost(types.HistoricalCostRecord{
			UserID:     "user-1",
			Provider:   "openai",
			Model:      "gpt-4",
			ActualCost: 0.5,
		})
	})
	assert.Equal(t, 1, m.history.Len())
}

func TestHistoryRingBufferTrims(t *testing.T) {
	h := newCostHistory()
	n := 0
	for i := 0; i < historyCap+1; i++ {
		n = h.Append(types.HistoricalCostRecord{UserID: "u", ActualCost: 1})
	}
	assert.Equal(t, historyTrimTo, h.Len())
	assert.Equal(t, h.Len(), n, "Append reports the post-trim count")

	// The trim target lands on the recompute interval, so the every-N
	// schedule keeps firing after a wrap.
	assert.Zero(t, historyTrimTo%accuracyRecomputeEvery)
}

func TestLearnSchedulesAccuracyRecompute(t *testing.T) {
	m := newTestModel()
	assert.InDelta(t, 0.5, m.Accuracy(), 1e-9)

	for i := 0; i < accuracyRecomputeEvery; i++ {
		m.LearnFromActualCost(types.HistoricalCostRecord{ActualCost: 2, PredictedCost: 2})
	}

	// Perfect predictions push the recomputed accuracy to 1.0.
	assert.Eventually(t, func() bool {
		return m.Accuracy() > 0.99
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAccuracyRecompute(t *testing.T) {
	h := newCostHistory()
	// Perfect predictions give accuracy 1.0.
	for i := 0; i < 10; i++ {
		h.Append(types.HistoricalCostRecord{ActualCost: 2, PredictedCost: 2})
	}
	assert.InDelta(t, 1.0, h.Accuracy(), 1e-9)

	// 50% error halves accuracy.
	h2 := newCostHistory()
	h2.Append(types.HistoricalCostRecord{ActualCost: 2, PredictedCost: 1})
	assert.InDelta(t, 0.5, h2.Accuracy(), 1e-9)

	// No usable data stays neutral.
	assert.InDelta(t, 0.5, newCostHistory().Accuracy(), 1e-9)
}

func hasFactor(factors []types.CostFactor, name string) bool {
	for _, f := range factors {
		if f.Name == name {
			return true
		}
	}
	return false
}

func hasRecommendation(recs []Recommendation, typ RecommendationType) bool {
	for _, r := range recs {
		if r.Type == typ {
			return true
		}
	}
	return false
}
