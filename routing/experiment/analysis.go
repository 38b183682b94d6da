// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package experiment

import (
	"fmt"
	"math"
)

// minSamplesForAnalysis is the total sample floor below which no conclusion
// is drawn.
const minSamplesForAnalysis = 30

// significantRelativeChange is the relative change vs control above which a
// metric counts as moved.
const significantRelativeChange = 0.05

// OverallStatus is the analysis verdict for a test.
type OverallStatus string

const (
	StatusInsufficientData        OverallStatus = "insufficient_data"
	StatusNoSignificantDifference OverallStatus = "no_significant_difference"
	StatusSignificantImprovement  OverallStatus = "significant_improvement"
	StatusSignificantDegradation  OverallStatus = "significant_degradation"
)

// VariantStats aggregates one variant's completed results.
type VariantStats struct {
	VariantName      string  `json:"variant_name"`
	Samples          int     `json:"samples"`
	MeanResponseTime float64 `json:"mean_response_time_ms"`
	MeanCost         float64 `json:"mean_cost"`
	MeanQuality      float64 `json:"mean_quality"`
	SuccessRate      float64 `json:"success_rate"`
}

// MetricChange is one variant's relative change vs control on one metric.
type MetricChange struct {
	Metric         string  `json:"metric"`
	VariantName    string  `json:"variant_name"`
	ControlValue   float64 `json:"control_value"`
	VariantValue   float64 `json:"variant_value"`
	RelativeChange float64 `json:"relative_change"`
	Improved       bool    `json:"improved"`
	Significant    bool    `json:"significant"`
}

// Analysis is the full analysis output for a test.
type Analysis struct {
	TestID          string                  `json:"test_id"`
	TestName        string                  `json:"test_name"`
	Status          OverallStatus           `json:"status"`
	TotalSamples    int                     `json:"total_samples"`
	PValue          float64                 `json:"p_value"`
	VariantStats    map[string]VariantStats `json:"variant_stats"`
	Changes         []MetricChange          `json:"changes,omitempty"`
	Recommendations []string                `json:"recommendations"`
}

// SignificanceTester computes the p-value for a test's result set. The seam
// exists so a proper two-sample test can replace the threshold placeholder
// without touching the analysis flow.
type SignificanceTester interface {
	PValue(totalSamples int, changes []MetricChange) float64
}

// ThresholdTester is the default placeholder tester: sample count alone
// decides the p-value. TODO: replace with a Welch t-test once per-variant
// variances are tracked.
type ThresholdTester struct{}

// PValue returns 0.03 above 100 total samples, 0.15 otherwise.
func (ThresholdTester) PValue(totalSamples int, changes []MetricChange) float64 {
	if totalSamples > 100 {
		return 0.03
	}
	return 0.15
}

// analyze aggregates the test's completed results into a verdict.
func analyze(t *Test, results []Result, tester SignificanceTester) *Analysis {
	analysis := &Analysis{
		TestID:       t.ID,
		TestName:     t.Name,
		TotalSamples: len(results),
		VariantStats: make(map[string]VariantStats),
	}

	if len(results) < minSamplesForAnalysis {
		analysis.Status = StatusInsufficientData
		analysis.PValue = 1
		analysis.Recommendations = []string{
			fmt.Sprintf("only %d of the %d samples needed have been collected; continue the test",
				len(results), minSamplesForAnalysis),
		}
		return analysis
	}

	for i := range t.Variants {
		name := t.Variants[i].Name
		analysis.VariantStats[name] = aggregate(name, results)
	}

	control := t.controlVariant()
	controlStats := analysis.VariantStats[control.Name]
	for i := range t.Variants {
		v := &t.Variants[i]
		if v.IsControl {
			continue
		}
		analysis.Changes = append(analysis.Changes,
			compareVariant(analysis.VariantStats[v.Name], controlStats)...)
	}

	analysis.PValue = tester.PValue(len(results), analysis.Changes)
	significant := analysis.PValue < 0.05

	improved, degraded := false, false
	for i := range analysis.Changes {
		c := &analysis.Changes[i]
		c.Significant = c.Significant && significant
		if !c.Significant {
			continue
		}
		if c.Improved {
			improved = true
		} else {
			degraded = true
		}
	}

	switch {
	case !significant || (!improved && !degraded):
		analysis.Status = StatusNoSignificantDifference
		analysis.Recommendations = []string{
			"no variant differs meaningfully from control; no action needed",
		}
	case improved && !degraded:
		analysis.Status = StatusSignificantImprovement
		analysis.Recommendations = []string{
			fmt.Sprintf("variant %q beats control on at least one success metric; consider rolling it out",
				bestVariant(analysis.Changes)),
		}
	default:
		analysis.Status = StatusSignificantDegradation
		analysis.Recommendations = []string{
			"a non-control variant degrades a success metric; revert affected traffic to control",
		}
	}
	return analysis
}

// aggregate computes the per-variant means over completed results.
func aggregate(variantName string, results []Result) VariantStats {
	stats := VariantStats{VariantName: variantName}
	successes := 0
	for i := range results {
		r := &results[i]
		if r.VariantName != variantName {
			continue
		}
		stats.Samples++
		stats.MeanResponseTime += r.ResponseTimeMs
		stats.MeanCost += r.Cost
		stats.MeanQuality += r.Quality
		if r.Success {
			successes++
		}
	}
	if stats.Samples > 0 {
		n := float64(stats.Samples)
		stats.MeanResponseTime /= n
		stats.MeanCost /= n
		stats.MeanQuality /= n
		stats.SuccessRate = float64(successes) / n
	}
	return stats
}

// compareVariant emits the per-metric changes of one variant vs control.
// Lower is better for response time and cost; higher is better for quality
// and success rate.
func compareVariant(variant, control VariantStats) []MetricChange {
	metrics := []struct {
		name          string
		variantValue  float64
		controlValue  float64
		higherIsWorse bool
	}{
		{"response_time_ms", variant.MeanResponseTime, control.MeanResponseTime, true},
		{"cost", variant.MeanCost, control.MeanCost, true},
		{"quality", variant.MeanQuality, control.MeanQuality, false},
		{"success_rate", variant.SuccessRate, control.SuccessRate, false},
	}

	changes := make([]MetricChange, 0, len(metrics))
	for _, m := range metrics {
		change := MetricChange{
			Metric:       m.name,
			VariantName:  variant.VariantName,
			ControlValue: m.controlValue,
			VariantValue: m.variantValue,
		}
		if m.controlValue != 0 {
			change.RelativeChange = (m.variantValue - m.controlValue) / math.Abs(m.controlValue)
		}
		if m.higherIsWorse {
			change.Improved = change.RelativeChange < 0
		} else {
			change.Improved = change.RelativeChange > 0
		}
		change.Significant = math.Abs(change.RelativeChange) > significantRelativeChange
		changes = append(changes, change)
	}
	return changes
}

// bestVariant names the variant with the largest significant improvement.
func bestVariant(changes []MetricChange) string {
	best, magnitude := "", 0.0
	for i := range changes {
		c := &changes[i]
		if c.Significant && c.Improved && math.Abs(c.RelativeChange) > magnitude {
			best = c.VariantName
			magnitude = math.Abs(c.RelativeChange)
		}
	}
	return best
}
