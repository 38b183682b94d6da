// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package costmodel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedDefaults(t *testing.T) {
	feed := NewFeed()

	gpt4 := feed.Pricing("openai", "gpt-4")
	assert.Equal(t, 0.00003, gpt4.InputPricePerToken)
	assert.True(t, gpt4.Premium)

	// Lookups are case-insensitive.
	assert.Equal(t, gpt4, feed.Pricing("OpenAI", "GPT-4"))

	// Unknown pairs fall back to the standard-tier entry.
	unknown := feed.Pricing("acme", "widget-1")
	assert.Equal(t, 0.000005, unknown.InputPricePerToken)
	assert.False(t, unknown.Premium)

	// Unknown providers get the mid-range profile.
	profile := feed.Provider("acme")
	assert.Equal(t, 0.20, profile.BaseUncertainty)
	assert.Equal(t, 0.98, profile.Reliability)
}

func TestFeedReloadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	content := `
models:
  - provider: openai
    model: gpt-4
    input_price_per_token: 0.00001
    output_price_per_token: 0.00002
    compute_rate_per_token: 0.000001
    premium: true
  - provider: acme
    model: widget-1
    input_price_per_token: 0.0000001
    output_price_per_token: 0.0000001
providers:
  acme:
    base_uncertainty: 0.12
    reliability: 0.999
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	feed, err := LoadFeed(path)
	require.NoError(t, err)

	// Overridden entry takes the file's price.
	assert.Equal(t, 0.00001, feed.Pricing("openai", "gpt-4").InputPricePerToken)

	// New entry is available.
	assert.Equal(t, 0.0000001, feed.Pricing("acme", "widget-1").InputPricePerToken)
	assert.Equal(t, 0.999, feed.Provider("acme").Reliability)

	// Entries absent from the file keep their defaults.
	assert.Equal(t, 0.0000002, feed.Pricing("meta", "llama2-7b").InputPricePerToken)
	assert.Equal(t, 0.995, feed.Provider("openai").Reliability)
}

func TestFeedReloadRejectsBadEntries(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing-fields.yaml")
	require.NoError(t, os.WriteFile(missing, []byte("models:\n  - model: orphan\n"), 0o644))
	assert.Error(t, NewFeed().Reload(missing))

	malformed := filepath.Join(dir, "malformed.yaml")
	require.NoError(t, os.WriteFile(malformed, []byte("models: {not a list"), 0o644))
	assert.Error(t, NewFeed().Reload(malformed))

	assert.Error(t, NewFeed().Reload(filepath.Join(dir, "does-not-exist.yaml")))
}

func TestDemandSurchargeCapAndClamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	content := `
providers:
  spiky:
    base_uncertainty: 0.15
    reliability: 0.99
    demand_curve: [0.9, -0.5, 0.1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	feed, err := LoadFeed(path)
	require.NoError(t, err)

	// Feed values above the cap are clamped, negatives floor at zero.
	assert.Equal(t, MaxDemandSurcharge, feed.DemandSurcharge("spiky", 0))
	assert.Equal(t, 0.0, feed.DemandSurcharge("spiky", 1))
	assert.Equal(t, 0.1, feed.DemandSurcharge("spiky", 2))

	// Out-of-range hours fall back to hour zero.
	assert.Equal(t, MaxDemandSurcharge, feed.DemandSurcharge("spiky", -1))
	assert.Equal(t, MaxDemandSurcharge, feed.DemandSurcharge("spiky", 24))

	// Default business-hours curve peaks at lunch.
	defaults := NewFeed()
	assert.Equal(t, 0.25, defaults.DemandSurcharge("openai", 12))
	assert.Equal(t, 0.02, defaults.DemandSurcharge("openai", 3))
}
