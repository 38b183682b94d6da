// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package costmodel

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ModelPricing holds the per-token prices and compute rate for one
// (provider, model) pair. Prices are USD per single token.
type ModelPricing struct {
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`

	// InputPricePerToken is the USD price per input token.
	InputPricePerToken float64 `yaml:"input_price_per_token" json:"input_price_per_token"`

	// OutputPricePerToken is the USD price per output token.
	OutputPricePerToken float64 `yaml:"output_price_per_token" json:"output_price_per_token"`

	// ComputeRatePerToken is the compute surcharge per token before the
	// complexity multiplier is applied.
	ComputeRatePerToken float64 `yaml:"compute_rate_per_token" json:"compute_rate_per_token"`

	// Premium marks frontier commercial models; open-source models carry
	// a negative "open-source model" cost factor instead.
	Premium bool `yaml:"premium" json:"premium"`
}

// ProviderProfile holds the per-provider uncertainty and demand data.
type ProviderProfile struct {
	// BaseUncertainty is the base prediction uncertainty (0.10-0.25).
	BaseUncertainty float64 `yaml:"base_uncertainty" json:"base_uncertainty"`

	// DemandCurve is the 24-point hourly surcharge curve. Values are
	// fractions; lookups are capped at 0.5 regardless of feed content.
	DemandCurve [24]float64 `yaml:"demand_curve" json:"demand_curve"`

	// Reliability is the provider's trailing availability (0.0-1.0),
	// consumed by risk assessment.
	Reliability float64 `yaml:"reliability" json:"reliability"`
}

// feedFile is the YAML shape of a pricing feed file.
type feedFile struct {
	Models    []ModelPricing             `yaml:"models"`
	Providers map[string]ProviderProfile `yaml:"providers"`
}

// Feed supplies pricing and demand data to the cost model. It is refreshed
// independently of requests via Reload; all reads take a shared lock so a
// reload never tears a prediction.
type Feed struct {
	mu        sync.RWMutex
	models    map[string]ModelPricing
	providers map[string]ProviderProfile
}

// MaxDemandSurcharge caps the hourly surcharge no matter what the feed says.
const MaxDemandSurcharge = 0.5

func pricingKey(provider, model string) string {
	return strings.ToLower(provider) + ":" + strings.ToLower(model)
}

// NewFeed creates a Feed preloaded with the built-in default price book.
func NewFeed() *Feed {
	f := &Feed{
		models:    make(map[string]ModelPricing),
		providers: make(map[string]ProviderProfile),
	}
	f.applyDefaults()
	return f
}

// LoadFeed creates a Feed from a YAML file layered over the defaults.
func LoadFeed(path string) (*Feed, error) {
	f := NewFeed()
	if err := f.Reload(path); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload replaces feed entries from the YAML file at path. Entries absent
// from the file keep their current values.
func (f *Feed) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read pricing feed: %w", err)
	}

	var file feedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse pricing feed: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, m := range file.Models {
		if m.Provider == "" || m.Model == "" {
			return fmt.Errorf("pricing feed entry missing provider or model")
		}
		f.models[pricingKey(m.Provider, m.Model)] = m
	}
	for provider, profile := range file.Providers {
		f.providers[strings.ToLower(provider)] = profile
	}

	return nil
}

// Pricing returns the price book entry for (provider, model). Unknown pairs
// fall back to a conservative standard-tier entry so prediction can proceed.
func (f *Feed) Pricing(provider, model string) ModelPricing {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if p, ok := f.models[pricingKey(provider, model)]; ok {
		return p
	}
	return ModelPricing{
		Provider:            provider,
		Model:               model,
		InputPricePerToken:  0.000005,
		OutputPricePerToken: 0.000015,
		ComputeRatePerToken: 0.000001,
	}
}

// Provider returns the provider profile, defaulting to a mid-range profile
// for unknown providers.
func (f *Feed) Provider(provider string) ProviderProfile {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if p, ok := f.providers[strings.ToLower(provider)]; ok {
		return p
	}
	return ProviderProfile{
		BaseUncertainty: 0.20,
		DemandCurve:     flatCurve(0.05),
		Reliability:     0.98,
	}
}

// DemandSurcharge returns the surcharge fraction for the provider at the
// given hour (0-23), capped at MaxDemandSurcharge.
func (f *Feed) DemandSurcharge(provider string, hour int) float64 {
	profile := f.Provider(provider)
	if hour < 0 || hour > 23 {
		hour = 0
	}
	surcharge := profile.DemandCurve[hour]
	if surcharge < 0 {
		return 0
	}
	if surcharge > MaxDemandSurcharge {
		return MaxDemandSurcharge
	}
	return surcharge
}

// applyDefaults installs the built-in price book. Figures track public list
// prices at the time of writing; deployments override them with a feed file.
func (f *Feed) applyDefaults() {
	defaults := []ModelPricing{
		{Provider: "openai", Model: "gpt-4", InputPricePerToken: 0.00003, OutputPricePerToken: 0.00006, ComputeRatePerToken: 0.000004, Premium: true},
		{Provider: "openai", Model: "gpt-3.5-turbo", InputPricePerToken: 0.0000005, OutputPricePerToken: 0.0000015, ComputeRatePerToken: 0.0000002},
		{Provider: "anthropic", Model: "claude-3-opus", InputPricePerToken: 0.000015, OutputPricePerToken: 0.000075, ComputeRatePerToken: 0.000004, Premium: true},
		{Provider: "anthropic", Model: "claude-3-haiku", InputPricePerToken: 0.00000025, OutputPricePerToken: 0.00000125, ComputeRatePerToken: 0.0000001},
		{Provider: "meta", Model: "llama2-7b", InputPricePerToken: 0.0000002, OutputPricePerToken: 0.0000002, ComputeRatePerToken: 0.0000001},
		{Provider: "meta", Model: "llama2-70b", InputPricePerToken: 0.000001, OutputPricePerToken: 0.000001, ComputeRatePerToken: 0.0000003},
	}
	for _, m := range defaults {
		f.models[pricingKey(m.Provider, m.Model)] = m
	}

	businessHours := flatCurve(0.02)
	for h := 9; h <= 17; h++ {
		businessHours[h] = 0.15
	}
	businessHours[12] = 0.25
	businessHours[13] = 0.25

	f.providers["openai"] = ProviderProfile{BaseUncertainty: 0.15, DemandCurve: businessHours, Reliability: 0.995}
	f.providers["anthropic"] = ProviderProfile{BaseUncertainty: 0.10, DemandCurve: businessHours, Reliability: 0.996}
	f.providers["meta"] = ProviderProfile{BaseUncertainty: 0.25, DemandCurve: flatCurve(0.02), Reliability: 0.97}
}

func flatCurve(value float64) [24]float64 {
	var curve [24]float64
	for i := range curve {
		curve[i] = value
	}
	return curve
}
