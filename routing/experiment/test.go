// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package experiment implements the A/B testing framework for routing
// strategy rollouts: test lifecycle management, deterministic user
// assignment, result collection and simplified significance analysis.
package experiment

import (
	"fmt"
	"math"
	"time"
)

// Status is the lifecycle state of an A/B test.
type Status string

const (
	// StatusDraft is the initial state after creation.
	StatusDraft Status = "draft"

	// StatusRunning means the test is actively assigning users.
	StatusRunning Status = "running"

	// StatusPaused means assignment is suspended but the test can resume.
	StatusPaused Status = "paused"

	// StatusCompleted is terminal: the test ended normally.
	StatusCompleted Status = "completed"

	// StatusCancelled is terminal: the test was abandoned.
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Variant is one arm of an A/B test. Config carries the routing strategy
// parameters the orchestrator applies to users in this arm.
type Variant struct {
	Name          string                 `json:"name"`
	Description   string                 `json:"description,omitempty"`
	Config        map[string]interface{} `json:"config"`
	TrafficWeight float64                `json:"traffic_weight"`
	IsControl     bool                   `json:"is_control"`
}

// Test is one A/B test definition plus its lifecycle state.
type Test struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Status         Status    `json:"status"`
	Variants       []Variant `json:"variants"`
	SuccessMetrics []string  `json:"success_metrics"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// weightTolerance is the slack allowed when variant weights are summed.
const weightTolerance = 0.1

// validateDefinition checks the invariants required at creation time.
func validateDefinition(t *Test, now time.Time) error {
	if t.Name == "" {
		return fmt.Errorf("test name must not be empty")
	}
	if len(t.Variants) < 2 {
		return fmt.Errorf("test %q needs at least 2 variants, got %d", t.Name, len(t.Variants))
	}

	controls := 0
	totalWeight := 0.0
	seen := make(map[string]bool, len(t.Variants))
	for i := range t.Variants {
		v := &t.Variants[i]
		if v.Name == "" {
			return fmt.Errorf("test %q has a variant with no name", t.Name)
		}
		if seen[v.Name] {
			return fmt.Errorf("test %q declares variant %q twice", t.Name, v.Name)
		}
		seen[v.Name] = true
		if v.IsControl {
			controls++
		}
		if v.TrafficWeight < 0 {
			return fmt.Errorf("test %q variant %q has negative traffic weight", t.Name, v.Name)
		}
		totalWeight += v.TrafficWeight
	}
	if controls != 1 {
		return fmt.Errorf("test %q needs exactly one control variant, got %d", t.Name, controls)
	}
	if math.Abs(totalWeight-100) > weightTolerance {
		return fmt.Errorf("test %q traffic weights sum to %.2f, want 100", t.Name, totalWeight)
	}
	if !t.StartDate.After(now) {
		return fmt.Errorf("test %q start date must be in the future", t.Name)
	}
	if !t.EndDate.IsZero() && !t.EndDate.After(t.StartDate) {
		return fmt.Errorf("test %q end date must be after its start date", t.Name)
	}
	return nil
}

// validateStartable checks the invariants required before a test may run.
func validateStartable(t *Test) error {
	for i := range t.Variants {
		if len(t.Variants[i].Config) == 0 {
			return fmt.Errorf("test %q variant %q has no config", t.Name, t.Variants[i].Name)
		}
	}
	if len(t.SuccessMetrics) == 0 {
		return fmt.Errorf("test %q defines no success metrics", t.Name)
	}
	return nil
}

// controlVariant returns the control arm. Definition validation guarantees
// exactly one exists.
func (t *Test) controlVariant() *Variant {
	for i := range t.Variants {
		if t.Variants[i].IsControl {
			return &t.Variants[i]
		}
	}
	return nil
}
