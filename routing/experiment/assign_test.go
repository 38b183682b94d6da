// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package experiment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedTest(t *testing.T, m *Manager, clock *fakeClock) *Test {
	t.Helper()
	created, err := m.CreateTest(validDefinition(clock))
	require.NoError(t, err)
	require.NoError(t, m.StartTest(created.ID))
	clock.Advance(2 * time.Hour) // move inside the active window
	return created
}

func TestAssignVariantDeterministic(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	m := newTestManager(clock)
	created := startedTest(t, m, clock)

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		userID := fmt.Sprintf("user-%d", i)
		first, err := m.AssignVariant(ctx, created.ID, userID)
		require.NoError(t, err)
		second, err := m.AssignVariant(ctx, created.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, first.Name, second.Name, "user %s flapped variants", userID)
	}
}

func TestAssignVariantStableWithoutCache(t *testing.T) {
	variants := []Variant{
		{Name: "control", TrafficWeight: 50, IsControl: true},
		{Name: "candidate", TrafficWeight: 50},
	}

	// The hash itself is deterministic, so a cold cache reproduces the
	// same assignment.
	for i := 0; i < 100; i++ {
		userID := fmt.Sprintf("user-%d", i)
		first := assignByWeight(userID, "some-test", variants)
		second := assignByWeight(userID, "some-test", variants)
		assert.Equal(t, first.Name, second.Name)
	}
}

func TestTrafficSplitConvergence(t *testing.T) {
	variants := []Variant{
		{Name: "control", TrafficWeight: 50, IsControl: true},
		{Name: "candidate", TrafficWeight: 30},
		{Name: "aggressive", TrafficWeight: 20},
	}

	const users = 10000
	counts := make(map[string]int)
	for i := 0; i < users; i++ {
		v := assignByWeight(fmt.Sprintf("user-%d", i), "traffic-split-test", variants)
		counts[v.Name]++
	}

	for _, v := range variants {
		got := float64(counts[v.Name]) / users * 100
		assert.InDelta(t, v.TrafficWeight, got, 3.0,
			"variant %s share %.1f%% deviates from weight %.0f%%", v.Name, got, v.TrafficWeight)
	}
}

func TestAssignVariantRespectsLifecycle(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	m := newTestManager(clock)
	ctx := context.Background()

	created, err := m.CreateTest(validDefinition(clock))
	require.NoError(t, err)

	// Draft tests assign nobody.
	_, err = m.AssignVariant(ctx, created.ID, "user-1")
	assert.Error(t, err)

	// Running but before the start date: still nobody.
	require.NoError(t, m.StartTest(created.ID))
	_, err = m.AssignVariant(ctx, created.ID, "user-1")
	assert.Error(t, err)

	// Inside the window assignment works.
	clock.Advance(2 * time.Hour)
	v, err := m.AssignVariant(ctx, created.ID, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, v.Name)

	// Paused tests stop assigning.
	require.NoError(t, m.PauseTest(created.ID))
	_, err = m.AssignVariant(ctx, created.ID, "user-1")
	assert.Error(t, err)

	// Past the end date the test auto-completes.
	require.NoError(t, m.StartTest(created.ID))
	clock.Advance(20 * 24 * time.Hour)
	_, err = m.AssignVariant(ctx, created.ID, "user-1")
	assert.Error(t, err)

	got, err := m.GetTest(created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestAssignVariantUnknownTest(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	m := newTestManager(clock)
	_, err := m.AssignVariant(context.Background(), "nope", "user-1")
	assert.ErrorIs(t, err, ErrTestNotFound)
}

func TestActiveTestsKeepCreationOrder(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	m := newTestManager(clock)

	var ids []string
	for _, name := range []string{"rollout-a", "rollout-b", "rollout-c"} {
		def := validDefinition(clock)
		def.Name = name
		created, err := m.CreateTest(def)
		require.NoError(t, err)
		require.NoError(t, m.StartTest(created.ID))
		ids = append(ids, created.ID)
		clock.Advance(time.Minute)
	}
	clock.Advance(2 * time.Hour)

	// Callers walk active tests to pick a strategy, so the order must not
	// depend on registry map iteration.
	for i := 0; i < 20; i++ {
		active := m.ActiveTests()
		require.Len(t, active, 3)
		for j := range active {
			assert.Equal(t, ids[j], active[j].ID, "active tests out of creation order")
		}
	}
}
