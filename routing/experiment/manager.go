// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package experiment

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"axonflow/router/shared/logger"
)

// ErrTestNotFound is returned when a test id has no registered test.
var ErrTestNotFound = errors.New("test not found")

// defaultAssignmentTTL caps cached assignments for tests with no end date.
const defaultAssignmentTTL = 30 * 24 * time.Hour

// autoCompleteInterval is how often the background sweep checks for tests
// whose end date has elapsed.
const autoCompleteInterval = time.Minute

// storeSaveTimeout caps a single durable result save.
const storeSaveTimeout = 5 * time.Second

// Manager owns the test registry, assignment and result collection. Safe
// for concurrent use; the test registry takes a single lock while the
// assignment hot path only reads it.
type Manager struct {
	mu    sync.RWMutex
	tests map[string]*Test

	cache   AssignmentCache
	store   ResultStore
	tester  SignificanceTester
	results *resultLog
	log     *logger.Logger
	now     func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCache sets the assignment cache. Defaults to an in-memory cache.
func WithCache(cache AssignmentCache) ManagerOption {
	return func(m *Manager) { m.cache = cache }
}

// WithResultStore attaches a durable result sink.
func WithResultStore(store ResultStore) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithSignificanceTester replaces the default threshold tester.
func WithSignificanceTester(tester SignificanceTester) ManagerOption {
	return func(m *Manager) { m.tester = tester }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		tests:   make(map[string]*Test),
		results: newResultLog(),
		tester:  ThresholdTester{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cache == nil {
		m.cache = NewMemoryCache()
	}
	if m.log == nil {
		m.log = logger.New("experiment-manager")
	}
	return m
}

// CreateTest validates and registers a test in draft state.
func (m *Manager) CreateTest(def Test) (*Test, error) {
	now := m.now()
	if err := validateDefinition(&def, now); err != nil {
		return nil, err
	}

	def.ID = uuid.New().String()
	def.Status = StatusDraft
	def.CreatedAt = now
	def.UpdatedAt = now

	m.mu.Lock()
	m.tests[def.ID] = &def
	m.mu.Unlock()

	m.log.Info("", "", "A/B test created", map[string]interface{}{
		"test_id":  def.ID,
		"name":     def.Name,
		"variants": len(def.Variants),
	})
	copied := def
	return &copied, nil
}

// StartTest moves a draft or paused test to running.
func (m *Manager) StartTest(testID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tests[testID]
	if !ok {
		return fmt.Errorf("test %q: %w", testID, ErrTestNotFound)
	}
	if t.Status != StatusDraft && t.Status != StatusPaused {
		return fmt.Errorf("test %q cannot start from status %q", testID, t.Status)
	}
	if err := validateStartable(t); err != nil {
		return err
	}

	t.Status = StatusRunning
	t.UpdatedAt = m.now()
	m.log.Info("", "", "A/B test started", map[string]interface{}{"test_id": testID, "name": t.Name})
	return nil
}

// PauseTest suspends assignment for a running test.
func (m *Manager) PauseTest(testID string) error {
	return m.transition(testID, StatusPaused, StatusRunning)
}

// CompleteTest ends a running or paused test normally.
func (m *Manager) CompleteTest(testID string) error {
	if err := m.transition(testID, StatusCompleted, StatusRunning, StatusPaused); err != nil {
		return err
	}
	m.cache.InvalidateTest(context.Background(), testID)
	return nil
}

// CancelTest abandons a test from any non-terminal state.
func (m *Manager) CancelTest(testID string) error {
	if err := m.transition(testID, StatusCancelled, StatusDraft, StatusRunning, StatusPaused); err != nil {
		return err
	}
	m.cache.InvalidateTest(context.Background(), testID)
	return nil
}

func (m *Manager) transition(testID string, to Status, from ...Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tests[testID]
	if !ok {
		return fmt.Errorf("test %q: %w", testID, ErrTestNotFound)
	}
	for _, s := range from {
		if t.Status == s {
			t.Status = to
			t.UpdatedAt = m.now()
			m.log.Info("", "", "A/B test transitioned", map[string]interface{}{
				"test_id": testID,
				"status":  string(to),
			})
			return nil
		}
	}
	return fmt.Errorf("test %q cannot move to %q from %q", testID, to, t.Status)
}

// GetTest returns a copy of the test.
func (m *Manager) GetTest(testID string) (*Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tests[testID]
	if !ok {
		return nil, fmt.Errorf("test %q: %w", testID, ErrTestNotFound)
	}
	copied := *t
	copied.Variants = append([]Variant(nil), t.Variants...)
	return &copied, nil
}

// ActiveTests returns the tests currently assigning users, auto-completing
// any whose end date has elapsed. Tests come back in creation order (ties
// broken by id) so callers that walk them make the same choice every call.
func (m *Manager) ActiveTests() []Test {
	now := m.now()
	m.sweepExpired(now)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []Test
	for _, t := range m.tests {
		if t.Status != StatusRunning {
			continue
		}
		if now.Before(t.StartDate) {
			continue
		}
		copied := *t
		copied.Variants = append([]Variant(nil), t.Variants...)
		active = append(active, copied)
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID < active[j].ID
	})
	return active
}

// AssignVariant returns the user's variant for a running test. Assignment
// is a deterministic hash of (userID, test name) against the cumulative
// traffic weights, cached for the test's remaining duration.
func (m *Manager) AssignVariant(ctx context.Context, testID, userID string) (*Variant, error) {
	m.mu.RLock()
	t, ok := m.tests[testID]
	if !ok {
		m.mu.RUnlock()
		return nil, fmt.Errorf("test %q: %w", testID, ErrTestNotFound)
	}
	now := m.now()
	if t.Status != StatusRunning || now.Before(t.StartDate) {
		m.mu.RUnlock()
		return nil, fmt.Errorf("test %q is not assigning users", testID)
	}
	if !t.EndDate.IsZero() && now.After(t.EndDate) {
		m.mu.RUnlock()
		m.sweepExpired(now)
		return nil, fmt.Errorf("test %q is not assigning users", testID)
	}

	name := t.Name
	variants := append([]Variant(nil), t.Variants...)
	endDate := t.EndDate
	m.mu.RUnlock()

	if cached, ok := m.cache.Get(ctx, testID, userID); ok {
		for i := range variants {
			if variants[i].Name == cached {
				return &variants[i], nil
			}
		}
	}

	variant := assignByWeight(userID, name, variants)

	ttl := defaultAssignmentTTL
	if !endDate.IsZero() {
		if remaining := endDate.Sub(now); remaining < ttl {
			ttl = remaining
		}
	}
	m.cache.Set(ctx, testID, userID, variant.Name, ttl)
	return variant, nil
}

// assignByWeight maps hash(userID+testName) mod 100 against the cumulative
// variant weights in declaration order.
func assignByWeight(userID, testName string, variants []Variant) *Variant {
	h := fnv.New32a()
	h.Write([]byte(userID + testName))
	bucket := float64(h.Sum32() % 100)

	cumulative := 0.0
	for i := range variants {
		cumulative += variants[i].TrafficWeight
		if bucket < cumulative {
			return &variants[i]
		}
	}
	// Rounding slack in the weights: the last variant absorbs it.
	return &variants[len(variants)-1]
}

// RecordResult appends a result and mirrors it to the durable store when
// one is configured. Storage failures are logged and dropped.
func (m *Manager) RecordResult(ctx context.Context, result Result) {
	if result.Timestamp.IsZero() {
		result.Timestamp = m.now()
	}
	m.results.append(result)

	if m.store != nil && !result.Provisional {
		storeCtx, cancel := context.WithTimeout(ctx, storeSaveTimeout)
		go func() {
			defer cancel()
			if err := m.store.SaveResult(storeCtx, result); err != nil {
				m.log.ErrorWithErr(result.UserID, result.RequestID,
					"failed to persist test result", err, map[string]interface{}{"test_id": result.TestID})
			}
		}()
	}
}

// CompleteResult fills in the metrics of a provisional result once the real
// call finished. Returns false when no matching provisional record exists.
func (m *Manager) CompleteResult(ctx context.Context, testID, requestID string, responseTimeMs, cost, quality float64, success bool) bool {
	ok := m.results.complete(testID, requestID, responseTimeMs, cost, quality, success)
	if ok && m.store != nil {
		for _, r := range m.results.snapshot(testID) {
			if r.RequestID == requestID {
				m.RecordResultToStore(ctx, r)
				break
			}
		}
	}
	return ok
}

// RecordResultToStore mirrors one completed result to the durable store.
// The save runs on its own goroutine but inherits the caller's cancellation,
// capped at storeSaveTimeout.
func (m *Manager) RecordResultToStore(ctx context.Context, result Result) {
	if m.store == nil {
		return
	}
	storeCtx, cancel := context.WithTimeout(ctx, storeSaveTimeout)
	go func() {
		defer cancel()
		if err := m.store.SaveResult(storeCtx, result); err != nil {
			m.log.ErrorWithErr(result.UserID, result.RequestID,
				"failed to persist test result", err, map[string]interface{}{"test_id": result.TestID})
		}
	}()
}

// AnalyzeTest aggregates the test's completed results into a verdict.
func (m *Manager) AnalyzeTest(testID string) (*Analysis, error) {
	t, err := m.GetTest(testID)
	if err != nil {
		return nil, err
	}
	return analyze(t, m.results.snapshot(testID), m.tester), nil
}

// Run sweeps for expired tests until the context is cancelled. Intended to
// run on its own goroutine.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(autoCompleteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepExpired(m.now())
		}
	}
}

// sweepExpired completes running tests whose end date has elapsed.
func (m *Manager) sweepExpired(now time.Time) {
	var expired []string

	m.mu.Lock()
	for id, t := range m.tests {
		if t.Status == StatusRunning && !t.EndDate.IsZero() && now.After(t.EndDate) {
			t.Status = StatusCompleted
			t.UpdatedAt = now
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.cache.InvalidateTest(context.Background(), id)
		m.log.Info("", "", "A/B test auto-completed", map[string]interface{}{"test_id": id})
	}
}
