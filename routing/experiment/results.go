// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package experiment

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Result is one observed outcome for a user assigned to a variant. Recorded
// provisionally at routing time and completed once the real call's metrics
// are known.
type Result struct {
	TestID         string    `json:"test_id"`
	VariantName    string    `json:"variant_name"`
	UserID         string    `json:"user_id"`
	RequestID      string    `json:"request_id"`
	Timestamp      time.Time `json:"timestamp"`
	ResponseTimeMs float64   `json:"response_time_ms"`
	Cost           float64   `json:"cost"`
	Quality        float64   `json:"quality"`
	Success        bool      `json:"success"`

	// Provisional marks a routing-time record whose metrics have not been
	// filled in yet. Provisional records are excluded from analysis.
	Provisional bool `json:"provisional"`
}

// ResultStore is an optional durable sink for results. The in-memory log is
// authoritative for analysis within the process.
type ResultStore interface {
	SaveResult(ctx context.Context, result Result) error
}

// resultLog is the append-only in-memory result collection, sharded by test.
type resultLog struct {
	mu      sync.RWMutex
	results map[string][]Result
}

func newResultLog() *resultLog {
	return &resultLog{results: make(map[string][]Result)}
}

// append adds a result to the test's log.
func (l *resultLog) append(result Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results[result.TestID] = append(l.results[result.TestID], result)
}

// complete fills in the metrics of the provisional record matching the
// request id, newest first. Returns false when no provisional record exists.
func (l *resultLog) complete(testID, requestID string, responseTimeMs, cost, quality float64, success bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	results := l.results[testID]
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].RequestID == requestID && results[i].Provisional {
			results[i].ResponseTimeMs = responseTimeMs
			results[i].Cost = cost
			results[i].Quality = quality
			results[i].Success = success
			results[i].Provisional = false
			return true
		}
	}
	return false
}

// snapshot returns a copy of the test's completed results.
func (l *resultLog) snapshot(testID string) []Result {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Result
	for _, r := range l.results[testID] {
		if !r.Provisional {
			out = append(out, r)
		}
	}
	return out
}

// PostgresResultStore mirrors completed results into PostgreSQL for offline
// analysis.
type PostgresResultStore struct {
	db *sql.DB
}

// NewPostgresResultStore creates a PostgreSQL-backed result store.
func NewPostgresResultStore(db *sql.DB) *PostgresResultStore {
	return &PostgresResultStore{db: db}
}

// SaveResult persists one result row.
func (s *PostgresResultStore) SaveResult(ctx context.Context, result Result) error {
	query := `
		INSERT INTO ab_test_results (
			test_id, variant_name, user_id, request_id, recorded_at,
			response_time_ms, cost, quality, success
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		result.TestID,
		result.VariantName,
		result.UserID,
		result.RequestID,
		result.Timestamp,
		result.ResponseTimeMs,
		result.Cost,
		result.Quality,
		result.Success,
	)
	if err != nil {
		return fmt.Errorf("failed to save test result: %w", err)
	}
	return nil
}
