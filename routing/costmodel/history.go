// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package costmodel

import (
	"math"
	"sync"
	"time"

	"axonflow/router/shared/types"
)

const (
	// historyCap is the maximum number of records kept in memory.
	historyCap = 10000

	// historyTrimTo is the size the buffer is trimmed to on overflow.
	historyTrimTo = 8000
)

// costHistory is the bounded in-memory record store backing volume
// discounts and model-accuracy tracking. It is process-lifetime only;
// durable persistence is a collaborator concern.
type costHistory struct {
	mu      sync.RWMutex
	records []types.HistoricalCostRecord
}

func newCostHistory() *costHistory {
	return &costHistory{
		records: make([]types.HistoricalCostRecord, 0, historyCap),
	}
}

// Append adds a record, trimming the oldest entries when the cap is hit.
// Returns the record count after any trim; the model schedules a periodic
// accuracy recompute when it lands on a multiple of the recompute interval.
// The trim target is itself such a multiple, so the schedule survives wraps.
func (h *costHistory) Append(record types.HistoricalCostRecord) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, record)
	if len(h.records) > historyCap {
		trimmed := make([]types.HistoricalCostRecord, historyTrimTo)
		copy(trimmed, h.records[len(h.records)-historyTrimTo:])
		h.records = trimmed
	}
	return len(h.records)
}

// TrailingSpend sums the user's actual spend with the exact
// (provider, model) pair over the trailing window ending at now.
func (h *costHistory) TrailingSpend(userID, provider, model string, now time.Time, window time.Duration) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cutoff := now.Add(-window)
	spend := 0.0
	for i := range h.records {
		r := &h.records[i]
		if r.UserID != userID || r.Provider != provider || r.Model != model {
			continue
		}
		if r.Timestamp.Before(cutoff) || r.Timestamp.After(now) {
			continue
		}
		spend += r.ActualCost
	}
	return spend
}

// TrailingUserSpend sums the user's actual spend across all providers and
// models over the trailing window ending at now.
func (h *costHistory) TrailingUserSpend(userID string, now time.Time, window time.Duration) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cutoff := now.Add(-window)
	spend := 0.0
	for i := range h.records {
		r := &h.records[i]
		if r.UserID != userID {
			continue
		}
		if r.Timestamp.Before(cutoff) || r.Timestamp.After(now) {
			continue
		}
		spend += r.ActualCost
	}
	return spend
}

// Accuracy computes 1 - mean absolute percentage error over all records
// with a usable actual cost. Returns a neutral 0.5 with no data.
func (h *costHistory) Accuracy() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	totalErr := 0.0
	for i := range h.records {
		r := &h.records[i]
		if r.ActualCost <= 0 {
			continue
		}
		totalErr += math.Abs(r.ActualCost-r.PredictedCost) / r.ActualCost
		n++
	}
	if n == 0 {
		return 0.5
	}
	accuracy := 1 - totalErr/float64(n)
	return math.Max(0, math.Min(1, accuracy))
}

// Len returns the current record count.
func (h *costHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
