// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package routing

import (
	"sync"
	"time"
)

const (
	// routingHistoryCap bounds the in-memory decision log.
	routingHistoryCap = 1000

	// routingHistoryTrimTo is the size the log is trimmed to on overflow.
	routingHistoryTrimTo = 800
)

// HistoryEntry is one routing decision kept for feedback correlation and
// inspection.
type HistoryEntry struct {
	RequestID string            `json:"request_id"`
	UserID    string            `json:"user_id,omitempty"`
	AgentID   string            `json:"agent_id"`
	Provider  string            `json:"provider"`
	Model     string            `json:"model"`
	Score     float64           `json:"score"`
	Strategy  string            `json:"strategy"`
	Tests     map[string]string `json:"tests,omitempty"`
	DecidedAt time.Time         `json:"decided_at"`
}

// routingHistory is the bounded in-memory decision log.
type routingHistory struct {
	mu      sync.RWMutex
	entries []HistoryEntry
}

func newRoutingHistory() *routingHistory {
	return &routingHistory{entries: make([]HistoryEntry, 0, routingHistoryCap)}
}

func (h *routingHistory) append(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entry)
	if len(h.entries) > routingHistoryCap {
		trimmed := make([]HistoryEntry, routingHistoryTrimTo)
		copy(trimmed, h.entries[len(h.entries)-routingHistoryTrimTo:])
		h.entries = trimmed
	}
}

// byRequestID returns the newest entry for the request id.
func (h *routingHistory) byRequestID(requestID string) (HistoryEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].RequestID == requestID {
			return h.entries[i], true
		}
	}
	return HistoryEntry{}, false
}

// recent returns up to limit entries, newest first.
func (h *routingHistory) recent(limit int) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.entries) {
		limit = len(h.entries)
	}
	out := make([]HistoryEntry, 0, limit)
	for i := len(h.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.entries[i])
	}
	return out
}

func (h *routingHistory) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
