// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package balancer scores agents on current load and cost efficiency. Both
// scorers are pure functions of the agent snapshot plus bounded rolling
// histories they maintain per agent; they never perform I/O and never fail,
// falling back to neutral scores when history is missing.
package balancer

import (
	"hash/fnv"
	"math"
	"sync"
)

const (
	// maxSamples bounds each agent's rolling history.
	maxSamples = 100

	// shardCount is the number of lock shards in a sample map.
	shardCount = 16

	// neutralScore is returned when no history or pricing is available.
	neutralScore = 50.0
)

// TrendDirection classifies how a rolling series is moving.
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendStable  TrendDirection = "stable"
)

// Volatility buckets the coefficient of variation of a rolling series.
type Volatility string

const (
	VolatilityLow    Volatility = "low"
	VolatilityMedium Volatility = "medium"
	VolatilityHigh   Volatility = "high"
)

// SeriesStats summarizes one agent's rolling history.
type SeriesStats struct {
	Samples    int            `json:"samples"`
	Mean       float64        `json:"mean"`
	Variance   float64        `json:"variance"`
	Trend      TrendDirection `json:"trend"`
	Volatility Volatility     `json:"volatility"`
}

type sampleShard struct {
	mu      sync.RWMutex
	samples map[string][]float64
}

// sampleMap holds bounded rolling samples keyed by agent id, sharded 16 ways
// so recording for one agent never contends with scoring another.
type sampleMap struct {
	shards [shardCount]*sampleShard
}

func newSampleMap() *sampleMap {
	m := &sampleMap{}
	for i := range m.shards {
		m.shards[i] = &sampleShard{samples: make(map[string][]float64)}
	}
	return m
}

func (m *sampleMap) shard(agentID string) *sampleShard {
	h := fnv.New32a()
	h.Write([]byte(agentID))
	return m.shards[h.Sum32()%shardCount]
}

// Record appends a sample, evicting the oldest once the cap is reached.
func (m *sampleMap) Record(agentID string, value float64) {
	s := m.shard(agentID)
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := append(s.samples[agentID], value)
	if len(samples) > maxSamples {
		samples = samples[len(samples)-maxSamples:]
	}
	s.samples[agentID] = samples
}

// Mean returns the rolling mean and whether any samples exist.
func (m *sampleMap) Mean(agentID string) (float64, bool) {
	s := m.shard(agentID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := s.samples[agentID]
	if len(samples) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples)), true
}

// Len returns the number of samples recorded for the agent.
func (m *sampleMap) Len(agentID string) int {
	s := m.shard(agentID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples[agentID])
}

// Stats computes the mean, variance, trend and volatility bucket for the
// agent's rolling series. Series shorter than four samples report a stable
// trend and low volatility.
func (m *sampleMap) Stats(agentID string) SeriesStats {
	s := m.shard(agentID)
	s.mu.RLock()
	samples := make([]float64, len(s.samples[agentID]))
	copy(samples, s.samples[agentID])
	s.mu.RUnlock()

	stats := SeriesStats{
		Samples:    len(samples),
		Trend:      TrendStable,
		Volatility: VolatilityLow,
	}
	if len(samples) == 0 {
		return stats
	}

	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	stats.Mean = sum / float64(len(samples))

	for _, v := range samples {
		stats.Variance += (v - stats.Mean) * (v - stats.Mean)
	}
	stats.Variance /= float64(len(samples))

	if len(samples) < 4 {
		return stats
	}

	// Volatility: coefficient of variation against the series mean.
	if stats.Mean > 0 {
		cov := math.Sqrt(stats.Variance) / stats.Mean
		switch {
		case cov >= 0.3:
			stats.Volatility = VolatilityHigh
		case cov >= 0.1:
			stats.Volatility = VolatilityMedium
		}
	}

	// Trend: newer half against older half, with a 10% dead band.
	half := len(samples) / 2
	olderMean := mean(samples[:half])
	newerMean := mean(samples[len(samples)-half:])
	if olderMean > 0 {
		change := (newerMean - olderMean) / olderMean
		switch {
		case change > 0.1:
			stats.Trend = TrendRising
		case change < -0.1:
			stats.Trend = TrendFalling
		}
	}
	return stats
}

func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}
