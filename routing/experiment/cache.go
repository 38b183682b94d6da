// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package experiment

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// AssignmentCache pins a user's variant for a test's duration so repeated
// requests see a stable arm. Implementations must be safe for concurrent use.
type AssignmentCache interface {
	// Get returns the cached variant name, or ok=false on a miss.
	Get(ctx context.Context, testID, userID string) (variant string, ok bool)

	// Set stores the assignment with a time-to-live.
	Set(ctx context.Context, testID, userID, variant string, ttl time.Duration)

	// InvalidateTest drops every assignment for a test, called when the
	// test reaches a terminal state.
	InvalidateTest(ctx context.Context, testID string)
}

const cacheShardCount = 16

type cacheShard struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	variant   string
	expiresAt time.Time
}

// MemoryCache is the in-process fallback assignment cache, sharded per key
// so assignment lookups for unrelated users never contend.
type MemoryCache struct {
	shards [cacheShardCount]*cacheShard
}

// NewMemoryCache creates an empty in-memory assignment cache.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{}
	for i := range c.shards {
		c.shards[i] = &cacheShard{entries: make(map[string]memoryCacheEntry)}
	}
	return c
}

func assignmentKey(testID, userID string) string {
	return "ab:assignment:" + testID + ":" + userID
}

func (c *MemoryCache) shard(key string) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%cacheShardCount]
}

// Get returns the cached variant if present and not expired.
func (c *MemoryCache) Get(ctx context.Context, testID, userID string) (string, bool) {
	key := assignmentKey(testID, userID)
	s := c.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.variant, true
}

// Set stores the assignment.
func (c *MemoryCache) Set(ctx context.Context, testID, userID, variant string, ttl time.Duration) {
	key := assignmentKey(testID, userID)
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryCacheEntry{variant: variant, expiresAt: time.Now().Add(ttl)}
}

// InvalidateTest drops every assignment belonging to the test. Linear over
// the cache; terminal transitions are rare.
func (c *MemoryCache) InvalidateTest(ctx context.Context, testID string) {
	prefix := "ab:assignment:" + testID + ":"
	for _, s := range c.shards {
		s.mu.Lock()
		for key := range s.entries {
			if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}

// RedisCache is the Redis-backed assignment cache used when multiple router
// instances must agree on assignments. Redis failures degrade to cache
// misses; assignment stays correct because the hash is deterministic.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache creates a Redis-backed assignment cache.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the cached variant; any Redis error reads as a miss.
func (c *RedisCache) Get(ctx context.Context, testID, userID string) (string, bool) {
	variant, err := c.client.Get(ctx, assignmentKey(testID, userID)).Result()
	if err != nil {
		return "", false
	}
	return variant, true
}

// Set stores the assignment; errors are ignored since the deterministic
// hash reproduces the same variant on the next miss.
func (c *RedisCache) Set(ctx context.Context, testID, userID, variant string, ttl time.Duration) {
	c.client.Set(ctx, assignmentKey(testID, userID), variant, ttl)
}

// InvalidateTest scans and deletes the test's assignment keys.
func (c *RedisCache) InvalidateTest(ctx context.Context, testID string) {
	pattern := fmt.Sprintf("ab:assignment:%s:*", testID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}
