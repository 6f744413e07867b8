// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"sync"
	"time"
)

// DefaultCatalogTTL is how long a fetched catalog is served before the
// repository is consulted again.
const DefaultCatalogTTL = 5 * time.Minute

// CatalogCache holds the chat-enabled model catalog with a TTL. The
// catalog is small (well under a hundred rows), so the whole list is
// cached as one entry.
type CatalogCache struct {
	models    []Model
	fetchedAt time.Time
	expiresAt time.Time
	ttl       time.Duration
	mu        sync.RWMutex
	stats     CacheStats
}

// CacheStats tracks cache performance counters
type CacheStats struct {
	Hits         int64
	Misses       int64
	Evictions    int64
	LastEviction time.Time
	mu           sync.Mutex
}

// NewCatalogCache creates a catalog cache with the specified TTL
func NewCatalogCache(ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &CatalogCache{ttl: ttl}
}

// Get returns the cached catalog and whether the entry is still fresh
func (c *CatalogCache) Get() ([]Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.models == nil || time.Now().After(c.expiresAt) {
		c.recordMiss()
		return nil, false
	}

	c.recordHit()
	return c.models, true
}

// Set replaces the cached catalog and restarts the TTL clock
func (c *CatalogCache) Set(models []Model) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.models = models
	c.fetchedAt = now
	c.expiresAt = now.Add(c.ttl)
}

// Invalidate drops the cached catalog so the next Get misses
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.models = nil

	c.stats.mu.Lock()
	c.stats.Evictions++
	c.stats.LastEviction = time.Now()
	c.stats.mu.Unlock()
}

// Age returns how long ago the catalog was fetched, or zero when empty
func (c *CatalogCache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.models == nil {
		return 0
	}
	return time.Since(c.fetchedAt)
}

// GetStats returns a copy of the cache counters
func (c *CatalogCache) GetStats() CacheStats {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()
	return CacheStats{
		Hits:         c.stats.Hits,
		Misses:       c.stats.Misses,
		Evictions:    c.stats.Evictions,
		LastEviction: c.stats.LastEviction,
	}
}

// HitRate returns the cache hit rate as a percentage (0-100)
func (c *CatalogCache) HitRate() float64 {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()

	total := c.stats.Hits + c.stats.Misses
	if total == 0 {
		return 0
	}
	return float64(c.stats.Hits) / float64(total) * 100
}

func (c *CatalogCache) recordHit() {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
}

func (c *CatalogCache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}
