// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

// Package session manages ephemeral state around long-running chat
// requests: an in-process TTL cache for hot session state and a
// Redis-backed store for state that must outlive the process.
package session

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is the idle lifetime of a cached session.
const DefaultTTL = 30 * time.Minute

// Attachment is a file staged against a session before a chat request.
type Attachment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	StagedAt    time.Time `json:"staged_at"`
}

// State is the ephemeral state of one chat session.
type State struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Provider     string       `json:"provider,omitempty"`
	Model        string       `json:"model,omitempty"`
	MessageCount int          `json:"message_count"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActive   time.Time    `json:"last_active"`
}

// clone copies a State, attachments included, so cached entries never
// share memory with caller-held pointers.
func (s *State) clone() *State {
	out := *s
	if len(s.Attachments) > 0 {
		out.Attachments = append([]Attachment(nil), s.Attachments...)
	}
	return &out
}

type entry struct {
	state     State
	expiresAt time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// Cache is a thread-safe TTL map of session state. Eviction is a naive
// periodic scan; the session population is bounded by active users.
type Cache struct {
	entries map[string]*entry
	ttl     time.Duration
	mu      sync.RWMutex
	stats   Stats
}

// Stats tracks cache performance counters
type Stats struct {
	Hits         int64
	Misses       int64
	Evictions    int64
	LastEviction time.Time
	mu           sync.Mutex
}

// NewCache creates a session cache with the specified TTL
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]*entry),
		ttl:     ttl,
	}
}

// Get retrieves a copy of a session by ID. Expired entries read as
// misses. Callers own the returned State; writing it back goes through
// Set.
func (c *Cache) Get(sessionID string) (*State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[sessionID]
	if !exists || e.expired() {
		c.recordMiss()
		return nil, false
	}

	c.recordHit()
	return e.state.clone(), true
}

// Set stores a copy of the session and restarts its TTL clock
func (c *Cache) Set(state *State) {
	if state == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[state.ID] = &entry{
		state:     *state.clone(),
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Touch extends a session's TTL without replacing its state.
// Returns false when the session is absent or already expired.
func (c *Cache) Touch(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[sessionID]
	if !exists || e.expired() {
		return false
	}
	e.expiresAt = time.Now().Add(c.ttl)
	e.state.LastActive = time.Now().UTC()
	return true
}

// Delete removes a session
func (c *Cache) Delete(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, sessionID)
}

// Len returns the number of entries, expired ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Cleanup removes expired entries and returns the eviction count.
// Call periodically; StartJanitor does this on an interval.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for id, e := range c.entries {
		if e.expired() {
			delete(c.entries, id)
			evicted++
		}
	}

	if evicted > 0 {
		c.stats.mu.Lock()
		c.stats.Evictions += int64(evicted)
		c.stats.LastEviction = time.Now()
		c.stats.mu.Unlock()
	}

	return evicted
}

// StartJanitor runs Cleanup on the interval until ctx is canceled
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Cleanup()
			}
		}
	}()
}

// GetStats returns a copy of the cache counters
func (c *Cache) GetStats() Stats {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()
	return Stats{
		Hits:         c.stats.Hits,
		Misses:       c.stats.Misses,
		Evictions:    c.stats.Evictions,
		LastEviction: c.stats.LastEviction,
	}
}

// HitRate returns the cache hit rate as a percentage (0-100)
func (c *Cache) HitRate() float64 {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()

	total := c.stats.Hits + c.stats.Misses
	if total == 0 {
		return 0
	}
	return float64(c.stats.Hits) / float64(total) * 100
}

func (c *Cache) recordHit() {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
}

func (c *Cache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}
