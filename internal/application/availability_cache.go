package application

import (
	"context"
	"sync"
	"time"
)

// AvailabilityCache stores computed availability projections.
//
// Lookup returns the resource's current generation alongside any hit. Store
// must be given the generation observed before the projection was computed;
// entries stored under an older generation are never served.
type AvailabilityCache interface {
	Lookup(ctx context.Context, key AvailabilityKey) (days []DayStatus, generation uint64, ok bool)
	Store(ctx context.Context, key AvailabilityKey, generation uint64, days []DayStatus)
	InvalidateResource(ctx context.Context, resourceID string)
}

// MemoryAvailabilityCache is an in-process AvailabilityCache with a TTL and a
// bounded number of entries.
type MemoryAvailabilityCache struct {
	mu          sync.Mutex
	now         func() time.Time
	ttl         time.Duration
	maxEntries  int
	generations map[string]uint64
	entries     map[AvailabilityKey]availabilityCacheEntry
}

type availabilityCacheEntry struct {
	days       []DayStatus
	generation uint64
	expiresAt  time.Time
}

// NewMemoryAvailabilityCache returns an empty cache. Non-positive ttl and
// maxEntries fall back to 30 seconds and 256 entries.
func NewMemoryAvailabilityCache(ttl time.Duration, maxEntries int, now func() time.Time) *MemoryAvailabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryAvailabilityCache{
		now:         now,
		ttl:         ttl,
		maxEntries:  maxEntries,
		generations: make(map[string]uint64),
		entries:     make(map[AvailabilityKey]availabilityCacheEntry),
	}
}

// Lookup implements AvailabilityCache.
func (c *MemoryAvailabilityCache) Lookup(_ context.Context, key AvailabilityKey) ([]DayStatus, uint64, bool) {
	if c == nil {
		return nil, 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	generation := c.generations[key.ResourceID]
	entry, ok := c.entries[key]
	if !ok {
		return nil, generation, false
	}
	if entry.generation != generation || c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, generation, false
	}
	return cloneDays(entry.days), generation, true
}

// Store implements AvailabilityCache.
func (c *MemoryAvailabilityCache) Store(_ context.Context, key AvailabilityKey, generation uint64, days []DayStatus) {
	if c == nil {
		return
	}
	cloned := cloneDays(days)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[key.ResourceID] != generation {
		return
	}
	c.cleanupLocked()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = availabilityCacheEntry{days: cloned, generation: generation, expiresAt: expiry}
}

// InvalidateResource implements AvailabilityCache.
func (c *MemoryAvailabilityCache) InvalidateResource(_ context.Context, resourceID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[resourceID]++
	for key := range c.entries {
		if key.ResourceID == resourceID {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of cached projections.
func (c *MemoryAvailabilityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryAvailabilityCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// evictOneLocked drops the entry closest to expiry.
func (c *MemoryAvailabilityCache) evictOneLocked() {
	var (
		victim AvailabilityKey
		found  bool
		oldest time.Time
	)
	for key, entry := range c.entries {
		if !found || entry.expiresAt.Before(oldest) {
			victim, oldest, found = key, entry.expiresAt, true
		}
	}
	if found {
		delete(c.entries, victim)
	}
}

func cloneDays(days []DayStatus) []DayStatus {
	if len(days) == 0 {
		return nil
	}
	out := make([]DayStatus, len(days))
	copy(out, days)
	return out
}
