// Package dedup provides a bounded TTL cache used to suppress redelivered
// webhook events and messages.
package dedup

import (
	"sync"
	"time"
)

const (
	// DefaultCapacity bounds the number of ids kept per cache.
	DefaultCapacity = 1000
	// DefaultTTL is the window within which a repeated id counts as duplicate.
	DefaultTTL = 60 * time.Second
)

type entry struct {
	id         string
	insertedAt time.Time
}

// Cache is a concurrency-safe bounded set of recently seen ids.
//
// Eviction is approximate LRU: when the capacity is exceeded, the oldest half
// of the entries by insertion order is dropped. Every id also expires after
// the TTL regardless of capacity pressure, so suppression is only guaranteed
// within that window.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	seen     map[string]time.Time
	order    []entry

	now func() time.Time
}

// New creates a Cache. Non-positive capacity or ttl fall back to the defaults.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		seen:     make(map[string]time.Time, capacity),
		now:      time.Now,
	}
}

// CheckAndMark reports whether id has been seen within the TTL window and, if
// not, marks it as seen. Empty ids are never duplicates and are not recorded.
func (c *Cache) CheckAndMark(id string) bool {
	if id == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if insertedAt, ok := c.seen[id]; ok {
		if now.Sub(insertedAt) < c.ttl {
			return true
		}
		// Expired entry counts as new again.
	}
	c.seen[id] = now
	c.order = append(c.order, entry{id: id, insertedAt: now})
	if len(c.seen) > c.capacity {
		c.evictLocked()
	}
	c.scheduleExpiry(id, now)
	return false
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// evictLocked drops roughly the oldest half of the entries by insertion order.
func (c *Cache) evictLocked() {
	target := c.capacity / 2
	removed := 0
	idx := 0
	for idx < len(c.order) && removed < target {
		e := c.order[idx]
		idx++
		// An order slot is stale when the id was re-inserted later.
		if at, ok := c.seen[e.id]; ok && at.Equal(e.insertedAt) {
			delete(c.seen, e.id)
			removed++
		}
	}
	c.order = append([]entry(nil), c.order[idx:]...)
}

// scheduleExpiry removes id after the TTL unless it was re-inserted since.
func (c *Cache) scheduleExpiry(id string, insertedAt time.Time) {
	time.AfterFunc(c.ttl, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if at, ok := c.seen[id]; ok && at.Equal(insertedAt) {
			delete(c.seen, id)
		}
		c.pruneOrderLocked()
	})
}

// pruneOrderLocked drops the run of leading order slots that no longer back a
// live entry, so steady sub-capacity traffic cannot grow the slice without
// bound.
func (c *Cache) pruneOrderLocked() {
	idx := 0
	for idx < len(c.order) {
		e := c.order[idx]
		if at, ok := c.seen[e.id]; ok && at.Equal(e.insertedAt) {
			break
		}
		idx++
	}
	if idx > 0 {
		c.order = append([]entry(nil), c.order[idx:]...)
	}
}
