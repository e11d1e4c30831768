package cache

import (
	"sync"
	"time"
)

// Cache is a process-local key/value store with per-entry expiry.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Len() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type ttlCache[K comparable, V any] struct {
	mu        sync.RWMutex
	items     map[K]entry[V]
	now       func() time.Time
	sweepEach time.Duration
	lastSweep time.Time
}

const defaultSweepInterval = time.Minute

func NewTTLCache[K comparable, V any]() Cache[K, V] {
	return newTTLCache[K, V](time.Now, defaultSweepInterval)
}

func newTTLCache[K comparable, V any](now func() time.Time, sweepEach time.Duration) *ttlCache[K, V] {
	return &ttlCache[K, V]{
		items:     make(map[K]entry[V]),
		now:       now,
		sweepEach: sweepEach,
		lastSweep: now(),
	}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt) {
		c.Delete(key)
		return zero, false
	}
	return item.value, true
}

// Set stores value; ttl <= 0 keeps it until deleted. Expired entries are
// swept at most once per sweep interval.
func (c *ttlCache[K, V]) Set(key K, value V, ttl time.Duration) {
	now := c.now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
	if now.Sub(c.lastSweep) >= c.sweepEach {
		c.sweepLocked(now)
	}
}

func (c *ttlCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *ttlCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *ttlCache[K, V]) sweepLocked(now time.Time) {
	for key, item := range c.items {
		if !item.expiresAt.IsZero() && !now.Before(item.expiresAt) {
			delete(c.items, key)
		}
	}
	c.lastSweep = now
}
