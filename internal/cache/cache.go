// Package cache provides an in-process TTL cache with stampede protection:
// concurrent misses for the same key share a single upstream fetch.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the value for a key on a cache miss.
type FetchFunc func(ctx context.Context) (any, error)

type entry struct {
	value    any
	cachedAt time.Time
}

// Cache memoizes fetch results per key with time-based staleness. Staleness
// is checked on read; entries are not evicted on write. A background sweep
// can be run to drop long-expired entries.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	flight  singleflight.Group
	now     func() time.Time
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value for key when it is younger than ttl, otherwise
// it invokes fetch. Concurrent callers missing on the same key all wait on
// one in-flight fetch; on success every waiter receives the cached value, on
// failure every waiter receives the error and nothing is cached.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (any, error) {
	if v, ok := c.fresh(key, ttl); ok {
		return v, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		// A fetch that completed while this caller was queued behind the
		// flight leader may already have refreshed the entry.
		if v, ok := c.fresh(key, ttl); ok {
			return v, nil
		}

		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = entry{value: v, cachedAt: c.now()}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Invalidate drops the entry for key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Sweep removes entries older than maxAge and returns how many were dropped.
func (c *Cache) Sweep(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-maxAge)
	dropped := 0
	for k, e := range c.entries {
		if e.cachedAt.Before(cutoff) {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

// fresh returns the value for key when its age is within ttl.
func (c *Cache) fresh(key string, ttl time.Duration) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.cachedAt) >= ttl {
		return nil, false
	}
	return e.value, true
}
