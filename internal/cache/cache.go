// Package cache is a short-TTL pull-through memoizer for read-mostly,
// idempotent lookups such as the active-agent roster. Concurrent misses for
// the same key are not coalesced; for the fetches this cache fronts, a
// duplicate fetch is cheaper than the coordination.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     any
	fetchedAt time.Time
	expiresAt time.Time
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	stop    chan struct{}
	once    sync.Once
}

// New creates a cache and starts a sweep goroutine evicting expired entries
// every sweepInterval to bound memory. Call Stop to end the sweep.
func New(sweepInterval time.Duration) *Cache {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	c := &Cache{
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	go c.sweepLoop(sweepInterval)
	return c
}

// GetOrFetch returns the cached value for key, or calls fetch on miss or
// expiry and stores the result with an absolute expiry.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	item, ok := c.entries[key]
	c.mu.Unlock()
	if ok && time.Now().Before(item.expiresAt) {
		return item.value, nil
	}

	start := time.Now()
	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	// Concurrent misses race to store. The later-started fetch wins, so a
	// slow fetch finishing last cannot clobber a fresher result.
	c.mu.Lock()
	if cur, ok := c.entries[key]; !ok || start.After(cur.fetchedAt) {
		c.entries[key] = entry{value: value, fetchedAt: start, expiresAt: time.Now().Add(ttl)}
	}
	c.mu.Unlock()
	return value, nil
}

func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Cache) Stop() {
	c.once.Do(func() {
		close(c.stop)
	})
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, item := range c.entries {
				if now.After(item.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
