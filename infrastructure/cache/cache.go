// Package cache provides a small in-memory TTL cache used to front
// infrequently-changing database lookups (category rules, lookup
// tables) so a hot read path doesn't round-trip to Postgres on every
// call.
package cache

import (
	"context"
	"sync"
	"time"
)

const defaultTTL = 5 * time.Minute

type entry struct {
	value      interface{}
	expiration time.Time
}

// memCache is a generic, mutex-guarded, TTL-expiring map with a
// background sweep that drops stale entries. It is not exported
// directly; callers use the key-prefixed TTLCache wrapper below.
type memCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

func newMemCache(ttl time.Duration, cleanupInterval time.Duration) *memCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 2 * ttl
	}

	c := &memCache{entries: make(map[string]entry), ttl: ttl}
	go c.sweep(cleanupInterval)
	return c
}

func (c *memCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, e := range c.entries {
			if now.After(e.expiration) {
				delete(c.entries, key)
			}
		}
		c.mu.Unlock()
	}
}

func (c *memCache) get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiration) {
		return nil, false
	}
	return e.value, true
}

func (c *memCache) set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, expiration: time.Now().Add(c.ttl)}
}

func (c *memCache) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// TTLCache is a view over a memCache of its own, with its own sweep
// goroutine; every key is stored under the fixed prefix "ttl:".
type TTLCache struct {
	cache     *memCache
	keyPrefix string
}

// NewTTLCache builds a TTLCache whose entries expire after ttl.
func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{cache: newMemCache(ttl, 0), keyPrefix: "ttl:"}
}

// Get returns the cached value for key, if present and unexpired.
func (c *TTLCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return c.cache.get(c.keyPrefix + key)
}

// Set stores value under key for the cache's configured TTL.
func (c *TTLCache) Set(ctx context.Context, key string, value interface{}) {
	c.cache.set(c.keyPrefix+key, value)
}

// Delete evicts key before its TTL would otherwise expire it.
func (c *TTLCache) Delete(ctx context.Context, key string) {
	c.cache.delete(c.keyPrefix + key)
}
