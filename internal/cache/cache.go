// Copyright © 2024 The ELPS authors

// Package cache provides bounded caches safe for concurrent use.  Entries may
// be evicted at any time; callers must be able to recompute a missing value.
package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/luthersystems/cljsym/internal/metrics"
)

// DefaultSize is the capacity used when none is configured.
const DefaultSize = 4096

// LRU is a size bounded least-recently-used cache.
type LRU[K comparable, V any] struct {
	name    string
	metrics *metrics.Metrics

	mu sync.Mutex
	c  *lru.Cache
}

// New returns a cache holding at most size entries.  The name labels the
// cache's hit and miss counters.
func New[K comparable, V any](name string, size int, m *metrics.Metrics) *LRU[K, V] {
	if size <= 0 {
		size = DefaultSize
	}
	return &LRU[K, V]{
		name:    name,
		metrics: m,
		c:       lru.New(size),
	}
}

// Get returns the value cached for key.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	v, ok := c.c.Get(key)
	c.mu.Unlock()
	if !ok {
		c.metrics.CacheMiss(c.name)
		var zero V
		return zero, false
	}
	c.metrics.CacheHit(c.name)
	return v.(V), true
}

// Add stores value under key, evicting the oldest entry when full.
func (c *LRU[K, V]) Add(key K, value V) {
	c.mu.Lock()
	c.c.Add(key, value)
	c.mu.Unlock()
}

// Remove drops key from the cache.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	c.c.Remove(key)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.c.Len()
}

// Clear drops every entry.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	c.c.Clear()
	c.mu.Unlock()
}
