// Package cache holds per-run, in-memory caches keyed by file path.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a bounded LRU of values keyed by file path. A disabled cache
// accepts writes and never returns a hit. It is safe for concurrent use.
type Cache[V any] struct {
	lru     *lru.Cache[string, V]
	enabled bool
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache holding at most size entries. A size <= 0 disables it.
func New[V any](size int) (*Cache[V], error) {
	if size <= 0 {
		return &Cache[V]{enabled: false}, nil
	}
	l, err := lru.New[string, V](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lru: l, enabled: true}, nil
}

// Get retrieves the cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	if !c.enabled {
		var zero V
		c.misses.Add(1)
		return zero, false
	}
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores value under key, evicting the least recently used entry when full.
func (c *Cache[V]) Set(key string, value V) {
	if !c.enabled {
		return
	}
	c.lru.Add(key, value)
}

// Invalidate removes a cache entry.
func (c *Cache[V]) Invalidate(key string) {
	if !c.enabled {
		return
	}
	c.lru.Remove(key)
}

// Clear removes all cache entries.
func (c *Cache[V]) Clear() {
	if !c.enabled {
		return
	}
	c.lru.Purge()
}

// Stats returns cache statistics.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// GetStats returns statistics about the cache.
func (c *Cache[V]) GetStats() Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if c.enabled {
		s.Entries = c.lru.Len()
	}
	return s
}
