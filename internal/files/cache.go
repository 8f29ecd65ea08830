package files

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// cacheEntry is a memoized load result
type cacheEntry[V any] struct {
	value     V
	cachedAt  time.Time
	expiresAt time.Time
	hitCount  int
}

// CacheStats is a snapshot of cache counters
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRatio   float64 `json:"hit_ratio"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// LoadCache memoizes expensive loads by key. Concurrent misses for the same
// key share one load. Failed loads are not cached.
type LoadCache[V any] struct {
	mu        sync.Mutex
	entries   map[string]cacheEntry[V]
	ttl       time.Duration
	maxSize   int
	hitCount  int64
	missCount int64
	group     singleflight.Group

	now func() time.Time
}

// NewLoadCache creates a cache holding at most maxSize entries for ttl each
func NewLoadCache[V any](ttl time.Duration, maxSize int) *LoadCache[V] {
	return &LoadCache[V]{
		entries: make(map[string]cacheEntry[V]),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get retrieves a value from cache
func (c *LoadCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expiresAt) {
		if exists {
			delete(c.entries, key)
		}
		c.missCount++
		var zero V
		return zero, false
	}

	entry.hitCount++
	c.entries[key] = entry
	c.hitCount++
	return entry.value, true
}

// Set stores a value in cache
func (c *LoadCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize <= 0 {
		return
	}
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := c.now()
	c.entries[key] = cacheEntry[V]{
		value:     value,
		cachedAt:  now,
		expiresAt: now.Add(c.ttl),
	}
}

// GetOrLoad returns the cached value for key or runs load once and caches its
// result. hit reports whether the value came from cache.
func (c *LoadCache[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (value V, hit bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return result.(V), false, nil
}

// Invalidate removes every entry and returns how many were dropped
func (c *LoadCache[V]) Invalidate() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]cacheEntry[V])
	return n
}

// Stats returns cache statistics
func (c *LoadCache[V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hitCount + c.missCount
	ratio := 0.0
	if total > 0 {
		ratio = float64(c.hitCount) / float64(total)
	}
	return CacheStats{
		Entries:    len(c.entries),
		MaxEntries: c.maxSize,
		Hits:       c.hitCount,
		Misses:     c.missCount,
		HitRatio:   ratio,
		TTLSeconds: c.ttl.Seconds(),
	}
}

func (c *LoadCache[V]) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.cachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.cachedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
