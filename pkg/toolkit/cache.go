// ABOUTME: TTL cache for fetched pages, capped by entry count
// ABOUTME: Oldest entry is evicted at capacity

package toolkit

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value   string
	created time.Time
}

type fetchCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	max     int
	ttl     time.Duration
	now     func() time.Time
}

func newFetchCache(max int, ttl time.Duration) *fetchCache {
	return &fetchCache{
		entries: make(map[string]cacheEntry),
		max:     max,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *fetchCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.created) > c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return entry.value, true
}

func (c *fetchCache) set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.max {
		var oldest string
		var oldestTime time.Time
		for k, v := range c.entries {
			if oldest == "" || v.created.Before(oldestTime) {
				oldest = k
				oldestTime = v.created
			}
		}
		delete(c.entries, oldest)
	}
	c.entries[key] = cacheEntry{value: value, created: c.now()}
}
