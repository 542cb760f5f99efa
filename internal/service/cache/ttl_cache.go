package cache

import (
	"sync"
	"time"
)

type entry struct {
	v   []byte
	exp time.Time
	at  time.Time
}

// TTLCache is an in-process BytesCache with per-key expiry and an optional
// entry cap; the oldest entry is evicted when the cap is reached.
type TTLCache struct {
	mu         sync.RWMutex
	m          map[string]entry
	maxEntries int
	now        func() time.Time
}

// TTLOption configures TTLCache.
type TTLOption func(*TTLCache)

// WithMaxEntries caps the number of stored keys. Zero means unbounded.
func WithMaxEntries(n int) TTLOption {
	return func(c *TTLCache) { c.maxEntries = n }
}

func NewTTLCache(opts ...TTLOption) *TTLCache {
	c := &TTLCache{m: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	now := c.now()
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.m[key]; !exists && c.maxEntries > 0 && len(c.m) >= c.maxEntries {
		c.evictOldest()
	}
	c.m[key] = entry{v: value, exp: exp, at: now}
	return nil
}

// Len returns the number of stored keys, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *TTLCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.m {
		if oldestKey == "" || e.at.Before(oldest) {
			oldestKey, oldest = k, e.at
		}
	}
	delete(c.m, oldestKey)
}
