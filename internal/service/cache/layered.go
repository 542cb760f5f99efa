package cache

import (
	"io"
	"time"
)

// DefaultLocalTTL bounds how long a shared-layer hit is served from memory.
const DefaultLocalTTL = time.Minute

// LayeredCache checks an in-process cache before a shared one. Writes go to
// the shared layer first so a failed write never leaves a local-only entry.
type LayeredCache struct {
	local    *TTLCache
	shared   BytesCache
	localTTL time.Duration
}

// NewLayeredCache builds the two layers. A non-positive localTTL uses DefaultLocalTTL.
func NewLayeredCache(local *TTLCache, shared BytesCache, localTTL time.Duration) *LayeredCache {
	if localTTL <= 0 {
		localTTL = DefaultLocalTTL
	}
	return &LayeredCache{local: local, shared: shared, localTTL: localTTL}
}

func (c *LayeredCache) GetBytes(key string) ([]byte, bool, error) {
	if b, ok, _ := c.local.GetBytes(key); ok {
		return b, true, nil
	}
	b, ok, err := c.shared.GetBytes(key)
	if err != nil || !ok {
		return nil, false, err
	}
	// The shared layer does not report its remaining TTL.
	_ = c.local.SetBytes(key, b, c.localTTL)
	return b, true, nil
}

func (c *LayeredCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	if err := c.shared.SetBytes(key, value, ttl); err != nil {
		return err
	}
	return c.local.SetBytes(key, value, c.capTTL(ttl))
}

func (c *LayeredCache) capTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > c.localTTL {
		return c.localTTL
	}
	return ttl
}

// Shared returns the second layer.
func (c *LayeredCache) Shared() BytesCache { return c.shared }

// Close closes the shared layer when it holds a connection.
func (c *LayeredCache) Close() error {
	if cl, ok := c.shared.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
