package cache

import (
	"fmt"
	"strings"
	"time"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}

// Config selects and tunes a cache backend.
type Config struct {
	Backend    string // memory, redis, layered or none
	MaxEntries int
	LocalTTL   time.Duration // layered only
	Redis      RedisConfig
}

// New builds the configured backend. It returns nil for "none" or an empty backend.
func New(cfg Config) (BytesCache, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "none":
		return nil, nil
	case "memory":
		return NewTTLCache(WithMaxEntries(cfg.MaxEntries)), nil
	case "redis":
		return NewRedisCache(cfg.Redis), nil
	case "layered":
		return NewLayeredCache(NewTTLCache(WithMaxEntries(cfg.MaxEntries)), NewRedisCache(cfg.Redis), cfg.LocalTTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// BarsKey is the cache key of one ticker's bars over a range.
func BarsKey(ticker string, start, end time.Time, timeframe string) string {
	return fmt.Sprintf("bars:%s:%s:%d:%d", strings.ToUpper(ticker), timeframe, start.Unix(), end.Unix())
}
