// Package cache provides a Redis-based caching layer used for room
// history reads (cache-aside pattern).
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache provides caching operations backed by Redis.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	group  singleflight.Group
	stats  Stats
}

// Stats tracks cache counters.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Sets    uint64 `json:"sets"`
	Deletes uint64 `json:"deletes"`
	Errors  uint64 `json:"errors"`
}

// Config holds cache configuration.
type Config struct {
	RedisAddr string
	Prefix    string
	TTL       time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr: "localhost:6379",
		Prefix:    "chat:",
		TTL:       5 * time.Minute,
	}
}

// New creates a new cache instance.
func New(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Get retrieves a value from the cache. The boolean reports a cache hit.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			atomic.AddUint64(&c.stats.Misses, 1)
			return false, nil
		}
		atomic.AddUint64(&c.stats.Errors, 1)
		return false, fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	atomic.AddUint64(&c.stats.Hits, 1)
	return true, nil
}

// Set stores a value in the cache with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache set error: %w", err)
	}

	atomic.AddUint64(&c.stats.Sets, 1)
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache delete error: %w", err)
	}
	atomic.AddUint64(&c.stats.Deletes, 1)
	return nil
}

// GetOrLoad returns the cached value for key or, on a miss, runs load
// exactly once per key across concurrent callers and caches the result.
// The loaded value is returned as raw JSON for the caller to decode.
func (c *Cache) GetOrLoad(ctx context.Context, key string, load func(context.Context) (any, error)) ([]byte, error) {
	if data, err := c.client.Get(ctx, c.prefix+key).Bytes(); err == nil {
		atomic.AddUint64(&c.stats.Hits, 1)
		return data, nil
	} else if err != redis.Nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return nil, fmt.Errorf("cache get error: %w", err)
	}
	atomic.AddUint64(&c.stats.Misses, 1)

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("cache marshal error: %w", err)
		}
		if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
			// A failed write-back is not fatal; the value is still good.
			atomic.AddUint64(&c.stats.Errors, 1)
		} else {
			atomic.AddUint64(&c.stats.Sets, 1)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// StatsSnapshot returns the current counters.
func (c *Cache) StatsSnapshot() Stats {
	return Stats{
		Hits:    atomic.LoadUint64(&c.stats.Hits),
		Misses:  atomic.LoadUint64(&c.stats.Misses),
		Sets:    atomic.LoadUint64(&c.stats.Sets),
		Deletes: atomic.LoadUint64(&c.stats.Deletes),
		Errors:  atomic.LoadUint64(&c.stats.Errors),
	}
}
