// Package cache provides a small cache-aside helper over Redis used by
// the catalog read path. Values are stored as JSON under a configurable
// prefix; staleness is bounded by TTL only, nothing pushes invalidation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client with a key prefix.
type Cache struct {
	rdb    *redis.Client
	prefix string
}

// New returns a Cache. An empty prefix defaults to "cache".
func New(rdb *redis.Client, prefix string) *Cache {
	if prefix == "" {
		prefix = "cache"
	}
	return &Cache{rdb: rdb, prefix: prefix}
}

// Get unmarshals the cached value for key into dest. It returns false
// on a miss (or an unreadable entry) and true on a hit.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.rdb.Get(ctx, c.prefix+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// Treat a corrupt entry as a miss; the loader will overwrite it.
		return false, nil
	}
	return true, nil
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+":"+key, data, ttl).Err()
}

// Del drops the cached entry for key.
func (c *Cache) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.prefix+":"+key).Err()
}

// GetOrLoad implements the read-through pattern: return the cached
// value when present, otherwise run loader, cache its result and return
// it. Cache write failures are ignored; the loaded value still flows
// back to the caller.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, loader func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if c != nil {
		hit, err := c.Get(ctx, key, &cached)
		if err == nil && hit {
			return cached, nil
		}
	}

	loaded, err := loader(ctx)
	if err != nil {
		return loaded, err
	}
	if c != nil {
		_ = c.Set(ctx, key, loaded, ttl)
	}
	return loaded, nil
}
