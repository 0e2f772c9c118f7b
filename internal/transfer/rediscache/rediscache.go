// Package rediscache is a shared transfer.Cache stored in Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"

	"github.com/tripwise/transferroute/internal/transfer"
)

// Cache stores results as JSON strings with a fixed expiration.
type Cache struct {
	cache *cache.Cache[string]
}

// New wraps a Redis client. Entries expire after ttl.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = transfer.DefaultCacheTTL
	}
	s := redisstore.NewRedis(client, store.WithExpiration(ttl))
	return &Cache{cache: cache.New[string](s)}
}

// Get returns the cached result or transfer.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) (*transfer.Result, error) {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, transfer.ErrCacheMiss
		}
		return nil, fmt.Errorf("rediscache: get %s: %w", key, err)
	}

	var res transfer.Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("rediscache: decode %s: %w", key, err)
	}
	return &res, nil
}

// Set stores a result under key.
func (c *Cache) Set(ctx context.Context, key string, res *transfer.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("rediscache: encode %s: %w", key, err)
	}
	if err := c.cache.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("rediscache: set %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *store.NotFound
	var nfv store.NotFound
	return errors.As(err, &nf) || errors.As(err, &nfv) || errors.Is(err, redis.Nil)
}

// Ping checks the connection, for readiness probes.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
