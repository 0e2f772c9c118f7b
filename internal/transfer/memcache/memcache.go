// Package memcache is a process-local transfer.Cache backed by a bounded LRU.
package memcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bluele/gcache"

	"github.com/tripwise/transferroute/internal/transfer"
)

// DefaultSize is the default number of cached pairs.
const DefaultSize = 10000

// Cache keeps encoded results so callers never share route pointers.
type Cache struct {
	lru gcache.Cache
}

// New creates an LRU cache holding up to size entries for ttl each.
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = transfer.DefaultCacheTTL
	}
	return &Cache{
		lru: gcache.New(size).LRU().Expiration(ttl).Build(),
	}
}

// Get returns the cached result or transfer.ErrCacheMiss.
func (c *Cache) Get(_ context.Context, key string) (*transfer.Result, error) {
	v, err := c.lru.Get(key)
	if err != nil {
		if errors.Is(err, gcache.KeyNotFoundError) {
			return nil, transfer.ErrCacheMiss
		}
		return nil, err
	}

	raw, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("memcache: unexpected value type %T", v)
	}

	var res transfer.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("memcache: decode %s: %w", key, err)
	}
	return &res, nil
}

// Set stores a result under key.
func (c *Cache) Set(_ context.Context, key string, res *transfer.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("memcache: encode %s: %w", key, err)
	}
	return c.lru.Set(key, raw)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len(true)
}
