package cachemanager

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/provchain/internal/log"
)

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// InMemoryCacheManager is a CacheManager backed by patrickmn/go-cache.
type InMemoryCacheManager[K ~string, V any] struct {
	name  string
	cache *gocache.Cache
}

var _ CacheManager[string, int] = (*InMemoryCacheManager[string, int])(nil)

// NewInMemoryCacheManager creates an in-memory cache. name identifies it in log output.
// Non-positive durations fall back to DefaultExpiration and DefaultCleanupInterval.
func NewInMemoryCacheManager[K ~string, V any](name string, expiration, cleanupInterval time.Duration) *InMemoryCacheManager[K, V] {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &InMemoryCacheManager[K, V]{
		name:  name,
		cache: gocache.New(expiration, cleanupInterval),
	}
}

func (c *InMemoryCacheManager[K, V]) Get(_ context.Context, key K) (V, bool) {
	raw, found := c.cache.Get(string(key))
	if !found {
		log.Debug(log.CatCache, "miss", "cache", c.name, "key", key)
		var zero V
		return zero, false
	}

	v, ok := raw.(V)
	if !ok {
		// Only reachable if something else shares the underlying go-cache.
		log.Error(log.CatCache, "cached value has unexpected type", "cache", c.name, "key", key)
		c.cache.Delete(string(key))
		return v, false
	}

	log.Debug(log.CatCache, "hit", "cache", c.name, "key", key)
	return v, true
}

func (c *InMemoryCacheManager[K, V]) GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool) {
	v, ok := c.Get(ctx, key)
	if ok {
		c.Set(ctx, key, v, ttl)
	}
	return v, ok
}

// Set stores value under key. A zero ttl uses the cache's default expiration.
func (c *InMemoryCacheManager[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(string(key), value, ttl)
}

func (c *InMemoryCacheManager[K, V]) Delete(_ context.Context, keys ...K) error {
	for _, key := range keys {
		c.cache.Delete(string(key))
	}
	return nil
}

func (c *InMemoryCacheManager[K, V]) Flush(_ context.Context) error {
	c.cache.Flush()
	log.Debug(log.CatCache, "flushed", "cache", c.name)
	return nil
}

// ItemCount includes expired entries the janitor has not removed yet.
func (c *InMemoryCacheManager[K, V]) ItemCount() int {
	return c.cache.ItemCount()
}
