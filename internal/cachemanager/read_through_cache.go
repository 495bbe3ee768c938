package cachemanager

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadFunc produces the value for a cache miss.
type LoadFunc[V any, I any] func(ctx context.Context, input I) (V, error)

// ReadThroughOption configures a ReadThroughCache.
type ReadThroughOption func(*readThroughOptions)

type readThroughOptions struct {
	sliding bool
}

// WithSlidingExpiration restarts an entry's ttl every time it is served.
func WithSlidingExpiration() ReadThroughOption {
	return func(o *readThroughOptions) { o.sliding = true }
}

// ReadThroughCache serves values from a CacheManager and loads them on a miss.
// Concurrent misses for the same key share one load. Load errors are never cached.
// A nil cache disables caching: every Get loads.
type ReadThroughCache[K comparable, V any, I any] struct {
	cache   CacheManager[K, V]
	load    LoadFunc[V, I]
	opts    readThroughOptions
	flights singleflight.Group
}

func NewReadThroughCache[K comparable, V any, I any](
	cache CacheManager[K, V],
	load LoadFunc[V, I],
	opts ...ReadThroughOption,
) *ReadThroughCache[K, V, I] {
	r := &ReadThroughCache[K, V, I]{cache: cache, load: load}
	for _, opt := range opts {
		opt(&r.opts)
	}
	return r
}

// Enabled reports whether values are cached at all.
func (r *ReadThroughCache[K, V, I]) Enabled() bool {
	return r.cache != nil
}

// Get returns the value for key, loading it from input on a miss.
// hit reports whether the value came from the cache.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (value V, hit bool, err error) {
	if r.cache == nil {
		value, err = r.load(ctx, input)
		return value, false, err
	}

	if r.opts.sliding {
		value, hit = r.cache.GetWithRefresh(ctx, key, ttl)
	} else {
		value, hit = r.cache.Get(ctx, key)
	}
	if hit {
		return value, true, nil
	}

	shared, err, _ := r.flights.Do(fmt.Sprint(key), func() (any, error) {
		v, err := r.load(ctx, input)
		if err != nil {
			return nil, err
		}
		r.cache.Set(ctx, key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return shared.(V), false, nil
}
