package cachemanager

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ReadThroughCache loads missing entries through fn. Concurrent misses for the
// same key share one call to fn. Errors are returned and never cached.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache           CacheManager[K, V]
	fn              func(ctx context.Context, input I) (V, error)
	shouldSkipCache bool
	group           singleflight.Group

	// generation is bumped by Invalidate. A load started before the bump
	// returns its value but does not store it.
	mu         sync.Mutex
	generation uint64
}

// NewReadThroughCache wraps cache with loader fn. With shouldSkipCache every
// call goes to fn.
func NewReadThroughCache[K ~string, V any, I any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	shouldSkipCache bool,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		cache:           cache,
		fn:              fn,
		shouldSkipCache: shouldSkipCache,
	}
}

// Get returns the cached value for key or loads it from input.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.shouldSkipCache {
		return r.fn(ctx, input)
	}
	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}
	return r.load(ctx, key, input, ttl)
}

// Invalidate drops every cached entry. Loads already in flight are not
// stored.
func (r *ReadThroughCache[K, V, I]) Invalidate(ctx context.Context) error {
	r.mu.Lock()
	r.generation++
	r.mu.Unlock()
	return r.cache.Flush(ctx)
}

func (r *ReadThroughCache[K, V, I]) load(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()

	result, err, _ := r.group.Do(strconv.FormatUint(gen, 10)+"/"+string(key), func() (any, error) {
		value, err := r.fn(ctx, input)
		if err != nil {
			return value, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if gen == r.generation {
			r.cache.Set(ctx, key, value, ttl)
		}
		return value, nil
	})
	value, _ := result.(V)
	return value, err
}
