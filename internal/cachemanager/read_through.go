package cachemanager

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader fetches the value for key from the source of truth.
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

// ReadThroughOption configures a ReadThrough.
type ReadThroughOption[K comparable, V any] func(*ReadThrough[K, V])

// WithBypass makes every Get go straight to the loader while fn returns true.
// fn is consulted on each call, so it can follow a runtime flag.
func WithBypass[K comparable, V any](fn func() bool) ReadThroughOption[K, V] {
	return func(r *ReadThrough[K, V]) { r.bypass = fn }
}

// WithStoreIf limits which loaded values are kept. Values for which fn
// returns false are returned but not cached.
func WithStoreIf[K comparable, V any](fn func(V) bool) ReadThroughOption[K, V] {
	return func(r *ReadThrough[K, V]) { r.storeIf = fn }
}

// ReadThrough serves from cache and falls back to a loader on miss.
// Concurrent misses for the same key share one load.
type ReadThrough[K comparable, V any] struct {
	cache   Cache[K, V]
	load    Loader[K, V]
	ttl     time.Duration
	bypass  func() bool
	storeIf func(V) bool
	group   singleflight.Group
}

// NewReadThrough wraps cache with load.
func NewReadThrough[K comparable, V any](cache Cache[K, V], load Loader[K, V], ttl time.Duration, opts ...ReadThroughOption[K, V]) *ReadThrough[K, V] {
	r := &ReadThrough[K, V]{cache: cache, load: load, ttl: ttl}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the cached value for key or loads it. Load errors are never cached.
func (r *ReadThrough[K, V]) Get(ctx context.Context, key K) (V, error) {
	if r.bypass != nil && r.bypass() {
		return r.load(ctx, key)
	}
	if v, ok := r.cache.Get(ctx, key); ok {
		return v, nil
	}

	res, err, _ := r.group.Do(fmt.Sprint(key), func() (any, error) {
		v, err := r.load(ctx, key)
		if err != nil {
			return v, err
		}
		if r.storeIf == nil || r.storeIf(v) {
			r.cache.Set(ctx, key, v, r.ttl)
		}
		return v, nil
	})
	v, _ := res.(V)
	return v, err
}

// Invalidate drops key so the next Get loads it again.
func (r *ReadThrough[K, V]) Invalidate(ctx context.Context, key K) error {
	return r.cache.Delete(ctx, key)
}

// Flush drops everything.
func (r *ReadThrough[K, V]) Flush(ctx context.Context) error {
	return r.cache.Flush(ctx)
}
