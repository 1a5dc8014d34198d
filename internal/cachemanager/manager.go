// Package cachemanager holds small TTL caches for data the service serves
// slowly and that changes rarely within a run, such as generated lead messages.
package cachemanager

import (
	"context"
	"time"
)

// Cache is a TTL key/value store.
type Cache[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
	Len() int
}
