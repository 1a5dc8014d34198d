package cachemanager

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/pipewatch/internal/log"
)

const (
	DefaultTTL             = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// Memory is an in-process Cache backed by go-cache. Keys are formatted with
// fmt so any comparable key type works.
type Memory[K comparable, V any] struct {
	name  string
	cache *gocache.Cache
}

// NewMemory returns an empty cache. name only appears in logs.
func NewMemory[K comparable, V any](name string, ttl, cleanup time.Duration) *Memory[K, V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanup <= 0 {
		cleanup = DefaultCleanupInterval
	}
	return &Memory[K, V]{name: name, cache: gocache.New(ttl, cleanup)}
}

func (m *Memory[K, V]) key(k K) string {
	return fmt.Sprint(k)
}

// Get returns the live entry for key.
func (m *Memory[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zero V
	raw, found := m.cache.Get(m.key(key))
	if !found {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		log.Error(log.CatCache, "cached value has wrong type", "cache", m.name, "key", key)
		return zero, false
	}
	log.Debug(log.CatCache, "hit", "cache", m.name, "key", key)
	return v, true
}

// Set stores value for ttl. A non-positive ttl uses the cache default.
func (m *Memory[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.cache.Set(m.key(key), value, ttl)
}

// Delete removes keys. Missing keys are ignored.
func (m *Memory[K, V]) Delete(_ context.Context, keys ...K) error {
	for _, k := range keys {
		m.cache.Delete(m.key(k))
	}
	return nil
}

// Flush drops every entry.
func (m *Memory[K, V]) Flush(_ context.Context) error {
	n := m.cache.ItemCount()
	m.cache.Flush()
	log.Debug(log.CatCache, "flushed", "cache", m.name, "entries", n)
	return nil
}

// Len counts entries, including expired ones not yet cleaned up.
func (m *Memory[K, V]) Len() int {
	return m.cache.ItemCount()
}
