// Package cache is a small TTL cache for tracker API responses.
package cache

import (
	"sync"
	"time"
)

// Default TTL values for tracker resources. A stage process runs for
// minutes, so these only dedupe lookups within one run.
const (
	DefaultIssueTTL    = 5 * time.Minute
	DefaultCommentsTTL = 30 * time.Second
	DefaultMetadataTTL = 30 * time.Minute
)

type entry struct {
	data      any
	expiresAt time.Time
}

// Cache is a thread-safe in-memory cache with per-entry TTL.
// A nil *Cache is valid and never stores anything.
type Cache struct {
	mu    sync.Mutex
	store map[string]entry
	now   func() time.Time
}

// New creates an empty cache
func New() *Cache {
	return &Cache{
		store: make(map[string]entry),
		now:   time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.store, key)

		return nil, false
	}

	return e.data, true
}

// Set stores data under key for ttl.
func (c *Cache) Set(key string, data any, ttl time.Duration) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store[key] = entry{data: data, expiresAt: c.now().Add(ttl)}
}

// Delete removes key
func (c *Cache) Delete(key string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.store)
}

// Lookup is a typed Get.
func Lookup[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}

	return t, true
}

// GetOrLoad returns the cached value for key or calls load and caches its result.
// Errors are not cached.
func GetOrLoad[T any](c *Cache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if v, ok := Lookup[T](c, key); ok {
		return v, nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v, ttl)

	return v, nil
}
