package cache

import (
	"context"
	"fmt"
)

// Get returns the value of key, fetching it with fetch when the cache has none.
// A stale value is returned as is, with stale set, while a refetch runs in the
// background. fetch becomes the key's fetcher.
func Get[T any](ctx context.Context, c *Cache, key string, fetch func(ctx context.Context) (T, error)) (value T, stale bool, err error) {
	c.Register(key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})

	if v, stale, ok := c.Read(key); ok {
		value, err = as[T](key, v)
		return value, stale, err
	}

	c.mu.Lock()
	e := c.get(key)
	c.mu.Unlock()
	v, err := c.load(ctx, key, e)
	if err != nil {
		return value, false, err
	}
	value, err = as[T](key, v)
	return value, false, err
}

// Peek returns the cached value of key without fetching
func Peek[T any](c *Cache, key string) (value T, stale bool, ok bool) {
	c.mu.Lock()
	e, found := c.entries[key]
	if !found || !e.has {
		c.mu.Unlock()
		return value, false, false
	}
	v, stale := e.value, e.stale
	c.mu.Unlock()

	value, ok = v.(T)
	return value, stale, ok
}

func as[T any](key string, v any) (T, error) {
	value, ok := v.(T)
	if !ok {
		return value, fmt.Errorf("cache: %s holds %T", key, v)
	}
	return value, nil
}
