// Package cache is the shared in-memory store of fetched entities.
//
// Entries are invalidated by events only, never by age. Reading a stale entry
// returns the last known value and refetches it in the background; concurrent
// refetches of one key share a single backend call.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads the authoritative value of one key
type Fetcher func(ctx context.Context) (any, error)

// Listener is called with the new value after an entry is replaced
type Listener func(value any)

type entry struct {
	value     any
	has       bool
	stale     bool
	gen       uint64
	fetch     Fetcher
	listeners map[uint64]Listener
}

// Cache is safe for concurrent use
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	nextSub uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns an empty cache. Background refetches run until Close.
func New() *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register sets the fetcher used to refetch key, creating the entry if needed
func (c *Cache) Register(key string, fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.get(key).fetch = fetch
}

// Read returns the cached value of key. A stale read starts a background refetch.
func (c *Cache) Read(key string) (value any, stale bool, ok bool) {
	c.mu.Lock()
	e, found := c.entries[key]
	if !found || !e.has {
		c.mu.Unlock()
		return nil, false, false
	}
	value, stale = e.value, e.stale
	refetch := stale && e.fetch != nil
	c.mu.Unlock()

	if refetch {
		c.revalidate(key, e)
	}
	return value, stale, true
}

// Write replaces the value of key and clears its staleness
func (c *Cache) Write(key string, value any) {
	c.mu.Lock()
	e := c.get(key)
	e.value, e.has, e.stale = value, true, false
	e.gen++
	listeners := e.snapshot()
	c.mu.Unlock()

	notify(listeners, value)
}

// Invalidate marks keys stale. Entries with subscribers refetch immediately;
// the rest refetch on their next read.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	var active []string
	for _, k := range keys {
		if c.markStale(k) {
			active = append(active, k)
		}
	}
	c.mu.Unlock()
	c.revalidateKeys(active)
}

// InvalidatePrefix marks every key starting with prefix stale
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	var active []string
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) && c.markStale(k) {
			active = append(active, k)
		}
	}
	c.mu.Unlock()
	c.revalidateKeys(active)
}

// Subscribe calls fn each time key's value is replaced. When the last
// subscriber cancels, the entry is evicted.
func (c *Cache) Subscribe(key string, fn Listener) (cancel func()) {
	c.mu.Lock()
	e := c.get(key)
	c.nextSub++
	id := c.nextSub
	if e.listeners == nil {
		e.listeners = make(map[uint64]Listener)
	}
	e.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(e.listeners, id)
			if len(e.listeners) == 0 && c.entries[key] == e {
				delete(c.entries, key)
				glog.V(2).Infof("cache: evicted %s", key)
			}
		})
	}
}

// Contains reports whether key has an entry, with or without a value
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops every entry. Refetches already running finish without effect.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Close stops background refetches and waits for them to return
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

// Wait blocks until no background refetch is running
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) get(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// markStale reports whether the entry should be refetched right away
func (c *Cache) markStale(key string) bool {
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	e.stale = true
	e.gen++
	return e.has && e.fetch != nil && len(e.listeners) > 0
}

func (c *Cache) revalidateKeys(keys []string) {
	for _, k := range keys {
		c.mu.Lock()
		e, ok := c.entries[k]
		c.mu.Unlock()
		if ok {
			c.revalidate(k, e)
		}
	}
}

func (c *Cache) revalidate(key string, e *entry) {
	if c.ctx.Err() != nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.load(c.ctx, key, e); err != nil {
			glog.V(1).Infof("cache: refetch %s: %v", key, err)
		}
	}()
}

// load runs the entry's fetcher once per key at a time. The result is stored
// only if the entry was neither replaced nor invalidated while fetching.
func (c *Cache) load(ctx context.Context, key string, e *entry) (any, error) {
	v, err, _ := c.group.Do(fmt.Sprintf("%s@%p", key, e), func() (any, error) {
		c.mu.Lock()
		if e.has && !e.stale {
			value := e.value
			c.mu.Unlock()
			return value, nil
		}
		fetch, gen := e.fetch, e.gen
		c.mu.Unlock()
		if fetch == nil {
			return nil, fmt.Errorf("cache: no fetcher for %s", key)
		}

		glog.V(1).Infof("cache: fetching %s", key)
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.entries[key] != e || e.gen != gen {
			c.mu.Unlock()
			return value, nil
		}
		e.value, e.has, e.stale = value, true, false
		listeners := e.snapshot()
		c.mu.Unlock()

		notify(listeners, value)
		return value, nil
	})
	return v, err
}

func (e *entry) snapshot() []Listener {
	out := make([]Listener, 0, len(e.listeners))
	for _, fn := range e.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []Listener, value any) {
	for _, fn := range listeners {
		fn(value)
	}
}
