// Package cache provides the reference-counted registry that lets independent
// trackers share one live node per key.
//
// GetOrCreate returns a Handle. Every Handle must be released exactly once;
// releasing it more than once is harmless. When the last Handle for a key is
// released the entry is removed and its value disposed, so the next
// GetOrCreate for the key builds a fresh value. Disposal runs outside the cache
// lock and may itself release other handles.
package cache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dshills/statetrack/internal/logging"
)

// Disposer is a cached value that releases its resources when the last
// handle goes away.
type Disposer interface {
	Dispose()
}

// Cache maps keys to shared, reference-counted values.
type Cache[K comparable, V Disposer] struct {
	mu      sync.Mutex
	name    string
	entries map[K]*entry[V]
	nextGen uint64
}

type entry[V Disposer] struct {
	value V
	refs  int
	gen   uint64
}

// New creates an empty cache. The name appears in log records.
func New[K comparable, V Disposer](name string) *Cache[K, V] {
	return &Cache[K, V]{
		name:    name,
		entries: make(map[K]*entry[V]),
	}
}

// GetOrCreate returns a handle to the value cached for key, building it with
// factory when there is none. factory runs under the cache lock and must not
// touch the cache or have side effects; it should return a bare value that the
// caller initializes after GetOrCreate returns when created is true.
func (c *Cache[K, V]) GetOrCreate(key K, factory func() (V, error)) (h *Handle[K, V], created bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.refs++
		return c.handle(key, e), false, nil
	}

	v, err := factory()
	if err != nil {
		return nil, false, err
	}
	c.nextGen++
	e := &entry[V]{value: v, refs: 1, gen: c.nextGen}
	c.entries[key] = e

	log := logging.For("cache")
	if log.Enabled(logging.LevelDebug) {
		log.WithFields(map[string]any{"cache": c.name, "key": describe(key), "gen": e.gen}).Debug("created")
	}
	return c.handle(key, e), true, nil
}

func (c *Cache[K, V]) handle(key K, e *entry[V]) *Handle[K, V] {
	return &Handle[K, V]{cache: c, key: key, entry: e}
}

// Peek returns the live value for key without taking a reference.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		return e.value, true
	}
	var zero V
	return zero, false
}

// Refs returns the reference count of key, zero when absent.
func (c *Cache[K, V]) Refs(key K) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of live entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// release drops one reference and disposes the value at zero.
func (c *Cache[K, V]) release(key K, e *entry[V]) {
	c.mu.Lock()
	e.refs--
	if e.refs > 0 {
		c.mu.Unlock()
		return
	}
	if cur, ok := c.entries[key]; ok && cur == e {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	log := logging.For("cache")
	if log.Enabled(logging.LevelDebug) {
		log.WithFields(map[string]any{"cache": c.name, "key": describe(key), "gen": e.gen}).Debug("disposing")
	}
	e.value.Dispose()
}

// Handle is one reference to a cached value.
type Handle[K comparable, V Disposer] struct {
	cache    *Cache[K, V]
	key      K
	mu       sync.Mutex
	entry    *entry[V]
	released atomic.Bool
}

// Value returns the referenced value. It returns the zero value once the
// handle is released.
func (h *Handle[K, V]) Value() V {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.entry == nil {
		var zero V
		return zero
	}
	return h.entry.value
}

// Release drops the reference. Only the first call has an effect.
func (h *Handle[K, V]) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	h.mu.Lock()
	e := h.entry
	h.entry = nil
	h.mu.Unlock()

	h.cache.release(h.key, e)
}

// describe renders a key for logging.
func describe(key any) string {
	if s, ok := key.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", key)
}
