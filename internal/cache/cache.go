package cache

import (
	"sync"
	"time"
)

// Kind namespaces cached values so unrelated lookups never collide on a symbol.
type Kind string

const (
	// KindPrice caches live ticker snapshots.
	KindPrice Kind = "price"
	// KindTransfers caches chain-explorer transfer batches.
	KindTransfers Kind = "transfers"
)

// Key identifies a cached entry. Chain is empty for non-chain lookups.
type Key struct {
	Kind   Kind
	Symbol string
	Chain  string
}

type entry[V any] struct {
	value    V
	inserted time.Time
}

// Cache memoises expensive collaborator lookups with a fixed per-cache TTL.
// Expiry is checked lazily at read time; dead entries linger until overwritten,
// which is acceptable for the bounded symbol cardinality involved.
type Cache[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[Key]entry[V]
}

// New constructs a cache whose entries expire ttl after insertion.
func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		panic("cache ttl must be positive")
	}
	return &Cache[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[Key]entry[V]),
	}
}

// Get returns the value stored under key iff it is younger than the TTL.
// A missing key and an expired key are indistinguishable to the caller.
func (c *Cache[V]) Get(key Key) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.inserted) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, stamping the insertion time.
func (c *Cache[V]) Set(key Key, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, inserted: c.now()}
}
