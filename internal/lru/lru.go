// Package lru provides a generic, bounded, insertion/use-ordered cache
// with byte accounting and optional per-entry expiry, shared by the year
// payload cache and the rendered tile cache.
package lru

import (
	"time"

	"github.com/MeKo-Tech/capstripeviz/internal/capstriperr"
)

// Entry is the externally visible snapshot of one cache slot.
type Entry[K comparable, V any] struct {
	Key        K
	Value      V
	SizeBytes  int64
	Label      string
	HitCount   int64
	InsertedAt time.Time
	ExpiresAt  *time.Time
}

// Stats is a point-in-time snapshot of cache occupancy.
type Stats struct {
	Count             int
	TotalBytes        int64
	LabelsOldestFirst []string
}

// node is the intrusive doubly-linked list element backing MRU/LRU ordering.
type node[K comparable, V any] struct {
	key        K
	value      V
	sizeBytes  int64
	label      string
	hitCount   int64
	insertedAt time.Time
	expiresAt  *time.Time
	prev, next *node[K, V]
}

// Cache is a generic bounded LRU map. The zero value is not usable; build
// one with New. Not safe for concurrent use without external locking —
// every owner in this codebase (YearVendor, TileCache) guards it with its
// own mutex, since their render/fetch callbacks run on queue-owned
// goroutines rather than a single shared one.
type Cache[K comparable, V any] struct {
	capacity int
	items    map[K]*node[K, V]
	mru      *node[K, V] // most recently used (head)
	lru      *node[K, V] // least recently used (tail)
	nowFn    func() time.Time
}

// New creates a cache bounded to capacity entries. A non-positive capacity
// is treated as 1, since this spec's caches always enforce a bound.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		capacity: capacity,
		items:    make(map[K]*node[K, V], capacity),
		nowFn:    time.Now,
	}
}

// Get returns the value for key if present and not expired, moving it to
// MRU and incrementing its hit count. An expired entry is evicted and
// treated as absent.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	n, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(n) {
		c.remove(n)
		var zero V
		return zero, false
	}
	n.hitCount++
	c.moveToFront(n)
	return n.value, true
}

// Has reports whether key is present and not expired, without affecting
// ordering or hit count. An expired entry is evicted.
func (c *Cache[K, V]) Has(key K) bool {
	n, ok := c.items[key]
	if !ok {
		return false
	}
	if c.expired(n) {
		c.remove(n)
		return false
	}
	return true
}

// Set inserts or replaces key's value. If key is already present, its
// hit_count is preserved and it is moved to MRU. While the cache exceeds
// capacity, LRU entries are evicted. expiresAt may be nil for no expiry.
func (c *Cache[K, V]) Set(key K, value V, sizeBytes int64, label string, expiresAt *time.Time) error {
	if sizeBytes < 0 {
		return capstriperr.New(capstriperr.InvalidArgument, "lru: size_bytes must be >= 0, got %d", sizeBytes)
	}

	if n, ok := c.items[key]; ok {
		n.value = value
		n.sizeBytes = sizeBytes
		n.label = label
		n.expiresAt = expiresAt
		c.moveToFront(n)
		c.evictOverflow()
		return nil
	}

	n := &node[K, V]{
		key:        key,
		value:      value,
		sizeBytes:  sizeBytes,
		label:      label,
		insertedAt: c.now(),
		expiresAt:  expiresAt,
	}
	c.items[key] = n
	c.addFront(n)
	c.evictOverflow()
	return nil
}

// Delete removes key if present. No-op if absent.
func (c *Cache[K, V]) Delete(key K) {
	if n, ok := c.items[key]; ok {
		c.remove(n)
	}
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.items = make(map[K]*node[K, V], c.capacity)
	c.mru = nil
	c.lru = nil
}

// Len returns the current number of live entries (including not-yet-swept
// expired ones, matching spec semantics that expiry is checked on touch).
func (c *Cache[K, V]) Len() int {
	return len(c.items)
}

// Stats reports cache occupancy, labels ordered oldest-to-newest by MRU
// position (LRU tail first, MRU head last).
func (c *Cache[K, V]) Stats() Stats {
	var total int64
	labels := make([]string, 0, len(c.items))
	for n := c.lru; n != nil; n = n.prev {
		total += n.sizeBytes
		labels = append(labels, n.label)
	}
	return Stats{
		Count:             len(c.items),
		TotalBytes:        total,
		LabelsOldestFirst: labels,
	}
}

// Entry returns a snapshot of key's entry, for inspection/testing.
func (c *Cache[K, V]) Entry(key K) (Entry[K, V], bool) {
	n, ok := c.items[key]
	if !ok {
		return Entry[K, V]{}, false
	}
	return Entry[K, V]{
		Key:        n.key,
		Value:      n.value,
		SizeBytes:  n.sizeBytes,
		Label:      n.label,
		HitCount:   n.hitCount,
		InsertedAt: n.insertedAt,
		ExpiresAt:  n.expiresAt,
	}, true
}

// KeysOldestFirst returns live keys ordered from LRU to MRU, for testing
// eviction order.
func (c *Cache[K, V]) KeysOldestFirst() []K {
	keys := make([]K, 0, len(c.items))
	for n := c.lru; n != nil; n = n.prev {
		keys = append(keys, n.key)
	}
	return keys
}

func (c *Cache[K, V]) expired(n *node[K, V]) bool {
	return n.expiresAt != nil && c.now().After(*n.expiresAt)
}

func (c *Cache[K, V]) now() time.Time {
	if c.nowFn != nil {
		return c.nowFn()
	}
	return time.Now()
}

func (c *Cache[K, V]) evictOverflow() {
	for len(c.items) > c.capacity {
		if c.lru == nil {
			return
		}
		c.remove(c.lru)
	}
}

// addFront inserts n as the new MRU head. n must not already be linked.
func (c *Cache[K, V]) addFront(n *node[K, V]) {
	n.prev = nil
	n.next = c.mru
	if c.mru != nil {
		c.mru.prev = n
	}
	c.mru = n
	if c.lru == nil {
		c.lru = n
	}
}

func (c *Cache[K, V]) moveToFront(n *node[K, V]) {
	if n == c.mru {
		return
	}
	c.unlink(n)
	c.addFront(n)
}

func (c *Cache[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.mru = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.lru = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *Cache[K, V]) remove(n *node[K, V]) {
	c.unlink(n)
	delete(c.items, n.key)
}
