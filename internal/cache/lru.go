// Package cache provides a small fixed-capacity LRU keyed by content
// fingerprints (16-byte MD5 digests).
//
// Two process-wide instances exist in the server: the ASR transcription cache
// (audio digest → final transcript) and the coach-response cache (reply-input
// digest → composed response). Entries are immutable after insertion; the
// cache only copies pointers around, so callers must not mutate stored values.
package cache

import (
	"container/list"
	"crypto/md5"
	"sync"
)

// Fingerprint is a fixed-size content digest used as a cache key.
type Fingerprint [md5.Size]byte

// Sum computes the fingerprint of one or more byte slices. Slices are fed to
// the digest in argument order, so Sum(a, b) != Sum(append(a, b...)) only when
// a's length differs — callers that combine variable-length fields should
// separate them with a delimiter.
func Sum(parts ...[]byte) Fingerprint {
	h := md5.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

// LRU is a bounded associative container with least-recently-used eviction.
// All methods are safe for concurrent use. The zero value is not usable; call
// [New].
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[Fingerprint]*list.Element

	hits   uint64
	misses uint64
}

// entry is the value stored in the usage list.
type entry[V any] struct {
	key Fingerprint
	val V
}

// New creates an LRU with the given capacity. Capacities below 1 are clamped
// to 1.
func New[V any](capacity int) *LRU[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[V]{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[Fingerprint]*list.Element, capacity),
	}
}

// Get returns the value stored under key and marks it most recently used.
func (c *LRU[V]) Get(key Fingerprint) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*entry[V]).val, true
}

// Put inserts val under key, evicting the least recently used entry when the
// cache is full. Re-inserting an existing key replaces its value and marks it
// most recently used.
func (c *LRU[V]) Put(key Fingerprint, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry[V]).val = val
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry[V]).key)
		}
	}
	c.entries[key] = c.order.PushFront(&entry[V]{key: key, val: val})
}

// Len returns the number of entries currently stored.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the cumulative hit and miss counts since construction.
func (c *LRU[V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
