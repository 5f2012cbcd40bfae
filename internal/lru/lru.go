// Package lru is an exact least-recently-used cache, kept as the baseline the
// sampled cache is measured against.
package lru

import (
	"container/list"
	"errors"

	"sampledlru/internal/cache"
)

// ErrInvalidCapacity is returned by New for a capacity <= 0.
var ErrInvalidCapacity = errors.New("lru: capacity must be positive")

// Cache always evicts the entry whose last use is oldest.
//
// Keys index list elements; the list is kept in use order and every hit
// splices its element to the front. That splice is the per-hit cost the
// sampled cache trades for approximate eviction.
//
// Cache is not safe for concurrent use.
type Cache[K comparable, V any] struct {
	capacity int
	items    map[K]*list.Element
	order    *list.List // front is the newest use

	stats cache.Stats
}

// entry carries its key so the back element can be removed from the map.
type entry[K comparable, V any] struct {
	key   K
	value V
}

// New returns an empty cache holding at most capacity entries.
func New[K comparable, V any](capacity int) (*Cache[K, V], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Cache[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
	}, nil
}

// Get returns the value under key and marks it as the newest use.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return el.Value.(*entry[K, V]).value, true
}

// Set stores value under key. Overwriting an existing key counts as a use
// and does not count as an insert.
func (c *Cache[K, V]) Set(key K, value V) {
	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.order.MoveToFront(el)
		return
	}

	c.stats.Inserts++
	if c.order.Len() >= c.capacity {
		if el := c.order.Back(); el != nil {
			c.removeElement(el)
			c.stats.Evictions++
		}
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
}

// Delete drops key and reports whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int {
	return c.order.Len()
}

// Cap returns the capacity given to New.
func (c *Cache[K, V]) Cap() int {
	return c.capacity
}

// Stats returns a copy of the counters, in the same shape the sampled cache
// reports.
func (c *Cache[K, V]) Stats() cache.Stats {
	return c.stats
}

// Keys returns resident keys from newest to oldest use.
func (c *Cache[K, V]) Keys() []K {
	out := make([]K, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry[K, V]).key)
	}
	return out
}

func (c *Cache[K, V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[K, V]).key)
}
