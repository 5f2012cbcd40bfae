package cache

import (
	"errors"
	"math/rand/v2"
)

// tickMask bounds the logical clock. Ticks are only compared between entries
// resident at the same time, so wrapping is harmless in practice.
const tickMask = 1<<31 - 1

var (
	// ErrInvalidCapacity is returned by New for a capacity <= 0.
	ErrInvalidCapacity = errors.New("cache: capacity must be positive")

	// ErrKeyMismatch is returned by Set when the payload is already cached
	// under a different key.
	ErrKeyMismatch = errors.New("cache: payload is cached under another key")
)

// Rand is the random source used to pick eviction candidates.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// NewRand returns a deterministic Rand seeded with seed.
func NewRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Config controls cache capacity and eviction behavior.
//
//   - Capacity must be > 0; New rejects anything else
//   - Rand == nil uses the process-wide math/rand/v2 source
//   - OnEvict, if set, is called after a payload is pushed out by the cache
//     itself (capacity eviction, or replacement by another payload under the
//     same key). It is not called for Delete or Clear. It runs once Set has
//     finished its update, so it may call back into the Cache. Under Locked it
//     runs with the lock held and must not call Locked methods.
type Config[K comparable, E Entry[K]] struct {
	Capacity int
	Rand     Rand
	OnEvict  func(key K, e E)
}

// Stats are counters accumulated since creation or the last Clear.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Inserts   uint64 // payloads newly added by Set
	Evictions uint64 // capacity evictions only
}

// Cache is a fixed-capacity map from K to intrusive payloads E.
//
// A map gives O(1) key lookup; a dense pool slice holds every resident
// payload, each of which records its own pool index. Eviction samples two
// pool slots at random and drops the one touched least recently.
//
// Cache is not safe for concurrent use. Wrap it in Locked to share it.
type Cache[K comparable, E Entry[K]] struct {
	capacity int
	items    map[K]E
	pool     []E // order is meaningless; only membership and ticks matter

	tick    uint32
	rng     Rand
	onEvict func(K, E)

	stats Stats
}

// New constructs an empty cache. It returns ErrInvalidCapacity rather than
// clamping a bad capacity.
func New[K comparable, E Entry[K]](cfg Config[K, E]) (*Cache[K, E], error) {
	if cfg.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	rng := cfg.Rand
	if rng == nil {
		rng = globalRand{}
	}

	return &Cache[K, E]{
		capacity: cfg.Capacity,
		items:    make(map[K]E, cfg.Capacity),
		pool:     make([]E, 0, cfg.Capacity),
		rng:      rng,
		onEvict:  cfg.OnEvict,
	}, nil
}

// MustNew is like New but panics on an invalid config.
func MustNew[K comparable, E Entry[K]](cfg Config[K, E]) *Cache[K, E] {
	c, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Cache[K, E]) nextTick() uint32 {
	c.tick = (c.tick + 1) & tickMask
	return c.tick
}

// Get returns the payload cached under key and marks it as just used.
// The pool is not reordered.
func (c *Cache[K, E]) Get(key K) (E, bool) {
	e, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return e, false
	}
	e.CacheSlot().tick = c.nextTick()
	c.stats.Hits++
	return e, true
}

// Peek returns the payload cached under key without touching its recency.
func (c *Cache[K, E]) Peek(key K) (E, bool) {
	e, ok := c.items[key]
	return e, ok
}

// Set caches e under key.
//
// The clock advances once per call whatever happens:
//   - e already cached under key: its tick is refreshed, nothing else changes
//   - e already cached under another key: ErrKeyMismatch, nothing changes
//   - key maps to a different payload: that payload is replaced in place
//   - cache full: one entry is evicted before e is appended
func (c *Cache[K, E]) Set(key K, e E) error {
	tick := c.nextTick()
	s := e.CacheSlot()

	if s.Cached() {
		if s.key != key {
			return ErrKeyMismatch
		}
		s.tick = tick
		return nil
	}

	c.stats.Inserts++

	var (
		gone    E
		goneKey K
		pushed  bool
	)
	if prev, ok := c.items[key]; ok {
		c.remove(prev)
		gone, goneKey, pushed = prev, key, true
	} else if len(c.pool) >= c.capacity {
		gone, goneKey = c.evict()
		pushed = true
	}

	s.key = key
	s.tick = tick
	s.pos = len(c.pool) + 1
	c.pool = append(c.pool, e)
	c.items[key] = e

	if pushed && c.onEvict != nil {
		c.onEvict(goneKey, gone)
	}
	return nil
}

// Delete removes e from the cache and reports whether it was resident.
// Deleting a payload that is not cached here is a no-op.
func (c *Cache[K, E]) Delete(e E) bool {
	s := e.CacheSlot()
	if !s.Cached() || s.pos > len(c.pool) || c.pool[s.pos-1].CacheSlot() != s {
		return false
	}
	c.remove(e)
	return true
}

// Len returns the number of resident entries.
func (c *Cache[K, E]) Len() int {
	return len(c.pool)
}

// Cap returns the capacity the cache was built with.
func (c *Cache[K, E]) Cap() int {
	return c.capacity
}

// Stats returns a copy of the cache counters.
func (c *Cache[K, E]) Stats() Stats {
	return c.stats
}

// Keys returns resident keys in pool order, which carries no meaning.
//
// This is a debug helper used by the demo.
func (c *Cache[K, E]) Keys() []K {
	out := make([]K, 0, len(c.pool))
	for _, e := range c.pool {
		out = append(out, e.CacheSlot().key)
	}
	return out
}

// Clear drops every entry and resets the counters. Payloads are returned to
// the caller uncached.
func (c *Cache[K, E]) Clear() {
	var zero E
	for i, e := range c.pool {
		e.CacheSlot().reset()
		c.pool[i] = zero
	}
	c.pool = c.pool[:0]
	clear(c.items)
	c.stats = Stats{}
}

// evict drops one of two randomly sampled entries, preferring the older one,
// and returns it with the key it was cached under. Ties go to the first draw.
// The pool must not be empty.
func (c *Cache[K, E]) evict() (E, K) {
	n := len(c.pool)
	i := c.rng.IntN(n)
	j := c.rng.IntN(n)

	target := j
	if c.pool[i].CacheSlot().tick <= c.pool[j].CacheSlot().tick {
		target = i
	}

	victim := c.pool[target]
	key := victim.CacheSlot().key
	c.remove(victim)
	c.stats.Evictions++
	return victim, key
}

// remove swap-removes a resident payload from the pool and the map.
func (c *Cache[K, E]) remove(e E) {
	s := e.CacheSlot()
	idx := s.pos - 1
	delete(c.items, s.key)

	lastIdx := len(c.pool) - 1
	last := c.pool[lastIdx]
	if ls := last.CacheSlot(); ls != s {
		c.pool[idx] = last
		ls.pos = idx + 1
	}
	var zero E
	c.pool[lastIdx] = zero
	c.pool = c.pool[:lastIdx]

	s.reset()
}
