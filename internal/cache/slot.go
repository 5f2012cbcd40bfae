package cache

// Slot is the bookkeeping a cached payload carries for the cache.
//
// Payload types embed a Slot so the cache never allocates wrapper nodes:
//
//	type item struct {
//	    cache.Slot[string]
//	    data []byte
//	}
//
// The zero value is "not cached". A Slot must belong to at most one Cache at
// a time; sharing a payload between caches corrupts both.
type Slot[K comparable] struct {
	// pos is the pool index plus one, so the zero value means "not cached".
	pos  int
	key  K
	tick uint32
}

// Entry is implemented by every payload a Cache stores. Embedding Slot[K]
// provides it.
type Entry[K comparable] interface {
	CacheSlot() *Slot[K]
}

// CacheSlot returns s itself.
func (s *Slot[K]) CacheSlot() *Slot[K] { return s }

// Index returns the payload's position in the eviction pool, or -1.
func (s *Slot[K]) Index() int { return s.pos - 1 }

// Cached reports whether the payload is resident in a cache.
func (s *Slot[K]) Cached() bool { return s.pos != 0 }

// Key returns the key the payload is cached under. It is the zero K when
// the payload is not cached.
func (s *Slot[K]) Key() K { return s.key }

// Tick returns the logical time of the last access.
func (s *Slot[K]) Tick() uint32 { return s.tick }

func (s *Slot[K]) reset() {
	var zero K
	s.pos = 0
	s.key = zero
}
