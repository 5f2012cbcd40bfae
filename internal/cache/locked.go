package cache

import (
	"errors"
	"sync"
)

// ErrClosed is returned by mutating Locked methods after Close.
var ErrClosed = errors.New("cache is closed")

// Locked wraps a Cache with a mutex so several goroutines can share it.
//
// Get writes the entry's tick, so every operation except Len, Cap and Stats
// takes the write lock. Payloads handed to a Locked cache must only be
// touched through it.
type Locked[K comparable, E Entry[K]] struct {
	mu     sync.RWMutex
	c      *Cache[K, E]
	closed bool
}

// NewLocked builds a Cache from cfg and wraps it.
func NewLocked[K comparable, E Entry[K]](cfg Config[K, E]) (*Locked[K, E], error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &Locked[K, E]{c: c}, nil
}

// Close prevents further mutation. Reads keep working.
//
// Close is safe to call multiple times.
func (l *Locked[K, E]) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

// Get is Cache.Get under the lock. It keeps working after Close.
func (l *Locked[K, E]) Get(key K) (E, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Get(key)
}

// Set is Cache.Set under the lock, or ErrClosed after Close.
func (l *Locked[K, E]) Set(key K, e E) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	return l.c.Set(key, e)
}

// GetOrSet returns the payload cached under key, or caches the one built by
// fill. The lookup and the insert happen under one lock acquisition.
func (l *Locked[K, E]) GetOrSet(key K, fill func() E) (E, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.c.Get(key); ok {
		return e, true, nil
	}
	e := fill()
	if l.closed {
		return e, false, ErrClosed
	}
	return e, false, l.c.Set(key, e)
}

// Delete is Cache.Delete under the lock, or ErrClosed after Close.
func (l *Locked[K, E]) Delete(e E) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false, ErrClosed
	}
	return l.c.Delete(e), nil
}

// Len returns the number of resident entries.
func (l *Locked[K, E]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.c.Len()
}

// Cap returns the capacity. It never changes, so no lock is taken.
func (l *Locked[K, E]) Cap() int {
	return l.c.Cap()
}

// Stats returns a copy of the cache counters.
func (l *Locked[K, E]) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.c.Stats()
}
