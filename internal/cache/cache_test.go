package cache

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Slot[string]
	data int
}

func newItem(data int) *item { return &item{data: data} }

// seqRand replays a fixed sequence of draws, cycling when exhausted.
type seqRand struct {
	draws []int
	next  int
}

func (r *seqRand) IntN(n int) int {
	v := r.draws[r.next%len(r.draws)] % n
	r.next++
	return v
}

func newTestCache(t *testing.T, capacity int, rng Rand) *Cache[string, *item] {
	t.Helper()
	c, err := New(Config[string, *item]{Capacity: capacity, Rand: rng})
	require.NoError(t, err)
	return c
}

// checkConsistency verifies that the map and the pool agree in both directions.
func checkConsistency[K comparable, E Entry[K]](c *Cache[K, E]) error {
	if len(c.items) != len(c.pool) {
		return fmt.Errorf("map has %d entries, pool has %d", len(c.items), len(c.pool))
	}
	if len(c.pool) > c.capacity {
		return fmt.Errorf("pool has %d entries, capacity is %d", len(c.pool), c.capacity)
	}
	for i, e := range c.pool {
		s := e.CacheSlot()
		if s.Index() != i {
			return fmt.Errorf("pool[%d] records index %d", i, s.Index())
		}
		got, ok := c.items[s.key]
		if !ok {
			return fmt.Errorf("pool[%d] key %v missing from map", i, s.key)
		}
		if got.CacheSlot() != s {
			return fmt.Errorf("map[%v] points at a different payload", s.key)
		}
	}
	for k, e := range c.items {
		s := e.CacheSlot()
		if s.key != k {
			return fmt.Errorf("map[%v] payload records key %v", k, s.key)
		}
		if s.Index() < 0 || s.Index() >= len(c.pool) {
			return fmt.Errorf("map[%v] payload has index %d", k, s.Index())
		}
	}
	return nil
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	for _, n := range []int{0, -1, -100} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			c, err := New(Config[string, *item]{Capacity: n})
			assert.ErrorIs(t, err, ErrInvalidCapacity)
			assert.Nil(t, c)
		})
	}
}

func TestMustNewPanicsOnInvalidCapacity(t *testing.T) {
	assert.Panics(t, func() {
		MustNew(Config[string, *item]{Capacity: 0})
	})
}

func TestFreshSlotIsNotCached(t *testing.T) {
	it := newItem(1)
	assert.False(t, it.Cached())
	assert.Equal(t, -1, it.Index())
	assert.Equal(t, "", it.Key())
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t, 4, nil)

	got, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestGetUpdatesRecency(t *testing.T) {
	c := newTestCache(t, 4, nil)
	a := newItem(1)
	require.NoError(t, c.Set("a", a))
	require.NoError(t, c.Set("b", newItem(2)))

	before := a.Tick()
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Greater(t, a.Tick(), before)
	assert.Equal(t, []string{"a", "b"}, c.Keys(), "get must not reorder the pool")
}

func TestPeekDoesNotTouch(t *testing.T) {
	c := newTestCache(t, 4, nil)
	a := newItem(1)
	require.NoError(t, c.Set("a", a))

	before := a.Tick()
	got, ok := c.Peek("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, before, a.Tick())
	assert.Equal(t, uint64(0), c.Stats().Hits)
}

func TestSetTwiceKeepsMembership(t *testing.T) {
	c := newTestCache(t, 4, nil)
	p := newItem(1)

	require.NoError(t, c.Set("k", p))
	first := p.Tick()
	require.NoError(t, c.Set("k", p))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{"k"}, c.Keys())
	assert.Greater(t, p.Tick(), first)
	assert.Equal(t, uint64(1), c.Stats().Inserts)
	require.NoError(t, checkConsistency(c))
}

func TestSetAdvancesClockOnEveryCall(t *testing.T) {
	c := newTestCache(t, 4, nil)
	a, b := newItem(1), newItem(2)

	require.NoError(t, c.Set("a", a))
	assert.Equal(t, uint32(1), a.Tick())
	require.NoError(t, c.Set("a", a))
	assert.Equal(t, uint32(2), a.Tick())
	require.ErrorIs(t, c.Set("b", a), ErrKeyMismatch)
	require.NoError(t, c.Set("b", b))
	assert.Equal(t, uint32(4), b.Tick())
}

func TestSetResidentPayloadUnderAnotherKey(t *testing.T) {
	c := newTestCache(t, 4, nil)
	p := newItem(1)
	require.NoError(t, c.Set("a", p))

	err := c.Set("b", p)
	require.ErrorIs(t, err, ErrKeyMismatch)

	assert.Equal(t, "a", p.Key())
	_, ok := c.Peek("b")
	assert.False(t, ok)
	got, ok := c.Peek("a")
	require.True(t, ok)
	assert.Same(t, p, got)
	require.NoError(t, checkConsistency(c))
}

func TestSetReplacesPayloadUnderSameKey(t *testing.T) {
	var displaced []*item
	c, err := New(Config[string, *item]{
		Capacity: 2,
		OnEvict:  func(_ string, e *item) { displaced = append(displaced, e) },
	})
	require.NoError(t, err)

	old, repl, other := newItem(1), newItem(2), newItem(3)
	require.NoError(t, c.Set("k", old))
	require.NoError(t, c.Set("x", other))
	require.NoError(t, c.Set("k", repl))

	assert.Equal(t, 2, c.Len())
	assert.False(t, old.Cached())
	assert.Equal(t, "", old.Key())
	assert.True(t, other.Cached(), "replacement must not evict another key")
	assert.Equal(t, []*item{old}, displaced)
	assert.Equal(t, uint64(0), c.Stats().Evictions)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Same(t, repl, got)
	require.NoError(t, checkConsistency(c))
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	c := newTestCache(t, 8, nil)
	items := make([]*item, 5)
	for i := range items {
		items[i] = newItem(i)
		require.NoError(t, c.Set(fmt.Sprintf("k%d", i), items[i]))
	}

	assert.True(t, c.Delete(items[1]))
	assert.Equal(t, 4, c.Len())
	_, ok := c.Get("k1")
	assert.False(t, ok)
	assert.False(t, items[1].Cached())
	assert.Equal(t, "", items[1].Key())
	require.NoError(t, checkConsistency(c))

	assert.False(t, c.Delete(items[1]), "second delete is a no-op")
	assert.Equal(t, 4, c.Len())
}

func TestDeleteLastAndOnly(t *testing.T) {
	c := newTestCache(t, 2, nil)
	p := newItem(1)
	require.NoError(t, c.Set("p", p))

	assert.True(t, c.Delete(p))
	assert.Equal(t, 0, c.Len())
	require.NoError(t, checkConsistency(c))
}

func TestDeleteNeverInserted(t *testing.T) {
	c := newTestCache(t, 2, nil)
	require.NoError(t, c.Set("a", newItem(1)))

	assert.False(t, c.Delete(newItem(2)))
	assert.Equal(t, 1, c.Len())
}

func TestDeletePayloadOfAnotherCache(t *testing.T) {
	c1 := newTestCache(t, 4, nil)
	c2 := newTestCache(t, 4, nil)
	require.NoError(t, c1.Set("a", newItem(1)))
	foreign := newItem(2)
	require.NoError(t, c2.Set("b", foreign))

	assert.False(t, c1.Delete(foreign))
	assert.Equal(t, 1, c1.Len())
	assert.True(t, foreign.Cached())
}

func TestCapacityPlusOneInserts(t *testing.T) {
	const capacity = 16
	var evictedKeys []string
	c, err := New(Config[string, *item]{
		Capacity: capacity,
		Rand:     NewRand(7),
		OnEvict:  func(k string, _ *item) { evictedKeys = append(evictedKeys, k) },
	})
	require.NoError(t, err)

	for i := 0; i <= capacity; i++ {
		require.NoError(t, c.Set(fmt.Sprintf("k%d", i), newItem(i)))
		assert.LessOrEqual(t, c.Len(), capacity)
	}

	assert.Equal(t, capacity, c.Len())
	require.Len(t, evictedKeys, 1)
	_, ok := c.Get(evictedKeys[0])
	assert.False(t, ok, "evicted key %q must be absent", evictedKeys[0])
	assert.Equal(t, uint64(1), c.Stats().Evictions)
	require.NoError(t, checkConsistency(c))
}

func TestOnEvictMayReinsertIntoCache(t *testing.T) {
	spare := newItem(99)
	var c *Cache[string, *item]
	c, err := New(Config[string, *item]{
		Capacity: 2,
		Rand:     NewRand(3),
		OnEvict: func(_ string, _ *item) {
			require.NoError(t, c.Set("spare", spare))
		},
	})
	require.NoError(t, err)

	a, b, cc := newItem(1), newItem(2), newItem(3)
	require.NoError(t, c.Set("a", a))
	require.NoError(t, c.Set("b", b))
	require.NoError(t, c.Set("c", cc))

	assert.LessOrEqual(t, c.Len(), c.Cap())
	assert.True(t, spare.Cached())
	require.NoError(t, checkConsistency(c))

	// Replacement under the same key notifies after the swap too.
	require.NoError(t, c.Set("spare", newItem(100)))
	assert.LessOrEqual(t, c.Len(), c.Cap())
	require.NoError(t, checkConsistency(c))
}

func TestEvictionSameSlotDrawnTwice(t *testing.T) {
	// Both draws land on slot 0 (a), so a is evicted even though it is newer.
	c := newTestCache(t, 2, &seqRand{draws: []int{0, 0}})
	a, b := newItem(1), newItem(2)
	require.NoError(t, c.Set("a", a))
	require.NoError(t, c.Set("b", b))
	c.Get("a")

	require.NoError(t, c.Set("c", newItem(3)))
	assert.False(t, a.Cached())
	assert.True(t, b.Cached())
}

func TestEvictionWithEqualTicksPicksFirstDraw(t *testing.T) {
	c := newTestCache(t, 2, &seqRand{draws: []int{1, 0}})
	a, b := newItem(1), newItem(2)
	require.NoError(t, c.Set("a", a))
	require.NoError(t, c.Set("b", b))
	a.tick, b.tick = 5, 5

	require.NoError(t, c.Set("c", newItem(3)))
	assert.True(t, a.Cached())
	assert.False(t, b.Cached())
}

func TestEvictionPrefersOlderOfTwoDraws(t *testing.T) {
	for _, draws := range [][]int{{0, 1}, {1, 0}} {
		t.Run(fmt.Sprint(draws), func(t *testing.T) {
			c := newTestCache(t, 2, &seqRand{draws: draws})
			a, b := newItem(1), newItem(2)
			require.NoError(t, c.Set("a", a)) // tick 1
			require.NoError(t, c.Set("b", b)) // tick 2
			_, ok := c.Get("a")               // tick 3
			require.True(t, ok)

			cc := newItem(3)
			require.NoError(t, c.Set("c", cc))

			assert.False(t, b.Cached(), "b has the lower tick")
			assert.True(t, a.Cached())
			assert.True(t, cc.Cached())
			_, ok = c.Get("b")
			assert.False(t, ok)
			require.NoError(t, checkConsistency(c))
		})
	}
}

func TestEndToEndScenarioEvictsOlderInMajority(t *testing.T) {
	const trials = 1000
	rng := NewRand(42)
	evictedB := 0

	for i := 0; i < trials; i++ {
		c := newTestCache(t, 2, rng)
		a, b := newItem(1), newItem(2)
		require.NoError(t, c.Set("A", a))
		require.NoError(t, c.Set("B", b))
		_, ok := c.Get("A")
		require.True(t, ok)
		require.NoError(t, c.Set("C", newItem(3)))

		require.Equal(t, 2, c.Len())
		require.NotEqual(t, a.Cached(), b.Cached(), "exactly one of A, B is evicted")
		if !b.Cached() {
			evictedB++
		}
	}

	// B loses unless both draws hit A's slot: expected 3/4 of trials.
	assert.Greater(t, evictedB, trials/2)
	assert.Less(t, evictedB, trials)
}

func TestRandomOperationsKeepConsistency(t *testing.T) {
	const (
		capacity = 32
		keys     = 128
		ops      = 20000
	)
	rng := rand.New(rand.NewPCG(1, 2))
	c := newTestCache(t, capacity, NewRand(3))

	payloads := make([]*item, keys)
	for i := range payloads {
		payloads[i] = newItem(i)
	}

	for n := 0; n < ops; n++ {
		k := rng.IntN(keys)
		key := fmt.Sprintf("k%d", k)
		switch op := rng.IntN(10); {
		case op < 5:
			if got, ok := c.Get(key); ok {
				require.Same(t, payloads[k], got)
			}
		case op < 9:
			require.NoError(t, c.Set(key, payloads[k]))
			require.True(t, payloads[k].Cached())
		default:
			c.Delete(payloads[k])
			require.False(t, payloads[k].Cached())
		}
		require.LessOrEqual(t, c.Len(), capacity)
		if n%97 == 0 {
			require.NoError(t, checkConsistency(c), "after op %d", n)
		}
	}
	require.NoError(t, checkConsistency(c))

	resident := 0
	for _, p := range payloads {
		if p.Cached() {
			resident++
		}
	}
	assert.Equal(t, c.Len(), resident)
}

func TestClearResetsPayloads(t *testing.T) {
	c := newTestCache(t, 4, nil)
	items := []*item{newItem(1), newItem(2), newItem(3)}
	for i, it := range items {
		require.NoError(t, c.Set(fmt.Sprint(i), it))
	}
	c.Get("0")

	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, Stats{}, c.Stats())
	for _, it := range items {
		assert.False(t, it.Cached())
	}
	require.NoError(t, c.Set("again", items[0]))
	assert.Equal(t, 1, c.Len())
	require.NoError(t, checkConsistency(c))
}

func TestTickWraps(t *testing.T) {
	c := newTestCache(t, 2, nil)
	c.tick = tickMask

	p := newItem(1)
	require.NoError(t, c.Set("p", p))
	assert.Equal(t, uint32(0), p.Tick())
	require.NoError(t, c.Set("p", p))
	assert.Equal(t, uint32(1), p.Tick())
}

func TestHotPathIsAllocationFree(t *testing.T) {
	c := newTestCache(t, 16, NewRand(1))
	keys := make([]string, 16)
	payloads := make([]*item, 16)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
		payloads[i] = newItem(i)
		require.NoError(t, c.Set(keys[i], payloads[i]))
	}

	i := 0
	allocs := testing.AllocsPerRun(1000, func() {
		idx := i & 15
		i++
		if i%5 == 0 {
			_ = c.Set(keys[idx], payloads[idx])
			return
		}
		c.Get(keys[idx])
	})
	assert.Zero(t, allocs)
}
