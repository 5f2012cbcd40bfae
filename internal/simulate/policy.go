package simulate

import (
	"sync"

	"sampledlru/internal/cache"
	"sampledlru/internal/lru"
	"sampledlru/internal/workload"
)

// Policy is a cache under test. Access must be safe for concurrent use.
type Policy interface {
	Name() string
	// Access applies op and reports whether a read hit. Writes never hit.
	Access(op workload.Op) (bool, error)
	Stats() cache.Stats
	Len() int
	Cap() int
}

// record is the payload replayed through the sampled cache. One record
// exists per key and is reused after every eviction.
type record struct {
	cache.Slot[uint64]
}

type sampledPolicy struct {
	c       *cache.Locked[uint64, *record]
	records []*record
}

func newSampledPolicy(capacity int, keys uint64, seed uint64) (*sampledPolicy, error) {
	c, err := cache.NewLocked(cache.Config[uint64, *record]{
		Capacity: capacity,
		Rand:     cache.NewRand(seed),
	})
	if err != nil {
		return nil, err
	}
	records := make([]*record, keys)
	for i := range records {
		records[i] = &record{}
	}
	return &sampledPolicy{c: c, records: records}, nil
}

func (p *sampledPolicy) Name() string { return "sampled" }

func (p *sampledPolicy) Access(op workload.Op) (bool, error) {
	rec := p.records[op.Key]
	if op.Write {
		return false, p.c.Set(op.Key, rec)
	}
	_, hit, err := p.c.GetOrSet(op.Key, func() *record { return rec })
	return hit, err
}

func (p *sampledPolicy) Stats() cache.Stats { return p.c.Stats() }
func (p *sampledPolicy) Len() int           { return p.c.Len() }
func (p *sampledPolicy) Cap() int           { return p.c.Cap() }

// exactPolicy guards an lru.Cache with a mutex so it can be shared the same
// way as the sampled cache.
type exactPolicy struct {
	mu sync.Mutex
	c  *lru.Cache[uint64, struct{}]
}

func newExactPolicy(capacity int) (*exactPolicy, error) {
	c, err := lru.New[uint64, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	return &exactPolicy{c: c}, nil
}

func (p *exactPolicy) Name() string { return "lru" }

func (p *exactPolicy) Access(op workload.Op) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if op.Write {
		p.c.Set(op.Key, struct{}{})
		return false, nil
	}
	if _, ok := p.c.Get(op.Key); ok {
		return true, nil
	}
	p.c.Set(op.Key, struct{}{})
	return false, nil
}

func (p *exactPolicy) Stats() cache.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.c.Stats()
}

func (p *exactPolicy) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.c.Len()
}

func (p *exactPolicy) Cap() int { return p.c.Cap() }
