package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sampledlru/internal/cache"
)

// page is the payload the demo caches. It carries its own cache bookkeeping.
type page struct {
	cache.Slot[string]
	body string
}

func newDemoCmd(a *app) *cobra.Command {
	var seed uint64

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through eviction on a capacity-2 cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rng cache.Rand
			if cmd.Flags().Changed("seed") {
				rng = cache.NewRand(seed)
			}
			return runDemo(cmd.OutOrStdout(), a.logger, rng)
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed the eviction sampler (random if unset)")
	return cmd
}

func runDemo(out io.Writer, logger *zap.Logger, rng cache.Rand) error {
	c, err := cache.New(cache.Config[string, *page]{
		Capacity: 2,
		Rand:     rng,
		OnEvict: func(key string, p *page) {
			logger.Info("evicted", zap.String("key", key), zap.String("body", p.body))
		},
	})
	if err != nil {
		return err
	}

	a, b, cc := &page{body: "A"}, &page{body: "B"}, &page{body: "C"}

	logger.Info("demo starting", zap.Int("capacity", c.Cap()))

	// -------------------------------------------------------------------
	// 1) Fill the cache (capacity=2)
	// -------------------------------------------------------------------
	if err := c.Set("a", a); err != nil {
		return err
	}
	if err := c.Set("b", b); err != nil {
		return err
	}

	// Touch "a" so "b" holds the older tick.
	if p, ok := c.Get("a"); ok {
		fmt.Fprintf(out, "GET a = %q (tick %d, b has tick %d)\n", p.body, a.Tick(), b.Tick())
	}

	// -------------------------------------------------------------------
	// 2) Overflow: two slots are sampled, the older one goes.
	// -------------------------------------------------------------------
	// Only a sample that lands on slot 0 twice evicts "a"; "b" goes 3 times out of 4.
	if err := c.Set("c", cc); err != nil {
		return err
	}
	// Peek leaves ticks and hit counters alone.
	for _, key := range []string{"a", "b"} {
		if _, ok := c.Peek(key); !ok {
			fmt.Fprintf(out, "PEEK %s: missing (evicted)\n", key)
		}
	}
	fmt.Fprintf(out, "resident keys (pool order): %v\n", c.Keys())

	// -------------------------------------------------------------------
	// 3) Evicted payloads are reusable: put the loser back.
	// -------------------------------------------------------------------
	loser, key := b, "b"
	if !a.Cached() {
		loser, key = a, "a"
	}
	if err := c.Set(key, loser); err != nil {
		return err
	}
	fmt.Fprintf(out, "re-inserted %s; resident keys: %v\n", key, c.Keys())

	if c.Delete(cc) {
		fmt.Fprintf(out, "deleted c; size now %d\n", c.Len())
	}

	s := c.Stats()
	fmt.Fprintf(out, "hits=%d misses=%d inserts=%d evictions=%d\n", s.Hits, s.Misses, s.Inserts, s.Evictions)
	return nil
}
