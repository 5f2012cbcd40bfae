// Package simulate replays a workload against the sampled cache and an exact
// LRU side by side and compares their hit ratios.
package simulate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sampledlru/internal/cache"
	"sampledlru/internal/config"
	"sampledlru/internal/metrics"
	"sampledlru/internal/workload"
)

// ctxCheckEvery bounds how many ops a worker replays between cancellation
// checks.
const ctxCheckEvery = 1024

// Result is the outcome of replaying the workload against one policy.
type Result struct {
	Policy   string
	Stats    cache.Stats
	HitRatio float64
	Len      int
	Elapsed  time.Duration
}

// Runner owns one simulation.
type Runner struct {
	cfg      config.Config
	logger   *zap.Logger
	policies []Policy
}

// NewRunner builds both policies from cfg. If reg is non-nil a collector per
// policy is registered on it.
func NewRunner(cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sampled, err := newSampledPolicy(cfg.Capacity, cfg.Workload.Keys, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("build sampled cache: %w", err)
	}
	exact, err := newExactPolicy(cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("build lru cache: %w", err)
	}

	r := &Runner{
		cfg:      cfg,
		logger:   logger,
		policies: []Policy{sampled, exact},
	}

	if reg != nil {
		for _, p := range r.policies {
			if err := reg.Register(metrics.NewCollector(p.Name(), p)); err != nil {
				return nil, fmt.Errorf("register %s collector: %w", p.Name(), err)
			}
		}
	}
	return r, nil
}

// Policies returns the caches under test.
func (r *Runner) Policies() []Policy { return r.policies }

// Run replays the workload against every policy concurrently. Each policy
// gets the same op sequence, split across cfg.Workers goroutines.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	names := make([]string, len(r.policies))
	for i, p := range r.policies {
		names[i] = p.Name()
	}
	prog := newProgress(r.logger, r.cfg.ReportInterval, int64(r.cfg.Workload.Ops), names)

	loopCtx, stopLoop := context.WithCancel(ctx)
	var loops sync.WaitGroup
	prog.start(loopCtx, &loops)
	defer func() {
		stopLoop()
		loops.Wait()
	}()

	r.logger.Info("replay starting",
		zap.Int("capacity", r.cfg.Capacity),
		zap.String("workload", string(r.cfg.Workload.Kind)),
		zap.Uint64("keys", r.cfg.Workload.Keys),
		zap.Int("ops", r.cfg.Workload.Ops),
		zap.Int("workers", r.cfg.Workers),
	)

	results := make([]Result, len(r.policies))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range r.policies {
		g.Go(func() error {
			start := time.Now()
			if err := r.replay(gctx, i, p, prog); err != nil {
				return fmt.Errorf("%s: %w", p.Name(), err)
			}
			st := p.Stats()
			results[i] = Result{
				Policy:   p.Name(),
				Stats:    st,
				HitRatio: metrics.HitRatio(st),
				Len:      p.Len(),
				Elapsed:  time.Since(start),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, res := range results {
		r.logger.Info("replay finished",
			zap.String("policy", res.Policy),
			zap.Float64("hit_ratio", res.HitRatio),
			zap.Uint64("hits", res.Stats.Hits),
			zap.Uint64("misses", res.Stats.Misses),
			zap.Uint64("evictions", res.Stats.Evictions),
			zap.Duration("elapsed", res.Elapsed),
		)
	}
	return results, nil
}

func (r *Runner) replay(ctx context.Context, idx int, p Policy, prog *progress) error {
	stream, err := workload.New(r.cfg.Workload)
	if err != nil {
		return err
	}
	streams, err := stream.Split(r.cfg.Workers)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range streams {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var n int64
			for {
				op, ok := s.Next()
				if !ok {
					prog.add(idx, n)
					return nil
				}
				if _, err := p.Access(op); err != nil {
					return err
				}
				n++
				if n%ctxCheckEvery == 0 {
					prog.add(idx, n)
					n = 0
					if err := gctx.Err(); err != nil {
						return err
					}
				}
			}
		})
	}
	return g.Wait()
}
