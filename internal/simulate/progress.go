package simulate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// progress counts replayed ops per policy and logs them on a ticker.
type progress struct {
	logger *zap.Logger
	every  time.Duration
	total  int64
	names  []string
	done   []atomic.Int64
}

func newProgress(logger *zap.Logger, every time.Duration, total int64, names []string) *progress {
	return &progress{
		logger: logger,
		every:  every,
		total:  total,
		names:  names,
		done:   make([]atomic.Int64, len(names)),
	}
}

func (p *progress) add(policy int, n int64) {
	p.done[policy].Add(n)
}

// start runs the report loop until ctx is canceled. The caller owns the
// goroutine through wg.
func (p *progress) start(ctx context.Context, wg *sync.WaitGroup) {
	if p.every <= 0 {
		return
	}
	wg.Add(1)
	go p.loop(ctx, wg)
}

func (p *progress) loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(p.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.report()
		}
	}
}

func (p *progress) report() {
	for i, name := range p.names {
		done := p.done[i].Load()
		pct := 100.0
		if p.total > 0 {
			pct = float64(done) * 100 / float64(p.total)
		}
		p.logger.Info("replay progress",
			zap.String("policy", name),
			zap.Int64("ops", done),
			zap.Int64("total", p.total),
			zap.Float64("percent", pct),
		)
	}
}
