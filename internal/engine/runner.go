package engine

import (
	"context"
	"sync"
	"time"
)

// DefaultRecomputeInterval is the background recompute cadence when the
// configuration leaves it unset.
const DefaultRecomputeInterval = 15 * time.Minute

// RunnerStats holds cumulative background recompute statistics.
type RunnerStats struct {
	Ticks        int64
	Failures     int64
	LastTickTime time.Time
}

// Runner periodically recomputes patterns so suggestions keep up with
// the log without the caller ever invoking recompute by hand. It runs
// as a goroutine next to the engine.
type Runner struct {
	engine   *Engine
	interval time.Duration

	mu    sync.Mutex
	stats RunnerStats
}

// NewRunner creates a runner over the engine. A non-positive interval
// uses the default cadence.
func NewRunner(e *Engine, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultRecomputeInterval
	}
	return &Runner{engine: e, interval: interval}
}

// Stats returns a snapshot of the runner statistics.
func (r *Runner) Stats() RunnerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Run blocks until ctx is cancelled or stopCh is closed. Intended to be
// called as a goroutine. Failed passes are logged and retried on the
// next tick; a broken recompute never stops the loop.
func (r *Runner) Run(ctx context.Context, stopCh <-chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.engine.logger.Info("recompute runner started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.engine.logger.Info("recompute runner stopping", "reason", "context cancelled")
			return
		case <-stopCh:
			r.engine.logger.Info("recompute runner stopping", "reason", "shutdown signal")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	r.mu.Lock()
	r.stats.Ticks++
	r.stats.LastTickTime = time.Now()
	r.mu.Unlock()

	if _, err := r.engine.Recompute(ctx); err != nil {
		r.mu.Lock()
		r.stats.Failures++
		r.mu.Unlock()
		r.engine.logger.Error("background recompute failed", "error", err)
	}
}
