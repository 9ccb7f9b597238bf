package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/eugener/ipscope/internal/telemetry"
)

// Sweepable is a cache that can drop its expired entries in bulk.
type Sweepable interface {
	Sweep(now time.Time) int
}

// CacheSweeper periodically removes expired cache entries so memory held by
// keys that are never read again is returned before FIFO eviction reaches them.
type CacheSweeper struct {
	cache    Sweepable
	interval time.Duration
	metrics  *telemetry.Metrics
}

// NewCacheSweeper creates a CacheSweeper. metrics may be nil.
func NewCacheSweeper(cache Sweepable, interval time.Duration, metrics *telemetry.Metrics) *CacheSweeper {
	return &CacheSweeper{cache: cache, interval: interval, metrics: metrics}
}

// Run sweeps on every tick until ctx is cancelled.
func (w *CacheSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			w.sweep(ctx, now)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *CacheSweeper) sweep(ctx context.Context, now time.Time) {
	n := w.cache.Sweep(now)
	if n == 0 {
		return
	}
	if w.metrics != nil {
		w.metrics.CacheEvictions.Add(float64(n))
	}
	slog.LogAttrs(ctx, slog.LevelDebug, "cache swept", slog.Int("removed", n))
}
