package worker

import (
	"context"
	"log/slog"
	"time"
)

// StaleEvicter drops per-client state idle since a cutoff.
type StaleEvicter interface {
	EvictStale(cutoff time.Time) int
}

// LimiterEvicter forgets rate limit buckets of clients that went quiet.
type LimiterEvicter struct {
	limiter  StaleEvicter
	interval time.Duration
	idle     time.Duration
}

// NewLimiterEvicter creates a LimiterEvicter that runs every interval and
// drops clients idle for longer than idle.
func NewLimiterEvicter(limiter StaleEvicter, interval, idle time.Duration) *LimiterEvicter {
	return &LimiterEvicter{limiter: limiter, interval: interval, idle: idle}
}

// Run evicts on every tick until ctx is cancelled.
func (w *LimiterEvicter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if n := w.limiter.EvictStale(now.Add(-w.idle)); n > 0 {
				slog.LogAttrs(ctx, slog.LevelDebug, "evicted idle rate limiters", slog.Int("count", n))
			}
		case <-ctx.Done():
			return nil
		}
	}
}
