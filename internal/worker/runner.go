package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner runs the background workers of one process. The first worker to
// fail cancels the rest.
type Runner struct {
	workers []Worker
}

// NewRunner creates a Runner with the given workers.
func NewRunner(workers ...Worker) *Runner {
	return &Runner{workers: workers}
}

// Run blocks until every worker has returned. Workers stop cleanly on ctx
// cancellation; a worker error is returned tagged with the worker's name.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range r.workers {
		name := workerName(w)
		slog.LogAttrs(ctx, slog.LevelInfo, "worker started", slog.String("type", name))
		g.Go(func() error {
			err := w.Run(ctx)
			if err != nil {
				return fmt.Errorf("worker %s: %w", name, err)
			}
			slog.LogAttrs(ctx, slog.LevelDebug, "worker stopped", slog.String("type", name))
			return nil
		})
	}
	return g.Wait()
}

func workerName(w Worker) string {
	switch w.(type) {
	case *CacheSweeper:
		return "cache_sweeper"
	case *DNSRefresher:
		return "dns_refresher"
	case *LimiterEvicter:
		return "limiter_evicter"
	default:
		return "unknown"
	}
}
