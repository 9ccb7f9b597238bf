// Package batch resolves many lookup keys at once, serving what it can from
// the cache and fetching the rest in concurrent, size-limited chunks.
package batch

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	ipscope "github.com/eugener/ipscope/internal"
	"github.com/eugener/ipscope/internal/telemetry"
)

// Options controls a single Dispatch call.
type Options struct {
	ChunkSize int           // 0 or > ipscope.MaxBatchSize selects the maximum
	Timeout   time.Duration // per chunk; 0 selects ipscope.DefaultBatchTimeout
	Filter    bool          // passed through to the remote endpoint
}

// ClampChunkSize maps out-of-range chunk sizes to ipscope.MaxBatchSize.
func ClampChunkSize(n int) int {
	if n <= 0 || n > ipscope.MaxBatchSize {
		return ipscope.MaxBatchSize
	}
	return n
}

// Dispatcher runs cache-aware batch lookups against a Fetcher.
type Dispatcher struct {
	cache       ipscope.Cache
	fetcher     ipscope.Fetcher
	metrics     *telemetry.Metrics
	concurrency int
}

// New creates a Dispatcher. concurrency caps in-flight chunks; zero or
// negative means one goroutine per chunk. metrics may be nil.
func New(cache ipscope.Cache, fetcher ipscope.Fetcher, metrics *telemetry.Metrics, concurrency int) *Dispatcher {
	return &Dispatcher{
		cache:       cache,
		fetcher:     fetcher,
		metrics:     metrics,
		concurrency: concurrency,
	}
}

// Dispatch resolves keys and returns the values it found, keyed by the
// original identifier. Cached keys never reach the fetcher. A chunk that
// fails or times out is logged and contributes nothing; the others still
// land in the result and the cache.
func (d *Dispatcher) Dispatch(ctx context.Context, keys []string, opts Options) map[string]ipscope.Value {
	result := make(map[string]ipscope.Value, len(keys))
	misses := d.partition(ctx, keys, result)
	if len(misses) == 0 {
		return result
	}

	chunkSize := ClampChunkSize(opts.ChunkSize)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = ipscope.DefaultBatchTimeout
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}
	for chunk := range slices.Chunk(misses, chunkSize) {
		g.Go(func() error {
			fetched, err := d.fetchChunk(ctx, chunk, timeout, opts.Filter)
			if err != nil {
				return nil
			}
			mu.Lock()
			for k, v := range fetched {
				result[k] = v
			}
			mu.Unlock()
			for k, v := range fetched {
				d.cache.Set(ctx, ipscope.CacheKey(k), v)
			}
			return nil
		})
	}
	_ = g.Wait() // chunk goroutines never return errors

	return result
}

// partition copies cache hits into result and returns the de-duplicated
// misses in first-seen order.
func (d *Dispatcher) partition(ctx context.Context, keys []string, result map[string]ipscope.Value) []string {
	seen := make(map[string]struct{}, len(keys))
	var misses []string
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if v, ok := d.cache.Get(ctx, ipscope.CacheKey(k)); ok {
			result[k] = v
			d.countKeys("cache", 1)
			continue
		}
		misses = append(misses, k)
	}
	d.countKeys("fetch", len(misses))
	return misses
}

func (d *Dispatcher) fetchChunk(ctx context.Context, chunk []string, timeout time.Duration, filter bool) (map[string]ipscope.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	fetched, err := d.fetcher.FetchBatch(ctx, chunk, filter)
	if err != nil {
		result := "error"
		if ctx.Err() != nil {
			result = "timeout"
		}
		d.countChunk(result)
		slog.LogAttrs(ctx, slog.LevelWarn, "batch chunk failed",
			slog.Int("keys", len(chunk)),
			slog.String("result", result),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	d.countChunk("ok")
	return fetched, nil
}

func (d *Dispatcher) countChunk(result string) {
	if d.metrics != nil {
		d.metrics.BatchChunks.WithLabelValues(result).Inc()
	}
}

func (d *Dispatcher) countKeys(source string, n int) {
	if d.metrics != nil && n > 0 {
		d.metrics.BatchKeys.WithLabelValues(source).Add(float64(n))
	}
}
