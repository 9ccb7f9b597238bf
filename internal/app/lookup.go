// Package app holds the lookup service that ties the cache, bogon
// classifier, batch dispatcher and formatter to the remote API.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	ipscope "github.com/eugener/ipscope/internal"
	"github.com/eugener/ipscope/internal/batch"
	"github.com/eugener/ipscope/internal/bogon"
	"github.com/eugener/ipscope/internal/details"
	"github.com/eugener/ipscope/internal/telemetry"
)

// Deps are the collaborators of a LookupService. Only Upstream and Cache
// are required.
type Deps struct {
	Upstream  ipscope.Upstream
	Cache     ipscope.Cache
	Bogons    *bogon.Classifier  // nil = built-in table
	Formatter *details.Formatter // nil = built-in reference data
	Metrics   *telemetry.Metrics // nil = no metrics

	BatchDefaults    batch.Options
	BatchConcurrency int
}

// LookupService answers single and batch lookups.
type LookupService struct {
	upstream   ipscope.Upstream
	cache      ipscope.Cache
	bogons     *bogon.Classifier
	formatter  *details.Formatter
	dispatcher *batch.Dispatcher
	metrics    *telemetry.Metrics
	defaults   batch.Options
}

// NewLookupService wires a LookupService from deps.
func NewLookupService(deps Deps) *LookupService {
	s := &LookupService{
		upstream:  deps.Upstream,
		cache:     deps.Cache,
		bogons:    deps.Bogons,
		formatter: deps.Formatter,
		metrics:   deps.Metrics,
		defaults:  deps.BatchDefaults,
	}
	if s.bogons == nil {
		s.bogons = bogon.Default()
	}
	if s.formatter == nil {
		s.formatter = details.NewFormatter(nil)
	}
	s.dispatcher = batch.New(deps.Cache, deps.Upstream, deps.Metrics, deps.BatchConcurrency)
	return s
}

type bogonValue struct {
	IP    string `json:"ip"`
	Bogon bool   `json:"bogon"`
}

// Raw returns the unformatted payload for ip. Bogon addresses are answered
// locally; everything else is served from the cache or fetched and cached.
// An empty ip looks up the caller's own address.
func (s *LookupService) Raw(ctx context.Context, ip string) (ipscope.Value, error) {
	if ip != "" && s.bogons.IsBogon(ip) {
		if s.metrics != nil {
			s.metrics.BogonLookups.Inc()
		}
		return json.Marshal(bogonValue{IP: ip, Bogon: true})
	}

	key := ipscope.CacheKey(ip)
	if val, ok := s.cache.Get(ctx, key); ok {
		s.countCache(true)
		return val, nil
	}
	s.countCache(false)

	val, err := s.upstream.Lookup(ctx, ip)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "lookup failed",
			slog.String("ip", ip),
			slog.String("request_id", ipscope.RequestIDFromContext(ctx)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	s.cache.Set(ctx, key, val)
	return val, nil
}

// Details returns the formatted lookup for ip.
func (s *LookupService) Details(ctx context.Context, ip string) (*details.Details, error) {
	raw, err := s.Raw(ctx, ip)
	if err != nil {
		return nil, err
	}
	return s.formatter.Format(ip, raw)
}

// Batch resolves keys in bulk. Zero-valued options fall back to the
// service defaults. Keys that could not be resolved are absent from the result.
func (s *LookupService) Batch(ctx context.Context, keys []string, opts batch.Options) map[string]ipscope.Value {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = s.defaults.ChunkSize
	}
	if opts.Timeout == 0 {
		opts.Timeout = s.defaults.Timeout
	}
	opts.Filter = opts.Filter || s.defaults.Filter
	return s.dispatcher.Dispatch(ctx, keys, opts)
}

// MapURL uploads ips to the map tool and returns the report URL.
func (s *LookupService) MapURL(ctx context.Context, ips []string) (string, error) {
	if len(ips) == 0 {
		return "", fmt.Errorf("%w: no addresses to map", ipscope.ErrBadRequest)
	}
	return s.upstream.MapReport(ctx, ips)
}

// PurgeCache drops every cached lookup.
func (s *LookupService) PurgeCache(ctx context.Context) {
	s.cache.Purge(ctx)
}

// CacheLen returns the number of cached entries.
func (s *LookupService) CacheLen() int {
	return s.cache.Len()
}

func (s *LookupService) countCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHits.Inc()
	} else {
		s.metrics.CacheMisses.Inc()
	}
}
