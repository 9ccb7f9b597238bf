package main

import (
	"cmp"
	"context"
	"errors"

	"github.com/rs/dnscache"

	ipscope "github.com/eugener/ipscope/internal"
	"github.com/eugener/ipscope/internal/app"
	"github.com/eugener/ipscope/internal/batch"
	"github.com/eugener/ipscope/internal/bogon"
	"github.com/eugener/ipscope/internal/cache"
	"github.com/eugener/ipscope/internal/circuitbreaker"
	"github.com/eugener/ipscope/internal/config"
	"github.com/eugener/ipscope/internal/details"
	"github.com/eugener/ipscope/internal/telemetry"
	"github.com/eugener/ipscope/internal/upstream"
)

// components are the long-lived objects built from the config.
type components struct {
	cache    ipscope.Cache
	client   *upstream.Client
	bogons   *bogon.Classifier
	breaker  *circuitbreaker.Breaker // nil when the breaker is off
	resolver *dnscache.Resolver      // nil when DNS caching is off
	service  *app.LookupService
}

var errBreakerOpen = errors.New("upstream circuit breaker open")

// ready fails while the breaker keeps lookups from reaching the remote API.
func (c *components) ready(context.Context) error {
	if c.breaker != nil && c.breaker.State() == circuitbreaker.StateOpen {
		return errBreakerOpen
	}
	return nil
}

// build wires the lookup service. metrics may be nil.
func build(cfg *config.Config, metrics *telemetry.Metrics) (*components, error) {
	edition, err := upstream.ParseEdition(cfg.Upstream.Edition)
	if err != nil {
		return nil, err
	}

	var resolver *dnscache.Resolver
	if cfg.Upstream.DNSCache {
		resolver = &dnscache.Resolver{}
	}
	breaker := newBreaker(cfg.Upstream.Breaker, metrics)
	client, err := upstream.New(upstream.Options{
		Edition:    edition,
		BaseURL:    cfg.Upstream.BaseURL,
		BatchURL:   cfg.Upstream.BatchURL,
		MapURL:     cfg.Upstream.MapURL,
		UserAgent:  cmp.Or(cfg.Upstream.UserAgent, "ipscope/"+version),
		HTTPClient: upstream.NewHTTPClient(cfg.Upstream.Token, resolver, cfg.Upstream.Timeout),
		Metrics:    metrics,
		Breaker:    breaker,
	})
	if err != nil {
		return nil, err
	}

	c, err := cache.New(cfg.Cache.Policy, cfg.Cache.MaxSize, cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}

	ref := cfg.Reference
	tables, err := details.LoadTables(details.TablePaths{
		Countries:  ref.CountriesFile,
		EU:         ref.EUFile,
		Flags:      ref.FlagsFile,
		Currencies: ref.CurrenciesFile,
		Continents: ref.ContinentsFile,
	})
	if err != nil {
		return nil, err
	}

	bogons := bogon.Default()
	svc := app.NewLookupService(app.Deps{
		Upstream:  client,
		Cache:     c,
		Bogons:    bogons,
		Formatter: details.NewFormatter(tables),
		Metrics:   metrics,
		BatchDefaults: batch.Options{
			ChunkSize: cfg.Batch.ChunkSize,
			Timeout:   cfg.Batch.Timeout,
			Filter:    cfg.Batch.Filter,
		},
		BatchConcurrency: cfg.Batch.Concurrency,
	})
	return &components{
		cache:    c,
		client:   client,
		bogons:   bogons,
		breaker:  breaker,
		resolver: resolver,
		service:  svc,
	}, nil
}

// newBreaker returns nil when the breaker is disabled.
func newBreaker(cfg config.BreakerConfig, metrics *telemetry.Metrics) *circuitbreaker.Breaker {
	if !cfg.Enabled {
		return nil
	}
	b := circuitbreaker.New(circuitbreaker.Config{
		ErrorThreshold: cfg.ErrorThreshold,
		MinSamples:     cfg.MinSamples,
		WindowSeconds:  cfg.WindowSeconds,
		OpenTimeout:    cfg.OpenTimeout,
	})
	if metrics != nil {
		b.OnStateChange = func(_, to circuitbreaker.State) {
			metrics.BreakerState.Set(float64(to))
		}
	}
	return b
}
