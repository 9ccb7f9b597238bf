package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/eugener/ipscope/internal/config"
	"github.com/eugener/ipscope/internal/ratelimit"
	"github.com/eugener/ipscope/internal/server"
	"github.com/eugener/ipscope/internal/telemetry"
	"github.com/eugener/ipscope/internal/worker"
)

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP lookup service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return serve(ctx, c.cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting ipscope", "version", version, "addr", cfg.Server.Addr)

	// Telemetry
	var (
		metrics        *telemetry.Metrics
		metricsHandler http.Handler
		reg            *prometheus.Registry
	)
	if cfg.Telemetry.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = telemetry.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, version, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	// Wire services
	comp, err := build(cfg, metrics)
	if err != nil {
		return err
	}
	if reg != nil {
		telemetry.RegisterCacheSize(reg, comp.cache.Len)
	}

	limiter := ratelimit.New(cfg.Server.RateLimitRPM)

	// Background workers
	var workers []worker.Worker
	if sw, ok := comp.cache.(worker.Sweepable); ok && cfg.Cache.TTL > 0 && cfg.Cache.SweepInterval > 0 {
		workers = append(workers, worker.NewCacheSweeper(sw, cfg.Cache.SweepInterval, metrics))
	}
	if comp.resolver != nil && cfg.Upstream.DNSRefresh > 0 {
		workers = append(workers, worker.NewDNSRefresher(comp.resolver, cfg.Upstream.DNSRefresh))
	}
	if limiter != nil {
		workers = append(workers, worker.NewLimiterEvicter(limiter, time.Minute, 10*time.Minute))
	}
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	workerErr := make(chan error, 1)
	go func() {
		if err := worker.NewRunner(workers...).Run(workerCtx); err != nil {
			workerErr <- err
		}
	}()

	// Create HTTP server
	handler := server.New(server.Deps{
		Lookup:         comp.service,
		ReadyCheck:     comp.ready,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		AdminToken:     cfg.Server.AdminToken,
		RateLimiter:    limiter,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("ipscope ready",
		"addr", cfg.Server.Addr,
		"edition", comp.client.Edition(),
		"cache_policy", cfg.Cache.Policy,
		"cache_max_size", cfg.Cache.MaxSize,
		"cache_ttl", cfg.Cache.TTL,
		"bogon_ranges", len(comp.bogons.Prefixes()),
	)

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return err
	case err := <-workerErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	cancelWorkers()

	slog.Info("ipscope stopped")
	return nil
}
