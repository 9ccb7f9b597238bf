// Package server implements the HTTP transport layer for the ipscope lookup service.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eugener/ipscope/internal/app"
	"github.com/eugener/ipscope/internal/ratelimit"
	"github.com/eugener/ipscope/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Lookup         *app.LookupService
	ReadyCheck     ReadyChecker       // nil = always ready (for tests)
	Metrics        *telemetry.Metrics // nil = no request metrics
	MetricsHandler http.Handler       // nil = no /metrics endpoint
	AdminToken     string             // empty = cache admin endpoint disabled
	RateLimiter    *ratelimit.Limiter // nil = no rate limiting
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// System endpoints
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(s.rateLimit)
		}
		r.Get("/lookup", s.handleLookup)
		r.Get("/lookup/{ip}", s.handleLookup)
		r.Post("/batch", s.handleBatch)
		r.Post("/map", s.handleMap)

		if deps.AdminToken != "" {
			r.With(s.adminOnly).Delete("/cache", s.handlePurgeCache)
		}
	})

	return r
}

type server struct {
	deps Deps
}
