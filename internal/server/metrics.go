package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eugener/ipscope/internal/telemetry"
)

// unmatchedRoute labels requests that no route pattern claimed, so stray
// paths cannot grow the label set.
const unmatchedRoute = "unmatched"

// statusClasses indexes the status label by code/100.
var statusClasses = [...]string{"other", "1xx", "2xx", "3xx", "4xx", "5xx"}

// systemPaths are served without request metrics; scrapes and orchestrator
// health checks would otherwise dominate the lookup series.
var systemPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// metricsMiddleware records in-flight, total and latency series for lookup
// traffic, labelled by chi route pattern and status class.
func metricsMiddleware(m *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if systemPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			m.ActiveRequests.Inc()
			defer m.ActiveRequests.Dec()

			sw := statusWriterPool.Get().(*statusWriter)
			sw.ResponseWriter = w
			sw.status = http.StatusOK
			sw.wroteHeader = false
			defer func() {
				sw.ResponseWriter = nil
				statusWriterPool.Put(sw)
			}()

			start := time.Now()
			next.ServeHTTP(sw, r)
			elapsed := time.Since(start).Seconds()

			route := routeLabel(r)
			m.RequestsTotal.WithLabelValues(r.Method, route, statusClass(sw.status)).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed)
		})
	}
}

func statusClass(code int) string {
	if c := code / 100; c >= 1 && c < len(statusClasses) {
		return statusClasses[c]
	}
	return statusClasses[0]
}

// routeLabel must run after routing, when chi has filled in the pattern.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}
