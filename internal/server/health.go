package server

import "net/http"

type healthResponse struct {
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	CacheEntries int    `json:"cache_entries"`
}

// handleHealthz reports liveness only; it never consults dependencies.
func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", CacheEntries: s.deps.Lookup.CacheLen()})
}

// handleReadyz returns 503 while the ready check fails, e.g. while the
// upstream circuit breaker is open and lookups would only fail fast.
func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ready", CacheEntries: s.deps.Lookup.CacheLen()}
	if s.deps.ReadyCheck != nil {
		if err := s.deps.ReadyCheck(r.Context()); err != nil {
			resp.Status = "not_ready"
			resp.Reason = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
