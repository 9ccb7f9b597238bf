package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	ipscope "github.com/eugener/ipscope/internal"
	"github.com/eugener/ipscope/internal/batch"
)

// maxBatchKeys bounds a single batch request; the dispatcher splits it
// into chunks of at most ipscope.MaxBatchSize.
const maxBatchKeys = 100 * ipscope.MaxBatchSize

// handleLookup serves GET /v1/lookup/{ip} and GET /v1/lookup (caller's own
// address). ?raw=1 returns the upstream payload untouched.
func (s *server) handleLookup(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")

	if r.URL.Query().Get("raw") == "1" {
		val, err := s.deps.Lookup.Raw(r.Context(), ip)
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header()["Content-Type"] = jsonCT
		w.WriteHeader(http.StatusOK)
		w.Write(val)
		return
	}

	d, err := s.deps.Lookup.Details(r.Context(), ip)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type batchRequest struct {
	Keys      []string `json:"keys"`
	ChunkSize int      `json:"chunk_size"`
	Timeout   string   `json:"timeout"`
	Filter    bool     `json:"filter"`
}

// handleBatch serves POST /v1/batch. Keys that could not be resolved are
// absent from the response.
func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Keys) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse(http.StatusBadRequest, "keys is required"))
		return
	}
	if len(req.Keys) > maxBatchKeys {
		writeJSON(w, http.StatusBadRequest, errorResponse(http.StatusBadRequest, "too many keys"))
		return
	}

	opts := batch.Options{ChunkSize: req.ChunkSize, Filter: req.Filter}
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse(http.StatusBadRequest, "invalid timeout"))
			return
		}
		opts.Timeout = d
	}

	writeJSON(w, http.StatusOK, s.deps.Lookup.Batch(r.Context(), req.Keys, opts))
}

type mapRequest struct {
	IPs []string `json:"ips"`
}

type mapResponse struct {
	ReportURL string `json:"report_url"`
}

// handleMap serves POST /v1/map.
func (s *server) handleMap(w http.ResponseWriter, r *http.Request) {
	var req mapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.deps.Lookup.MapURL(r.Context(), req.IPs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapResponse{ReportURL: u})
}

// handlePurgeCache serves DELETE /v1/cache.
func (s *server) handlePurgeCache(w http.ResponseWriter, r *http.Request) {
	s.deps.Lookup.PurgeCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
