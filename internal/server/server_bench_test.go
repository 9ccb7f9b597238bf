package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	// TextHandler(io.Discard) still processes/formats attrs (accurate alloc count)
	// but suppresses log output during benchmarks and tests.
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func BenchmarkLookupCached(b *testing.B) {
	h := newTestHandler()
	do(h, http.MethodGet, "/v1/lookup/8.8.8.8", "")

	b.ResetTimer()
	for b.Loop() {
		rec := do(h, http.MethodGet, "/v1/lookup/8.8.8.8", "")
		if rec.Code != http.StatusOK {
			b.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
		}
	}
}

func BenchmarkLookupCachedParallel(b *testing.B) {
	h := newTestHandler()
	do(h, http.MethodGet, "/v1/lookup/8.8.8.8", "")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			rec := do(h, http.MethodGet, "/v1/lookup/8.8.8.8?raw=1", "")
			if rec.Code != http.StatusOK {
				b.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
			}
		}
	})
}

const batchPayload = `{"keys":["8.8.8.8","1.1.1.1","AS15169","9.9.9.9/hostname"]}`

func BenchmarkBatch(b *testing.B) {
	h := newTestHandler()

	b.ResetTimer()
	for b.Loop() {
		req := httptest.NewRequest(http.MethodPost, "/v1/batch", strings.NewReader(batchPayload))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			b.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
		}
	}
}

func BenchmarkHealthz(b *testing.B) {
	h := newTestHandler()

	b.ResetTimer()
	for b.Loop() {
		rec := do(h, http.MethodGet, "/healthz", "")
		if rec.Code != http.StatusOK {
			b.Fatalf("status = %d", rec.Code)
		}
	}
}
