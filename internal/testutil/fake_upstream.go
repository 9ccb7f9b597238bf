// Package testutil provides configurable test fakes for ipscope interfaces.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	ipscope "github.com/eugener/ipscope/internal"
)

var _ ipscope.Upstream = (*FakeUpstream)(nil)

// FakeUpstream is a configurable ipscope.Upstream for testing. It counts
// calls and records every batch it receives.
type FakeUpstream struct {
	LookupFn func(ctx context.Context, ip string) (ipscope.Value, error)
	BatchFn  func(ctx context.Context, keys []string, filter bool) (map[string]ipscope.Value, error)
	MapFn    func(ctx context.Context, ips []string) (string, error)

	LookupCalls atomic.Int32
	BatchCalls  atomic.Int32
	MapCalls    atomic.Int32

	mu      sync.Mutex
	batches [][]string
}

// Lookup delegates to LookupFn or echoes the address back.
func (f *FakeUpstream) Lookup(ctx context.Context, ip string) (ipscope.Value, error) {
	f.LookupCalls.Add(1)
	if f.LookupFn != nil {
		return f.LookupFn(ctx, ip)
	}
	return ipscope.Value(fmt.Sprintf(`{"ip":%q,"country":"US","loc":"37.4056,-122.0775"}`, ip)), nil
}

// FetchBatch delegates to BatchFn or returns one echo value per key.
func (f *FakeUpstream) FetchBatch(ctx context.Context, keys []string, filter bool) (map[string]ipscope.Value, error) {
	f.BatchCalls.Add(1)
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), keys...))
	f.mu.Unlock()

	if f.BatchFn != nil {
		return f.BatchFn(ctx, keys, filter)
	}
	out := make(map[string]ipscope.Value, len(keys))
	for _, k := range keys {
		out[k] = ipscope.Value(fmt.Sprintf(`{"key":%q}`, k))
	}
	return out, nil
}

// MapReport delegates to MapFn or returns a fixed report URL.
func (f *FakeUpstream) MapReport(ctx context.Context, ips []string) (string, error) {
	f.MapCalls.Add(1)
	if f.MapFn != nil {
		return f.MapFn(ctx, ips)
	}
	return "https://example.test/map/fake", nil
}

// Batches returns copies of the key lists passed to FetchBatch, in call order.
func (f *FakeUpstream) Batches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.batches))
	copy(out, f.batches)
	return out
}
