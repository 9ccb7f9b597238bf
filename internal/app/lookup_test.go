package app

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	ipscope "github.com/eugener/ipscope/internal"
	"github.com/eugener/ipscope/internal/batch"
	"github.com/eugener/ipscope/internal/bogon"
	"github.com/eugener/ipscope/internal/cache"
	"github.com/eugener/ipscope/internal/telemetry"
	"github.com/eugener/ipscope/internal/testutil"
)

func newService(t *testing.T, up *testutil.FakeUpstream, m *telemetry.Metrics) (*LookupService, *cache.FIFO) {
	t.Helper()
	c, err := cache.NewFIFO(cache.DefaultMaxSize, cache.DefaultTTL)
	if err != nil {
		t.Fatal(err)
	}
	return NewLookupService(Deps{Upstream: up, Cache: c, Metrics: m}), c
}

func TestRaw_CachesResult(t *testing.T) {
	t.Parallel()
	up := &testutil.FakeUpstream{}
	svc, _ := newService(t, up, nil)
	ctx := context.Background()

	for range 3 {
		if _, err := svc.Raw(ctx, "8.8.8.8"); err != nil {
			t.Fatal(err)
		}
	}
	if n := up.LookupCalls.Load(); n != 1 {
		t.Errorf("lookup calls = %d, want 1", n)
	}
}

func TestRaw_EquivalentNotationsShareEntry(t *testing.T) {
	t.Parallel()
	up := &testutil.FakeUpstream{}
	svc, c := newService(t, up, nil)
	ctx := context.Background()

	if _, err := svc.Raw(ctx, "2606:4700:0:0:0:0:0:1111"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Raw(ctx, "2606:4700::1111"); err != nil {
		t.Fatal(err)
	}
	if n := up.LookupCalls.Load(); n != 1 {
		t.Errorf("lookup calls = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("cache len = %d, want 1", c.Len())
	}
}

func TestRaw_Bogon(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewPedanticRegistry()
	m := telemetry.NewMetrics(reg)
	up := &testutil.FakeUpstream{}
	svc, c := newService(t, up, m)

	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "::1", "2002:7f00::1"} {
		val, err := svc.Raw(context.Background(), ip)
		if err != nil {
			t.Fatal(err)
		}
		want := `{"ip":"` + ip + `","bogon":true}`
		if string(val) != want {
			t.Errorf("Raw(%s) = %s, want %s", ip, val, want)
		}
	}
	if n := up.LookupCalls.Load(); n != 0 {
		t.Errorf("lookup calls = %d, want 0", n)
	}
	if c.Len() != 0 {
		t.Errorf("bogons should not be cached, len = %d", c.Len())
	}
	if v := promtest.ToFloat64(m.BogonLookups); v != 4 {
		t.Errorf("bogon lookups = %v, want 4", v)
	}
}

func TestRaw_CustomBogonTable(t *testing.T) {
	t.Parallel()
	cls, err := bogon.New([]netip.Prefix{netip.MustParsePrefix("8.8.8.0/24")})
	if err != nil {
		t.Fatal(err)
	}
	c, _ := cache.NewFIFO(10, 0)
	up := &testutil.FakeUpstream{}
	svc := NewLookupService(Deps{Upstream: up, Cache: c, Bogons: cls})

	if _, err := svc.Raw(context.Background(), "8.8.8.8"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Raw(context.Background(), "127.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if n := up.LookupCalls.Load(); n != 1 {
		t.Errorf("lookup calls = %d, want 1 (only 127.0.0.1 is fetched)", n)
	}
}

func TestRaw_ErrorNotCached(t *testing.T) {
	t.Parallel()
	up := &testutil.FakeUpstream{
		LookupFn: func(context.Context, string) (ipscope.Value, error) {
			return nil, ipscope.ErrQuotaExceeded
		},
	}
	svc, c := newService(t, up, nil)

	_, err := svc.Raw(context.Background(), "8.8.8.8")
	if !errors.Is(err, ipscope.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if c.Len() != 0 {
		t.Error("failed lookup should not be cached")
	}
}

func TestRaw_CacheMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewPedanticRegistry()
	m := telemetry.NewMetrics(reg)
	svc, _ := newService(t, &testutil.FakeUpstream{}, m)
	ctx := context.Background()

	_, _ = svc.Raw(ctx, "8.8.8.8")
	_, _ = svc.Raw(ctx, "8.8.8.8")

	if v := promtest.ToFloat64(m.CacheMisses); v != 1 {
		t.Errorf("misses = %v, want 1", v)
	}
	if v := promtest.ToFloat64(m.CacheHits); v != 1 {
		t.Errorf("hits = %v, want 1", v)
	}
}

func TestDetails(t *testing.T) {
	t.Parallel()
	up := &testutil.FakeUpstream{
		LookupFn: func(_ context.Context, ip string) (ipscope.Value, error) {
			return ipscope.Value(`{"ip":"2a01:e0a::1","country":"FR","loc":"48.8534,2.3488"}`), nil
		},
	}
	svc, _ := newService(t, up, nil)

	d, err := svc.Details(context.Background(), "2a01:0e0a::1")
	if err != nil {
		t.Fatal(err)
	}
	if d.IP != "2a01:0e0a::1" {
		t.Errorf("ip = %q, want requested notation", d.IP)
	}
	if !d.IsEU || d.CountryName != "France" {
		t.Errorf("details = %+v", d)
	}
	if d.Latitude == nil || *d.Latitude != 48.8534 {
		t.Errorf("latitude = %v", d.Latitude)
	}
}

func TestDetails_Bogon(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, &testutil.FakeUpstream{}, nil)
	d, err := svc.Details(context.Background(), "192.168.1.1")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Bogon || d.IP != "192.168.1.1" {
		t.Errorf("details = %+v", d)
	}
}

func TestBatch_UsesDefaults(t *testing.T) {
	t.Parallel()
	c, _ := cache.NewFIFO(100, time.Hour)
	var filtered bool
	up := &testutil.FakeUpstream{
		BatchFn: func(_ context.Context, keys []string, filter bool) (map[string]ipscope.Value, error) {
			filtered = filter
			out := make(map[string]ipscope.Value, len(keys))
			for _, k := range keys {
				out[k] = ipscope.Value(`{}`)
			}
			return out, nil
		},
	}
	svc := NewLookupService(Deps{
		Upstream:      up,
		Cache:         c,
		BatchDefaults: batch.Options{ChunkSize: 2, Filter: true},
	})

	got := svc.Batch(context.Background(), []string{"1.1.1.1", "1.0.0.1", "AS13335"}, batch.Options{})
	if len(got) != 3 {
		t.Errorf("results = %d, want 3", len(got))
	}
	if n := up.BatchCalls.Load(); n != 2 {
		t.Errorf("batch calls = %d, want 2", n)
	}
	if !filtered {
		t.Error("default filter should apply")
	}
}

func TestMapURL(t *testing.T) {
	t.Parallel()
	up := &testutil.FakeUpstream{}
	svc, _ := newService(t, up, nil)

	u, err := svc.MapURL(context.Background(), []string{"8.8.8.8"})
	if err != nil || u == "" {
		t.Fatalf("MapURL = %q, %v", u, err)
	}
	if _, err := svc.MapURL(context.Background(), nil); !errors.Is(err, ipscope.ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}
	if n := up.MapCalls.Load(); n != 1 {
		t.Errorf("map calls = %d, want 1", n)
	}
}

func TestPurgeCache(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, &testutil.FakeUpstream{}, nil)
	_, _ = svc.Raw(context.Background(), "8.8.8.8")
	if svc.CacheLen() != 1 {
		t.Fatalf("len = %d, want 1", svc.CacheLen())
	}
	svc.PurgeCache(context.Background())
	if svc.CacheLen() != 0 {
		t.Errorf("len = %d after purge", svc.CacheLen())
	}
}
