package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	ipscope "github.com/eugener/ipscope/internal"
)

func newTestFIFO(t *testing.T, maxSize int, ttl time.Duration) *FIFO {
	t.Helper()
	c, err := NewFIFO(maxSize, ttl)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestFIFO_HasGet(t *testing.T) {
	t.Parallel()
	c := newTestFIFO(t, 4, 2*time.Second)
	ctx := context.Background()

	if c.Has(ctx, "test") {
		t.Error("empty cache should not have key")
	}
	if _, ok := c.Get(ctx, "test"); ok {
		t.Error("should not find missing key")
	}

	c.Set(ctx, "test", ipscope.Value(`"obama"`))
	c.Set(ctx, "test2", ipscope.Value(`"mccain"`))

	if !c.Has(ctx, "test") || !c.Has(ctx, "test2") {
		t.Error("both keys should be present")
	}
	if v, _ := c.Get(ctx, "test"); string(v) != `"obama"` {
		t.Errorf("test = %s, want %q", v, `"obama"`)
	}
	if v, _ := c.Get(ctx, "test2"); string(v) != `"mccain"` {
		t.Errorf("test2 = %s, want %q", v, `"mccain"`)
	}
}

func TestFIFO_NullIsPresent(t *testing.T) {
	t.Parallel()
	c := newTestFIFO(t, 4, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "k", ipscope.Value("null"))
	v, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("cached null should be present")
	}
	if string(v) != "null" {
		t.Errorf("value = %s, want null", v)
	}
}

func TestFIFO_EvictsInInsertionOrder(t *testing.T) {
	t.Parallel()
	c := newTestFIFO(t, 2, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "k1", ipscope.Value(`1`))
	c.Set(ctx, "k2", ipscope.Value(`2`))
	c.Set(ctx, "k3", ipscope.Value(`3`))

	if c.Has(ctx, "k1") {
		t.Error("k1 should have been evicted")
	}
	if !c.Has(ctx, "k2") || !c.Has(ctx, "k3") {
		t.Error("k2 and k3 should remain")
	}
}

func TestFIFO_ReadsDoNotReorder(t *testing.T) {
	t.Parallel()
	c := newTestFIFO(t, 2, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "k1", ipscope.Value(`1`))
	c.Set(ctx, "k2", ipscope.Value(`2`))
	// An LRU would now evict k2; FIFO still evicts k1.
	c.Get(ctx, "k1")
	c.Set(ctx, "k3", ipscope.Value(`3`))

	if c.Has(ctx, "k1") {
		t.Error("k1 should have been evicted despite the read")
	}
	if !c.Has(ctx, "k2") {
		t.Error("k2 should remain")
	}
}

func TestFIFO_OverwriteKeepsPosition(t *testing.T) {
	t.Parallel()
	c := newTestFIFO(t, 2, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "k1", ipscope.Value(`1`))
	c.Set(ctx, "k2", ipscope.Value(`2`))
	c.Set(ctx, "k1", ipscope.Value(`10`))

	if got := c.keys(); !slices.Equal(got, []string{"k1", "k2"}) {
		t.Fatalf("order = %v, want [k1 k2]", got)
	}
	if v, _ := c.Get(ctx, "k1"); string(v) != "10" {
		t.Errorf("k1 = %s, want 10", v)
	}

	c.Set(ctx, "k3", ipscope.Value(`3`))
	if c.Has(ctx, "k1") {
		t.Error("overwritten k1 should still be the oldest and evicted")
	}
}

func TestFIFO_NormalizedKeysShareEntry(t *testing.T) {
	t.Parallel()
	c := newTestFIFO(t, 4, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "2001:db8:0:0:0:0:0:1_v1", ipscope.Value(`{"ip":"2001:db8::1"}`))
	if !c.Has(ctx, "2001:DB8::1_v1") {
		t.Error("equivalent notation should hit")
	}
	if c.Has(ctx, "2001:db8::1_v2") {
		t.Error("different version suffix should miss")
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestFIFO_TTLExpiry(t *testing.T) {
	t.Parallel()
	c := newTestFIFO(t, 2, time.Second)
	ctx := context.Background()

	c.Set(ctx, "test", ipscope.Value(`"obama"`))
	if v, ok := c.Get(ctx, "test"); !ok || string(v) != `"obama"` {
		t.Fatalf("get = %s, %v", v, ok)
	}

	time.Sleep(1100 * time.Millisecond)
	if _, ok := c.Get(ctx, "test"); ok {
		t.Error("entry should be expired")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be purged on read, len = %d", c.Len())
	}
}

func TestFIFO_ExpiredKeyReinsertedAtBack(t *testing.T) {
	t.Parallel()
	c := newTestFIFO(t, 3, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "k1", ipscope.Value(`1`))
	c.Set(ctx, "k2", ipscope.Value(`2`))
	now = now.Add(2 * time.Minute) // k1 and k2 expire
	c.Set(ctx, "k3", ipscope.Value(`3`))
	c.Set(ctx, "k1", ipscope.Value(`11`))

	if got := c.keys(); !slices.Equal(got, []string{"k2", "k3", "k1"}) {
		t.Errorf("order = %v, want [k2 k3 k1]", got)
	}
}

func TestFIFO_ZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()
	c := newTestFIFO(t, 2, 0)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "k", ipscope.Value(`1`))
	now = now.Add(365 * 24 * time.Hour)
	if !c.Has(ctx, "k") {
		t.Error("zero ttl entry should not expire")
	}
}

func TestFIFO_Sweep(t *testing.T) {
	t.Parallel()
	c := newTestFIFO(t, 10, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "old1", ipscope.Value(`1`))
	c.Set(ctx, "old2", ipscope.Value(`2`))
	now = now.Add(30 * time.Second)
	c.Set(ctx, "fresh", ipscope.Value(`3`))

	removed := c.Sweep(now.Add(45 * time.Second))
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if got := c.keys(); !slices.Equal(got, []string{"fresh"}) {
		t.Errorf("keys = %v, want [fresh]", got)
	}
}

func TestFIFO_DeletePurge(t *testing.T) {
	t.Parallel()
	c := newTestFIFO(t, 10, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "a", ipscope.Value(`1`))
	c.Set(ctx, "b", ipscope.Value(`2`))
	c.Set(ctx, "c", ipscope.Value(`3`))

	c.Delete(ctx, "b")
	if got := c.keys(); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("keys after delete = %v, want [a c]", got)
	}

	c.Purge(ctx)
	if c.Len() != 0 {
		t.Errorf("len after purge = %d, want 0", c.Len())
	}
	c.Set(ctx, "d", ipscope.Value(`4`))
	if got := c.keys(); !slices.Equal(got, []string{"d"}) {
		t.Errorf("keys after purge+set = %v, want [d]", got)
	}
}

func TestFIFO_BoundedUnderChurn(t *testing.T) {
	t.Parallel()
	const maxSize = 16
	c := newTestFIFO(t, maxSize, time.Minute)
	ctx := context.Background()

	for i := range 500 {
		c.Set(ctx, fmt.Sprintf("key-%d", i%97), ipscope.Value(`1`))
		if n := c.Len(); n > maxSize {
			t.Fatalf("after set %d: len = %d, want <= %d", i, n, maxSize)
		}
		if n := len(c.keys()); n != c.Len() {
			t.Fatalf("order list has %d keys, map has %d", n, c.Len())
		}
	}
}

func TestFIFO_ConcurrentSet(t *testing.T) {
	t.Parallel()
	const maxSize = 32
	c := newTestFIFO(t, maxSize, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				key := fmt.Sprintf("g%d-%d", g, i)
				c.Set(ctx, key, ipscope.Value(`1`))
				c.Get(ctx, key)
			}
		}()
	}
	wg.Wait()

	if n := c.Len(); n != maxSize {
		t.Errorf("len = %d, want %d", n, maxSize)
	}
	if n := len(c.keys()); n != maxSize {
		t.Errorf("order length = %d, want %d", n, maxSize)
	}
}

func TestNew_InvalidArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		maxSize int
		ttl     time.Duration
	}{
		{"zero max size", 0, time.Minute},
		{"negative max size", -1, time.Minute},
		{"negative ttl", 10, -time.Second},
	}
	for _, tt := range tests {
		for _, policy := range []string{PolicyFIFO, PolicyTinyLFU} {
			t.Run(policy+"/"+tt.name, func(t *testing.T) {
				t.Parallel()
				c, err := New(policy, tt.maxSize, tt.ttl)
				if err == nil {
					t.Fatal("expected error")
				}
				if c != nil {
					t.Errorf("cache = %#v, want nil interface", c)
				}
			})
		}
	}
}

func TestNew_Policy(t *testing.T) {
	t.Parallel()

	c, err := New("", 10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*FIFO); !ok {
		t.Errorf("default policy = %T, want *FIFO", c)
	}

	c, err = New(PolicyTinyLFU, 10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*Memory); !ok {
		t.Errorf("tinylfu policy = %T, want *Memory", c)
	}

	if _, err := New("lru", 10, time.Minute); err == nil {
		t.Error("unknown policy should fail")
	}
}
