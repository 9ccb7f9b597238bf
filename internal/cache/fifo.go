package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	ipscope "github.com/eugener/ipscope/internal"
)

// fifoEntry wraps a cached value with its expiration time and its position
// in the insertion-order list.
type fifoEntry struct {
	key       string
	val       ipscope.Value
	expiresAt time.Time // zero = never expires
	elem      *list.Element
}

func (e *fifoEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// FIFO is a bounded, time-expiring cache that evicts in insertion order.
// Reads never reorder entries and overwriting a live key keeps its position.
// Keys are normalized with NormalizeKey before use.
type FIFO struct {
	mu      sync.Mutex
	entries map[string]*fifoEntry
	order   *list.List // front = oldest insertion
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewFIFO creates a FIFO cache holding at most maxSize entries, each living
// for ttl after its last write. A zero ttl disables expiry.
func NewFIFO(maxSize int, ttl time.Duration) (*FIFO, error) {
	if err := validateBounds(maxSize, ttl); err != nil {
		return nil, err
	}
	return &FIFO{
		entries: make(map[string]*fifoEntry),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// Has reports whether an unexpired entry exists for key.
func (c *FIFO) Has(ctx context.Context, key string) bool {
	_, ok := c.Get(ctx, key)
	return ok
}

// Get retrieves a value if present and not expired. Expired entries are
// dropped on the way out.
func (c *FIFO) Get(_ context.Context, key string) (ipscope.Value, bool) {
	key = NormalizeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		c.remove(e)
		return nil, false
	}
	return e.val, true
}

// Set stores val under key and refreshes its expiry. A new key is appended
// to the insertion order; afterwards the oldest entries are evicted until
// the size bound holds.
func (c *FIFO) Set(_ context.Context, key string, val ipscope.Value) {
	key = NormalizeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = now.Add(c.ttl)
	}

	e, ok := c.entries[key]
	switch {
	case ok && !e.expired(now):
		e.val = val
		e.expiresAt = expiresAt
	case ok:
		// An expired entry is logically absent: re-insert at the back.
		e.val = val
		e.expiresAt = expiresAt
		c.order.MoveToBack(e.elem)
	default:
		e = &fifoEntry{key: key, val: val, expiresAt: expiresAt}
		e.elem = c.order.PushBack(e)
		c.entries[key] = e
	}

	for len(c.entries) > c.maxSize {
		c.remove(c.order.Front().Value.(*fifoEntry))
	}
}

// Delete removes a value from the cache.
func (c *FIFO) Delete(_ context.Context, key string) {
	key = NormalizeKey(key)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.remove(e)
	}
	c.mu.Unlock()
}

// Purge removes all values from the cache.
func (c *FIFO) Purge(_ context.Context) {
	c.mu.Lock()
	clear(c.entries)
	c.order.Init()
	c.mu.Unlock()
}

// Len returns the number of stored entries, including expired entries not
// yet swept.
func (c *FIFO) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep drops every entry expired at now and returns how many were removed.
func (c *FIFO) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if e := el.Value.(*fifoEntry); e.expired(now) {
			c.remove(e)
			removed++
		}
		el = next
	}
	return removed
}

// keys returns live keys in insertion order. Used by tests.
func (c *FIFO) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*fifoEntry).key)
	}
	return out
}

// remove deletes e from both the map and the order list. Caller holds mu.
func (c *FIFO) remove(e *fifoEntry) {
	c.order.Remove(e.elem)
	delete(c.entries, e.key)
}
