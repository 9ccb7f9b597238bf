package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"

	ipscope "github.com/eugener/ipscope/internal"
)

// Memory is an in-memory W-TinyLFU cache backed by otter. Unlike FIFO it
// admits and evicts by access frequency, and its size bound is enforced
// asynchronously. Keys are normalized with NormalizeKey.
type Memory struct {
	cache *otter.Cache[string, ipscope.Value]
}

// NewMemory creates an in-memory cache with the given max entry count and TTL.
// A zero ttl disables expiry.
func NewMemory(maxSize int, ttl time.Duration) (*Memory, error) {
	if err := validateBounds(maxSize, ttl); err != nil {
		return nil, err
	}
	opts := &otter.Options[string, ipscope.Value]{
		MaximumSize: maxSize,
	}
	if ttl > 0 {
		opts.ExpiryCalculator = otter.ExpiryWriting[string, ipscope.Value](ttl)
	}
	c, err := otter.New[string, ipscope.Value](opts)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Memory{cache: c}, nil
}

// Has reports whether an unexpired entry exists for key.
func (m *Memory) Has(_ context.Context, key string) bool {
	_, ok := m.cache.GetIfPresent(NormalizeKey(key))
	return ok
}

// Get retrieves a value from the cache if present and not expired.
func (m *Memory) Get(_ context.Context, key string) (ipscope.Value, bool) {
	return m.cache.GetIfPresent(NormalizeKey(key))
}

// Set stores a value; otter refreshes the write-based expiry.
func (m *Memory) Set(_ context.Context, key string, val ipscope.Value) {
	m.cache.Set(NormalizeKey(key), val)
}

// Delete removes a value from the cache.
func (m *Memory) Delete(_ context.Context, key string) {
	m.cache.Invalidate(NormalizeKey(key))
}

// Purge removes all values from the cache.
func (m *Memory) Purge(_ context.Context) {
	m.cache.InvalidateAll()
}

// Len returns the approximate number of stored entries.
func (m *Memory) Len() int {
	return m.cache.EstimatedSize()
}
