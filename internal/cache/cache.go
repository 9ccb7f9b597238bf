// Package cache provides the lookup response caches and cache-key normalization.
package cache

import (
	"errors"
	"fmt"
	"time"

	ipscope "github.com/eugener/ipscope/internal"
)

// Eviction policies accepted by New.
const (
	PolicyFIFO    = "fifo"
	PolicyTinyLFU = "tinylfu"
)

// Defaults applied when the caller does not configure the cache.
const (
	DefaultMaxSize = 4096
	DefaultTTL     = 24 * time.Hour
)

var (
	_ ipscope.Cache = (*FIFO)(nil)
	_ ipscope.Cache = (*Memory)(nil)
)

// New returns a cache for the named policy. An empty policy selects FIFO.
func New(policy string, maxSize int, ttl time.Duration) (ipscope.Cache, error) {
	switch policy {
	case "", PolicyFIFO:
		c, err := NewFIFO(maxSize, ttl)
		if err != nil {
			return nil, err
		}
		return c, nil
	case PolicyTinyLFU:
		c, err := NewMemory(maxSize, ttl)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache policy %q", policy)
	}
}

// validateBounds rejects cache parameters shared by every policy.
func validateBounds(maxSize int, ttl time.Duration) error {
	if maxSize <= 0 {
		return errors.New("create cache: max size must be positive")
	}
	if ttl < 0 {
		return errors.New("create cache: ttl must not be negative")
	}
	return nil
}
