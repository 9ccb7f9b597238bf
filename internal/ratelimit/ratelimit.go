// Package ratelimit throttles callers to a fixed number of requests per minute
// using lazily refilled token buckets, one per client.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// bucket is a token bucket with lazy refill (no background goroutine).
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastFill time.Time
	lastUsed time.Time
}

func newBucket(rpm int, now time.Time) *bucket {
	return &bucket{
		tokens:   float64(rpm),
		max:      float64(rpm),
		rate:     float64(rpm) / 60.0,
		lastFill: now,
		lastUsed: now,
	}
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	b.lastFill = now
}

// take consumes one token if available.
func (b *bucket) take(now time.Time) (remaining int, retryAfter time.Duration, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastUsed = now
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return int(b.tokens), 0, true
	}
	wait := (1 - b.tokens) / b.rate
	return 0, time.Duration(wait * float64(time.Second)), false
}

func (b *bucket) idleSince(cutoff time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUsed.Before(cutoff)
}

// Limiter holds one bucket per client key. A nil *Limiter allows everything.
type Limiter struct {
	rpm int
	now func() time.Time

	mu      sync.RWMutex
	buckets map[string]*bucket
}

// New creates a Limiter granting rpm requests per minute to each key.
// It returns nil when rpm is not positive.
func New(rpm int) *Limiter {
	if rpm <= 0 {
		return nil
	}
	return &Limiter{
		rpm:     rpm,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes one request for key.
func (l *Limiter) Allow(key string) Result {
	if l == nil {
		return Result{Allowed: true}
	}
	now := l.now()
	remaining, retry, ok := l.bucketFor(key, now).take(now)
	return Result{Allowed: ok, Limit: l.rpm, Remaining: remaining, RetryAfter: retry}
}

func (l *Limiter) bucketFor(key string, now time.Time) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		return b
	}
	b = newBucket(l.rpm, now)
	l.buckets[key] = b
	return b
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// EvictStale drops clients idle since cutoff and returns how many were removed.
func (l *Limiter) EvictStale(cutoff time.Time) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for k, b := range l.buckets {
		if b.idleSince(cutoff) {
			delete(l.buckets, k)
			evicted++
		}
	}
	return evicted
}
