// Package circuitbreaker stops calls to the remote API while it is failing.
// A sliding window of weighted outcomes trips the breaker; after a cool-down
// a single trial call decides whether to close it again.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by Guard while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows all calls through.
	StateClosed State = iota
	// StateOpen rejects all calls.
	StateOpen
	// StateHalfOpen allows a single trial call.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters.
type Config struct {
	ErrorThreshold float64       // weighted error rate to trip (e.g. 0.50)
	MinSamples     int           // minimum calls in the window before tripping
	WindowSeconds  int           // sliding window duration in seconds, at most 60
	OpenTimeout    time.Duration // time in OPEN before a trial call is let through
}

// DefaultConfig returns the settings used for the remote API.
func DefaultConfig() Config {
	return Config{
		ErrorThreshold: 0.50,
		MinSamples:     20,
		WindowSeconds:  30,
		OpenTimeout:    15 * time.Second,
	}
}

// bucket holds error and call counts for a 1-second slot.
type bucket struct {
	errors float64 // weighted error sum
	total  int
}

// window is a fixed-size ring of 1-second buckets.
type window struct {
	buckets  [60]bucket
	size     int   // active buckets (== window seconds)
	head     int   // index of current bucket
	headTime int64 // unix seconds of head bucket
}

func newWindow(seconds int) window {
	if seconds <= 0 || seconds > 60 {
		seconds = 60
	}
	return window{size: seconds}
}

// advance moves the head forward to nowSec, clearing buckets it passes.
func (w *window) advance(nowSec int64) {
	if w.headTime == 0 {
		w.headTime = nowSec
		return
	}
	gap := nowSec - w.headTime
	if gap <= 0 {
		return
	}
	stale := min(int(gap), w.size)
	for i := range stale {
		w.buckets[(w.head+1+i)%w.size] = bucket{}
	}
	w.head = (w.head + int(gap)) % w.size
	w.headTime = nowSec
}

func (w *window) record(weight float64, now time.Time) {
	w.advance(now.Unix())
	w.buckets[w.head].total++
	w.buckets[w.head].errors += weight
}

// errorRate returns the weighted error rate and sample count in the window.
func (w *window) errorRate(now time.Time) (rate float64, samples int) {
	w.advance(now.Unix())
	var errs float64
	for i := range w.size {
		errs += w.buckets[i].errors
		samples += w.buckets[i].total
	}
	if samples == 0 {
		return 0, 0
	}
	return errs / float64(samples), samples
}

func (w *window) reset() {
	clear(w.buckets[:w.size])
	w.headTime = 0
	w.head = 0
}

// Breaker is a circuit breaker state machine. The zero value is not usable;
// create one with New.
type Breaker struct {
	mu            sync.Mutex
	state         State
	window        window
	openedAt      time.Time
	trialInFlight bool // a half-open trial call is in flight
	threshold     float64
	minSamples    int
	openTimeout   time.Duration
	now           func() time.Time

	// OnStateChange, when set, is called with the lock held after every
	// transition. It must not call back into the breaker.
	OnStateChange func(from, to State)
}

// New creates a breaker with the given config.
func New(cfg Config) *Breaker {
	return &Breaker{
		state:       StateClosed,
		window:      newWindow(cfg.WindowSeconds),
		threshold:   cfg.ErrorThreshold,
		minSamples:  cfg.MinSamples,
		openTimeout: cfg.OpenTimeout,
		now:         time.Now,
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. In OPEN it lets exactly one
// trial call through once the open timeout has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.openTimeout {
			return false
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = true
		return true
	case StateHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	}
	return false
}

// Record feeds a call outcome into the breaker. A weight of 0 counts as
// success; see ClassifyError.
func (b *Breaker) Record(weight float64) {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window.record(weight, now)

	switch b.state {
	case StateHalfOpen:
		b.trialInFlight = false
		if weight == 0 {
			b.window.reset()
			b.transition(StateClosed)
		} else {
			b.openedAt = now
			b.transition(StateOpen)
		}
	case StateClosed:
		if weight == 0 {
			return
		}
		if rate, samples := b.window.errorRate(now); samples >= b.minSamples && rate >= b.threshold {
			b.openedAt = now
			b.transition(StateOpen)
		}
	}
}

// Abandon ends an admitted call without recording an outcome. A half-open
// breaker lets the next caller try instead.
func (b *Breaker) Abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.trialInFlight = false
	}
}

// Guard runs fn if the breaker allows it and records the outcome. It returns
// ErrOpen without calling fn while the breaker is open. When ctx is done by
// the time fn returns, the failure belongs to the caller and is abandoned.
func (b *Breaker) Guard(ctx context.Context, fn func() error) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := fn()
	if err != nil && ctx.Err() != nil {
		b.Abandon()
		return err
	}
	b.Record(ClassifyError(err))
	return err
}

// transition switches state. Caller holds mu.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	slog.Warn("upstream circuit breaker state change",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
	if b.OnStateChange != nil {
		b.OnStateChange(from, to)
	}
}
