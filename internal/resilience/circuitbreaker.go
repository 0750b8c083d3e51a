// Package resilience provides a circuit breaker for tool handlers that call
// external backends.
//
// The central type is [Breaker], a classic three-state breaker
// (closed → open → half-open). Database-backed tools wrap their queries in a
// breaker so that a dead backend fails fast instead of stalling every
// dispatch until the connection times out.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards all calls.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset
	// timeout elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through to decide
	// between closing and re-opening.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Option tunes a [Breaker].
type Option func(*Breaker)

// WithMaxFailures sets how many consecutive failures trip the breaker.
// The default is 5.
func WithMaxFailures(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.maxFailures = n
		}
	}
}

// WithResetTimeout sets how long the breaker stays open before probing.
// The default is 30 seconds.
func WithResetTimeout(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.resetTimeout = d
		}
	}
}

// WithProbeBudget sets how many half-open probe calls must succeed before
// the breaker closes again. The default is 3.
func WithProbeBudget(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.probeBudget = n
		}
	}
}

// Breaker implements the three-state circuit breaker pattern. It is safe for
// concurrent use from multiple goroutines.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	probeBudget  int

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
	probeOK  int
}

// New creates a [Breaker] with the given name (used in log messages) and
// options.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:         name,
		maxFailures:  5,
		resetTimeout: 30 * time.Second,
		probeBudget:  3,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Do runs fn if the breaker allows it. In the open state it returns
// [ErrCircuitOpen] without calling fn; after the reset timeout a limited
// number of probe calls are let through.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.settle(err)
	return err
}

// admit decides whether a call may proceed and accounts for probes.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) < b.resetTimeout {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probes = 0
		b.probeOK = 0
		slog.Info("circuit breaker probing", "name", b.name)

	case StateHalfOpen:
		if b.probes >= b.probeBudget {
			return ErrCircuitOpen
		}
	}

	if b.state == StateHalfOpen {
		b.probes++
	}
	return nil
}

// settle records the outcome of a call admitted by admit.
func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.openedAt = time.Now()
		if b.state == StateHalfOpen {
			// Any failed probe re-opens immediately.
			b.state = StateOpen
			b.failures = b.maxFailures
			slog.Warn("circuit breaker re-opened", "name", b.name)
			return
		}
		b.failures++
		if b.failures >= b.maxFailures {
			b.state = StateOpen
			slog.Warn("circuit breaker opened",
				"name", b.name, "consecutive_failures", b.failures)
		}
		return
	}

	if b.state == StateHalfOpen {
		b.probeOK++
		if b.probeOK >= b.probeBudget {
			b.state = StateClosed
			b.failures = 0
			slog.Info("circuit breaker closed", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State returns the breaker's current state. An open breaker whose reset
// timeout has elapsed reports [StateHalfOpen]; the actual transition happens
// on the next [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && time.Since(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [StateClosed], clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.probes = 0
	b.probeOK = 0
}
