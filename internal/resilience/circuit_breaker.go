// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience guards calls to the control plane.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/zonectl/internal/metrics"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned without calling through while the breaker is
// open or while another half-open trial is in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CircuitBreaker stops calling a failing upstream for resetTimeout after
// threshold consecutive failures. It then admits a single trial: success
// closes the breaker, failure reopens it.
type CircuitBreaker struct {
	mu           sync.Mutex
	name         string
	state        State
	failures     int
	threshold    int
	resetTimeout time.Duration
	openedAt     time.Time
	trialing     bool
	clock        clock

	recoverPanic bool
	shouldTrip   func(error) bool
	onTransition func(from, to State)
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

func WithClock(c clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// WithPanicRecovery records a panic in the executed function as a failure
// before re-panicking.
func WithPanicRecovery(enabled bool) Option {
	return func(cb *CircuitBreaker) { cb.recoverPanic = enabled }
}

// WithTripFilter limits which errors count toward the failure threshold.
// Errors it rejects leave the breaker state untouched.
func WithTripFilter(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.shouldTrip = fn }
}

// WithTransitionHook is called with the breaker lock held on every state
// change. It must not call back into the breaker.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(cb *CircuitBreaker) { cb.onTransition = fn }
}

// NewCircuitBreaker creates a closed breaker. Non-positive threshold and
// resetTimeout fall back to 3 and 30s.
func NewCircuitBreaker(name string, threshold int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}

	cb := &CircuitBreaker{
		name:         name,
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        realClock{},
	}
	for _, opt := range opts {
		opt(cb)
	}

	metrics.SetCircuitBreakerState(cb.name, string(cb.state))
	return cb
}

// Execute runs fn unless the breaker rejects the call.
func (cb *CircuitBreaker) Execute(fn func() error) (err error) {
	trial, ok := cb.acquire()
	if !ok {
		return ErrCircuitOpen
	}

	if cb.recoverPanic {
		defer func() {
			if r := recover(); r != nil {
				cb.record(trial, true)
				panic(r)
			}
		}()
	}

	err = fn()
	switch {
	case err == nil:
		cb.record(trial, false)
	case cb.shouldTrip == nil || cb.shouldTrip(err):
		cb.record(trial, true)
	default:
		cb.release(trial)
	}
	return err
}

// acquire admits a call. trial is true for the single half-open trial.
func (cb *CircuitBreaker) acquire() (trial, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, true
	case StateOpen:
		if cb.clock.Now().Sub(cb.openedAt) <= cb.resetTimeout {
			return false, false
		}
		cb.transitionTo(StateHalfOpen)
	}
	if cb.trialing {
		return false, false
	}
	cb.trialing = true
	return true, true
}

func (cb *CircuitBreaker) release(trial bool) {
	if !trial {
		return
	}
	cb.mu.Lock()
	cb.trialing = false
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) record(trial, failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if trial {
		cb.trialing = false
	}

	if !failed {
		cb.failures = 0
		cb.transitionTo(StateClosed)
		return
	}

	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		metrics.RecordCircuitBreakerTrip(cb.name, "half_open_failure")
		cb.transitionTo(StateOpen)
	case cb.state == StateClosed && cb.failures >= cb.threshold:
		metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
		cb.transitionTo(StateOpen)
	}
}

// Caller must hold lock.
func (cb *CircuitBreaker) transitionTo(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == StateOpen {
		cb.openedAt = cb.clock.Now()
	}
	metrics.SetCircuitBreakerState(cb.name, string(to))
	if cb.onTransition != nil {
		cb.onTransition(from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return string(cb.state)
}
