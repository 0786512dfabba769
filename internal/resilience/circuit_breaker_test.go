// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errUpstream = errors.New("upstream failed")

func failing() error { return errUpstream }
func succeeding() error { return nil }

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test-trip", 3, 30*time.Second, WithClock(clock))

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Execute(failing), errUpstream)
	}
	assert.Equal(t, string(StateClosed), cb.State())

	require.ErrorIs(t, cb.Execute(failing), errUpstream)
	assert.Equal(t, string(StateOpen), cb.State())

	calls := 0
	err := cb.Execute(func() error { calls++; return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls, "open breaker must not call through")
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test-probe", 1, 10*time.Second, WithClock(clock))

	require.Error(t, cb.Execute(failing))
	assert.Equal(t, string(StateOpen), cb.State())

	clock.now = clock.now.Add(11 * time.Second)
	require.NoError(t, cb.Execute(succeeding))
	assert.Equal(t, string(StateClosed), cb.State())
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test-reopen", 1, 10*time.Second, WithClock(clock))

	require.Error(t, cb.Execute(failing))
	clock.now = clock.now.Add(11 * time.Second)
	require.Error(t, cb.Execute(failing))
	assert.Equal(t, string(StateOpen), cb.State())
}

func TestCircuitBreakerTripFilterIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("test-filter", 1, time.Minute, WithTripFilter(func(err error) bool {
		return !errors.Is(err, context.Canceled)
	}))

	require.ErrorIs(t, cb.Execute(func() error { return context.Canceled }), context.Canceled)
	assert.Equal(t, string(StateClosed), cb.State())
}

func TestCircuitBreakerPanicRecoveryRecordsFailure(t *testing.T) {
	cb := NewCircuitBreaker("test-panic", 1, time.Minute, WithPanicRecovery(true))

	assert.Panics(t, func() {
		_ = cb.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, string(StateOpen), cb.State())
}

func TestCircuitBreakerAdmitsOneHalfOpenTrial(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test-single-trial", 1, 10*time.Second, WithClock(clock))
	require.Error(t, cb.Execute(failing))
	clock.now = clock.now.Add(11 * time.Second)

	inTrial := make(chan struct{})
	finish := make(chan struct{})
	trialErr := make(chan error, 1)
	go func() {
		trialErr <- cb.Execute(func() error {
			close(inTrial)
			<-finish
			return nil
		})
	}()
	<-inTrial

	calls := 0
	require.ErrorIs(t, cb.Execute(func() error { calls++; return nil }), ErrCircuitOpen)
	assert.Zero(t, calls)
	assert.Equal(t, string(StateHalfOpen), cb.State())

	close(finish)
	require.NoError(t, <-trialErr)
	assert.Equal(t, string(StateClosed), cb.State())
	require.NoError(t, cb.Execute(succeeding))
}

func TestCircuitBreakerFilteredErrorReleasesTrial(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test-release", 1, 10*time.Second, WithClock(clock),
		WithTripFilter(func(err error) bool { return !errors.Is(err, context.Canceled) }))
	require.Error(t, cb.Execute(failing))
	clock.now = clock.now.Add(11 * time.Second)

	require.ErrorIs(t, cb.Execute(func() error { return context.Canceled }), context.Canceled)
	assert.Equal(t, string(StateHalfOpen), cb.State())

	require.NoError(t, cb.Execute(succeeding))
	assert.Equal(t, string(StateClosed), cb.State())
}

func TestCircuitBreakerTransitionHook(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	var seen []string
	cb := NewCircuitBreaker("test-hook", 1, 10*time.Second, WithClock(clock),
		WithTransitionHook(func(from, to State) { seen = append(seen, string(from)+">"+string(to)) }))

	require.Error(t, cb.Execute(failing))
	clock.now = clock.now.Add(11 * time.Second)
	require.NoError(t, cb.Execute(succeeding))

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, seen)
}
