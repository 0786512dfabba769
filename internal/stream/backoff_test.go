// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDelayExponentialWithoutJitter(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 250 * time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Second}

	assert.Equal(t, 250*time.Millisecond, NextDelay(cfg, 1, nil))
	assert.Equal(t, 500*time.Millisecond, NextDelay(cfg, 2, nil))
	assert.Equal(t, time.Second, NextDelay(cfg, 3, nil))
	assert.Equal(t, 5*time.Second, NextDelay(cfg, 10, nil))
}

func TestNextDelayFixedInterval(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 10 * time.Second, Multiplier: 1, MaxDelay: 10 * time.Second}
	for attempt := 1; attempt < 5; attempt++ {
		assert.Equal(t, 10*time.Second, NextDelay(cfg, attempt, nil))
	}
}

func TestNextDelayFullJitter(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: time.Second, Multiplier: 2, MaxDelay: 8 * time.Second, Jitter: true}
	plain := cfg
	plain.Jitter = false

	rng := rand.New(rand.NewSource(1))
	var belowHalf, aboveHalf int
	for attempt := 1; attempt < 200; attempt++ {
		ceiling := NextDelay(plain, attempt, nil)
		d := NextDelay(cfg, attempt, rng)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, ceiling)
		if d < ceiling/2 {
			belowHalf++
		} else {
			aboveHalf++
		}
	}
	// full jitter spreads over the whole [0, d) range
	assert.Positive(t, belowHalf)
	assert.Positive(t, aboveHalf)

	assert.Equal(t, 4*time.Second, NextDelay(cfg, 10, nil))
}

func TestBackoffResetRestartsSequence(t *testing.T) {
	b := newBackoff(BackoffConfig{InitialDelay: time.Second, Multiplier: 2, MaxDelay: time.Minute})
	d1, a1 := b.next()
	d2, a2 := b.next()
	assert.Equal(t, 1, a1)
	assert.Equal(t, 2, a2)
	assert.Equal(t, 2*d1, d2)

	b.reset()
	d3, a3 := b.next()
	assert.Equal(t, 1, a3)
	assert.Equal(t, d1, d3)
}
