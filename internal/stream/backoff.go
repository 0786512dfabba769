// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// BackoffConfig defines reconnect delay growth. Setting InitialDelay equal to
// MaxDelay with Jitter off yields a fixed interval.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// DefaultBackoff returns the reconnect defaults.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     time.Minute,
		Jitter:       true,
	}
}

// NextDelay returns the delay before reconnect attempt N (1-based). The
// capped exponential delay d is used as is, or with Jitter drawn uniformly
// from [0, d) (full jitter). A nil rng with Jitter yields d/2.
func NextDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// backoff tracks the attempt counter for one connection manager.
type backoff struct {
	mu      sync.Mutex
	cfg     BackoffConfig
	attempt int
	rng     *rand.Rand
}

func newBackoff(cfg BackoffConfig) *backoff {
	return &backoff{cfg: cfg, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (b *backoff) next() (time.Duration, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt++
	return NextDelay(b.cfg, b.attempt, b.rng), b.attempt
}

func (b *backoff) reset() {
	b.mu.Lock()
	b.attempt = 0
	b.mu.Unlock()
}
