// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package notify moves operator-facing messages from session controllers to
// their delivery sinks through a private in-process queue.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/log"
	"github.com/ManuGH/zonectl/internal/metrics"
)

// Envelope is one queued notification.
type Envelope struct {
	ResourceID string
	Message    model.Message
	At         time.Time
}

// Subscriber receives envelopes for one topic until closed.
type Subscriber interface {
	C() <-chan Envelope
	Close() error
}

// Bus is the queue between publishers and the relay.
type Bus interface {
	Publish(ctx context.Context, topic string, env Envelope) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}

// MemoryBus is an in-process, non-durable Bus. A publish blocks while a
// subscriber buffer is full until ctx ends.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]chan Envelope
}

const (
	subscriberBuffer = 64
	dropLogEvery     = 100
)

var dropCount atomic.Uint64

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]chan Envelope)}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, env Envelope) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	// The read lock is held across sends so Close cannot close a channel
	// mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- env:
		case <-ctx.Done():
			reason := publishDropReason(ctx.Err())
			metrics.IncBusDropReason(topic, reason)
			if count := dropCount.Add(1); count%dropLogEvery == 1 {
				log.L().Warn().
					Str(log.FieldEvent, "notify.bus_drop").
					Str("topic", topic).
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("notification bus dropped message")
			}
			return fmt.Errorf("publish topic %q: %w", topic, ctx.Err())
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string) (Subscriber, error) {
	ch := make(chan Envelope, subscriberBuffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	return &memSub{b: b, topic: topic, ch: ch}, nil
}

type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan Envelope
	once  sync.Once
}

func (s *memSub) C() <-chan Envelope {
	return s.ch
}

func (s *memSub) Close() error {
	s.once.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()

		lst := s.b.subs[s.topic]
		out := lst[:0]
		for _, c := range lst {
			if c != s.ch {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			delete(s.b.subs, s.topic)
		} else {
			s.b.subs[s.topic] = out
		}
		close(s.ch)
	})
	return nil
}

var _ Bus = (*MemoryBus)(nil)
