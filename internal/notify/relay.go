// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package notify

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/zonectl/internal/log"
	"github.com/ManuGH/zonectl/internal/metrics"
)

// Routes maps guild ids to sinks. Resources of guilds without an entry go
// to Default.
type Routes struct {
	Default Sink
	ByGuild map[string]Sink
}

// Route picks the sink for a "guild/token" resource id.
func (r *Routes) Route(resourceID string) Sink {
	guild, _, _ := strings.Cut(resourceID, "/")
	if s, ok := r.ByGuild[guild]; ok && s != nil {
		return s
	}
	return r.Default
}

// Relay drains the notification topic into sinks. Deliveries are
// sequential so per-resource ordering holds.
type Relay struct {
	bus             Bus
	routes          atomic.Pointer[Routes]
	deliveryTimeout time.Duration

	mu  sync.Mutex
	sub Subscriber
}

func NewRelay(bus Bus, routes Routes, deliveryTimeout time.Duration) *Relay {
	if deliveryTimeout <= 0 {
		deliveryTimeout = 10 * time.Second
	}
	r := &Relay{bus: bus, deliveryTimeout: deliveryTimeout}
	r.SetRoutes(routes)
	return r
}

// SetRoutes swaps the routing table; used on config reload.
func (r *Relay) SetRoutes(routes Routes) {
	if routes.Default == nil {
		routes.Default = NewLogSink()
	}
	r.routes.Store(&routes)
}

// Attach subscribes to the notification topic ahead of Run so messages
// published before Run starts are buffered instead of dropped.
func (r *Relay) Attach(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return nil
	}
	sub, err := r.bus.Subscribe(ctx, Topic)
	if err != nil {
		return err
	}
	r.sub = sub
	return nil
}

// Run delivers until ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.Attach(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()
	defer func() { _ = sub.Close() }()

	logger := log.WithComponent("notify")
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-sub.C():
			if !ok {
				return nil
			}
			sink := r.routes.Load().Route(env.ResourceID)
			dctx, cancel := context.WithTimeout(ctx, r.deliveryTimeout)
			err := sink.Deliver(dctx, env.ResourceID, env.Message)
			cancel()
			metrics.RecordNotification(sink.Name(), err)
			if err != nil {
				logger.Warn().Err(err).
					Str(log.FieldEvent, "notify.delivery_failed").
					Str(log.FieldResourceID, env.ResourceID).
					Str("sink", sink.Name()).
					Msg("notification delivery failed")
			}
		}
	}
}
