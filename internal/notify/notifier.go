// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package notify

import (
	"context"
	"time"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
	"github.com/ManuGH/zonectl/internal/log"
)

// Topic carries all session notifications.
const Topic = "session.notifications"

const defaultPublishTimeout = 250 * time.Millisecond

// BusNotifier implements ports.Notifier by publishing to a Bus. A full
// queue drops the message after PublishTimeout.
type BusNotifier struct {
	Bus            Bus
	PublishTimeout time.Duration
	now            func() time.Time
}

var _ ports.Notifier = (*BusNotifier)(nil)

func NewBusNotifier(bus Bus) *BusNotifier {
	return &BusNotifier{Bus: bus, PublishTimeout: defaultPublishTimeout, now: time.Now}
}

func (n *BusNotifier) Notify(ctx context.Context, resourceID string, msg model.Message) {
	timeout := n.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	// Delivery outlives the caller's request context.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	env := Envelope{ResourceID: resourceID, Message: msg, At: n.now()}
	if err := n.Bus.Publish(pctx, Topic, env); err != nil {
		log.FromContext(ctx).Warn().Err(err).
			Str(log.FieldEvent, "notify.publish_failed").
			Str(log.FieldResourceID, resourceID).
			Msg("notification dropped")
	}
}
