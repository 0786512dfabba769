// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package lifecycle maps inbound lifecycle events onto session states.
package lifecycle

import (
	"fmt"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
)

// EventKind names a lifecycle-driving inbound event.
type EventKind string

const (
	EvStarting EventKind = "starting"
	EvRunning  EventKind = "running"
	EvStopping EventKind = "stopping"
	EvIdle     EventKind = "idle"
)

// Transition is the target state of one event kind. Every state may move to
// the target; the control plane is authoritative and may skip states after a
// reconnect.
type Transition struct {
	Event EventKind
	To    model.LifecycleState
}

var transitionsTable = []Transition{
	{Event: EvStarting, To: model.StateStarting},
	{Event: EvRunning, To: model.StateOnline},
	{Event: EvStopping, To: model.StateStopping},
	{Event: EvIdle, To: model.StateOffline},
}

// KindOf classifies an event. ok is false for events that do not drive the
// lifecycle.
func KindOf(ev model.Event) (EventKind, bool) {
	switch ev.(type) {
	case model.LifecycleStarting:
		return EvStarting, true
	case model.LifecycleRunning:
		return EvRunning, true
	case model.LifecycleStopping:
		return EvStopping, true
	case model.LifecycleIdle:
		return EvIdle, true
	}
	return "", false
}

// TransitionFor returns the table entry for an event kind.
func TransitionFor(ev EventKind) (Transition, bool) {
	for _, t := range transitionsTable {
		if t.Event == ev {
			return t, true
		}
	}
	return Transition{}, false
}

// Outcome is the result of applying one lifecycle event.
type Outcome struct {
	From    model.LifecycleState
	To      model.LifecycleState
	Changed bool
}

// Apply computes the next state. A same-state transition reports Changed=false.
func Apply(from model.LifecycleState, ev model.Event) (Outcome, error) {
	kind, ok := KindOf(ev)
	if !ok {
		return Outcome{From: from, To: from}, fmt.Errorf("%w: %T", ErrNotLifecycleEvent, ev)
	}
	t, ok := TransitionFor(kind)
	if !ok {
		return Outcome{From: from, To: from}, fmt.Errorf("%w: %s", ErrNoTransition, kind)
	}
	return Outcome{From: from, To: t.To, Changed: from != t.To}, nil
}

// Describe renders the operator-facing line for a state.
func Describe(state model.LifecycleState, address string) string {
	switch state {
	case model.StateOnline:
		return "Online at " + address
	case model.StateStarting:
		return "Server booting up"
	case model.StateStopping:
		return "Server shutting down"
	default:
		return "Server offline"
	}
}
