// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// Event is the closed set of inbound events delivered to a session.
type Event interface {
	isEvent()
}

// Secret carries the per-connection auth secret (frame "visit").
type Secret struct {
	Secret string
}

// SaveSlots carries the nine save descriptors (frame "options", name "saves").
type SaveSlots struct {
	Slots map[SlotID]string
}

// Versions lists the game versions offered by the control plane, newest first.
type Versions struct {
	Versions []string
}

// Regions lists the launch regions offered by the control plane.
type Regions struct {
	Regions []string
}

// ModList is the authoritative list of installed mods.
type ModList struct {
	Mods []RemoteMod
}

// LifecycleStarting reports that a launch has begun.
type LifecycleStarting struct {
	LaunchID string
}

// LifecycleRunning reports that the instance is reachable.
type LifecycleRunning struct {
	LaunchID string
	Address  string
}

// LifecycleStopping reports that the instance is shutting down.
type LifecycleStopping struct{}

// LifecycleIdle reports that no instance is running.
type LifecycleIdle struct{}

// InfoLine is one game log line with its control-plane timestamp.
type InfoLine struct {
	Line string
	Time time.Time
}

// Diagnostic carries frames that never change state ("info", "console", "slot").
type Diagnostic struct {
	Kind string
	Line string
}

// StatusChange is emitted by the connection manager on connect and disconnect.
type StatusChange struct {
	Status ConnectionStatus
	// Reason is a short machine label: connected, dial_failed, read_error,
	// peer_closed or closed.
	Reason  string
	Message string
	Err     error
}

func (Secret) isEvent()            {}
func (SaveSlots) isEvent()         {}
func (Versions) isEvent()          {}
func (Regions) isEvent()           {}
func (ModList) isEvent()           {}
func (LifecycleStarting) isEvent() {}
func (LifecycleRunning) isEvent()  {}
func (LifecycleStopping) isEvent() {}
func (LifecycleIdle) isEvent()     {}
func (InfoLine) isEvent()          {}
func (Diagnostic) isEvent()        {}
func (StatusChange) isEvent()      {}
