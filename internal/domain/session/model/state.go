// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model holds the session domain types shared by the stream,
// lifecycle, store and manager packages.
package model

import (
	"fmt"
	"strings"
)

// LifecycleState describes the remote game-server instance.
type LifecycleState string

const (
	StateOffline  LifecycleState = "offline"
	StateStarting LifecycleState = "starting"
	StateOnline   LifecycleState = "online"
	StateStopping LifecycleState = "stopping"
)

// Valid reports whether s is one of the four lifecycle states.
func (s LifecycleState) Valid() bool {
	switch s {
	case StateOffline, StateStarting, StateOnline, StateStopping:
		return true
	}
	return false
}

// ClearsLaunch reports whether entering s drops the launch id and address.
func (s LifecycleState) ClearsLaunch() bool {
	return s == StateStopping || s == StateOffline
}

// ConnectionStatus is owned by the connection manager.
type ConnectionStatus string

const (
	Connected    ConnectionStatus = "connected"
	Disconnected ConnectionStatus = "disconnected"
)

// ResourceKey identifies one managed resource (a registered server of a guild).
type ResourceKey struct {
	GuildID string `json:"guildId"`
	Token   string `json:"token"`
}

// ID returns the resource id used as registry and metrics key.
func (k ResourceKey) ID() string {
	return k.GuildID + "/" + k.Token
}

func (k ResourceKey) String() string { return k.ID() }

// Validate rejects keys with missing parts or separators.
func (k ResourceKey) Validate() error {
	if strings.TrimSpace(k.GuildID) == "" {
		return fmt.Errorf("guild id is required")
	}
	if strings.TrimSpace(k.Token) == "" {
		return fmt.Errorf("server token is required")
	}
	if strings.Contains(k.GuildID, "/") || strings.Contains(k.Token, "/") {
		return fmt.Errorf("guild id and token must not contain '/'")
	}
	return nil
}

// Server is the persisted record of a managed resource.
type Server struct {
	GuildID string   `json:"guildId" yaml:"guildId"`
	Name    string   `json:"name" yaml:"name"`
	Token   string   `json:"token" yaml:"token"`
	Region  string   `json:"region,omitempty" yaml:"region,omitempty"`
	Version string   `json:"version,omitempty" yaml:"version,omitempty"`
	Admins  []string `json:"admins,omitempty" yaml:"admins,omitempty"`
}

// Key returns the resource key of the record.
func (s Server) Key() ResourceKey {
	return ResourceKey{GuildID: s.GuildID, Token: s.Token}
}

// HasAdmin reports whether the folded name is on the auto-promote list.
func (s Server) HasAdmin(folded string) bool {
	for _, a := range s.Admins {
		if a == folded {
			return true
		}
	}
	return false
}

// Snapshot is a read-only view of a session at one point in time.
type Snapshot struct {
	ResourceID       string           `json:"resourceId"`
	GuildID          string           `json:"guildId"`
	Name             string           `json:"name"`
	LifecycleState   LifecycleState   `json:"lifecycleState"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus"`
	Authenticated    bool             `json:"authenticated"`
	LaunchID         string           `json:"launchId,omitempty"`
	PublicAddress    string           `json:"publicAddress,omitempty"`
	LastLogLine      string           `json:"lastLogLine,omitempty"`
	GameVersion      string           `json:"gameVersion,omitempty"`
	Regions          []string         `json:"regions,omitempty"`
}
