// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ports declares the collaborators a session depends on.
package ports

import (
	"context"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
)

// Notifier delivers operator-facing messages. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, resourceID string, msg model.Message)
}

// Store persists server, save and mod records per resource.
// Lookups of absent records return ErrNotFound.
type Store interface {
	GetServer(ctx context.Context, key model.ResourceKey) (model.Server, error)
	ListServers(ctx context.Context) ([]model.Server, error)
	PutServer(ctx context.Context, srv model.Server) error
	// DeleteServer removes the server together with its saves and mods.
	DeleteServer(ctx context.Context, key model.ResourceKey) error

	GetSaves(ctx context.Context, key model.ResourceKey) (model.Saves, error)
	PutSaves(ctx context.Context, saves model.Saves) error

	ListMods(ctx context.Context, key model.ResourceKey) ([]model.Mod, error)
	// PutMod updates the mod with the same name; ErrNotFound if absent.
	PutMod(ctx context.Context, key model.ResourceKey, mod model.Mod) error
	// ReplaceMods swaps the whole mod set in one operation.
	ReplaceMods(ctx context.Context, key model.ResourceKey, mods []model.Mod) error

	Close() error
}

// ControlPlane issues the outbound control-plane calls. A non-200 response
// is returned as an error wrapping ErrUnexpectedStatus.
type ControlPlane interface {
	Login(ctx context.Context, secret, token string) error
	Start(ctx context.Context, secret, region string, slot model.SlotID, version string) error
	Stop(ctx context.Context, secret, launchID string) error
	Chat(ctx context.Context, secret, launchID, username, text string) error
	Promote(ctx context.Context, secret, launchID, username string) error
	ToggleMod(ctx context.Context, secret, modID string, enabled bool) error
}

// Connector is the session-facing side of the connection manager.
type Connector interface {
	Connect()
	Close() error
	Status() model.ConnectionStatus
}
