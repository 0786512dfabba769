// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"fmt"

	"github.com/ManuGH/zonectl/internal/domain/session/ports"
)

// Config selects and configures a backend.
type Config struct {
	Backend string // memory, sqlite, redis or badger
	Path    string // sqlite file or badger directory
	Redis   RedisConfig
}

// Checker is implemented by backends that can verify their own health.
type Checker interface {
	Check(ctx context.Context) error
}

// Open creates a store for the configured backend. An empty backend
// means sqlite.
func Open(cfg Config) (ports.Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		return NewSqliteStore(cfg.Path)
	case "badger":
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger backend requires a path")
		}
		return OpenBadgerStore(cfg.Path)
	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis backend requires an address")
		}
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
