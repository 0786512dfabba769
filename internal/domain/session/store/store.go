// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store implements ports.Store on memory, SQLite, Redis and Badger.
package store

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
)

func validateServer(srv model.Server) error {
	if err := srv.Key().Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

func cloneServer(srv model.Server) model.Server {
	srv.Admins = slices.Clone(srv.Admins)
	return srv
}

func cloneSaves(s model.Saves) model.Saves {
	out := model.Saves{Key: s.Key, Slots: make(map[model.SlotID]string, len(s.Slots))}
	for k, v := range s.Slots {
		out.Slots[k] = v
	}
	return out
}

func cloneMods(mods []model.Mod) []model.Mod {
	out := make([]model.Mod, len(mods))
	for i, m := range mods {
		m.ActiveOnSlots = m.ActiveOnSlots.Clone()
		out[i] = m
	}
	return out
}

// replaceMod swaps the entry with the same name, reporting ErrNotFound.
func replaceMod(mods []model.Mod, mod model.Mod) ([]model.Mod, error) {
	for i := range mods {
		if mods[i].Name == mod.Name {
			mods[i] = mod
			return mods, nil
		}
	}
	return nil, fmt.Errorf("mod %q: %w", mod.Name, ports.ErrNotFound)
}

func decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("store: decode: %w", err)
	}
	return v, nil
}
