// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
)

// MemoryStore keeps records in process memory. Values are copied on the
// way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	servers map[model.ResourceKey]model.Server
	saves   map[model.ResourceKey]model.Saves
	mods    map[model.ResourceKey][]model.Mod
}

var _ ports.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		servers: make(map[model.ResourceKey]model.Server),
		saves:   make(map[model.ResourceKey]model.Saves),
		mods:    make(map[model.ResourceKey][]model.Mod),
	}
}

func (m *MemoryStore) GetServer(_ context.Context, key model.ResourceKey) (model.Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	srv, ok := m.servers[key]
	if !ok {
		return model.Server{}, ports.ErrNotFound
	}
	return cloneServer(srv), nil
}

func (m *MemoryStore) ListServers(_ context.Context) ([]model.Server, error) {
	m.mu.RLock()
	out := make([]model.Server, 0, len(m.servers))
	for _, srv := range m.servers {
		out = append(out, cloneServer(srv))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key().ID() < out[j].Key().ID() })
	return out, nil
}

func (m *MemoryStore) PutServer(_ context.Context, srv model.Server) error {
	if err := validateServer(srv); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[srv.Key()] = cloneServer(srv)
	return nil
}

func (m *MemoryStore) DeleteServer(_ context.Context, key model.ResourceKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.servers, key)
	delete(m.saves, key)
	delete(m.mods, key)
	return nil
}

func (m *MemoryStore) GetSaves(_ context.Context, key model.ResourceKey) (model.Saves, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.saves[key]
	if !ok {
		return model.Saves{}, ports.ErrNotFound
	}
	return cloneSaves(s), nil
}

func (m *MemoryStore) PutSaves(_ context.Context, saves model.Saves) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves[saves.Key] = cloneSaves(saves)
	return nil
}

func (m *MemoryStore) ListMods(_ context.Context, key model.ResourceKey) ([]model.Mod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneMods(m.mods[key]), nil
}

func (m *MemoryStore) PutMod(_ context.Context, key model.ResourceKey, mod model.Mod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mods, err := replaceMod(cloneMods(m.mods[key]), cloneMods([]model.Mod{mod})[0])
	if err != nil {
		return err
	}
	m.mods[key] = mods
	return nil
}

func (m *MemoryStore) ReplaceMods(_ context.Context, key model.ResourceKey, mods []model.Mod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mods[key] = cloneMods(mods)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
