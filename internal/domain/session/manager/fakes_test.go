// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
	"github.com/ManuGH/zonectl/internal/domain/session/store"
)

type cpCall struct {
	Op       string
	Secret   string
	Region   string
	Slot     model.SlotID
	Version  string
	LaunchID string
	User     string
	Text     string
	ModID    string
	Enabled  bool
}

type fakeControlPlane struct {
	mu    sync.Mutex
	calls []cpCall
	fail  map[string]error
}

var _ ports.ControlPlane = (*fakeControlPlane)(nil)

func (f *fakeControlPlane) record(c cpCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.fail[c.Op]
}

func (f *fakeControlPlane) Calls() []cpCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cpCall(nil), f.calls...)
}

func (f *fakeControlPlane) ops() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.Op)
	}
	return out
}

func (f *fakeControlPlane) Login(_ context.Context, secret, token string) error {
	return f.record(cpCall{Op: "login", Secret: secret, Text: token})
}

func (f *fakeControlPlane) Start(_ context.Context, secret, region string, slot model.SlotID, version string) error {
	return f.record(cpCall{Op: "start", Secret: secret, Region: region, Slot: slot, Version: version})
}

func (f *fakeControlPlane) Stop(_ context.Context, secret, launchID string) error {
	return f.record(cpCall{Op: "stop", Secret: secret, LaunchID: launchID})
}

func (f *fakeControlPlane) Chat(_ context.Context, secret, launchID, username, text string) error {
	return f.record(cpCall{Op: "chat", Secret: secret, LaunchID: launchID, User: username, Text: text})
}

func (f *fakeControlPlane) Promote(_ context.Context, secret, launchID, username string) error {
	return f.record(cpCall{Op: "promote", Secret: secret, LaunchID: launchID, User: username})
}

func (f *fakeControlPlane) ToggleMod(_ context.Context, secret, modID string, enabled bool) error {
	return f.record(cpCall{Op: "toggle", Secret: secret, ModID: modID, Enabled: enabled})
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []model.Message
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, msg model.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) Texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.msgs {
		out = append(out, m.String())
	}
	return out
}

func (n *recordingNotifier) Last() model.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) == 0 {
		return model.Message{}
	}
	return n.msgs[len(n.msgs)-1]
}

func (n *recordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = nil
}

type fakeConn struct {
	connects atomic.Int32
	closes   atomic.Int32
	handler  func(model.Event)
}

func (c *fakeConn) Connect()     { c.connects.Add(1) }
func (c *fakeConn) Close() error { c.closes.Add(1); return nil }
func (c *fakeConn) Status() model.ConnectionStatus {
	return model.Disconnected
}

// countingStore counts writes on top of the memory store.
type countingStore struct {
	*store.MemoryStore
	putMods atomic.Int32
}

func (s *countingStore) PutMod(ctx context.Context, key model.ResourceKey, mod model.Mod) error {
	s.putMods.Add(1)
	return s.MemoryStore.PutMod(ctx, key, mod)
}

type connRegistry struct {
	mu    sync.Mutex
	conns map[string]*fakeConn
}

func (r *connRegistry) factory(id string, handler func(model.Event)) (ports.Connector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns == nil {
		r.conns = make(map[string]*fakeConn)
	}
	if id == "" {
		return nil, fmt.Errorf("empty id")
	}
	c := &fakeConn{handler: handler}
	r.conns[id] = c
	return c, nil
}

func (r *connRegistry) get(id string) *fakeConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[id]
}
