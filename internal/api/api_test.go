// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/zonectl/internal/domain/session/manager"
	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/health"
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]model.Snapshot
	commands []manager.Command
	dispatch error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]model.Snapshot)}
}

func (f *fakeSessions) Register(_ context.Context, srv model.Server) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := srv.Key().Validate(); err != nil {
		return fmt.Errorf("%w: %w", manager.ErrInvalidServer, err)
	}
	id := srv.Key().ID()
	if _, ok := f.sessions[id]; ok {
		return fmt.Errorf("%w: %s", manager.ErrSessionExists, id)
	}
	f.sessions[id] = model.Snapshot{ResourceID: id, GuildID: srv.GuildID, Name: srv.Name, LifecycleState: model.StateOffline, ConnectionStatus: model.Disconnected}
	return nil
}

func (f *fakeSessions) Remove(_ context.Context, key model.ResourceKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[key.ID()]; !ok {
		return fmt.Errorf("%w: %s", manager.ErrSessionNotFound, key.ID())
	}
	delete(f.sessions, key.ID())
	return nil
}

func (f *fakeSessions) Dispatch(_ context.Context, id string, cmd manager.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", manager.ErrSessionNotFound, id)
	}
	if f.dispatch != nil {
		return f.dispatch
	}
	f.commands = append(f.commands, cmd)
	return nil
}

func (f *fakeSessions) Get(id string) (model.Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	return s, ok
}

func (f *fakeSessions) List() []model.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Snapshot, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out
}

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *fakeSessions) {
	t.Helper()
	sessions := newFakeSessions()
	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewSessionsChecker(sessions.List))
	srv := httptest.NewServer(New(cfg, sessions, hm).Handler())
	t.Cleanup(srv.Close)
	return srv, sessions
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServerLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/servers", `{"guildId":"g1","name":"factory","token":"tok1","admins":["Alice"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/api/v1/servers/g1/tok1", resp.Header.Get("Location"))
	created := decode[model.Snapshot](t, resp)
	assert.Equal(t, "g1/tok1", created.ResourceID)

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/servers", `{"guildId":"g1","name":"factory","token":"tok1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/servers", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.Snapshot](t, resp), 1)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/servers/g1/tok1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "factory", decode[model.Snapshot](t, resp).Name)

	resp = do(t, http.MethodDelete, srv.URL+"/api/v1/servers/g1/tok1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/servers/g1/tok1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decode[errorBody](t, resp).Error)

	resp = do(t, http.MethodDelete, srv.URL+"/api/v1/servers/g1/tok1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegisterRejectsBadBodies(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	for name, body := range map[string]string{
		"unknown field": `{"guildId":"g1","name":"x","token":"t","owner":"me"}`,
		"not json":      `guild=g1`,
	} {
		t.Run(name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/api/v1/servers", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "invalid_body", decode[errorBody](t, resp).Error)
		})
	}

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/servers", `{"guildId":"g1","name":"x","token":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_server", decode[errorBody](t, resp).Error)
}

func TestCommandDispatch(t *testing.T) {
	srv, sessions := newTestServer(t, Config{})
	require.NoError(t, sessions.Register(context.Background(), model.Server{GuildID: "g1", Name: "f", Token: "tok1"}))

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/servers/g1/tok1/commands", `{"command":"start","args":["slot3"],"author":"alice"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	accepted := decode[commandAccepted](t, resp)
	assert.Equal(t, "g1/tok1", accepted.ResourceID)
	_, err := uuid.Parse(accepted.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, accepted.CorrelationID, resp.Header.Get(HeaderCorrelationID))

	require.Len(t, sessions.commands, 1)
	assert.Equal(t, manager.Command{ID: "start", Args: []string{"slot3"}, Author: "alice", CorrelationID: accepted.CorrelationID}, sessions.commands[0])
}

func TestCommandErrorsMapToStatus(t *testing.T) {
	srv, sessions := newTestServer(t, Config{})
	require.NoError(t, sessions.Register(context.Background(), model.Server{GuildID: "g1", Name: "f", Token: "tok1"}))
	url := srv.URL + "/api/v1/servers/g1/tok1/commands"

	tests := []struct {
		err  error
		code int
		kind string
	}{
		{fmt.Errorf("%w: fly", manager.ErrUnknownCommand), http.StatusBadRequest, "unknown_command"},
		{fmt.Errorf("%w: start takes 1..1 arguments, got 0", manager.ErrUsage), http.StatusBadRequest, "usage"},
		{manager.ErrSessionClosed, http.StatusServiceUnavailable, "unavailable"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			sessions.mu.Lock()
			sessions.dispatch = tt.err
			sessions.mu.Unlock()

			resp := do(t, http.MethodPost, url, `{"command":"x"}`)
			assert.Equal(t, tt.code, resp.StatusCode)
			body := decode[errorBody](t, resp)
			assert.Equal(t, tt.kind, body.Error)
			assert.NotEmpty(t, body.RequestID)
		})
	}

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/servers/g1/nope/commands", `{"command":"status"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, url, `{"args":["1"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCommandRateLimitPerIP(t *testing.T) {
	srv, sessions := newTestServer(t, Config{CommandRateLimit: 2})
	require.NoError(t, sessions.Register(context.Background(), model.Server{GuildID: "g1", Name: "f", Token: "tok1"}))
	url := srv.URL + "/api/v1/servers/g1/tok1/commands"

	assert.Equal(t, http.StatusAccepted, do(t, http.MethodPost, url, `{"command":"status"}`).StatusCode)
	assert.Equal(t, http.StatusAccepted, do(t, http.MethodPost, url, `{"command":"status"}`).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, do(t, http.MethodPost, url, `{"command":"status"}`).StatusCode)

	// reads are not limited
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/v1/servers/g1/tok1", "").StatusCode)
}

func TestListCommands(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/commands", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cmds := decode[[]commandInfo](t, resp)
	require.Len(t, cmds, len(manager.Commands()))
	assert.Equal(t, "saves", cmds[0].ID)
}

func TestProbesAndMetrics(t *testing.T) {
	srv, sessions := newTestServer(t, Config{})

	resp := do(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, sessions.Register(context.Background(), model.Server{GuildID: "g1", Name: "f", Token: "tok1"}))
	resp = do(t, http.MethodGet, srv.URL+"/readyz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[health.ReadinessResponse](t, resp)
	assert.Equal(t, health.StatusDegraded, ready.Status)

	resp = do(t, http.MethodGet, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = do(t, http.MethodPut, srv.URL+"/api/v1/servers", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
