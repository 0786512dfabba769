// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/zonectl/internal/config"
	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/notify"
)

func testAppConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.Store.Backend = "memory"
	// Nothing listens here; sessions stay disconnected.
	cfg.ControlPlane.StreamURL = "ws://127.0.0.1:1/ws"
	cfg.Stream.DialTimeout = 200 * time.Millisecond
	cfg.Stream.Backoff.Initial = time.Minute
	cfg.Stream.Backoff.Max = time.Minute
	cfg.Stream.Backoff.Jitter = false
	return cfg
}

func bootstrap(t *testing.T, cfg config.AppConfig) *Runtime {
	t.Helper()
	rt, err := Bootstrap(context.Background(), cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, rt.close(ctx))
	})
	return rt
}

func TestBootstrap_StartsConfiguredServers(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Servers = []model.Server{{GuildID: "g1", Name: "main", Token: "tok-1"}}

	rt := bootstrap(t, cfg)
	require.Equal(t, 1, rt.Supervisor.Len())

	srv, err := rt.Store.GetServer(context.Background(), model.ResourceKey{GuildID: "g1", Token: "tok-1"})
	require.NoError(t, err)
	assert.Equal(t, "main", srv.Name)

	rec := httptest.NewRecorder()
	rt.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/servers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snaps []model.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, "g1/tok-1", snaps[0].ResourceID)
}

func TestBootstrap_SqliteSeedsFromStore(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Store.Backend = "sqlite"
	cfg.Store.Path = filepath.Join(t.TempDir(), "zonectl.db")
	cfg.Servers = []model.Server{{GuildID: "g1", Name: "main", Token: "tok-1"}}

	first, err := Bootstrap(context.Background(), cfg, Options{})
	require.NoError(t, err)
	require.NoError(t, first.close(context.Background()))

	// The record persists even after the server leaves the config.
	cfg.Servers = nil
	rt := bootstrap(t, cfg)
	assert.Equal(t, 1, rt.Supervisor.Len())
	_, ok := rt.Supervisor.Get("g1/tok-1")
	assert.True(t, ok)
}

func TestBootstrap_UnknownBackend(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Store.Backend = "mysql"
	_, err := Bootstrap(context.Background(), cfg, Options{})
	require.ErrorContains(t, err, "open store")
}

func TestRuntime_ApplyConfigReconciles(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Servers = []model.Server{{GuildID: "g1", Name: "main", Token: "tok-1"}}
	rt := bootstrap(t, cfg)

	next := cfg
	next.Servers = []model.Server{
		{GuildID: "g1", Name: "main", Token: "tok-1"},
		{GuildID: "g2", Name: "second", Token: "tok-2"},
	}
	require.NoError(t, rt.ApplyConfig(context.Background(), next))
	assert.Equal(t, 2, rt.Supervisor.Len())

	next.Servers = next.Servers[1:]
	require.NoError(t, rt.ApplyConfig(context.Background(), next))
	assert.Equal(t, 1, rt.Supervisor.Len())
	_, ok := rt.Supervisor.Get("g2/tok-2")
	assert.True(t, ok)

	// destroyed sessions keep their records
	_, err := rt.Store.GetServer(context.Background(), model.ResourceKey{GuildID: "g1", Token: "tok-1"})
	require.NoError(t, err)
}

func TestRoutesFromConfig(t *testing.T) {
	routes := RoutesFromConfig(config.NotifyConfig{
		Webhooks: map[string]string{"g1": "https://hooks.example.com/g1", "g2": ""},
		Timeout:  time.Second,
	}, nil)

	assert.IsType(t, &notify.LogSink{}, routes.Default)
	assert.IsType(t, &notify.WebhookSink{}, routes.Route("g1/tok"))
	assert.IsType(t, &notify.LogSink{}, routes.Route("g2/tok"))

	routes = RoutesFromConfig(config.NotifyConfig{DefaultWebhook: "https://hooks.example.com/all"}, nil)
	assert.IsType(t, &notify.WebhookSink{}, routes.Route("g9/tok"))
}

func TestConnectorFactory_RejectsBadURL(t *testing.T) {
	factory := ConnectorFactory("http://127.0.0.1/ws", config.Defaults().Stream)
	_, err := factory("g1/tok-1", func(model.Event) {})
	require.Error(t, err)
}
