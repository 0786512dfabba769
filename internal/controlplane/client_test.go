// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controlplane

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/zonectl/internal/domain/session/ports"
	"github.com/ManuGH/zonectl/internal/resilience"
)

type capture struct {
	mu    sync.Mutex
	paths []string
	forms []url.Values
}

func (c *capture) last() (string, url.Values) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths[len(c.paths)-1], c.forms[len(c.forms)-1]
}

func newServer(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	cap := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		cap.mu.Lock()
		cap.paths = append(cap.paths, r.URL.Path)
		cap.forms = append(cap.forms, r.PostForm)
		cap.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, cap
}

func TestClientFormsMatchControlPlaneContract(t *testing.T) {
	srv, cap := newServer(t, http.StatusOK)
	c, err := NewClient(srv.URL+"/", Options{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "sec", "tok"))
	path, form := cap.last()
	assert.Equal(t, "/api/user/login", path)
	assert.Equal(t, "sec", form.Get("visitSecret"))
	assert.Equal(t, "tok", form.Get("userToken"))
	assert.Equal(t, "false", form.Get("reconnected"))

	require.NoError(t, c.Start(ctx, "sec", "us-west", "slot5", "1.1.27"))
	path, form = cap.last()
	assert.Equal(t, "/api/instance/start", path)
	assert.Equal(t, "slot5", form.Get("save"))
	assert.Equal(t, "us-west", form.Get("region"))
	assert.Equal(t, "1.1.27", form.Get("version"))

	require.NoError(t, c.Stop(ctx, "sec", "L1"))
	path, form = cap.last()
	assert.Equal(t, "/api/instance/stop", path)
	assert.Equal(t, "L1", form.Get("launchId"))

	require.NoError(t, c.Chat(ctx, "sec", "L1", "alice", "hello world"))
	path, form = cap.last()
	assert.Equal(t, "/api/instance/console", path)
	assert.Equal(t, "alice: hello world", form.Get("input"))

	require.NoError(t, c.Promote(ctx, "sec", "L1", "bob"))
	_, form = cap.last()
	assert.Equal(t, "/promote bob", form.Get("input"))

	require.NoError(t, c.ToggleMod(ctx, "sec", "42", false))
	path, form = cap.last()
	assert.Equal(t, "/api/mod/toggle", path)
	assert.Equal(t, "42", form.Get("modId"))
	assert.Equal(t, "false", form.Get("enabled"))
}

func TestClientNon200IsUnexpectedStatus(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest)
	c, err := NewClient(srv.URL, Options{})
	require.NoError(t, err)

	err = c.Stop(context.Background(), "sec", "L1")
	require.ErrorIs(t, err, ports.ErrUnexpectedStatus)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestClientBreakerOpensOnServerErrors(t *testing.T) {
	srv, cap := newServer(t, http.StatusBadGateway)
	c, err := NewClient(srv.URL, Options{BreakerThreshold: 2, BreakerReset: time.Minute})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, c.ToggleMod(context.Background(), "s", "1", true), ports.ErrUnexpectedStatus)
	}
	err = c.ToggleMod(context.Background(), "s", "1", true)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)

	cap.mu.Lock()
	defer cap.mu.Unlock()
	assert.Len(t, cap.paths, 2)
}

func TestClientClientErrorsDoNotTripBreaker(t *testing.T) {
	srv, _ := newServer(t, http.StatusUnauthorized)
	c, err := NewClient(srv.URL, Options{BreakerThreshold: 1, BreakerReset: time.Minute})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, c.Login(context.Background(), "s", "t"), ports.ErrUnexpectedStatus)
	}
}

func TestNewClientRejectsInvalidBaseURL(t *testing.T) {
	_, err := NewClient("not a url", Options{})
	require.Error(t, err)
}
