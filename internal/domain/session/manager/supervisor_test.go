// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
	"github.com/ManuGH/zonectl/internal/domain/session/store"
)

type supHarness struct {
	sup   *Supervisor
	st    *store.MemoryStore
	conns *connRegistry
	notes *recordingNotifier
}

func newSupervisor(t *testing.T) *supHarness {
	t.Helper()
	h := &supHarness{st: store.NewMemoryStore(), conns: &connRegistry{}, notes: &recordingNotifier{}}
	h.sup = NewSupervisor(context.Background(), Config{},
		Deps{Store: h.st, ControlPlane: &fakeControlPlane{}, Notifier: h.notes}, h.conns.factory)
	return h
}

func shutdown(t *testing.T, sup *Supervisor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sup.Shutdown(ctx))
}

func TestSupervisorRegisterAndDispatch(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newSupervisor(t)
	defer shutdown(t, h.sup)
	ctx := context.Background()

	srv := model.Server{GuildID: "g1", Name: "factory", Token: "tok1", Admins: []string{"Alice", "alice", "BOB"}}
	require.NoError(t, h.sup.Register(ctx, srv))
	require.ErrorIs(t, h.sup.Register(ctx, srv), ErrSessionExists)
	require.ErrorIs(t, h.sup.Register(ctx, model.Server{GuildID: "g1", Token: "tok2"}), ErrInvalidServer)
	require.ErrorIs(t, h.sup.Register(ctx, model.Server{GuildID: "g1", Name: "x", Token: "a/b"}), ErrInvalidServer)

	stored, err := h.st.GetServer(ctx, srv.Key())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, stored.Admins)

	conn := h.conns.get("g1/tok1")
	require.NotNil(t, conn)
	assert.EqualValues(t, 1, conn.connects.Load())

	conn.handler(model.LifecycleStarting{LaunchID: "L1"})
	require.NoError(t, h.sup.Dispatch(ctx, "g1/tok1", Command{ID: "status"}))
	require.Eventually(t, func() bool {
		texts := h.notes.Texts()
		return len(texts) == 2 && texts[1] == "Server booting up"
	}, time.Second, 5*time.Millisecond)

	snap, ok := h.sup.Get("g1/tok1")
	require.True(t, ok)
	assert.Equal(t, model.StateStarting, snap.LifecycleState)
	assert.Equal(t, "factory", snap.Name)

	require.ErrorIs(t, h.sup.Dispatch(ctx, "g1/nope", Command{ID: "status"}), ErrSessionNotFound)
	require.ErrorIs(t, h.sup.Dispatch(ctx, "g1/tok1", Command{ID: "dance"}), ErrUnknownCommand)
}

func TestSupervisorRemoveDestroysAndDeletes(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newSupervisor(t)
	defer shutdown(t, h.sup)
	ctx := context.Background()

	srv := model.Server{GuildID: "g1", Name: "factory", Token: "tok1"}
	require.NoError(t, h.sup.Register(ctx, srv))
	require.NoError(t, h.st.PutSaves(ctx, model.NewSaves(srv.Key())))

	require.NoError(t, h.sup.Remove(ctx, srv.Key()))
	assert.EqualValues(t, 1, h.conns.get("g1/tok1").closes.Load())
	assert.Equal(t, 0, h.sup.Len())

	_, err := h.st.GetServer(ctx, srv.Key())
	require.ErrorIs(t, err, ports.ErrNotFound)
	_, err = h.st.GetSaves(ctx, srv.Key())
	require.ErrorIs(t, err, ports.ErrNotFound)

	require.ErrorIs(t, h.sup.Remove(ctx, srv.Key()), ErrSessionNotFound)
}

func TestSupervisorSeedFromStore(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newSupervisor(t)
	defer shutdown(t, h.sup)
	ctx := context.Background()

	require.NoError(t, h.st.PutServer(ctx, model.Server{GuildID: "g1", Name: "a", Token: "t1"}))
	require.NoError(t, h.st.PutServer(ctx, model.Server{GuildID: "g2", Name: "b", Token: "t2"}))

	require.NoError(t, h.sup.Seed(ctx))
	list := h.sup.List()
	require.Len(t, list, 2)
	assert.Equal(t, "g1/t1", list[0].ResourceID)
	assert.Equal(t, "g2/t2", list[1].ResourceID)
}

func TestSupervisorReconcileOnlyTouchesConfigSessions(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newSupervisor(t)
	defer shutdown(t, h.sup)
	ctx := context.Background()

	runtime := model.Server{GuildID: "g0", Name: "api", Token: "t0"}
	require.NoError(t, h.sup.Register(ctx, runtime))

	a := model.Server{GuildID: "g1", Name: "a", Token: "t1"}
	b := model.Server{GuildID: "g1", Name: "b", Token: "t2"}
	require.NoError(t, h.sup.Reconcile(ctx, []model.Server{a, b}))
	assert.Equal(t, 3, h.sup.Len())

	b.Region = "eu-central"
	require.NoError(t, h.sup.Reconcile(ctx, []model.Server{b}))
	assert.Equal(t, 2, h.sup.Len())
	_, ok := h.sup.Get("g1/t1")
	assert.False(t, ok)
	_, ok = h.sup.Get("g0/t0")
	assert.True(t, ok, "runtime registrations survive reconcile")

	stored, err := h.st.GetServer(ctx, b.Key())
	require.NoError(t, err)
	assert.Equal(t, "eu-central", stored.Region)

	_, err = h.st.GetServer(ctx, a.Key())
	require.NoError(t, err, "reconcile keeps records of destroyed sessions")

	err = h.sup.Reconcile(ctx, []model.Server{b, {GuildID: "g1", Name: "bad"}})
	require.Error(t, err)
}

func TestSupervisorShutdownRejectsCreate(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newSupervisor(t)
	require.NoError(t, h.sup.Create(model.Server{GuildID: "g1", Name: "a", Token: "t1"}))
	shutdown(t, h.sup)

	assert.EqualValues(t, 1, h.conns.get("g1/t1").closes.Load())
	require.ErrorIs(t, h.sup.Create(model.Server{GuildID: "g1", Name: "b", Token: "t2"}), ErrSupervisorClosed)
}
