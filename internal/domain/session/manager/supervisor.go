// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
	"github.com/ManuGH/zonectl/internal/log"
	"github.com/ManuGH/zonectl/internal/metrics"
)

var (
	ErrSessionExists    = errors.New("session already exists")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSupervisorClosed = errors.New("supervisor is shut down")
	ErrInvalidServer    = errors.New("invalid server")
)

// ConnectorFactory builds the connection manager of one session. handler
// receives every inbound event in order.
type ConnectorFactory func(resourceID string, handler func(model.Event)) (ports.Connector, error)

type handle struct {
	ctrl       *Controller
	conn       ports.Connector
	fromConfig bool
}

// Supervisor is the registry of live sessions keyed by resource id.
type Supervisor struct {
	cfg     Config
	deps    Deps
	connect ConnectorFactory
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	reg    sessionRegistry

	mu       sync.RWMutex
	closed   bool
	sessions map[string]*handle
}

// NewSupervisor returns an empty supervisor. Controllers run until ctx ends
// or Shutdown is called.
func NewSupervisor(ctx context.Context, cfg Config, deps Deps, connect ConnectorFactory) *Supervisor {
	ctx, cancel := context.WithCancel(ctx)
	return &Supervisor{
		cfg:      cfg.withDefaults(),
		deps:     deps,
		connect:  connect,
		logger:   log.WithComponent("supervisor"),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*handle),
	}
}

// Seed creates a session for every server in the store.
func (s *Supervisor) Seed(ctx context.Context) error {
	servers, err := s.deps.Store.ListServers(ctx)
	if err != nil {
		return fmt.Errorf("seed sessions: %w", err)
	}
	var errs []error
	for _, srv := range servers {
		if err := s.Create(srv); err != nil && !errors.Is(err, ErrSessionExists) {
			errs = append(errs, fmt.Errorf("seed %s: %w", srv.Key(), err))
		}
	}
	return errors.Join(errs...)
}

// Create starts a session for an already persisted server and begins
// connecting.
func (s *Supervisor) Create(srv model.Server) error {
	return s.create(srv, false)
}

func (s *Supervisor) create(srv model.Server, fromConfig bool) error {
	if err := srv.Key().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidServer, err)
	}
	id := srv.Key().ID()

	s.mu.RLock()
	_, exists := s.sessions[id]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSupervisorClosed
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	ctrl := NewController(srv, s.cfg, s.deps)
	conn, err := s.connect(id, ctrl.Deliver)
	if err != nil {
		return fmt.Errorf("create connector for %s: %w", id, err)
	}
	ctrl.SetConnector(conn)

	s.mu.Lock()
	if _, exists := s.sessions[id]; exists {
		s.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	if s.closed || !s.reg.Go(func() { ctrl.Run(s.ctx) }) {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrSupervisorClosed
	}
	s.sessions[id] = &handle{ctrl: ctrl, conn: conn, fromConfig: fromConfig}
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	s.logger.Info().
		Str(log.FieldEvent, "supervisor.session_created").
		Str(log.FieldResourceID, id).
		Str(log.FieldServerName, srv.Name).
		Msg("session created")
	conn.Connect()
	return nil
}

// Register persists a new server and creates its session.
func (s *Supervisor) Register(ctx context.Context, srv model.Server) error {
	if err := srv.Key().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidServer, err)
	}
	if strings.TrimSpace(srv.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidServer)
	}
	if _, ok := s.lookup(srv.Key().ID()); ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, srv.Key().ID())
	}
	srv = normalizeServer(srv)
	if err := s.deps.Store.PutServer(ctx, srv); err != nil {
		return fmt.Errorf("register %s: %w", srv.Key(), err)
	}
	return s.Create(srv)
}

// Destroy closes the session's connection, cancels pending reconnects and
// stops its controller. Persisted records are kept.
func (s *Supervisor) Destroy(ctx context.Context, id string) error {
	s.mu.Lock()
	h, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.teardown(ctx, id, h)
}

func (s *Supervisor) teardown(ctx context.Context, id string, h *handle) error {
	h.ctrl.Stop()
	closeErr := h.conn.Close()
	waitErr := h.ctrl.Wait(ctx)
	metrics.ActiveSessions.Dec()
	s.logger.Info().
		Str(log.FieldEvent, "supervisor.session_destroyed").
		Str(log.FieldResourceID, id).
		Msg("session destroyed")
	return errors.Join(closeErr, waitErr)
}

// Remove destroys the session and deletes its server, saves and mods.
func (s *Supervisor) Remove(ctx context.Context, key model.ResourceKey) error {
	destroyErr := s.Destroy(ctx, key.ID())
	if destroyErr != nil && !errors.Is(destroyErr, ErrSessionNotFound) {
		return destroyErr
	}
	if destroyErr != nil {
		if _, err := s.deps.Store.GetServer(ctx, key); errors.Is(err, ports.ErrNotFound) {
			return destroyErr
		}
	}
	if err := s.deps.Store.DeleteServer(ctx, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Reconcile aligns config-declared servers with the registry. Declared
// servers are persisted and started; config sessions no longer declared are
// destroyed without deleting their records. Sessions registered at runtime
// are left alone.
func (s *Supervisor) Reconcile(ctx context.Context, servers []model.Server) error {
	desired := make(map[string]model.Server, len(servers))
	var errs []error
	for _, srv := range servers {
		if err := srv.Key().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("reconcile %q: %w", srv.Name, err))
			continue
		}
		desired[srv.Key().ID()] = normalizeServer(srv)
	}

	for id, srv := range desired {
		if err := s.deps.Store.PutServer(ctx, srv); err != nil {
			errs = append(errs, fmt.Errorf("reconcile %s: %w", id, err))
			continue
		}
		s.mu.Lock()
		h, ok := s.sessions[id]
		if ok {
			h.fromConfig = true
		}
		s.mu.Unlock()
		if ok {
			continue
		}
		if err := s.create(srv, true); err != nil && !errors.Is(err, ErrSessionExists) {
			errs = append(errs, err)
		}
	}

	s.mu.RLock()
	var stale []string
	for id, h := range s.sessions {
		if _, keep := desired[id]; h.fromConfig && !keep {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()
	for _, id := range stale {
		if err := s.Destroy(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}

	s.logger.Info().
		Str(log.FieldEvent, "supervisor.reconciled").
		Int("declared", len(desired)).
		Int("destroyed", len(stale)).
		Msg("sessions reconciled")
	return errors.Join(errs...)
}

// Dispatch routes an operator command to a session.
func (s *Supervisor) Dispatch(ctx context.Context, id string, cmd Command) error {
	h, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return h.ctrl.HandleCommand(ctx, cmd)
}

// Get returns the snapshot of one session.
func (s *Supervisor) Get(id string) (model.Snapshot, bool) {
	h, ok := s.lookup(id)
	if !ok {
		return model.Snapshot{}, false
	}
	snap := h.ctrl.Snapshot()
	snap.ConnectionStatus = h.conn.Status()
	return snap, true
}

// List returns snapshots of all sessions ordered by resource id.
func (s *Supervisor) List() []model.Snapshot {
	s.mu.RLock()
	handles := make([]*handle, 0, len(s.sessions))
	for _, h := range s.sessions {
		handles = append(handles, h)
	}
	s.mu.RUnlock()

	out := make([]model.Snapshot, 0, len(handles))
	for _, h := range handles {
		snap := h.ctrl.Snapshot()
		snap.ConnectionStatus = h.conn.Status()
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceID < out[j].ResourceID })
	return out
}

// Len returns the number of live sessions.
func (s *Supervisor) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown destroys every session and waits for controllers to exit.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*handle)
	s.mu.Unlock()

	var errs []error
	for id, h := range sessions {
		// Stop first so a reader blocked in Deliver unwinds before Close waits on it.
		h.ctrl.Stop()
		if err := h.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		metrics.ActiveSessions.Dec()
	}
	s.cancel()
	if err := s.reg.CloseAndWait(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Supervisor) lookup(id string) (*handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.sessions[id]
	return h, ok
}

// normalizeServer case-folds and deduplicates the admin list.
func normalizeServer(srv model.Server) model.Server {
	fold := cases.Fold()
	admins := make([]string, 0, len(srv.Admins))
	seen := make(map[string]struct{}, len(srv.Admins))
	for _, a := range srv.Admins {
		f := fold.String(a)
		if _, dup := seen[f]; dup || f == "" {
			continue
		}
		seen[f] = struct{}{}
		admins = append(admins, f)
	}
	if len(admins) == 0 {
		admins = nil
	}
	srv.Admins = admins
	return srv
}
