// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the admin HTTP API: health probes, Prometheus metrics
// and session management under /api/v1.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/zonectl/internal/api/middleware"
	"github.com/ManuGH/zonectl/internal/domain/session/manager"
	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/health"
)

// Sessions is the part of the supervisor the API drives.
type Sessions interface {
	Register(ctx context.Context, srv model.Server) error
	Remove(ctx context.Context, key model.ResourceKey) error
	Dispatch(ctx context.Context, id string, cmd manager.Command) error
	Get(id string) (model.Snapshot, bool)
	List() []model.Snapshot
}

var _ Sessions = (*manager.Supervisor)(nil)

// Config configures the router.
type Config struct {
	// CommandRateLimit is the per-IP command budget per minute. 0 disables it.
	CommandRateLimit int
	// TracingService names the server spans. Empty disables tracing.
	TracingService string
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	cfg      Config
	sessions Sessions
	health   *health.Manager
}

// New creates the API server.
func New(cfg Config, sessions Sessions, hm *health.Manager) *Server {
	return &Server{cfg: cfg, sessions: sessions, health: hm}
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed here")
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/commands", s.handleListCommands)
		r.Route("/servers", func(r chi.Router) {
			r.Get("/", s.handleListServers)
			r.Post("/", s.handleRegisterServer)
			r.Route("/{guild}/{token}", func(r chi.Router) {
				r.Get("/", s.handleGetServer)
				r.Delete("/", s.handleRemoveServer)
				r.With(middleware.CommandRateLimit(s.cfg.CommandRateLimit)).
					Post("/commands", s.handleCommand)
			})
		})
	})

	return r
}
