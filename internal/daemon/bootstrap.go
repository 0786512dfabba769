// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon provides the core daemon bootstrapping and lifecycle management.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/zonectl/internal/api"
	"github.com/ManuGH/zonectl/internal/config"
	"github.com/ManuGH/zonectl/internal/controlplane"
	sessionmgr "github.com/ManuGH/zonectl/internal/domain/session/manager"
	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
	"github.com/ManuGH/zonectl/internal/domain/session/store"
	"github.com/ManuGH/zonectl/internal/health"
	"github.com/ManuGH/zonectl/internal/log"
	"github.com/ManuGH/zonectl/internal/notify"
	"github.com/ManuGH/zonectl/internal/stream"
	"github.com/ManuGH/zonectl/internal/telemetry"
)

const serviceName = "zonectl"

// Runtime is the wired set of long-lived components behind the API.
type Runtime struct {
	Store      ports.Store
	Supervisor *sessionmgr.Supervisor
	Relay      *notify.Relay
	Health     *health.Manager
	Handler    http.Handler

	telemetry *telemetry.Provider
	webhooks  http.RoundTripper
	logger    zerolog.Logger
}

// Options overrides transports, mainly for tests.
type Options struct {
	// ControlPlaneTransport is used for outbound control-plane calls.
	ControlPlaneTransport http.RoundTripper
	// WebhookTransport is used for notification webhooks.
	WebhookTransport http.RoundTripper
}

// Bootstrap opens the store, builds every collaborator of the supervisor
// and seeds sessions from the store and from cfg.Servers. ctx bounds the
// lifetime of the sessions.
func Bootstrap(ctx context.Context, cfg config.AppConfig, opts Options) (*Runtime, error) {
	logger := log.WithComponent("bootstrap")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	st, err := store.Open(store.Config{
		Backend: cfg.Store.Backend,
		Path:    cfg.Store.Path,
		Redis: store.RedisConfig{
			Addr:      cfg.Store.Redis.Addr,
			Password:  cfg.Store.Redis.Password,
			DB:        cfg.Store.Redis.DB,
			KeyPrefix: cfg.Store.Redis.KeyPrefix,
		},
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open store: %w", err), tp.Shutdown(ctx))
	}
	logger.Info().Str("store_backend", cfg.Store.Backend).Msg("store opened")

	cp, err := controlplane.NewClient(cfg.ControlPlane.BaseURL, controlplane.Options{
		Timeout:          cfg.ControlPlane.Timeout,
		RateLimit:        rate.Limit(cfg.ControlPlane.RateLimit),
		RateLimitBurst:   cfg.ControlPlane.RateBurst,
		BreakerThreshold: cfg.ControlPlane.BreakerThreshold,
		BreakerReset:     cfg.ControlPlane.BreakerReset,
		UserAgent:        cfg.ControlPlane.UserAgent,
		Transport:        opts.ControlPlaneTransport,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("control plane client: %w", err), st.Close(), tp.Shutdown(ctx))
	}

	bus := notify.NewMemoryBus()
	relay := notify.NewRelay(bus, RoutesFromConfig(cfg.Notify, opts.WebhookTransport), cfg.Notify.Timeout)
	if err := relay.Attach(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("notification relay: %w", err), st.Close(), tp.Shutdown(ctx))
	}

	sup := sessionmgr.NewSupervisor(ctx, SessionConfig(cfg.Session), sessionmgr.Deps{
		Store:        st,
		ControlPlane: cp,
		Notifier:     notify.NewBusNotifier(bus),
	}, ConnectorFactory(cfg.ControlPlane.StreamURL, cfg.Stream))

	hm := health.NewManager(cfg.Version)
	if checker, ok := st.(store.Checker); ok {
		hm.RegisterChecker(health.NewFuncChecker("store", checker.Check))
	}
	hm.RegisterChecker(health.NewSessionsChecker(sup.List))

	rt := &Runtime{
		Store:      st,
		Supervisor: sup,
		Relay:      relay,
		Health:     hm,
		telemetry:  tp,
		webhooks:   opts.WebhookTransport,
		logger:     log.WithComponent("runtime"),
	}
	rt.Handler = api.New(api.Config{
		CommandRateLimit: cfg.API.RateLimit,
		TracingService:   tracingService(cfg.Telemetry),
	}, sup, hm).Handler()

	if err := sup.Seed(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("seed sessions: %w", err), rt.close(ctx))
	}
	if err := sup.Reconcile(ctx, cfg.Servers); err != nil {
		return nil, errors.Join(fmt.Errorf("reconcile configured servers: %w", err), rt.close(ctx))
	}

	logger.Info().
		Int("sessions", sup.Len()).
		Int("configured_servers", len(cfg.Servers)).
		Msg("sessions started")
	return rt, nil
}

// ApplyConfig brings the running sessions and notification routes in line
// with a reloaded configuration.
func (r *Runtime) ApplyConfig(ctx context.Context, cfg config.AppConfig) error {
	r.Relay.SetRoutes(RoutesFromConfig(cfg.Notify, r.webhooks))
	if err := r.Supervisor.Reconcile(ctx, cfg.Servers); err != nil {
		return fmt.Errorf("reconcile servers: %w", err)
	}
	r.logger.Info().
		Int("sessions", r.Supervisor.Len()).
		Str(log.FieldEvent, "config.applied").
		Msg("configuration applied")
	return nil
}

// RegisterShutdownHooks registers cleanup in dependency order. Hooks run
// LIFO, so sessions stop before the store closes.
func (r *Runtime) RegisterShutdownHooks(m Manager) {
	m.RegisterShutdownHook("telemetry", r.shutdownTelemetry)
	m.RegisterShutdownHook("store", func(context.Context) error { return r.Store.Close() })
	m.RegisterShutdownHook("sessions", r.Supervisor.Shutdown)
}

func (r *Runtime) shutdownTelemetry(ctx context.Context) error {
	if r.telemetry == nil {
		return nil
	}
	return r.telemetry.Shutdown(ctx)
}

func (r *Runtime) close(ctx context.Context) error {
	return errors.Join(r.Supervisor.Shutdown(ctx), r.Store.Close(), r.shutdownTelemetry(ctx))
}

// SessionConfig maps the session section onto the controller config.
func SessionConfig(c config.SessionConfig) sessionmgr.Config {
	return sessionmgr.Config{
		LogFreshness:         c.LogFreshness,
		DefaultRegion:        c.DefaultRegion,
		DefaultVersion:       c.DefaultVersion,
		ModToggleConcurrency: c.ModToggleConcurrency,
		CallTimeout:          c.CallTimeout,
		CommandPrefix:        c.CommandPrefix,
		InboxSize:            c.InboxSize,
	}
}

// ConnectorFactory builds one websocket connection manager per session.
func ConnectorFactory(streamURL string, c config.StreamConfig) sessionmgr.ConnectorFactory {
	return func(resourceID string, handler func(model.Event)) (ports.Connector, error) {
		m, err := stream.New(stream.Options{
			URL:               streamURL,
			ResourceID:        resourceID,
			HeartbeatInterval: c.HeartbeatInterval,
			DialTimeout:       c.DialTimeout,
			Backoff: stream.BackoffConfig{
				InitialDelay: c.Backoff.Initial,
				Multiplier:   c.Backoff.Multiplier,
				MaxDelay:     c.Backoff.Max,
				Jitter:       c.Backoff.Jitter,
			},
		}, handler)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// RoutesFromConfig builds webhook sinks per guild. Without a default
// webhook, unrouted notifications are logged.
func RoutesFromConfig(c config.NotifyConfig, transport http.RoundTripper) notify.Routes {
	routes := notify.Routes{ByGuild: make(map[string]notify.Sink, len(c.Webhooks))}
	if c.DefaultWebhook != "" {
		routes.Default = notify.NewWebhookSink(c.DefaultWebhook, c.Timeout, transport)
	} else {
		routes.Default = notify.NewLogSink()
	}
	for guild, url := range c.Webhooks {
		if url == "" {
			continue
		}
		routes.ByGuild[guild] = notify.NewWebhookSink(url, c.Timeout, transport)
	}
	return routes
}

func tracingService(c config.TelemetryConfig) string {
	if !c.Enabled {
		return ""
	}
	return serviceName
}
