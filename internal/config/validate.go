// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strings"

	"github.com/ManuGH/zonectl/internal/validate"
)

var (
	storeBackends = []string{"memory", "sqlite", "redis", "badger"}
	exporters     = []string{"grpc", "http"}
	httpSchemes   = []string{"http", "https"}
	wsSchemes     = []string{"ws", "wss"}
)

// Validate checks the merged configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.LogLevel("logLevel", cfg.LogLevel)

	v.NotEmpty("api.listenAddr", cfg.API.ListenAddr)
	v.NonNegative("api.rateLimit", cfg.API.RateLimit)
	v.PositiveDuration("api.shutdownTimeout", cfg.API.ShutdownTimeout)

	cp := cfg.ControlPlane
	v.URL("controlPlane.baseUrl", cp.BaseURL, httpSchemes)
	v.URL("controlPlane.streamUrl", cp.StreamURL, wsSchemes)
	v.PositiveDuration("controlPlane.timeout", cp.Timeout)
	if cp.RateLimit < 0 {
		v.AddError("controlPlane.rateLimit", "value cannot be negative", cp.RateLimit)
	}
	if cp.RateLimit > 0 {
		v.Positive("controlPlane.rateBurst", cp.RateBurst)
	}
	v.Positive("controlPlane.breakerThreshold", cp.BreakerThreshold)
	v.PositiveDuration("controlPlane.breakerReset", cp.BreakerReset)

	v.PositiveDuration("stream.heartbeatInterval", cfg.Stream.HeartbeatInterval)
	v.PositiveDuration("stream.dialTimeout", cfg.Stream.DialTimeout)
	b := cfg.Stream.Backoff
	v.PositiveDuration("stream.backoff.initial", b.Initial)
	if b.Max < b.Initial {
		v.AddError("stream.backoff.max", fmt.Sprintf("must be >= initial (%s)", b.Initial), b.Max)
	}
	if b.Multiplier < 1 {
		v.AddError("stream.backoff.multiplier", "must be >= 1", b.Multiplier)
	}

	s := cfg.Session
	v.PositiveDuration("session.logFreshness", s.LogFreshness)
	v.NotEmpty("session.defaultRegion", s.DefaultRegion)
	v.NotEmpty("session.defaultVersion", s.DefaultVersion)
	v.Range("session.modToggleConcurrency", s.ModToggleConcurrency, 1, 64)
	v.PositiveDuration("session.callTimeout", s.CallTimeout)
	v.NotEmpty("session.commandPrefix", s.CommandPrefix)
	v.Positive("session.inboxSize", s.InboxSize)

	v.OneOf("store.backend", cfg.Store.Backend, storeBackends)
	switch cfg.Store.Backend {
	case "sqlite", "badger":
		v.NotEmpty("store.path", cfg.Store.Path)
	case "redis":
		v.NotEmpty("store.redis.addr", cfg.Store.Redis.Addr)
		v.NonNegative("store.redis.db", cfg.Store.Redis.DB)
	}

	if cfg.Notify.DefaultWebhook != "" {
		v.URL("notify.defaultWebhook", cfg.Notify.DefaultWebhook, httpSchemes)
	}
	for guild, url := range cfg.Notify.Webhooks {
		field := "notify.webhooks." + guild
		v.NotEmpty(field, guild)
		v.URL(field, url, httpSchemes)
	}
	v.PositiveDuration("notify.timeout", cfg.Notify.Timeout)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, exporters)
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	seen := make(map[string]int, len(cfg.Servers))
	for i, srv := range cfg.Servers {
		field := fmt.Sprintf("servers[%d]", i)
		if err := srv.Key().Validate(); err != nil {
			v.AddError(field, err.Error(), srv.Key().ID())
			continue
		}
		v.NotEmpty(field+".name", srv.Name)
		id := srv.Key().ID()
		if prev, dup := seen[id]; dup {
			v.AddError(field, fmt.Sprintf("duplicate server %s (also servers[%d])", id, prev), id)
			continue
		}
		seen[id] = i
		for _, admin := range srv.Admins {
			if strings.TrimSpace(admin) == "" {
				v.AddError(field+".admins", "admin name cannot be empty", admin)
			}
		}
	}

	return v.Err()
}
