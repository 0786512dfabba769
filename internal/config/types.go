// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
)

// AppConfig is the complete daemon configuration after defaults, file and
// environment have been merged.
type AppConfig struct {
	// Version is the build version, set by the loader.
	Version string `yaml:"-" json:"-"`

	LogLevel string `yaml:"logLevel"`

	API          APIConfig          `yaml:"api"`
	ControlPlane ControlPlaneConfig `yaml:"controlPlane"`
	Stream       StreamConfig       `yaml:"stream"`
	Session      SessionConfig      `yaml:"session"`
	Store        StoreConfig        `yaml:"store"`
	Notify       NotifyConfig       `yaml:"notify"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`

	// Servers are declared resources reconciled on every (re)load.
	Servers []model.Server `yaml:"servers,omitempty"`
}

// APIConfig configures the admin HTTP API.
type APIConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	// RateLimit is the number of command requests allowed per client IP per minute. 0 disables limiting.
	RateLimit       int           `yaml:"rateLimit"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// ControlPlaneConfig configures the REST client and the websocket endpoint.
type ControlPlaneConfig struct {
	BaseURL          string        `yaml:"baseUrl"`
	StreamURL        string        `yaml:"streamUrl"`
	UserAgent        string        `yaml:"userAgent,omitempty"`
	Timeout          time.Duration `yaml:"timeout"`
	RateLimit        float64       `yaml:"rateLimit"`
	RateBurst        int           `yaml:"rateBurst"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// StreamConfig configures each session's websocket connection.
type StreamConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	DialTimeout       time.Duration `yaml:"dialTimeout"`
	Backoff           BackoffConfig `yaml:"backoff"`
}

// BackoffConfig is the reconnect delay policy.
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     bool          `yaml:"jitter"`
}

// SessionConfig holds per-session controller settings.
type SessionConfig struct {
	LogFreshness         time.Duration `yaml:"logFreshness"`
	DefaultRegion        string        `yaml:"defaultRegion"`
	DefaultVersion       string        `yaml:"defaultVersion"`
	ModToggleConcurrency int           `yaml:"modToggleConcurrency"`
	CallTimeout          time.Duration `yaml:"callTimeout"`
	CommandPrefix        string        `yaml:"commandPrefix"`
	InboxSize            int           `yaml:"inboxSize"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path,omitempty"`
	Redis   RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr,omitempty"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// NotifyConfig routes outbound notifications.
type NotifyConfig struct {
	// DefaultWebhook receives notifications of guilds without an entry in
	// Webhooks. Empty means log-only delivery.
	DefaultWebhook string            `yaml:"defaultWebhook,omitempty"`
	Webhooks       map[string]string `yaml:"webhooks,omitempty"`
	Timeout        time.Duration     `yaml:"timeout"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint,omitempty"`
	// Insecure disables TLS towards the collector.
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		API: APIConfig{
			ListenAddr:      ":8088",
			RateLimit:       60,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		ControlPlane: ControlPlaneConfig{
			BaseURL:          "https://factorio.zone",
			StreamURL:        "wss://factorio.zone/ws",
			Timeout:          15 * time.Second,
			RateLimit:        5,
			RateBurst:        10,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Stream: StreamConfig{
			HeartbeatInterval: 10 * time.Second,
			DialTimeout:       15 * time.Second,
			Backoff: BackoffConfig{
				Initial:    time.Second,
				Max:        time.Minute,
				Multiplier: 2,
				Jitter:     true,
			},
		},
		Session: SessionConfig{
			LogFreshness:         10 * time.Second,
			DefaultRegion:        "us-west",
			DefaultVersion:       "1.1.27",
			ModToggleConcurrency: 4,
			CallTimeout:          15 * time.Second,
			CommandPrefix:        "!",
			InboxSize:            64,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "zonectl.db",
		},
		Notify: NotifyConfig{
			Timeout: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Insecure:     true,
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}
