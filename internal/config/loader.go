// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads, validates and hot-reloads the daemon configuration.
// Precedence is defaults, then the YAML file, then ZONECTL_* environment
// variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
	// Use errors.Is(err, ErrUnknownConfigField) instead of string matching.
	ErrUnknownConfigField = errors.New("unknown config field")
	// ErrMultipleDocuments is returned for files with more than one YAML document.
	ErrMultipleDocuments = errors.New("config file contains multiple documents or trailing content")
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ZONECTL_"

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string

	// ConsumedEnvKeys records every ZONECTL_* key that was set during the last Load.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, empty for environment-only configuration.
func (l *Loader) Path() string {
	return l.configPath
}

// Load builds and validates the configuration.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(&cfg); err != nil {
			return AppConfig{}, err
		}
	}

	l.ConsumedEnvKeys = make(map[string]struct{})
	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// loadFile decodes the YAML file on top of cfg. Unknown keys and multiple
// documents are rejected.
func (l *Loader) loadFile(cfg *AppConfig) error {
	ext := strings.ToLower(filepath.Ext(l.configPath))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (use .yaml or .yml)", ext)
	}

	data, err := os.ReadFile(filepath.Clean(l.configPath))
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("parse config file: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

// mergeEnv applies ZONECTL_* overrides. Servers and per-guild webhooks are
// file-only.
func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)

	cfg.API.ListenAddr = l.envString("API_LISTEN", cfg.API.ListenAddr)
	cfg.API.RateLimit = l.envInt("API_RATE_LIMIT", cfg.API.RateLimit)

	cp := &cfg.ControlPlane
	cp.BaseURL = l.envString("CONTROLPLANE_URL", cp.BaseURL)
	cp.StreamURL = l.envString("CONTROLPLANE_STREAM_URL", cp.StreamURL)
	cp.UserAgent = l.envString("CONTROLPLANE_USER_AGENT", cp.UserAgent)
	cp.Timeout = l.envDuration("CONTROLPLANE_TIMEOUT", cp.Timeout)
	cp.RateLimit = l.envFloat("CONTROLPLANE_RATE_LIMIT", cp.RateLimit)
	cp.RateBurst = l.envInt("CONTROLPLANE_RATE_BURST", cp.RateBurst)

	cfg.Stream.HeartbeatInterval = l.envDuration("STREAM_HEARTBEAT", cfg.Stream.HeartbeatInterval)
	cfg.Stream.Backoff.Initial = l.envDuration("STREAM_BACKOFF_INITIAL", cfg.Stream.Backoff.Initial)
	cfg.Stream.Backoff.Max = l.envDuration("STREAM_BACKOFF_MAX", cfg.Stream.Backoff.Max)
	cfg.Stream.Backoff.Jitter = l.envBool("STREAM_BACKOFF_JITTER", cfg.Stream.Backoff.Jitter)

	s := &cfg.Session
	s.LogFreshness = l.envDuration("SESSION_LOG_FRESHNESS", s.LogFreshness)
	s.DefaultRegion = l.envString("SESSION_DEFAULT_REGION", s.DefaultRegion)
	s.DefaultVersion = l.envString("SESSION_DEFAULT_VERSION", s.DefaultVersion)
	s.CommandPrefix = l.envString("SESSION_COMMAND_PREFIX", s.CommandPrefix)

	cfg.Store.Backend = l.envString("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = l.envString("STORE_PATH", cfg.Store.Path)
	cfg.Store.Redis.Addr = l.envString("REDIS_ADDR", cfg.Store.Redis.Addr)
	cfg.Store.Redis.Password = l.envString("REDIS_PASSWORD", cfg.Store.Redis.Password)
	cfg.Store.Redis.DB = l.envInt("REDIS_DB", cfg.Store.Redis.DB)

	cfg.Notify.DefaultWebhook = l.envString("NOTIFY_WEBHOOK", cfg.Notify.DefaultWebhook)

	t := &cfg.Telemetry
	t.Enabled = l.envBool("TELEMETRY_ENABLED", t.Enabled)
	t.Exporter = l.envString("TELEMETRY_EXPORTER", t.Exporter)
	t.Endpoint = l.envString("TELEMETRY_ENDPOINT", t.Endpoint)
	t.Insecure = l.envBool("TELEMETRY_INSECURE", t.Insecure)
	t.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", t.SamplingRate)
	t.Environment = l.envString("TELEMETRY_ENVIRONMENT", t.Environment)
}

func (l *Loader) consume(name string) string {
	key := EnvPrefix + name
	if _, ok := os.LookupEnv(key); ok {
		l.ConsumedEnvKeys[key] = struct{}{}
	}
	return key
}

func (l *Loader) envString(name, def string) string {
	return ParseString(l.consume(name), def)
}

func (l *Loader) envInt(name string, def int) int {
	return ParseInt(l.consume(name), def)
}

func (l *Loader) envBool(name string, def bool) bool {
	return ParseBool(l.consume(name), def)
}

func (l *Loader) envFloat(name string, def float64) float64 {
	return ParseFloat(l.consume(name), def)
}

func (l *Loader) envDuration(name string, def time.Duration) time.Duration {
	return ParseDuration(l.consume(name), def)
}
