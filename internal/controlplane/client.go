// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package controlplane issues the form-encoded HTTP calls that start, stop
// and drive a remote game-server instance.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
	xglog "github.com/ManuGH/zonectl/internal/log"
	"github.com/ManuGH/zonectl/internal/metrics"
	"github.com/ManuGH/zonectl/internal/resilience"
	"github.com/ManuGH/zonectl/internal/telemetry"
)

// Endpoints are the request paths relative to the base URL.
type Endpoints struct {
	Login     string
	Start     string
	Stop      string
	Console   string
	ModToggle string
}

// DefaultEndpoints returns the control-plane request paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:     "/api/user/login",
		Start:     "/api/instance/start",
		Stop:      "/api/instance/stop",
		Console:   "/api/instance/console",
		ModToggle: "/api/mod/toggle",
	}
}

// Options configures the client.
type Options struct {
	Timeout          time.Duration
	RateLimit        rate.Limit
	RateLimitBurst   int
	BreakerThreshold int
	BreakerReset     time.Duration
	UserAgent        string
	Endpoints        Endpoints
	Transport        http.RoundTripper
}

const (
	defaultTimeout        = 15 * time.Second
	defaultRateLimit      = 5
	defaultRateLimitBurst = 10
	defaultUserAgent      = "zonectl"
)

// Client implements ports.ControlPlane over HTTP.
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *resilience.CircuitBreaker
	endpoints Endpoints
	userAgent string
	timeout   time.Duration
}

var _ ports.ControlPlane = (*Client)(nil)

// NewClient creates a client for the control plane at baseURL.
func NewClient(baseURL string, opts Options) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("controlplane: invalid base URL %q", baseURL)
	}

	nopts := normalizeOptions(opts)
	transport := nopts.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		}
	}

	return &Client{
		baseURL: trimmed,
		http: &http.Client{
			Timeout:   nopts.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		limiter: rate.NewLimiter(nopts.RateLimit, nopts.RateLimitBurst),
		breaker: resilience.NewCircuitBreaker("controlplane", nopts.BreakerThreshold, nopts.BreakerReset,
			resilience.WithTripFilter(countsAsOutage),
			resilience.WithTransitionHook(logBreakerTransition)),
		endpoints: nopts.Endpoints,
		userAgent: nopts.UserAgent,
		timeout:   nopts.Timeout,
	}, nil
}

func logBreakerTransition(from, to resilience.State) {
	level := zerolog.InfoLevel
	if to == resilience.StateOpen {
		level = zerolog.WarnLevel
	}
	logger := xglog.WithComponent("controlplane")
	logger.WithLevel(level).Str(xglog.FieldEvent, "controlplane.breaker_transition").
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("circuit breaker state changed")
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	def := DefaultEndpoints()
	if opts.Endpoints.Login == "" {
		opts.Endpoints.Login = def.Login
	}
	if opts.Endpoints.Start == "" {
		opts.Endpoints.Start = def.Start
	}
	if opts.Endpoints.Stop == "" {
		opts.Endpoints.Stop = def.Stop
	}
	if opts.Endpoints.Console == "" {
		opts.Endpoints.Console = def.Console
	}
	if opts.Endpoints.ModToggle == "" {
		opts.Endpoints.ModToggle = def.ModToggle
	}
	return opts
}

// countsAsOutage excludes caller cancellations and 4xx answers from the
// breaker: they say nothing about upstream health.
func countsAsOutage(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) && se.Code < http.StatusInternalServerError {
		return false
	}
	return true
}

// StatusError reports a non-200 answer. It matches ports.ErrUnexpectedStatus.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("controlplane %s: status %d", e.Op, e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ports.ErrUnexpectedStatus
}

// Login registers the per-connection secret against the resource token.
func (c *Client) Login(ctx context.Context, secret, token string) error {
	return c.post(ctx, "login", c.endpoints.Login, url.Values{
		"visitSecret": {secret},
		"userToken":   {token},
		"reconnected": {"false"},
	}, "", "")
}

// Start launches the instance from a save slot.
func (c *Client) Start(ctx context.Context, secret, region string, slot model.SlotID, version string) error {
	return c.post(ctx, "start", c.endpoints.Start, url.Values{
		"visitSecret": {secret},
		"region":      {region},
		"save":        {string(slot)},
		"version":     {version},
	}, string(slot), "")
}

// Stop shuts the running instance down.
func (c *Client) Stop(ctx context.Context, secret, launchID string) error {
	return c.post(ctx, "stop", c.endpoints.Stop, url.Values{
		"visitSecret": {secret},
		"launchId":    {launchID},
	}, "", "")
}

// Chat relays an operator message into the game console.
func (c *Client) Chat(ctx context.Context, secret, launchID, username, text string) error {
	return c.post(ctx, "chat", c.endpoints.Console, url.Values{
		"visitSecret": {secret},
		"launchId":    {launchID},
		"input":       {username + ": " + text},
	}, "", "")
}

// Promote grants in-game admin to a player for the current launch.
func (c *Client) Promote(ctx context.Context, secret, launchID, username string) error {
	return c.post(ctx, "promote", c.endpoints.Console, url.Values{
		"visitSecret": {secret},
		"launchId":    {launchID},
		"input":       {"/promote " + username},
	}, "", "")
}

// ToggleMod enables or disables an installed mod for the next launch.
func (c *Client) ToggleMod(ctx context.Context, secret, modID string, enabled bool) error {
	return c.post(ctx, "mod_toggle", c.endpoints.ModToggle, url.Values{
		"visitSecret": {secret},
		"modId":       {modID},
		"enabled":     {strconv.FormatBool(enabled)},
	}, "", modID)
}

func (c *Client) post(ctx context.Context, op, path string, form url.Values, slot, modID string) error {
	ctx, span := telemetry.Tracer("zonectl.controlplane").Start(ctx, "zonectl.controlplane."+op,
		trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(telemetry.ControlPlaneAttributes(op, slot, modID)...)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	status := 0
	err := c.breaker.Execute(func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, resp.Body)

		status = resp.StatusCode
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Op: op, Code: resp.StatusCode}
		}
		return nil
	})

	result := "ok"
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		result = "breaker_open"
	case errors.Is(err, ports.ErrUnexpectedStatus):
		result = "status"
	case err != nil:
		result = "error"
	}
	metrics.ObserveControlPlaneRequest(op, result, time.Since(start))

	if status > 0 {
		span.SetAttributes(telemetry.HTTPAttributes(http.MethodPost, path, status)...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("controlplane %s: %w", op, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
