// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/log"
)

// Sink delivers one message for a resource.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, resourceID string, msg model.Message) error
}

// ErrWebhookStatus is returned for non-2xx webhook answers.
var ErrWebhookStatus = errors.New("webhook returned non-success status")

// LogSink writes messages to the structured log.
type LogSink struct {
	Logger zerolog.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{Logger: log.WithComponent("notify")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, resourceID string, msg model.Message) error {
	s.Logger.Info().
		Str(log.FieldEvent, "notify.message").
		Str(log.FieldResourceID, resourceID).
		Msg(msg.String())
	return nil
}

// webhookPayload is the Discord-compatible execute-webhook body.
type webhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []webhookEmbed `json:"embeds,omitempty"`
}

type webhookEmbed struct {
	Title  string             `json:"title,omitempty"`
	Fields []model.EmbedField `json:"fields,omitempty"`
}

func payloadFor(msg model.Message) webhookPayload {
	p := webhookPayload{Content: msg.Text}
	if msg.Embed != nil {
		p.Embeds = []webhookEmbed{{Title: msg.Embed.Title, Fields: msg.Embed.Fields}}
	}
	return p
}

// WebhookSink posts messages to a chat webhook URL.
type WebhookSink struct {
	URL    string
	client *http.Client
}

// NewWebhookSink builds a sink with an instrumented client. A nil
// transport uses http.DefaultTransport.
func NewWebhookSink(url string, timeout time.Duration, transport http.RoundTripper) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &WebhookSink{
		URL:    url,
		client: &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(transport)},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, _ string, msg model.Message) error {
	body, err := json.Marshal(payloadFor(msg))
	if err != nil {
		return fmt.Errorf("webhook: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrWebhookStatus, resp.StatusCode)
	}
	return nil
}
