// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

type recordingSink struct {
	name string
	mu   sync.Mutex
	got  []Envelope
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, resourceID string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, Envelope{ResourceID: resourceID, Message: msg})
	return nil
}

func (s *recordingSink) messages() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Envelope(nil), s.got...)
}

func TestMemoryBusPublishTimeoutCountsDrop(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "topic")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	for i := 0; i < cap(sub.C()); i++ {
		require.NoError(t, b.Publish(context.Background(), "topic", Envelope{}))
	}

	before := counterValue(t, metrics.BusDroppedTotal.WithLabelValues("topic", "timeout"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = b.Publish(ctx, "topic", Envelope{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, counterValue(t, metrics.BusDroppedTotal.WithLabelValues("topic", "timeout")), before)
}

func TestMemoryBusPublishRejectsNilContext(t *testing.T) {
	b := NewMemoryBus()
	//nolint:staticcheck // nil context is the case under test
	err := b.Publish(nil, "topic", Envelope{})
	require.ErrorContains(t, err, "context is nil")
}

func TestMemoryBusCloseIsIdempotent(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "topic")
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	require.NoError(t, b.Publish(context.Background(), "topic", Envelope{}))
}

func TestRelayRoutesByGuild(t *testing.T) {
	bus := NewMemoryBus()
	def := &recordingSink{name: "default"}
	g2 := &recordingSink{name: "g2"}
	relay := NewRelay(bus, Routes{Default: def, ByGuild: map[string]Sink{"g2": g2}}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	n := NewBusNotifier(bus)
	// Wait for the relay subscription before publishing.
	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subs[Topic]) == 1
	}, time.Second, 5*time.Millisecond)

	n.Notify(context.Background(), "g1/tok", model.Text("Server offline"))
	n.Notify(context.Background(), "g2/tok", model.Text("Server booting up"))

	require.Eventually(t, func() bool {
		return len(def.messages()) == 1 && len(g2.messages()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Server offline", def.messages()[0].Message.Text)
	assert.Equal(t, "g2/tok", g2.messages()[0].ResourceID)
}

func TestRelayAttachBuffersEarlyMessages(t *testing.T) {
	bus := NewMemoryBus()
	def := &recordingSink{name: "default"}
	relay := NewRelay(bus, Routes{Default: def}, time.Second)
	require.NoError(t, relay.Attach(context.Background()))

	NewBusNotifier(bus).Notify(context.Background(), "g1/tok", model.Text("Disconnected from server"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool { return len(def.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Disconnected from server", def.messages()[0].Message.Text)
}

func TestWebhookSinkPostsDiscordPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	embed := &model.Embed{Title: "Server Mods (1)"}
	embed.AddField("Krastorio 2 1.3.0", "slot1, slot2")

	sink := NewWebhookSink(srv.URL, time.Second, nil)
	require.NoError(t, sink.Deliver(context.Background(), "g/t", model.Message{Embed: embed}))

	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Server Mods (1)", got.Embeds[0].Title)
	assert.Equal(t, []model.EmbedField{{Name: "Krastorio 2 1.3.0", Value: "slot1, slot2"}}, got.Embeds[0].Fields)
	assert.Empty(t, got.Content)
}

func TestWebhookSinkNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL, time.Second, nil).Deliver(context.Background(), "g/t", model.Text("hi"))
	require.ErrorIs(t, err, ErrWebhookStatus)
}
