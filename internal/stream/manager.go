// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stream owns the websocket connection to the control plane for one
// managed resource: connect, heartbeat, reconnect and frame demultiplexing.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
	xglog "github.com/ManuGH/zonectl/internal/log"
	"github.com/ManuGH/zonectl/internal/metrics"
)

// Handler receives every status change and parsed inbound event, in order.
// It runs on the connection's reader goroutine and must not call Close.
type Handler func(model.Event)

// Options configures a Manager.
type Options struct {
	// URL is the ws:// or wss:// control-plane endpoint.
	URL string
	// Origin defaults to the http(s) form of URL.
	Origin string
	// ResourceID labels logs and metrics.
	ResourceID string

	HeartbeatInterval time.Duration
	HeartbeatPayload  string
	DialTimeout       time.Duration
	Backoff           BackoffConfig
}

const (
	defaultHeartbeatInterval = 10 * time.Second
	defaultHeartbeatPayload  = "keep alive"
	defaultDialTimeout       = 15 * time.Second
)

// Manager keeps at most one live or pending connection per session.
type Manager struct {
	opts    Options
	wsCfg   *websocket.Config
	handler Handler
	logger  zerolog.Logger
	backoff *backoff

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	connecting bool
	conn       *websocket.Conn
	status     model.ConnectionStatus
	timer      *time.Timer
	timerGen   uint64
	wg         sync.WaitGroup
}

var _ ports.Connector = (*Manager)(nil)

// New validates options and returns an idle manager. Call Connect to dial.
func New(opts Options, handler Handler) (*Manager, error) {
	if handler == nil {
		return nil, fmt.Errorf("stream: handler is required")
	}
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("stream: parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("stream: url scheme must be ws or wss, got %q", u.Scheme)
	}
	if opts.Origin == "" {
		scheme := "http"
		if u.Scheme == "wss" {
			scheme = "https"
		}
		opts.Origin = scheme + "://" + u.Host
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.HeartbeatPayload == "" {
		opts.HeartbeatPayload = defaultHeartbeatPayload
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.Backoff == (BackoffConfig{}) {
		opts.Backoff = DefaultBackoff()
	}

	wsCfg, err := websocket.NewConfig(opts.URL, opts.Origin)
	if err != nil {
		return nil, fmt.Errorf("stream: websocket config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:    opts,
		wsCfg:   wsCfg,
		handler: handler,
		logger:  xglog.WithResource("stream", opts.ResourceID).With().Str(xglog.FieldURL, opts.URL).Logger(),
		backoff: newBackoff(opts.Backoff),
		ctx:     ctx,
		cancel:  cancel,
		status:  model.Disconnected,
	}, nil
}

// Status reports whether a connection is currently live.
func (m *Manager) Status() model.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connect starts a dial unless the manager is connected, dialing, or closed.
// It never blocks on the network.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.connecting || m.conn != nil {
		return
	}
	if m.timer != nil {
		// an explicit connect supersedes the pending reconnect
		m.timer.Stop()
		m.timer = nil
		m.timerGen++
	}
	m.connecting = true
	m.wg.Add(1)
	go m.dial()
}

// Close suppresses further reconnects, tears down the live connection and
// waits for the reader and heartbeat goroutines to exit. It is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.cancel()
	m.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	m.wg.Wait()

	metrics.SetStreamConnected(m.opts.ResourceID, false)
	m.logger.Info().Str(xglog.FieldEvent, "stream.closed").Msg("control-plane stream closed")
	return err
}

func (m *Manager) dial() {
	defer m.wg.Done()

	ctx, cancel := context.WithTimeout(m.ctx, m.opts.DialTimeout)
	conn, err := m.wsCfg.DialContext(ctx)
	cancel()

	m.mu.Lock()
	m.connecting = false
	if m.closed {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.mu.Unlock()
		metrics.RecordDisconnect("dial_failed")
		m.logger.Warn().Err(err).Str(xglog.FieldEvent, "stream.dial_failed").Msg("failed to connect to control plane")
		m.handler(model.StatusChange{
			Status:  model.Disconnected,
			Reason:  "dial_failed",
			Message: "failed to connect to control plane",
			Err:     err,
		})
		m.scheduleReconnect()
		return
	}

	done := make(chan struct{})
	m.conn = conn
	m.status = model.Connected
	m.wg.Add(2)
	m.mu.Unlock()

	m.backoff.reset()
	metrics.SetStreamConnected(m.opts.ResourceID, true)
	m.logger.Info().Str(xglog.FieldEvent, "stream.connected").Msg("connected to control plane")
	m.handler(model.StatusChange{Status: model.Connected, Reason: "connected", Message: "connected"})

	go m.heartbeat(conn, done)
	go m.readLoop(conn, done)
}

func (m *Manager) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer m.wg.Done()

	var readErr error
	for {
		var msg string
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			readErr = err
			break
		}
		ev, frameType, ok := ParseFrame([]byte(msg))
		if !ok {
			if frameType == "" {
				metrics.RecordFrame("invalid")
			} else {
				metrics.RecordFrame("unknown")
			}
			m.logger.Debug().Str(xglog.FieldFrameType, frameType).Msg("dropped frame")
			continue
		}
		metrics.RecordFrame(frameType)
		m.handler(ev)
	}

	// heartbeat stops before anyone hears about the disconnect
	close(done)
	_ = conn.Close()

	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	m.status = model.Disconnected
	closed := m.closed
	m.mu.Unlock()

	metrics.SetStreamConnected(m.opts.ResourceID, false)
	if closed {
		metrics.RecordDisconnect("closed")
		return
	}

	reason, message := "read_error", "connection error"
	if errors.Is(readErr, io.EOF) {
		reason, message = "peer_closed", "connection closed by control plane"
	}
	metrics.RecordDisconnect(reason)
	m.logger.Warn().Err(readErr).Str(xglog.FieldEvent, "stream.disconnected").Str("reason", reason).Msg("lost control-plane connection")
	m.handler(model.StatusChange{
		Status:  model.Disconnected,
		Reason:  reason,
		Message: message,
		Err:     readErr,
	})
	m.scheduleReconnect()
}

func (m *Manager) heartbeat(conn *websocket.Conn, done <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := websocket.Message.Send(conn, m.opts.HeartbeatPayload); err != nil {
				// the reader observes the broken connection and tears down
				m.logger.Debug().Err(err).Msg("heartbeat send failed")
			}
		}
	}
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.timer != nil {
		return
	}
	delay, attempt := m.backoff.next()
	m.timerGen++
	gen := m.timerGen
	m.timer = time.AfterFunc(delay, func() { m.fireReconnect(gen) })
	metrics.RecordReconnect(m.opts.ResourceID)
	m.logger.Info().
		Str(xglog.FieldEvent, "stream.reconnect_scheduled").
		Int(xglog.FieldAttempt, attempt).
		Dur(xglog.FieldDelay, delay).
		Msg("reconnect scheduled")
}

func (m *Manager) fireReconnect(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.timerGen {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()
	m.Connect()
}
