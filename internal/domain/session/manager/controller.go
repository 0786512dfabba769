// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package manager runs one session controller per managed resource and the
// supervisor that owns them.
package manager

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
	"github.com/ManuGH/zonectl/internal/log"
	"github.com/ManuGH/zonectl/internal/metrics"
)

// ErrSessionClosed is returned for commands sent to a destroyed session.
var ErrSessionClosed = errors.New("session closed")

// Config tunes controller behavior.
type Config struct {
	LogFreshness         time.Duration
	DefaultRegion        string
	DefaultVersion       string
	ModToggleConcurrency int
	CallTimeout          time.Duration
	CommandPrefix        string
	InboxSize            int
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	return Config{
		LogFreshness:         10 * time.Second,
		DefaultRegion:        "us-west",
		DefaultVersion:       "1.1.27",
		ModToggleConcurrency: 4,
		CallTimeout:          15 * time.Second,
		CommandPrefix:        "!",
		InboxSize:            64,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.LogFreshness <= 0 {
		c.LogFreshness = def.LogFreshness
	}
	if c.DefaultRegion == "" {
		c.DefaultRegion = def.DefaultRegion
	}
	if c.DefaultVersion == "" {
		c.DefaultVersion = def.DefaultVersion
	}
	if c.ModToggleConcurrency <= 0 {
		c.ModToggleConcurrency = def.ModToggleConcurrency
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.InboxSize <= 0 {
		c.InboxSize = def.InboxSize
	}
	return c
}

// Deps are the collaborators shared by every controller.
type Deps struct {
	Store        ports.Store
	ControlPlane ports.ControlPlane
	Notifier     ports.Notifier
}

type inboxItem struct {
	event model.Event
	cmd   *Command
	spec  CommandSpec
	ctx   context.Context
}

// Controller owns the state of one session. All state below the inbox is
// touched only by the Run goroutine.
type Controller struct {
	key    model.ResourceKey
	id     string
	name   string
	cfg    Config
	deps   Deps
	conn   ports.Connector
	logger zerolog.Logger
	now    func() time.Time
	fold   cases.Caser

	inbox    chan inboxItem
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
	runCtx   context.Context

	state          model.LifecycleState
	status         model.ConnectionStatus
	secret         string
	launchID       string
	address        string
	lastLine       string
	versions       []string
	regions        []string
	outageNotified bool

	snap atomic.Pointer[model.Snapshot]
}

// NewController builds an idle controller. SetConnector must be called
// before Run.
func NewController(srv model.Server, cfg Config, deps Deps) *Controller {
	cfg = cfg.withDefaults()
	key := srv.Key()
	c := &Controller{
		key:    key,
		id:     key.ID(),
		name:   srv.Name,
		cfg:    cfg,
		deps:   deps,
		logger: log.WithResource("session", key.ID()).With().Str(log.FieldServerName, srv.Name).Logger(),
		now:    time.Now,
		fold:   cases.Fold(),
		inbox:  make(chan inboxItem, cfg.InboxSize),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		runCtx: context.Background(),
		state:  model.StateOffline,
		status: model.Disconnected,
	}
	c.publishSnapshot()
	return c
}

// SetConnector attaches the connection manager driven by this session.
func (c *Controller) SetConnector(conn ports.Connector) {
	c.conn = conn
}

// ID returns the resource id.
func (c *Controller) ID() string { return c.id }

// Run consumes the inbox until ctx ends or Stop is called.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.exited)
	c.runCtx = log.ContextWithResourceID(ctx, c.id)
	metrics.SetSessionState(c.id, string(c.state))

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case it := <-c.inbox:
			c.handle(it)
			c.publishSnapshot()
		}
	}
}

// Stop ends Run. It does not close the connection.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Wait blocks until Run has returned or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	select {
	case <-c.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver queues an inbound event. It blocks while the inbox is full and
// gives up once the session is stopped or Run has returned.
func (c *Controller) Deliver(ev model.Event) {
	select {
	case c.inbox <- inboxItem{event: ev}:
	case <-c.done:
	case <-c.exited:
	}
}

// HandleCommand validates cmd against the command table and queues it.
// Unknown ids and arity mismatches are reported to the operator and
// returned as ErrUnknownCommand or ErrUsage.
func (c *Controller) HandleCommand(ctx context.Context, cmd Command) error {
	spec, notice, err := validateCommand(cmd, c.cfg.CommandPrefix)
	if err != nil {
		id, result := spec.ID, "usage"
		if errors.Is(err, ErrUnknownCommand) {
			id, result = "unknown", "unknown"
		}
		metrics.RecordCommand(id, result)
		c.notify(ctx, model.Text(notice))
		return err
	}

	select {
	case <-c.done:
		return ErrSessionClosed
	case <-c.exited:
		return ErrSessionClosed
	default:
	}
	it := inboxItem{cmd: &cmd, spec: spec, ctx: context.WithoutCancel(ctx)}
	select {
	case c.inbox <- it:
		return nil
	case <-c.done:
		return ErrSessionClosed
	case <-c.exited:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the state after the last handled inbox item.
func (c *Controller) Snapshot() model.Snapshot {
	return *c.snap.Load()
}

func (c *Controller) handle(it inboxItem) {
	if it.cmd != nil {
		c.execute(it.ctx, it.spec, *it.cmd)
		return
	}
	c.apply(c.runCtx, it.event)
}

func (c *Controller) publishSnapshot() {
	s := model.Snapshot{
		ResourceID:       c.id,
		GuildID:          c.key.GuildID,
		Name:             c.name,
		LifecycleState:   c.state,
		ConnectionStatus: c.status,
		Authenticated:    c.secret != "",
		LaunchID:         c.launchID,
		PublicAddress:    c.address,
		LastLogLine:      c.lastLine,
		Regions:          slices.Clone(c.regions),
	}
	if len(c.versions) > 0 {
		s.GameVersion = c.versions[0]
	}
	c.snap.Store(&s)
}

func (c *Controller) notify(ctx context.Context, msg model.Message) {
	c.deps.Notifier.Notify(ctx, c.id, msg)
}

func (c *Controller) notifyText(ctx context.Context, text string) {
	c.notify(ctx, model.Text(text))
}

// callCtx bounds one outbound control-plane call.
func (c *Controller) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.CallTimeout)
}
