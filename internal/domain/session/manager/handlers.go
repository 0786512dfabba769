// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/ManuGH/zonectl/internal/domain/session/lifecycle"
	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
	"github.com/ManuGH/zonectl/internal/log"
	"github.com/ManuGH/zonectl/internal/metrics"
)

const (
	provisioningLine   = "provisioning virtual machine, this will take an extra minute"
	provisioningNotice = "Start up is slowed, provisioning virtual machine"

	noticeLostConnection = "lost connection to server. attempting reconnect"
	noticeDialFailed     = "Failed to connect to server, attempting reconnect"
)

var forwardedLogTags = []string{"[LEAVE]", "[CHAT]", "already an admin", "[PROMOTE]", "[COMMAND]"}

func (c *Controller) apply(ctx context.Context, ev model.Event) {
	switch e := ev.(type) {
	case model.StatusChange:
		c.onStatus(ctx, e)
	case model.Secret:
		c.onSecret(ctx, e)
	case model.SaveSlots:
		c.onSaveSlots(ctx, e)
	case model.Versions:
		c.versions = slices.Clone(e.Versions)
	case model.Regions:
		c.regions = slices.Clone(e.Regions)
	case model.ModList:
		c.onModList(ctx, e)
	case model.LifecycleStarting, model.LifecycleRunning, model.LifecycleStopping, model.LifecycleIdle:
		c.onLifecycle(ctx, ev)
	case model.InfoLine:
		c.onLogLine(ctx, e)
	case model.Diagnostic:
		c.onDiagnostic(ctx, e)
	default:
		c.logger.Debug().Str(log.FieldEvent, "session.event_ignored").Msgf("unhandled event %T", ev)
	}
}

func (c *Controller) onStatus(ctx context.Context, e model.StatusChange) {
	c.status = e.Status
	if e.Status == model.Connected {
		c.outageNotified = false
		c.logger.Info().Str(log.FieldEvent, "session.connected").Msg("stream connected")
		return
	}

	c.secret = ""
	c.launchID = ""
	if e.Reason == "closed" {
		return
	}
	c.logger.Warn().Err(e.Err).
		Str(log.FieldEvent, "session.disconnected").
		Str("reason", e.Reason).
		Msg(e.Message)
	if c.outageNotified {
		return
	}
	c.outageNotified = true
	if e.Reason == "dial_failed" {
		c.notifyText(ctx, noticeDialFailed)
		return
	}
	c.notifyText(ctx, noticeLostConnection)
}

func (c *Controller) onSecret(ctx context.Context, e model.Secret) {
	c.secret = e.Secret
	cctx, cancel := c.callCtx(ctx)
	defer cancel()
	if err := c.deps.ControlPlane.Login(cctx, e.Secret, c.key.Token); err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.login_failed").Msg("control-plane login failed")
		return
	}
	c.logger.Debug().Str(log.FieldEvent, "session.logged_in").Msg("control-plane login accepted")
}

func (c *Controller) onSaveSlots(ctx context.Context, e model.SaveSlots) {
	saves, err := c.deps.Store.GetSaves(ctx, c.key)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			c.logger.Warn().Err(err).Str(log.FieldEvent, "session.saves_read_failed").Msg("reprovisioning saves record")
		}
		saves = model.NewSaves(c.key)
	}
	for _, id := range model.AllSlots() {
		saves.Slots[id] = e.Slots[id]
	}
	if err := c.deps.Store.PutSaves(ctx, saves); err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.saves_write_failed").Msg("failed to persist save slots")
	}
}

func (c *Controller) onModList(ctx context.Context, e model.ModList) {
	existing, err := c.deps.Store.ListMods(ctx, c.key)
	if err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.mods_read_failed").Msg("mod list not synchronized")
		return
	}
	merged := model.MergeMods(existing, e.Mods)
	if err := c.deps.Store.ReplaceMods(ctx, c.key, merged); err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.mods_write_failed").Msg("mod list not synchronized")
		return
	}
	c.logger.Debug().Str(log.FieldEvent, "session.mods_synced").Int("count", len(merged)).Msg("mod list synchronized")
}

func (c *Controller) onLifecycle(ctx context.Context, ev model.Event) {
	out, err := lifecycle.Apply(c.state, ev)
	if err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.transition_invalid").Msg("lifecycle event rejected")
		return
	}

	switch e := ev.(type) {
	case model.LifecycleStarting:
		c.launchID = e.LaunchID
	case model.LifecycleRunning:
		c.launchID = e.LaunchID
		c.address = e.Address
	}
	if out.To.ClearsLaunch() {
		c.launchID = ""
		c.address = ""
	}
	if !out.Changed {
		return
	}

	c.state = out.To
	metrics.SetSessionState(c.id, string(out.To))
	metrics.RecordTransition(string(out.From), string(out.To))
	c.logger.Info().
		Str(log.FieldEvent, "session.state_changed").
		Str(log.FieldOldState, string(out.From)).
		Str(log.FieldNewState, string(out.To)).
		Str(log.FieldLaunchID, c.launchID).
		Msg("lifecycle state changed")
	c.notifyText(ctx, lifecycle.Describe(c.state, c.address))
}

func (c *Controller) onLogLine(ctx context.Context, e model.InfoLine) {
	if !e.Time.IsZero() && c.now().Sub(e.Time) > c.cfg.LogFreshness {
		metrics.RecordLogLine("stale")
		return
	}
	if e.Line == c.lastLine {
		metrics.RecordLogLine("duplicate")
		return
	}
	c.lastLine = e.Line

	if strings.Contains(e.Line, "[JOIN]") {
		c.autoPromote(ctx, e.Line)
		metrics.RecordLogLine("forwarded")
		c.notifyText(ctx, e.Line)
		return
	}

	if !containsAny(e.Line, forwardedLogTags) {
		metrics.RecordLogLine("ignored")
		return
	}
	if strings.Contains(e.Line, "[gps=") || strings.Contains(e.Line, "[train=") {
		metrics.RecordLogLine("filtered")
		return
	}
	metrics.RecordLogLine("forwarded")
	c.notifyText(ctx, e.Line)
}

// autoPromote promotes every word of a join line that matches a stored admin.
func (c *Controller) autoPromote(ctx context.Context, line string) {
	srv, err := c.deps.Store.GetServer(ctx, c.key)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			c.logger.Warn().Err(err).Str(log.FieldEvent, "session.admins_read_failed").Msg("auto promote skipped")
		}
		return
	}
	if len(srv.Admins) == 0 {
		return
	}
	for _, word := range strings.Fields(line) {
		if !srv.HasAdmin(c.fold.String(word)) {
			continue
		}
		cctx, cancel := c.callCtx(ctx)
		err := c.deps.ControlPlane.Promote(cctx, c.secret, c.launchID, word)
		cancel()
		if err != nil {
			c.logger.Error().Err(err).Str(log.FieldEvent, "session.auto_promote_failed").Str("player", word).Msg("auto promote failed")
			continue
		}
		c.logger.Info().Str(log.FieldEvent, "session.auto_promoted").Str("player", word).Msg("player auto promoted")
	}
}

func (c *Controller) onDiagnostic(ctx context.Context, e model.Diagnostic) {
	if e.Kind == "info" && e.Line == provisioningLine {
		c.notifyText(ctx, provisioningNotice)
		return
	}
	c.logger.Debug().
		Str(log.FieldEvent, "session.diagnostic").
		Str(log.FieldFrameType, e.Kind).
		Msg(e.Line)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
