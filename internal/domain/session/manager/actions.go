// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/zonectl/internal/domain/session/lifecycle"
	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/ManuGH/zonectl/internal/domain/session/ports"
	"github.com/ManuGH/zonectl/internal/log"
	"github.com/ManuGH/zonectl/internal/metrics"
)

// commandResult labels the commands_total metric.
type commandResult string

const (
	resultOK       commandResult = "ok"
	resultRejected commandResult = "rejected"
	resultFailed   commandResult = "failed"
)

func (c *Controller) execute(ctx context.Context, spec CommandSpec, cmd Command) {
	logger := c.logger.With().
		Str(log.FieldCommand, spec.ID).
		Str(log.FieldCorrelationID, cmd.CorrelationID).
		Logger()
	ctx = logger.WithContext(ctx)

	var result commandResult
	switch spec.ID {
	case CmdSaves:
		result = c.listSaves(ctx)
	case CmdMods:
		result = c.listMods(ctx)
	case CmdModOn:
		result = c.setModActive(ctx, cmd.Args[0], strings.Join(cmd.Args[1:], " "), true)
	case CmdModOff:
		result = c.setModActive(ctx, cmd.Args[0], strings.Join(cmd.Args[1:], " "), false)
	case CmdStart:
		result = c.start(ctx, cmd.Args[0])
	case CmdStop:
		result = c.stop(ctx)
	case CmdMsg:
		result = c.chat(ctx, cmd.Author, strings.Join(cmd.Args, " "))
	case CmdPromote:
		result = c.promote(ctx, cmd.Args[0])
	case CmdPromoteAdd:
		result = c.promoteAdd(ctx, cmd.Args[0])
	case CmdPromoteRemove:
		result = c.promoteRemove(ctx, cmd.Args[0])
	case CmdPromoteList:
		result = c.promoteList(ctx)
	case CmdStatus:
		c.notifyText(ctx, lifecycle.Describe(c.state, c.address))
		result = resultOK
	case CmdInfo:
		c.notify(ctx, c.infoMessage())
		result = resultOK
	case CmdCommands:
		c.notify(ctx, helpMessage(c.cfg.CommandPrefix))
		result = resultOK
	default:
		result = resultRejected
	}

	metrics.RecordCommand(spec.ID, string(result))
	logger.Info().
		Str(log.FieldEvent, "session.command").
		Str("result", string(result)).
		Str("author", cmd.Author).
		Msg("command handled")
}

func (c *Controller) listSaves(ctx context.Context) commandResult {
	saves, err := c.deps.Store.GetSaves(ctx, c.key)
	if errors.Is(err, ports.ErrNotFound) {
		saves = model.NewSaves(c.key)
	} else if err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.saves_read_failed").Msg("cannot list saves")
		return resultFailed
	}

	embed := &model.Embed{Title: "Save Slots"}
	for _, id := range model.AllSlots() {
		value := saves.Slots[id]
		if value == "" {
			value = "(empty)"
		}
		embed.AddField(string(id), value)
	}
	c.notify(ctx, model.Message{Embed: embed})
	return resultOK
}

func (c *Controller) listMods(ctx context.Context) commandResult {
	mods, err := c.deps.Store.ListMods(ctx, c.key)
	if err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.mods_read_failed").Msg("cannot list mods")
		return resultFailed
	}
	if len(mods) == 0 {
		c.notifyText(ctx, "No mods installed on server")
		return resultOK
	}

	embed := &model.Embed{Title: fmt.Sprintf("Server Mods (%d)", len(mods))}
	for _, m := range mods {
		active := m.ActiveOnSlots.String()
		if active == "" {
			active = "none"
		}
		embed.AddField(m.Name+" "+m.Version, active)
	}
	c.notify(ctx, model.Message{Embed: embed})
	return resultOK
}

func (c *Controller) setModActive(ctx context.Context, slotArg, name string, active bool) commandResult {
	slot, ok := model.ParseSlotID(slotArg)
	if !ok {
		c.notifyText(ctx, slotArg+" is not a valid slot")
		return resultRejected
	}
	mods, err := c.deps.Store.ListMods(ctx, c.key)
	if err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.mods_read_failed").Msg("cannot update mod")
		return resultFailed
	}
	mod, ok := model.FindMod(mods, name)
	if !ok {
		c.notifyText(ctx, name+" was not found on server")
		return resultRejected
	}

	if mod.ActiveOnSlots.Has(slot) == active {
		if active {
			c.notifyText(ctx, fmt.Sprintf("%s was already active on %s", name, slot))
		} else {
			c.notifyText(ctx, fmt.Sprintf("%s was already inactive on %s", name, slot))
		}
		return resultOK
	}

	mod.ActiveOnSlots = mod.ActiveOnSlots.Clone()
	if mod.ActiveOnSlots == nil {
		mod.ActiveOnSlots = model.NewSlotSet()
	}
	if active {
		mod.ActiveOnSlots[slot] = struct{}{}
	} else {
		delete(mod.ActiveOnSlots, slot)
	}
	if err := c.deps.Store.PutMod(ctx, c.key, mod); err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.mod_write_failed").Msg("cannot update mod")
		return resultFailed
	}

	if active {
		c.notifyText(ctx, fmt.Sprintf("%s is now activated on %s", name, slot))
	} else {
		c.notifyText(ctx, fmt.Sprintf("%s is now deactivated on %s", name, slot))
	}
	return resultOK
}

func (c *Controller) start(ctx context.Context, slotArg string) commandResult {
	slot, ok := model.ParseSlotID(slotArg)
	if !ok {
		c.notifyText(ctx, slotArg+" is not a valid slot")
		return resultRejected
	}
	if c.status != model.Connected || c.secret == "" {
		c.notifyText(ctx, "Disconnected from game servers, reconnecting. Attempt server start after a few seconds")
		if c.conn != nil {
			c.conn.Connect()
		}
		return resultRejected
	}

	switch c.state {
	case model.StateOnline:
		c.notifyText(ctx, "Server online at "+c.address)
		return resultRejected
	case model.StateStarting:
		c.notifyText(ctx, "Server is starting up")
		return resultRejected
	case model.StateStopping:
		c.notifyText(ctx, "Server is shutting down. Please wait for shutdown before requesting server launch")
		return resultRejected
	}

	mods, err := c.deps.Store.ListMods(ctx, c.key)
	if err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.mods_read_failed").Msg("starting without mod toggles")
		mods = nil
	}
	if len(mods) > 0 {
		c.notifyText(ctx, "Enabling mods for "+string(slot))
		c.toggleMods(ctx, slot, mods)
	}

	region, version := c.launchSettings(ctx)
	cctx, cancel := c.callCtx(ctx)
	defer cancel()
	if err := c.deps.ControlPlane.Start(cctx, c.secret, region, slot, version); err != nil {
		c.logger.Error().Err(err).
			Str(log.FieldEvent, "session.start_failed").
			Str("slot", string(slot)).
			Msg("start request failed")
		c.notifyText(ctx, "Failed to request server start")
		return resultFailed
	}
	c.logger.Info().
		Str(log.FieldEvent, "session.start_requested").
		Str("slot", string(slot)).
		Str("region", region).
		Str("version", version).
		Msg("start requested")
	return resultOK
}

// toggleMods sets every mod's enabled flag for the slot. Failures and mods
// without a remote id are logged and never abort the start.
func (c *Controller) toggleMods(ctx context.Context, slot model.SlotID, mods []model.Mod) {
	var g errgroup.Group
	g.SetLimit(c.cfg.ModToggleConcurrency)
	secret := c.secret
	for _, m := range mods {
		if m.RemoteModID == "" {
			metrics.RecordModToggleSkipped()
			c.logger.Warn().
				Str(log.FieldEvent, "session.mod_toggle_skipped").
				Str("mod", m.Name).
				Str("slot", string(slot)).
				Msg("mod has no remote id, leaving it as is")
			continue
		}
		g.Go(func() error {
			cctx, cancel := c.callCtx(ctx)
			defer cancel()
			err := c.deps.ControlPlane.ToggleMod(cctx, secret, m.RemoteModID, m.ActiveOnSlots.Has(slot))
			metrics.RecordModToggle(err == nil)
			if err != nil {
				c.logger.Warn().Err(err).
					Str(log.FieldEvent, "session.mod_toggle_failed").
					Str("mod", m.Name).
					Msg("mod toggle failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// launchSettings resolves region and version for a start request.
func (c *Controller) launchSettings(ctx context.Context) (region, version string) {
	srv, err := c.deps.Store.GetServer(ctx, c.key)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		c.logger.Warn().Err(err).Str(log.FieldEvent, "session.server_read_failed").Msg("using default launch settings")
	}

	region = firstNonEmpty(srv.Region, c.cfg.DefaultRegion)
	if len(c.regions) > 0 && !slices.Contains(c.regions, region) {
		c.logger.Warn().
			Str(log.FieldEvent, "session.region_unknown").
			Str("region", region).
			Strs("offered", c.regions).
			Msg("region not offered by control plane")
	}

	var cached string
	if len(c.versions) > 0 {
		cached = c.versions[0]
	}
	version = firstNonEmpty(cached, srv.Version, c.cfg.DefaultVersion)
	return region, version
}

func (c *Controller) stop(ctx context.Context) commandResult {
	if c.status != model.Connected || c.secret == "" {
		c.notifyText(ctx, "Disconnected from game servers, reconnecting")
		return resultRejected
	}
	switch c.state {
	case model.StateOffline:
		c.notifyText(ctx, "Server offline")
		return resultRejected
	case model.StateStarting:
		c.notifyText(ctx, "Please wait for server to finish starting before attempting to shutdown")
		return resultRejected
	case model.StateStopping:
		c.notifyText(ctx, "Shutdown process is underway")
		return resultRejected
	}

	cctx, cancel := c.callCtx(ctx)
	defer cancel()
	if err := c.deps.ControlPlane.Stop(cctx, c.secret, c.launchID); err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.stop_failed").Msg("stop request failed")
		c.notifyText(ctx, "Failed to request server stop")
		return resultFailed
	}
	return resultOK
}

// requireOnline reports the blocking state to the operator unless Online.
func (c *Controller) requireOnline(ctx context.Context) bool {
	if c.state == model.StateOnline {
		return true
	}
	c.notifyText(ctx, lifecycle.Describe(c.state, c.address))
	return false
}

func (c *Controller) chat(ctx context.Context, author, text string) commandResult {
	if !c.requireOnline(ctx) {
		return resultRejected
	}
	cctx, cancel := c.callCtx(ctx)
	defer cancel()
	if err := c.deps.ControlPlane.Chat(cctx, c.secret, c.launchID, author, text); err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.chat_failed").Msg("chat relay failed")
		return resultFailed
	}
	return resultOK
}

func (c *Controller) promote(ctx context.Context, username string) commandResult {
	if !c.requireOnline(ctx) {
		return resultRejected
	}
	c.notifyText(ctx, fmt.Sprintf("Promoting user %s to server admin", username))
	cctx, cancel := c.callCtx(ctx)
	defer cancel()
	if err := c.deps.ControlPlane.Promote(cctx, c.secret, c.launchID, username); err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.promote_failed").Str("player", username).Msg("promote failed")
		return resultFailed
	}
	return resultOK
}

// serverRecord loads the record, provisioning one from the session identity
// when absent.
func (c *Controller) serverRecord(ctx context.Context) (model.Server, error) {
	srv, err := c.deps.Store.GetServer(ctx, c.key)
	if errors.Is(err, ports.ErrNotFound) {
		return model.Server{GuildID: c.key.GuildID, Token: c.key.Token, Name: c.name}, nil
	}
	return srv, err
}

func (c *Controller) promoteAdd(ctx context.Context, username string) commandResult {
	srv, err := c.serverRecord(ctx)
	if err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.server_read_failed").Msg("cannot update promote list")
		return resultFailed
	}
	folded := c.fold.String(username)
	if srv.HasAdmin(folded) {
		c.notifyText(ctx, folded+" is already on the auto promote list")
		return resultOK
	}
	srv.Admins = append(srv.Admins, folded)
	if err := c.deps.Store.PutServer(ctx, srv); err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.server_write_failed").Msg("cannot update promote list")
		return resultFailed
	}
	c.notifyText(ctx, fmt.Sprintf("Added %s to auto promote list", folded))
	return resultOK
}

func (c *Controller) promoteRemove(ctx context.Context, username string) commandResult {
	srv, err := c.serverRecord(ctx)
	if err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.server_read_failed").Msg("cannot update promote list")
		return resultFailed
	}
	folded := c.fold.String(username)
	idx := slices.Index(srv.Admins, folded)
	if idx < 0 {
		c.notifyText(ctx, folded+" is not on the promote list")
		return resultRejected
	}
	srv.Admins = slices.Delete(srv.Admins, idx, idx+1)
	if err := c.deps.Store.PutServer(ctx, srv); err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.server_write_failed").Msg("cannot update promote list")
		return resultFailed
	}
	c.notifyText(ctx, fmt.Sprintf("Removed %s from auto promote list", folded))
	return resultOK
}

func (c *Controller) promoteList(ctx context.Context) commandResult {
	srv, err := c.serverRecord(ctx)
	if err != nil {
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.server_read_failed").Msg("cannot read promote list")
		return resultFailed
	}
	if len(srv.Admins) == 0 {
		c.notifyText(ctx, "No players on the auto promote list")
		return resultOK
	}
	c.notifyText(ctx, strings.Join(srv.Admins, ", "))
	return resultOK
}

func (c *Controller) infoMessage() model.Message {
	embed := &model.Embed{Title: c.name}
	embed.AddField("Name", c.name).
		AddField("Token", c.key.Token).
		AddField("Status", string(c.state)).
		AddField("Connection", string(c.status))
	if c.state == model.StateOnline {
		embed.AddField("IP", c.address)
	}
	return model.Message{Embed: embed}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
