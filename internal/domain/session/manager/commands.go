// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("invalid command arguments")
)

// Command is one operator request addressed to a session.
type Command struct {
	ID            string
	Args          []string
	Author        string
	CorrelationID string
}

// CommandSpec describes one entry of the command table.
type CommandSpec struct {
	ID      string
	MinArgs int
	MaxArgs int
	Format  string
	Help    string
}

const (
	CmdSaves         = "saves"
	CmdMods          = "mods"
	CmdModOn         = "modon"
	CmdModOff        = "modoff"
	CmdStart         = "start"
	CmdStop          = "stop"
	CmdMsg           = "msg"
	CmdPromote       = "promote"
	CmdPromoteAdd    = "promoteadd"
	CmdPromoteRemove = "promoteremove"
	CmdPromoteList   = "promotelist"
	CmdStatus        = "status"
	CmdInfo          = "info"
	CmdCommands      = "commands"
)

var commandTable = []CommandSpec{
	{ID: CmdSaves, MinArgs: 0, MaxArgs: 0, Format: CmdSaves, Help: "Lists all saved games on the server"},
	{ID: CmdModOn, MinArgs: 2, MaxArgs: 99, Format: CmdModOn + " slotId modName", Help: "Activate mod on slot"},
	{ID: CmdModOff, MinArgs: 2, MaxArgs: 99, Format: CmdModOff + " slotId modName", Help: "Deactivates mod on slot"},
	{ID: CmdMods, MinArgs: 0, MaxArgs: 0, Format: CmdMods, Help: "Lists all mods installed to server"},
	{ID: CmdStart, MinArgs: 1, MaxArgs: 1, Format: CmdStart + " slotId", Help: "Start server using specified save slot"},
	{ID: CmdStop, MinArgs: 0, MaxArgs: 0, Format: CmdStop, Help: "Shut down server"},
	{ID: CmdMsg, MinArgs: 1, MaxArgs: 10000, Format: CmdMsg + " messageContent", Help: "Send a chat message to server"},
	{ID: CmdPromote, MinArgs: 1, MaxArgs: 1, Format: CmdPromote + " username", Help: "Promote the player to game admin during this game session"},
	{ID: CmdPromoteAdd, MinArgs: 1, MaxArgs: 1, Format: CmdPromoteAdd + " username", Help: "Adds player to promote on join list"},
	{ID: CmdPromoteRemove, MinArgs: 1, MaxArgs: 1, Format: CmdPromoteRemove + " username", Help: "Removes player from promote on join list"},
	{ID: CmdPromoteList, MinArgs: 0, MaxArgs: 0, Format: CmdPromoteList, Help: "Lists players on the promote on join list"},
	{ID: CmdStatus, MinArgs: 0, MaxArgs: 0, Format: CmdStatus, Help: "Reports the server state"},
	{ID: CmdInfo, MinArgs: 0, MaxArgs: 0, Format: CmdInfo, Help: "Shows name, token, status and address of the server"},
	{ID: CmdCommands, MinArgs: 0, MaxArgs: 0, Format: CmdCommands, Help: "return a list of available server commands"},
}

// Commands returns a copy of the command table.
func Commands() []CommandSpec {
	return append([]CommandSpec(nil), commandTable...)
}

// LookupCommand finds a command by case-insensitive id.
func LookupCommand(id string) (CommandSpec, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, c := range commandTable {
		if c.ID == id {
			return c, true
		}
	}
	return CommandSpec{}, false
}

// validateCommand checks id and arity and returns the operator notice for a
// rejected command.
func validateCommand(cmd Command, prefix string) (CommandSpec, string, error) {
	spec, ok := LookupCommand(cmd.ID)
	if !ok {
		return CommandSpec{}, fmt.Sprintf("I do not know how to do that: %s. type %scommands for help", cmd.ID, prefix),
			fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.ID)
	}
	if n := len(cmd.Args); n < spec.MinArgs || n > spec.MaxArgs {
		return spec, usage(spec, prefix), fmt.Errorf("%w: %s takes %d..%d arguments, got %d",
			ErrUsage, spec.ID, spec.MinArgs, spec.MaxArgs, n)
	}
	return spec, "", nil
}

func usage(spec CommandSpec, prefix string) string {
	return prefix + spec.Format + "\n" + spec.Help
}

func helpMessage(prefix string) model.Message {
	embed := &model.Embed{Title: "Server Commands"}
	for _, c := range commandTable {
		embed.AddField(prefix+c.Format, c.Help)
	}
	return model.Message{Embed: embed}
}
