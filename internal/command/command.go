// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"strings"

	"github.com/jesopo/lykos/internal/users"
)

// CatchAll is the alias of hooks that see every message.
const CatchAll = ""

// FlagDebug marks commands that only exist in debug mode.
const FlagDebug = "d"

// Spec is the declarative authorization attributes of a command.
type Spec struct {
	// Owner restricts the command to bot owners.
	Owner bool
	// Flag is the admin flag required to use the command.
	Flag string
	// Chan and PM allow the command in channels and private messages.
	Chan bool
	PM   bool
	// Playing restricts the command to connected players still in the game.
	Playing bool
	// Silenced blocks silenced players with a notice.
	Silenced bool
	// Phases restricts the command to these game phases.
	Phases []string
	// Roles restricts the command to holders of these roles. Role holders
	// skip every later check.
	Roles []string
	// Users is a live allow-list. Listed callers skip every later check.
	Users *users.Set
	// Exclusive forbids any other registration under the same aliases.
	Exclusive bool
}

// Message is one inbound command invocation.
type Message struct {
	Source *users.User
	// Target is the channel, or the bot's nick for private messages.
	Target  string
	Private bool
	// Alias is the command name the caller used, CatchAll for plain text.
	Alias string
	// Args is the raw text after the alias.
	Args string
}

// Handler runs an authorized command.
type Handler func(ctx context.Context, inv *Invocation) error

// Command is one registration.
type Command struct {
	Name    string
	Aliases []string
	Spec    Spec

	owner      bool
	altAllowed bool
	handler    Handler
	seq        uint64
}

// OwnerOnly reports the effective owner restriction after configuration.
func (c *Command) OwnerOnly() bool { return c.owner }

// AltAllowed reports whether the command may be used outside the main channel.
func (c *Command) AltAllowed() bool { return c.altAllowed }

func (c *Command) isCatchAll() bool {
	for _, a := range c.Aliases {
		if a == CatchAll {
			return true
		}
	}
	return false
}

func (c *Command) hasAlias(set map[string]struct{}) bool {
	for _, a := range c.Aliases {
		if _, ok := set[a]; ok {
			return true
		}
	}
	return false
}

// Invocation is what a handler receives.
type Invocation struct {
	Message
	Command *Command

	router *Router
}

// Reply answers where the command was issued: the channel, or privately.
func (inv *Invocation) Reply(ctx context.Context, text string) {
	target := inv.Target
	if inv.Private {
		target = inv.Source.Nick
	}
	inv.router.send(ctx, target, text)
}

// Notice answers the caller privately.
func (inv *Invocation) Notice(ctx context.Context, text string) {
	inv.router.send(ctx, inv.Source.Nick, text)
}

// Fields splits Args on whitespace.
func (inv *Invocation) Fields() []string {
	return strings.Fields(inv.Args)
}
