// SPDX-License-Identifier: MIT

// Package sessiontest builds a fully wired session for tests: real bus,
// router, boundary, access checker and mode registry, with recording sinks.
package sessiontest

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/jesopo/lykos/internal/access"
	"github.com/jesopo/lykos/internal/audit"
	"github.com/jesopo/lykos/internal/boundary"
	"github.com/jesopo/lykos/internal/command"
	"github.com/jesopo/lykos/internal/config"
	"github.com/jesopo/lykos/internal/errlog"
	"github.com/jesopo/lykos/internal/events"
	"github.com/jesopo/lykos/internal/messages"
	"github.com/jesopo/lykos/internal/modes"
	"github.com/jesopo/lykos/internal/session"
	"github.com/jesopo/lykos/internal/transport"
	"github.com/jesopo/lykos/internal/users"
)

// AdminAccount is the account the world's configuration treats as admin.
const AdminAccount = "admin"

// Line is one recorded outbound line.
type Line struct {
	Target string
	Text   string
}

// Sender records outbound lines.
type Sender struct {
	mu    sync.Mutex
	lines []Line
}

// Send implements every Sender interface in the tree.
func (s *Sender) Send(_ context.Context, target, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, Line{Target: target, Text: text})
	return nil
}

// Lines returns the texts sent to target.
func (s *Sender) Lines(target string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, l := range s.lines {
		if users.Fold(l.Target) == users.Fold(target) {
			out = append(out, l.Text)
		}
	}
	return out
}

// Contains reports whether any line to target contains substr.
func (s *Sender) Contains(target, substr string) bool {
	for _, l := range s.Lines(target) {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// Reset forgets every recorded line.
func (s *Sender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

// World is a wired session plus its collaborators.
type World struct {
	Config   config.Config
	Session  *session.Session
	Bus      *events.Bus
	Router   *command.Router
	Boundary *boundary.Boundary
	Sender   *Sender
	ErrLog   *errlog.Memory
	Audit    *audit.Recorder
	Users    *users.Registry
	Catalog  *messages.Catalog
}

// Option adjusts the configuration before the world is built.
type Option func(*config.Config)

// New builds a world. Timers are disabled, debug mode is on and four
// players are enough to start.
func New(t testing.TB, opts ...Option) *World {
	t.Helper()

	cfg := config.Defaults()
	cfg.Timers = config.TimersConfig{}
	cfg.Game.MinPlayers = 4
	cfg.Bot.DebugMode = true
	cfg.Bot.AdminAccounts = []string{AdminAccount}
	for _, o := range opts {
		o(&cfg)
	}
	snap, err := config.NewSnapshot(cfg)
	if err != nil {
		t.Fatalf("config snapshot: %v", err)
	}

	w := &World{
		Config:  cfg,
		Sender:  &Sender{},
		ErrLog:  &errlog.Memory{},
		Audit:   &audit.Recorder{},
		Users:   users.NewRegistry(),
		Catalog: messages.Default(),
	}
	w.Boundary = boundary.New(boundary.Options{
		Verbosity:   cfg.Errors.TracebackVerbosity,
		MainChannel: cfg.Bot.MainChannel,
	}, w.ErrLog, w.Sender, w.Catalog, nil)
	w.Bus = events.NewBus(w.Boundary)

	checker, err := access.NewChecker(cfg.Bot, nil)
	if err != nil {
		t.Fatalf("access checker: %v", err)
	}
	w.Router = command.New(command.Options{
		MainChannel: cfg.Bot.MainChannel,
		DebugMode:   cfg.Bot.DebugMode,
		Disabled:    cfg.Bot.DisabledCommands,
		AltChannel:  cfg.Bot.AltChannelCommands,
		OwnersOnly:  cfg.Bot.OwnersOnlyCommands,
	}, command.Deps{
		Access:  checker,
		Audit:   w.Audit,
		Sender:  w.Sender,
		Guard:   w.Boundary,
		Bus:     w.Bus,
		Catalog: w.Catalog,
	})

	reg := modes.NewRegistry()
	if err := modes.RegisterBuiltins(reg); err != nil {
		t.Fatalf("modes: %v", err)
	}
	w.Session = session.New(session.OptionsFromConfig(cfg), session.Deps{
		Router:  w.Router,
		Bus:     w.Bus,
		Guard:   w.Boundary,
		Sender:  w.Sender,
		Modes:   reg,
		Config:  snap,
		Users:   w.Users,
		Catalog: w.Catalog,
	})
	if err := w.Session.Register(); err != nil {
		t.Fatalf("session register: %v", err)
	}
	return w
}

// Raw returns the hostmask the world uses for nick.
func Raw(nick string) string {
	return nick + "!~" + strings.ToLower(nick) + "@" + strings.ToLower(nick) + ".example"
}

// User resolves nick the way an inbound message would.
func (w *World) User(nick string) *users.User {
	return w.Users.Resolve(Raw(nick), "")
}

// Chan delivers a main-channel line from nick.
func (w *World) Chan(nick, text string) {
	w.Session.Handle(context.Background(), transport.Message{
		RawSource: Raw(nick),
		Target:    w.Config.Bot.MainChannel,
		Text:      text,
	})
}

// PM delivers a private line from nick to the bot.
func (w *World) PM(nick, text string) {
	w.Session.Handle(context.Background(), transport.Message{
		RawSource: Raw(nick),
		Target:    w.Config.Bot.Nick,
		Private:   true,
		Text:      text,
	})
}

// Admin delivers a main-channel line from nick logged in as the admin account.
func (w *World) Admin(nick, text string) {
	w.Session.Handle(context.Background(), transport.Message{
		RawSource: Raw(nick),
		Account:   AdminAccount,
		Target:    w.Config.Bot.MainChannel,
		Text:      text,
	})
}

// Join has every nick join the roster.
func (w *World) Join(nicks ...string) {
	for _, n := range nicks {
		w.Chan(n, "!join")
	}
}

// Main returns the lines sent to the main channel.
func (w *World) Main() []string {
	return w.Sender.Lines(w.Config.Bot.MainChannel)
}
