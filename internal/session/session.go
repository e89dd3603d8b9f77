// SPDX-License-Identifier: MIT

// Package session owns the running game. A single goroutine processes
// inbound messages and timer callbacks one at a time, so the game state is
// never touched concurrently.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jesopo/lykos/internal/boundary"
	"github.com/jesopo/lykos/internal/command"
	"github.com/jesopo/lykos/internal/config"
	"github.com/jesopo/lykos/internal/events"
	"github.com/jesopo/lykos/internal/game"
	"github.com/jesopo/lykos/internal/log"
	"github.com/jesopo/lykos/internal/messages"
	"github.com/jesopo/lykos/internal/modes"
	"github.com/jesopo/lykos/internal/transport"
	"github.com/jesopo/lykos/internal/users"
	"github.com/rs/zerolog"
)

const inboxSize = 64

// Sender delivers a line of chat text.
type Sender interface {
	Send(ctx context.Context, target, text string) error
}

// Guard runs timer callbacks inside the failure boundary.
type Guard interface {
	Guard(ctx context.Context, site boundary.Site, fn func(context.Context) error) error
}

// Options configures a Session.
type Options struct {
	Nick          string
	MainChannel   string
	CommandPrefix string
	MinPlayers    int
	MaxPlayers    int
	DefaultMode   string
}

// OptionsFromConfig derives session options from the bot configuration.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Nick:          cfg.Bot.Nick,
		MainChannel:   cfg.Bot.MainChannel,
		CommandPrefix: cfg.Bot.CommandPrefix,
		MinPlayers:    cfg.Game.MinPlayers,
		MaxPlayers:    cfg.Game.MaxPlayers,
		DefaultMode:   cfg.Game.DefaultMode,
	}
}

// Deps are the collaborators a Session calls into.
type Deps struct {
	Router  *command.Router
	Bus     *events.Bus
	Guard   Guard
	Sender  Sender
	Modes   *modes.Registry
	Config  config.Reader
	Users   *users.Registry
	Catalog *messages.Catalog
}

// Session is the game host for the main channel.
type Session struct {
	opts   Options
	deps   Deps
	logger zerolog.Logger

	pregame *game.Pregame
	game    *game.Game
	votes   map[*users.User]*users.User

	// gen invalidates timers scheduled for an earlier phase.
	gen    uint64
	timers []*time.Timer

	inbox     chan func(context.Context)
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a session with an empty roster.
func New(opts Options, deps Deps) *Session {
	if opts.CommandPrefix == "" {
		opts.CommandPrefix = "!"
	}
	if deps.Catalog == nil {
		deps.Catalog = messages.Default()
	}
	if deps.Users == nil {
		deps.Users = users.NewRegistry()
	}
	if deps.Guard == nil {
		deps.Guard = passthrough{}
	}
	return &Session{
		opts:    opts,
		deps:    deps,
		logger:  log.WithComponent("session"),
		pregame: game.NewPregame(),
		inbox:   make(chan func(context.Context), inboxSize),
		done:    make(chan struct{}),
	}
}

type passthrough struct{}

func (passthrough) Guard(ctx context.Context, _ boundary.Site, fn func(context.Context) error) error {
	return fn(ctx)
}

// Run processes inbound messages and timer callbacks until ctx is cancelled
// or inbound is closed.
func (s *Session) Run(ctx context.Context, inbound <-chan transport.Message) error {
	defer s.closeOnce.Do(func() { close(s.done) })
	defer s.stopTimers()

	s.logger.Info().Str("event", "session.loop_started").Str(log.FieldChannel, s.opts.MainChannel).Msg("session loop started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			s.Handle(ctx, msg)
		case fn := <-s.inbox:
			fn(ctx)
		}
	}
}

// Handle processes one inbound message. It must only be called from the
// goroutine running Run, or by tests that do not start Run.
func (s *Session) Handle(ctx context.Context, msg transport.Message) {
	source := s.deps.Users.Resolve(msg.RawSource, msg.Account)
	alias, args, ok := s.parse(msg)
	if !ok {
		return
	}
	s.deps.Router.Route(s.context(ctx), s, command.Message{
		Source:  source,
		Target:  msg.Target,
		Private: msg.Private,
		Alias:   alias,
		Args:    args,
	})
}

// parse splits a message into alias and arguments. Channel lines without the
// command prefix go to the catch-all; in private the prefix is optional.
func (s *Session) parse(msg transport.Message) (alias, args string, ok bool) {
	text := strings.TrimSpace(msg.Text)
	body, prefixed := strings.CutPrefix(text, s.opts.CommandPrefix)
	if !prefixed && !msg.Private {
		return command.CatchAll, text, true
	}
	alias, args, _ = strings.Cut(strings.TrimSpace(body), " ")
	if alias == "" {
		return "", "", false
	}
	return strings.ToLower(alias), strings.TrimSpace(args), true
}

func (s *Session) context(ctx context.Context) context.Context {
	if s.game != nil {
		return log.ContextWithSessionID(ctx, s.game.ID())
	}
	return log.ContextWithSessionID(ctx, s.pregame.ID())
}

// Phase implements command.State.
func (s *Session) Phase() string {
	if s.game == nil || !s.game.InGame() {
		return game.PhaseJoin
	}
	return s.game.Phase()
}

// IsPlaying implements command.State: in a game the caller must be alive and
// connected, before it the caller must have joined.
func (s *Session) IsPlaying(u *users.User) bool {
	if s.game != nil {
		return s.game.IsPlayer(u) && s.game.IsConnected(u)
	}
	return s.pregame.Has(u)
}

// HasRole implements command.State.
func (s *Session) HasRole(u *users.User, role string) bool {
	return s.game != nil && s.game.InGame() && s.game.HasRole(u, role)
}

// IsSilenced implements command.State.
func (s *Session) IsSilenced(u *users.User) bool {
	return s.game != nil && s.game.IsSilenced(u)
}

// Game returns the running game, or nil.
func (s *Session) Game() *game.Game { return s.game }

// Pregame returns the open roster, or nil while a game runs.
func (s *Session) Pregame() *game.Pregame { return s.pregame }

// Bus returns the event bus behaviors register on.
func (s *Session) Bus() *events.Bus { return s.deps.Bus }

// Router returns the command router behaviors register on.
func (s *Session) Router() *command.Router { return s.deps.Router }

// Catalog returns the message catalog.
func (s *Session) Catalog() *messages.Catalog { return s.deps.Catalog }

// Say sends text to the main channel.
func (s *Session) Say(ctx context.Context, text string) {
	s.send(ctx, s.opts.MainChannel, text)
}

// PM sends text privately to u.
func (s *Session) PM(ctx context.Context, u *users.User, text string) {
	s.send(ctx, u.Nick, text)
}

func (s *Session) send(ctx context.Context, target, text string) {
	if s.deps.Sender == nil {
		return
	}
	if err := s.deps.Sender.Send(ctx, target, text); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldChannel, target).Msg("send failed")
	}
}

// FindPlayer resolves nick against the living roster.
func (s *Session) FindPlayer(nick string) (*users.User, bool) {
	if s.game == nil {
		return nil, false
	}
	want := users.Fold(strings.TrimSpace(nick))
	for _, p := range s.game.Players() {
		if p.Key() == want {
			return p, true
		}
	}
	return nil, false
}

// ChangeRole moves u to role after new_role listeners had their say. It
// reports whether the change happened.
func (s *Session) ChangeRole(ctx context.Context, u *users.User, role string) bool {
	old, _ := s.game.MainRole(u)
	evt := s.deps.Bus.Dispatch(ctx, events.NewRole, events.Data{KeyRole: role}, NewRoleArgs{Player: u, OldRole: old})
	if evt.DefaultPrevented() {
		return false
	}
	if rewritten, ok := events.Value[string](evt, KeyRole); ok && rewritten != "" {
		role = rewritten
	}
	s.game.AssignRole(u, role)
	logger := log.WithContext(ctx, s.logger)
	logger.Info().
		Str("event", "session.role_changed").
		Str(log.FieldNick, u.Nick).
		Str(log.FieldRole, role).
		Str("old_role", old).
		Msg("role changed")
	return true
}

// schedule runs fn after seconds on the session goroutine, unless the phase
// changed in between. Non-positive durations disable the timer.
func (s *Session) schedule(name string, seconds int, fn func(ctx context.Context) error) {
	if seconds <= 0 {
		return
	}
	gen := s.gen
	t := time.AfterFunc(time.Duration(seconds)*time.Second, func() {
		s.post(func(ctx context.Context) {
			if s.gen != gen || s.game == nil {
				return
			}
			_ = s.deps.Guard.Guard(s.context(ctx), boundary.Site{
				Kind:   boundary.KindTimer,
				Name:   name,
				Locals: map[string]any{"phase": s.Phase(), "seconds": seconds},
			}, fn)
		})
	})
	s.timers = append(s.timers, t)
}

func (s *Session) post(fn func(context.Context)) {
	select {
	case s.inbox <- fn:
	case <-s.done:
	}
}

func (s *Session) stopTimers() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

// Register adds the core commands and the session's own listeners.
func (s *Session) Register() error {
	if _, err := s.deps.Bus.Register(events.ChkNightDone, 100, "session", s.onNightDone); err != nil {
		return err
	}
	return s.registerCommands()
}

func (s *Session) onNightDone(ctx context.Context, e *events.Event) {
	if s.game == nil || s.Phase() != game.PhaseNight || s.game.InPhaseTransition() {
		return
	}
	acted, _ := events.Value[int](e, KeyActed)
	expected, _ := events.Value[int](e, KeyExpected)
	if acted >= expected {
		s.endNight(ctx)
	}
}

var _ command.State = (*Session)(nil)
