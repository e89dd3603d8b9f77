// SPDX-License-Identifier: MIT

// Package command registers chat commands and routes each invocation through
// the ordered authorization chain.
package command

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/jesopo/lykos/internal/audit"
	"github.com/jesopo/lykos/internal/boundary"
	"github.com/jesopo/lykos/internal/errs"
	"github.com/jesopo/lykos/internal/events"
	"github.com/jesopo/lykos/internal/game"
	"github.com/jesopo/lykos/internal/log"
	"github.com/jesopo/lykos/internal/messages"
	"github.com/jesopo/lykos/internal/metrics"
	"github.com/jesopo/lykos/internal/telemetry"
	"github.com/jesopo/lykos/internal/users"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Sender delivers a line of chat text.
type Sender interface {
	Send(ctx context.Context, target, text string) error
}

// Guard runs a handler inside the failure boundary.
type Guard interface {
	Guard(ctx context.Context, site boundary.Site, fn func(context.Context) error) error
}

// Dispatcher is the part of the event bus the router uses.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, data events.Data, args any) *events.Event
}

// Options are the configuration lists that shape registrations.
type Options struct {
	MainChannel string
	DebugMode   bool
	// Disabled commands are never registered.
	Disabled []string
	// AltChannel commands may be used outside the main channel.
	AltChannel []string
	// OwnersOnly commands are forced owner-only.
	OwnersOnly []string
}

// Deps are the collaborators a Router calls into.
type Deps struct {
	Access  Access
	Audit   audit.Sink
	Sender  Sender
	Guard   Guard
	Bus     Dispatcher
	Catalog *messages.Catalog
}

// Router is the command registry.
type Router struct {
	mu       sync.RWMutex
	commands map[string][]*Command
	seq      uint64

	opts       Options
	disabled   map[string]struct{}
	altChannel map[string]struct{}
	ownersOnly map[string]struct{}

	deps   Deps
	tracer trace.Tracer
	logger zerolog.Logger
}

// New creates an empty router.
func New(opts Options, deps Deps) *Router {
	if deps.Catalog == nil {
		deps.Catalog = messages.Default()
	}
	if deps.Access == nil {
		deps.Access = noAccess{}
	}
	return &Router{
		commands:   make(map[string][]*Command),
		opts:       opts,
		disabled:   toSet(opts.Disabled),
		altChannel: toSet(opts.AltChannel),
		ownersOnly: toSet(opts.OwnersOnly),
		deps:       deps,
		tracer:     telemetry.Tracer("github.com/jesopo/lykos/internal/command"),
		logger:     log.WithComponent("command"),
	}
}

type noAccess struct{}

func (noAccess) IsOwner(*users.User) bool    { return false }
func (noAccess) IsAdmin(*users.User) bool    { return false }
func (noAccess) Flags(*users.User) string    { return "" }
func (noAccess) Denied(*users.User) []string { return nil }

func toSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[strings.ToLower(n)] = struct{}{}
	}
	return out
}

// Register adds a command under aliases; the first alias is its canonical
// name. Debug commands outside debug mode and disabled commands are skipped
// and return a nil command. Conflicting registrations are configuration
// errors and leave the registry unchanged.
func (r *Router) Register(aliases []string, spec Spec, h Handler) (*Command, error) {
	if len(aliases) == 0 {
		return nil, errs.Configuration("command registered without aliases")
	}
	if h == nil {
		return nil, errs.Configuration("command %q has no handler", aliases[0])
	}
	names := make([]string, len(aliases))
	for i, a := range aliases {
		names[i] = strings.ToLower(a)
	}

	if spec.Flag == FlagDebug && !r.opts.DebugMode {
		return nil, nil
	}
	cmd := &Command{Name: names[0], Aliases: names, Spec: spec, handler: h}
	if cmd.hasAlias(r.disabled) {
		r.logger.Info().Str(log.FieldCommand, cmd.Name).Msg("command disabled by configuration")
		return nil, nil
	}

	cmd.owner = spec.Owner || cmd.hasAlias(r.ownersOnly)
	cmd.altAllowed = spec.Flag != "" || cmd.owner || cmd.hasAlias(r.altChannel)
	if spec.Playing {
		cmd.owner = false
		cmd.altAllowed = false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, alias := range names {
		for _, other := range r.commands[alias] {
			if spec.Exclusive || other.Spec.Exclusive {
				return nil, errs.Configuration("exclusive command %q conflicts with %q on alias %q", cmd.Name, other.Name, alias)
			}
			if other.Spec.Owner != spec.Owner || other.Spec.Flag != spec.Flag {
				return nil, errs.Configuration("command %q disagrees with %q on owner or flag for alias %q", cmd.Name, other.Name, alias)
			}
		}
	}

	r.seq++
	cmd.seq = r.seq
	for _, alias := range names {
		r.commands[alias] = append(r.commands[alias], cmd)
	}

	r.logger.Debug().
		Str(log.FieldCommand, cmd.Name).
		Strs("aliases", names).
		Bool("owner", cmd.owner).
		Str("flag", spec.Flag).
		Msg("command registered")
	return cmd, nil
}

// MustRegister is Register for startup wiring, panicking on conflict.
func (r *Router) MustRegister(aliases []string, spec Spec, h Handler) *Command {
	cmd, err := r.Register(aliases, spec, h)
	if err != nil {
		panic(err)
	}
	return cmd
}

// Unregister removes cmd from every alias. Removing it twice is a no-op.
func (r *Router) Unregister(cmd *Command) {
	if cmd == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, alias := range cmd.Aliases {
		lst := slices.DeleteFunc(slices.Clone(r.commands[alias]), func(c *Command) bool { return c == cmd })
		if len(lst) == 0 {
			delete(r.commands, alias)
		} else {
			r.commands[alias] = lst
		}
	}
}

// Lookup returns the registrations under alias in registration order.
func (r *Router) Lookup(alias string) []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.commands[strings.ToLower(alias)])
}

// Aliases returns every registered alias except the catch-all.
func (r *Router) Aliases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.commands))
	for a := range r.commands {
		if a != CatchAll {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}

// Route authorizes msg against every registration under its alias and acts
// on each decision. It returns the decisions in registration order.
func (r *Router) Route(ctx context.Context, state State, msg Message) []Decision {
	msg.Alias = strings.ToLower(msg.Alias)
	snapshot := r.Lookup(msg.Alias)
	if len(snapshot) == 0 {
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "command.route",
		trace.WithAttributes(telemetry.CommandAttributes(msg.Alias, state.Phase(), len(snapshot))...))
	defer span.End()

	decisions := make([]Decision, 0, len(snapshot))
	for _, cmd := range snapshot {
		d := Authorize(cmd, msg, state, r.deps.Access, r.opts.MainChannel)
		metrics.IncCommandDecision(cmd.Name, d.Verdict.String(), string(d.Step))
		decisions = append(decisions, d)

		switch d.Verdict {
		case Reject:
			r.logger.Debug().
				Str(log.FieldCommand, cmd.Name).
				Str(log.FieldNick, msg.Source.Nick).
				Str(log.FieldStep, string(d.Step)).
				Msg("command rejected")
		case Notify:
			r.logger.Info().
				Str("event", "command.denied").
				Str(log.FieldCommand, cmd.Name).
				Str(log.FieldRawNick, msg.Source.RawNick()).
				Str(log.FieldStep, string(d.Step)).
				Msg("command refused")
			r.send(ctx, msg.Source.Nick, r.deps.Catalog.Get(d.Notice))
		case Execute:
			r.execute(ctx, state, msg, d)
		}
	}
	span.SetAttributes(attribute.Int(telemetry.CommandRoutesKey, len(decisions)))
	return decisions
}

func (r *Router) execute(ctx context.Context, state State, msg Message, d Decision) {
	cmd := d.Command
	ctx = log.ContextWithCommand(ctx, cmd.Name)
	inv := &Invocation{Message: msg, Command: cmd, router: r}

	site := boundary.Site{
		Kind: boundary.KindCommand,
		Name: cmd.Name,
		Locals: map[string]any{
			"alias": msg.Alias,
			"args":  msg.Args,
			"nick":  msg.Source.Nick,
		},
	}
	call := func(ctx context.Context) error {
		if d.Audit && r.deps.Audit != nil {
			if err := r.deps.Audit.Append(ctx, msg.Target, msg.Source.RawNick(), cmd.Name, msg.Args); err != nil {
				return err
			}
		}
		if err := cmd.handler(ctx, inv); err != nil {
			return err
		}
		if d.NightCheck && r.deps.Bus != nil && state.Phase() == game.PhaseNight {
			r.deps.Bus.Dispatch(ctx, events.ChkNightDone, nil, nil)
		}
		return nil
	}

	if r.deps.Guard == nil {
		if err := call(ctx); err != nil {
			r.logger.Error().Err(err).Str(log.FieldCommand, cmd.Name).Msg("command failed")
		}
		return
	}
	if err := r.deps.Guard.Guard(ctx, site, call); err != nil {
		r.logger.Warn().
			Str(log.FieldCommand, cmd.Name).
			Str(log.FieldNick, msg.Source.Nick).
			Msg("command handler failed")
	}
}

func (r *Router) send(ctx context.Context, target, text string) {
	if r.deps.Sender == nil || text == "" {
		return
	}
	if err := r.deps.Sender.Send(ctx, target, text); err != nil {
		r.logger.Warn().Err(err).Str(log.FieldChannel, target).Msg("send failed")
	}
}
