// SPDX-License-Identifier: MIT

package game

import (
	"context"
	"sort"
	"time"

	"github.com/jesopo/lykos/internal/config"
	"github.com/jesopo/lykos/internal/errs"
	"github.com/jesopo/lykos/internal/fsm"
	"github.com/jesopo/lykos/internal/log"
	"github.com/jesopo/lykos/internal/modes"
	"github.com/jesopo/lykos/internal/users"
	"github.com/rs/zerolog"
)

// State is the lifecycle state of a Game.
type State string

const (
	StateCreated  State = "created"
	StateSetup    State = "setup"
	StateInGame   State = "ingame"
	StateTornDown State = "torndown"
)

type lifecycleEvent string

const (
	evBeginSetup  lifecycleEvent = "begin_setup"
	evFinishSetup lifecycleEvent = "finish_setup"
	evTeardown    lifecycleEvent = "teardown"
)

var lifecycle = []fsm.Transition[State, lifecycleEvent]{
	{From: StateCreated, Event: evBeginSetup, To: StateSetup},
	{From: StateSetup, Event: evFinishSetup, To: StateInGame},
	{From: StateCreated, Event: evTeardown, To: StateTornDown},
	{From: StateSetup, Event: evTeardown, To: StateTornDown},
	{From: StateInGame, Event: evTeardown, To: StateTornDown},
}

// RoleCount is one role statistics entry: role name to player count.
type RoleCount map[string]int

// Game is the in-session state created from a Pregame.
type Game struct {
	id      string
	started time.Time
	mode    modes.Mode
	cfg     config.Reader
	machine *fsm.Machine[State, lifecycleEvent]
	logger  zerolog.Logger

	players      *users.Set
	roles        map[string]*users.Set
	mainRoles    map[*users.User]string
	finalRoles   map[*users.User]string
	silenced     *users.Set
	disconnected *users.Set

	originalRoles     map[string]*users.Set
	originalMainRoles map[*users.User]string

	overrides modes.Settings
	roleStats []RoleCount

	phase     string
	nextPhase string
	counters  map[string]int
}

// New creates a game from p. cfg is the last tier of setting resolution.
// p must have a selected mode.
func New(p *Pregame, cfg config.Reader) *Game {
	if p.mode == nil {
		panic(errs.Usage("game: no mode selected"))
	}
	return &Game{
		id:           p.id,
		started:      p.started,
		mode:         p.mode,
		cfg:          cfg,
		machine:      fsm.MustNew(StateCreated, lifecycle),
		logger:       log.WithComponent("game").With().Str(log.FieldSessionID, p.id).Logger(),
		players:      p.players.Clone(),
		roles:        make(map[string]*users.Set),
		mainRoles:    make(map[*users.User]string),
		finalRoles:   make(map[*users.User]string),
		silenced:     users.NewSet(),
		disconnected: users.NewSet(),
		overrides:    make(modes.Settings),
		phase:        PhaseJoin,
		counters:     make(map[string]int),
	}
}

func (g *Game) fire(ev lifecycleEvent) {
	from := g.machine.State()
	to, err := g.machine.Fire(ev)
	if err != nil {
		panic(errs.Usage("game: %v", err))
	}
	g.logger.Debug().
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(to)).
		Msg("lifecycle transition")
}

func (g *Game) mustBeAlive() {
	if g.machine.State() == StateTornDown {
		panic(errs.Usage("game: state is no longer valid"))
	}
}

func (g *Game) mustHaveBegunSetup() {
	switch g.machine.State() {
	case StateCreated:
		panic(errs.Usage("game: setup has not begun"))
	case StateTornDown:
		panic(errs.Usage("game: state is no longer valid"))
	}
}

func (g *Game) mustHaveFinishedSetup() {
	switch g.machine.State() {
	case StateCreated, StateSetup:
		panic(errs.Usage("game: setup has not finished"))
	case StateTornDown:
		panic(errs.Usage("game: state is no longer valid"))
	}
}

// ID returns the session identifier.
func (g *Game) ID() string { return g.id }

// Started returns when the session's roster opened.
func (g *Game) Started() time.Time { return g.started }

// State returns the lifecycle state.
func (g *Game) State() State { return g.machine.State() }

// InGame reports whether setup finished and teardown has not happened.
func (g *Game) InGame() bool { return g.machine.State() == StateInGame }

// Mode returns the active mode.
func (g *Game) Mode() modes.Mode {
	g.mustBeAlive()
	return g.mode
}

// BeginSetup creates an empty membership set for every role name. It may be
// called exactly once.
func (g *Game) BeginSetup(roleNames []string) {
	g.fire(evBeginSetup)
	for _, name := range roleNames {
		if _, ok := g.roles[name]; !ok {
			g.roles[name] = users.NewSet()
		}
	}
	g.logger.Info().Str("event", "game.setup_started").Int(log.FieldPlayers, g.players.Len()).Msg("game setup started")
}

// FinishSetup freezes the original role tables. It must follow BeginSetup
// and may be called exactly once.
func (g *Game) FinishSetup() {
	g.fire(evFinishSetup)
	g.originalRoles = make(map[string]*users.Set, len(g.roles))
	for name, set := range g.roles {
		g.originalRoles[name] = set.Clone()
	}
	g.originalMainRoles = make(map[*users.User]string, len(g.mainRoles))
	for u, role := range g.mainRoles {
		g.originalMainRoles[u] = role
	}
	g.logger.Info().Str("event", "game.setup_finished").Str(log.FieldMode, g.mode.Name()).Msg("game setup finished")
}

// Teardown clears role data and statistics, runs the mode's teardown hook and
// invalidates the game. It may be called exactly once.
func (g *Game) Teardown(ctx context.Context) {
	g.fire(evTeardown)
	for _, set := range g.roles {
		set.Clear()
	}
	g.roles = nil
	g.originalRoles = nil
	g.originalMainRoles = nil
	g.roleStats = nil
	g.mode.Teardown(ctx)
	logger := log.WithContext(ctx, g.logger)
	logger.Info().Str("event", "game.torndown").Msg("game torn down")
}

// Players returns the living roster in join order.
func (g *Game) Players() []*users.User {
	g.mustBeAlive()
	return g.players.Slice()
}

// IsPlayer reports whether u is in the living roster.
func (g *Game) IsPlayer(u *users.User) bool {
	g.mustBeAlive()
	return g.players.Has(u)
}

// RemovePlayer takes u out of the roster and every role set, recording its
// main role as final. The frozen snapshot is not touched.
func (g *Game) RemovePlayer(u *users.User) bool {
	g.mustBeAlive()
	if !g.players.Remove(u) {
		return false
	}
	if role, ok := g.mainRoles[u]; ok {
		if _, set := g.finalRoles[u]; !set {
			g.finalRoles[u] = role
		}
		delete(g.mainRoles, u)
	}
	for _, set := range g.roles {
		set.Remove(u)
	}
	g.silenced.Remove(u)
	g.disconnected.Remove(u)
	return true
}

// RoleNames lists the roles known to this game.
func (g *Game) RoleNames() []string {
	g.mustHaveBegunSetup()
	out := make([]string, 0, len(g.roles))
	for name := range g.roles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AssignRole makes role the main role of u, moving u out of its previous
// main role set.
func (g *Game) AssignRole(u *users.User, role string) {
	g.mustHaveBegunSetup()
	if prev, ok := g.mainRoles[u]; ok && prev != role {
		if set, ok := g.roles[prev]; ok {
			set.Remove(u)
		}
	}
	g.mainRoles[u] = role
	g.roleSet(role).Add(u)
}

// AddRole adds u to a secondary role set without changing its main role.
func (g *Game) AddRole(u *users.User, role string) {
	g.mustHaveBegunSetup()
	g.roleSet(role).Add(u)
}

// RemoveRole removes u from a role set.
func (g *Game) RemoveRole(u *users.User, role string) {
	g.mustHaveBegunSetup()
	if set, ok := g.roles[role]; ok {
		set.Remove(u)
	}
}

func (g *Game) roleSet(role string) *users.Set {
	set, ok := g.roles[role]
	if !ok {
		set = users.NewSet()
		g.roles[role] = set
	}
	return set
}

// HasRole reports whether u is in the live set for role.
func (g *Game) HasRole(u *users.User, role string) bool {
	g.mustBeAlive()
	return g.roles[role].Has(u)
}

// RoleMembers returns the live members of role.
func (g *Game) RoleMembers(role string) []*users.User {
	g.mustBeAlive()
	return g.roles[role].Slice()
}

// MainRole returns the main role of u.
func (g *Game) MainRole(u *users.User) (string, bool) {
	g.mustBeAlive()
	role, ok := g.mainRoles[u]
	return role, ok
}

// OriginalRoles returns a copy of the role tables frozen at FinishSetup.
func (g *Game) OriginalRoles() map[string][]*users.User {
	g.mustHaveFinishedSetup()
	out := make(map[string][]*users.User, len(g.originalRoles))
	for name, set := range g.originalRoles {
		out[name] = set.Slice()
	}
	return out
}

// OriginalMainRoles returns a copy of the main roles frozen at FinishSetup.
func (g *Game) OriginalMainRoles() map[*users.User]string {
	g.mustHaveFinishedSetup()
	out := make(map[*users.User]string, len(g.originalMainRoles))
	for u, role := range g.originalMainRoles {
		out[u] = role
	}
	return out
}

// SetFinalRole records the role u ended the game with.
func (g *Game) SetFinalRole(u *users.User, role string) {
	g.mustBeAlive()
	g.finalRoles[u] = role
}

// FinalRole returns the recorded final role of u, falling back to its
// current main role.
func (g *Game) FinalRole(u *users.User) (string, bool) {
	g.mustBeAlive()
	if role, ok := g.finalRoles[u]; ok {
		return role, true
	}
	role, ok := g.mainRoles[u]
	return role, ok
}

// Silence marks u as silenced.
func (g *Game) Silence(u *users.User) {
	g.mustBeAlive()
	g.silenced.Add(u)
}

// Unsilence clears the silenced mark on u.
func (g *Game) Unsilence(u *users.User) {
	g.mustBeAlive()
	g.silenced.Remove(u)
}

// IsSilenced reports whether u is silenced.
func (g *Game) IsSilenced(u *users.User) bool {
	g.mustBeAlive()
	return g.silenced.Has(u)
}

// ClearSilenced unsilences everyone.
func (g *Game) ClearSilenced() {
	g.mustBeAlive()
	g.silenced.Clear()
}

// SetConnected records whether u is currently connected.
func (g *Game) SetConnected(u *users.User, connected bool) {
	g.mustBeAlive()
	if connected {
		g.disconnected.Remove(u)
	} else {
		g.disconnected.Add(u)
	}
}

// IsConnected reports whether u is connected.
func (g *Game) IsConnected(u *users.User) bool {
	g.mustBeAlive()
	return !g.disconnected.Has(u)
}

// Phase returns the current phase.
func (g *Game) Phase() string {
	g.mustBeAlive()
	return g.phase
}

// NextPhase returns the phase being transitioned to, or "".
func (g *Game) NextPhase() string {
	g.mustBeAlive()
	return g.nextPhase
}

// InPhaseTransition reports whether a transition has begun but not ended.
func (g *Game) InPhaseTransition() bool {
	g.mustBeAlive()
	return g.nextPhase != ""
}

// BeginPhaseTransition starts moving to next. A transition must not already
// be in progress.
func (g *Game) BeginPhaseTransition(next string) {
	g.mustBeAlive()
	if next == "" {
		panic(errs.Usage("game: empty phase name"))
	}
	if g.nextPhase != "" {
		panic(errs.Usage("game: already in phase transition to %q", g.nextPhase))
	}
	g.nextPhase = next
}

// EndPhaseTransition commits the pending phase and increments its counter.
func (g *Game) EndPhaseTransition() {
	g.mustBeAlive()
	if g.nextPhase == "" {
		panic(errs.Usage("game: not in phase transition"))
	}
	g.counters[g.nextPhase]++
	g.logger.Debug().
		Str(log.FieldPhase, g.phase).
		Str(log.FieldNextPhase, g.nextPhase).
		Int("count", g.counters[g.nextPhase]).
		Msg("phase transition")
	g.phase = g.nextPhase
	g.nextPhase = ""
}

// Count returns how many times phase has been entered.
func (g *Game) Count(phase string) int {
	g.mustBeAlive()
	return g.counters[phase]
}

// SetOverride stores a per-session value for a tunable.
func (g *Game) SetOverride(key string, value any) {
	g.mustHaveBegunSetup()
	g.overrides[key] = value
}

// RoleStats returns a copy of the role statistics.
func (g *Game) RoleStats() []RoleCount {
	g.mustBeAlive()
	out := make([]RoleCount, 0, len(g.roleStats))
	for _, rc := range g.roleStats {
		cp := make(RoleCount, len(rc))
		for k, v := range rc {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out
}

// SetRoleStats replaces the role statistics.
func (g *Game) SetRoleStats(stats []RoleCount) {
	g.mustBeAlive()
	g.roleStats = g.roleStats[:0]
	for _, rc := range stats {
		cp := make(RoleCount, len(rc))
		for k, v := range rc {
			cp[k] = v
		}
		g.roleStats = append(g.roleStats, cp)
	}
}
