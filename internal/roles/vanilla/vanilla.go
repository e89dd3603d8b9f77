// SPDX-License-Identifier: MIT

// Package vanilla provides the villager and wolf roles: role metadata, the
// wolves' night kill and the basic win condition.
package vanilla

import (
	"context"
	"slices"

	"github.com/jesopo/lykos/internal/command"
	"github.com/jesopo/lykos/internal/events"
	"github.com/jesopo/lykos/internal/game"
	"github.com/jesopo/lykos/internal/session"
	"github.com/jesopo/lykos/internal/users"
)

const (
	Villager = "villager"
	Wolf     = "wolf"

	TeamVillagers = "villagers"
	TeamWolves    = "wolves"
)

const owner = "vanilla"

// Behavior holds the wolves' choices for the current night.
type Behavior struct {
	s       *session.Session
	targets map[*users.User]*users.User
}

// Register wires the roles into s's bus and router.
func Register(s *session.Session) (*Behavior, error) {
	b := &Behavior{s: s, targets: make(map[*users.User]*users.User)}

	listeners := []struct {
		name     string
		priority int
		fn       events.Listener
	}{
		{events.SendRole, events.DefaultPriority, b.onSendRole},
		{events.TransitionNightBegin, events.DefaultPriority, b.onReset},
		{events.Reset, events.DefaultPriority, b.onReset},
		{events.DelPlayer, events.DefaultPriority, b.onDelPlayer},
		{events.NewRole, events.DefaultPriority, b.onNewRole},
		{events.NightKills, events.DefaultPriority, b.onNightKills},
		{events.ChkNightDone, events.DefaultPriority, b.onChkNightDone},
		{events.ChkWin, events.DefaultPriority, b.onChkWin},
		{events.GetRoleMetadata, events.DefaultPriority, b.onRoleMetadata},
	}
	for _, l := range listeners {
		if _, err := s.Bus().Register(l.name, l.priority, owner, l.fn); err != nil {
			return nil, err
		}
	}

	if _, err := s.Router().Register([]string{"kill"}, command.Spec{
		PM:       true,
		Playing:  true,
		Silenced: true,
		Phases:   []string{game.PhaseNight},
		Roles:    []string{Wolf},
	}, b.cmdKill); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Behavior) cmdKill(ctx context.Context, inv *command.Invocation) error {
	cat := b.s.Catalog()
	fields := inv.Fields()
	if len(fields) == 0 {
		inv.Notice(ctx, cat.Get("no_target"))
		return nil
	}
	target, ok := b.s.FindPlayer(fields[0])
	if !ok {
		inv.Notice(ctx, cat.Format("not_a_player", fields[0]))
		return nil
	}
	if target == inv.Source {
		inv.Notice(ctx, cat.Get("no_kill_self"))
		return nil
	}
	if b.s.Game().HasRole(target, Wolf) {
		inv.Notice(ctx, cat.Get("no_kill_wolf"))
		return nil
	}
	b.targets[inv.Source] = target
	inv.Notice(ctx, cat.Format("wolf_kill_chosen", target.Nick))
	return nil
}

func (b *Behavior) onSendRole(ctx context.Context, _ *events.Event) {
	g := b.s.Game()
	cat := b.s.Catalog()
	players := g.Players()
	for _, wolf := range g.RoleMembers(Wolf) {
		b.s.PM(ctx, wolf, cat.Get("wolf_notify"))
		b.s.PM(ctx, wolf, cat.Format("players_list", nicksExcept(players, wolf)))
	}
	for _, v := range g.RoleMembers(Villager) {
		b.s.PM(ctx, v, cat.Format("your_role", Villager))
	}
}

func (b *Behavior) onReset(context.Context, *events.Event) {
	clear(b.targets)
}

func (b *Behavior) onDelPlayer(_ context.Context, e *events.Event) {
	args, ok := events.ArgsAs[session.DelPlayerArgs](e)
	if !ok {
		return
	}
	b.forget(args.Player)
}

func (b *Behavior) onNewRole(_ context.Context, e *events.Event) {
	args, ok := events.ArgsAs[session.NewRoleArgs](e)
	if !ok {
		return
	}
	if role, _ := events.Value[string](e, session.KeyRole); args.OldRole == Wolf && role != Wolf {
		delete(b.targets, args.Player)
	}
}

func (b *Behavior) forget(u *users.User) {
	delete(b.targets, u)
	for wolf, target := range b.targets {
		if target == u {
			delete(b.targets, wolf)
		}
	}
}

// onNightKills adds the wolves' victim: the most chosen target, ties going
// to whoever joined first.
func (b *Behavior) onNightKills(_ context.Context, e *events.Event) {
	if len(b.targets) == 0 {
		return
	}
	tally := make(map[*users.User]int)
	for _, target := range b.targets {
		tally[target]++
	}
	var victim *users.User
	for _, p := range b.s.Game().Players() {
		if tally[p] > tally[victim] {
			victim = p
		}
	}
	if victim == nil {
		return
	}
	victims, _ := events.Value[[]*users.User](e, session.KeyVictims)
	e.Data[session.KeyVictims] = append(victims, victim)
}

// onChkNightDone counts the wolves as one actor that is done once every
// living wolf chose.
func (b *Behavior) onChkNightDone(_ context.Context, e *events.Event) {
	wolves := b.s.Game().RoleMembers(Wolf)
	if len(wolves) == 0 {
		return
	}
	expected, _ := events.Value[int](e, session.KeyExpected)
	e.Data[session.KeyExpected] = expected + 1

	for _, w := range wolves {
		if _, ok := b.targets[w]; !ok {
			return
		}
	}
	acted, _ := events.Value[int](e, session.KeyActed)
	e.Data[session.KeyActed] = acted + 1
}

func (b *Behavior) onChkWin(_ context.Context, e *events.Event) {
	if winner, _ := events.Value[string](e, session.KeyWinner); winner != "" {
		return
	}
	g := b.s.Game()
	wolves := len(g.RoleMembers(Wolf))
	others := len(g.Players()) - wolves
	switch {
	case wolves == 0:
		e.Data[session.KeyWinner] = TeamVillagers
	case wolves >= others:
		e.Data[session.KeyWinner] = TeamWolves
	}
}

func (b *Behavior) onRoleMetadata(_ context.Context, e *events.Event) {
	args, ok := events.ArgsAs[session.MetadataArgs](e)
	if !ok || args.Kind != session.MetadataRoleCategories {
		return
	}
	e.Data[Villager] = []string{"Village", "Safe"}
	e.Data[Wolf] = []string{"Wolf", "Wolfteam", "Killer", "Nocturnal"}
}

func nicksExcept(players []*users.User, skip *users.User) string {
	rest := slices.DeleteFunc(slices.Clone(players), func(u *users.User) bool { return u == skip })
	out := ""
	for i, u := range rest {
		if i > 0 {
			out += ", "
		}
		out += u.Nick
	}
	return out
}
