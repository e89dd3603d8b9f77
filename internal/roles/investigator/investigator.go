// SPDX-License-Identifier: MIT

// Package investigator provides the investigator role: once per day it may
// compare two players' teams with the "id" command.
package investigator

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/jesopo/lykos/internal/command"
	"github.com/jesopo/lykos/internal/events"
	"github.com/jesopo/lykos/internal/game"
	"github.com/jesopo/lykos/internal/session"
	"github.com/jesopo/lykos/internal/users"
)

// Role is the role name.
const Role = "investigator"

const owner = "investigator"

// Team colours reported by an investigation.
const (
	teamRed  = "red"
	teamGrey = "grey"
	teamBlue = "blue"
)

// Behavior tracks who already investigated today.
type Behavior struct {
	s            *session.Session
	investigated *users.Set
}

// Register wires the role into s's bus and router.
func Register(s *session.Session) (*Behavior, error) {
	b := &Behavior{s: s, investigated: users.NewSet()}

	if _, err := s.Router().Register([]string{"id"}, command.Spec{
		PM:       true,
		Playing:  true,
		Silenced: true,
		Phases:   []string{game.PhaseDay},
		Roles:    []string{Role},
	}, b.cmdInvestigate); err != nil {
		return nil, err
	}

	listeners := map[string]events.Listener{
		events.DelPlayer:            b.onDelPlayer,
		events.NewRole:              b.onNewRole,
		events.SendRole:             b.onSendRole,
		events.TransitionNightBegin: b.onClear,
		events.Reset:                b.onClear,
		events.GetRoleMetadata:      b.onRoleMetadata,
	}
	for _, name := range []string{
		events.DelPlayer, events.NewRole, events.SendRole,
		events.TransitionNightBegin, events.Reset, events.GetRoleMetadata,
	} {
		if _, err := s.Bus().Register(name, events.DefaultPriority, owner, listeners[name]); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Investigated reports whether u used its investigation today.
func (b *Behavior) Investigated(u *users.User) bool {
	return b.investigated.Has(u)
}

func (b *Behavior) cmdInvestigate(ctx context.Context, inv *command.Invocation) error {
	cat := b.s.Catalog()
	if b.investigated.Has(inv.Source) {
		inv.Notice(ctx, cat.Get("already_investigated"))
		return nil
	}
	pieces := inv.Fields()
	if len(pieces) < 2 {
		inv.Notice(ctx, cat.Get("investigator_help"))
		return nil
	}
	target1, ok := b.target(ctx, inv, pieces[0])
	if !ok {
		return nil
	}
	target2, ok := b.target(ctx, inv, pieces[1])
	if !ok {
		return nil
	}
	if target1 == target2 {
		inv.Notice(ctx, cat.Get("investigator_help"))
		return nil
	}

	g := b.s.Game()
	role1, _ := g.MainRole(target1)
	role2, _ := g.MainRole(target2)
	role1 = b.seenRole(ctx, inv.Source, target1, role1)
	role2 = b.seenRole(ctx, inv.Source, target2, role2)

	categories := b.categories(ctx)
	same := team(categories[role1]) == team(categories[role2])

	evt := b.s.Bus().Dispatch(ctx, events.GetTeamAffiliation, events.Data{session.KeySame: same},
		session.TeamArgs{First: target1, Second: target2})
	same, _ = events.Value[bool](evt, session.KeySame)

	if same {
		inv.Notice(ctx, cat.Format("investigator_results_same", target1.Nick, target2.Nick))
	} else {
		inv.Notice(ctx, cat.Format("investigator_results_different", target1.Nick, target2.Nick))
	}
	b.investigated.Add(inv.Source)
	return nil
}

func (b *Behavior) target(ctx context.Context, inv *command.Invocation, nick string) (*users.User, bool) {
	cat := b.s.Catalog()
	u, ok := b.s.FindPlayer(nick)
	if !ok {
		inv.Notice(ctx, cat.Format("not_a_player", nick))
		return nil, false
	}
	if u == inv.Source {
		inv.Notice(ctx, cat.Get("no_investigate_self"))
		return nil, false
	}
	return u, true
}

// seenRole lets investigate listeners change what the actor learns.
func (b *Behavior) seenRole(ctx context.Context, actor, target *users.User, role string) string {
	evt := b.s.Bus().Dispatch(ctx, events.Investigate, events.Data{session.KeyRole: role},
		session.InvestigateArgs{Actor: actor, Target: target})
	if seen, ok := events.Value[string](evt, session.KeyRole); ok {
		return seen
	}
	return role
}

func (b *Behavior) categories(ctx context.Context) map[string][]string {
	evt := b.s.Bus().Dispatch(ctx, events.GetRoleMetadata, nil, session.MetadataArgs{Kind: session.MetadataRoleCategories})
	out := make(map[string][]string, len(evt.Data))
	for role, v := range evt.Data {
		if cats, ok := v.([]string); ok {
			out[role] = cats
		}
	}
	return out
}

func team(categories []string) string {
	switch {
	case slices.Contains(categories, "Wolfteam"):
		return teamRed
	case slices.Contains(categories, "Neutral"):
		return teamGrey
	default:
		return teamBlue
	}
}

func (b *Behavior) onDelPlayer(_ context.Context, e *events.Event) {
	if args, ok := events.ArgsAs[session.DelPlayerArgs](e); ok {
		b.investigated.Remove(args.Player)
	}
}

func (b *Behavior) onNewRole(_ context.Context, e *events.Event) {
	args, ok := events.ArgsAs[session.NewRoleArgs](e)
	if !ok {
		return
	}
	if role, _ := events.Value[string](e, session.KeyRole); args.OldRole == Role && role != Role {
		b.investigated.Remove(args.Player)
	}
}

func (b *Behavior) onSendRole(ctx context.Context, _ *events.Event) {
	g := b.s.Game()
	cat := b.s.Catalog()
	players := g.Players()
	for _, inv := range g.RoleMembers(Role) {
		others := slices.DeleteFunc(slices.Clone(players), func(u *users.User) bool { return u == inv })
		rand.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })
		nicks := make([]string, len(others))
		for i, u := range others {
			nicks[i] = u.Nick
		}
		b.s.PM(ctx, inv, cat.Get("investigator_notify"))
		b.s.PM(ctx, inv, cat.Format("players_list", strings.Join(nicks, ", ")))
	}
}

func (b *Behavior) onClear(context.Context, *events.Event) {
	b.investigated.Clear()
}

func (b *Behavior) onRoleMetadata(_ context.Context, e *events.Event) {
	if args, ok := events.ArgsAs[session.MetadataArgs](e); ok && args.Kind == session.MetadataRoleCategories {
		e.Data[Role] = []string{"Village", "Spy", "Safe"}
	}
}
