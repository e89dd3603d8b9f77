// SPDX-License-Identifier: MIT

// Package game owns the authoritative state of one session: the pregame
// roster and, once a mode is selected and the game starts, role assignments,
// the frozen post-setup snapshot, phase counters and per-session settings.
//
// Lifecycle calls made out of order panic with an errs.CodeUsage error; they
// indicate a defect in the caller and are never recovered.
package game

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jesopo/lykos/internal/errs"
	"github.com/jesopo/lykos/internal/modes"
	"github.com/jesopo/lykos/internal/users"
)

// Phase names.
const (
	PhaseJoin  = "join"
	PhaseDay   = "day"
	PhaseNight = "night"
)

// Pregame is the roster-forming state before a game starts.
type Pregame struct {
	id      string
	started time.Time
	players *users.Set
	mode    modes.Mode
}

// NewPregame opens a new roster. The session ID is a UUIDv7, so IDs sort by
// creation time.
func NewPregame() *Pregame {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Pregame{id: id.String(), started: time.Now(), players: users.NewSet()}
}

// ID returns the session identifier.
func (p *Pregame) ID() string { return p.id }

// Started returns when the roster opened.
func (p *Pregame) Started() time.Time { return p.started }

// Phase is always "join" before the game starts.
func (p *Pregame) Phase() string { return PhaseJoin }

// Join adds u to the roster and reports whether it was new.
func (p *Pregame) Join(u *users.User) bool { return p.players.Add(u) }

// Leave removes u from the roster and reports whether it was present.
func (p *Pregame) Leave(u *users.User) bool { return p.players.Remove(u) }

// Has reports whether u is on the roster.
func (p *Pregame) Has(u *users.User) bool { return p.players.Has(u) }

// Len returns the roster size.
func (p *Pregame) Len() int { return p.players.Len() }

// Players returns the roster in join order.
func (p *Pregame) Players() []*users.User { return p.players.Slice() }

// Mode returns the selected mode, or nil.
func (p *Pregame) Mode() modes.Mode { return p.mode }

// SelectMode resolves arg ("name" or "name=args") against reg, builds the
// mode and runs its startup hook. On any error the pregame is unchanged.
func (p *Pregame) SelectMode(ctx context.Context, reg *modes.Registry, arg string) error {
	name, rest, hasArgs := strings.Cut(arg, "=")
	name = strings.ToLower(strings.TrimSpace(name))

	factory, ok := reg.Lookup(name)
	if !ok {
		return &errs.Error{
			Code:     errs.CodeModeNotFound,
			Message:  "game mode not found: " + name,
			Metadata: map[string]string{"mode": name},
		}
	}

	var args []string
	if hasArgs {
		args = append(args, strings.TrimSpace(rest))
	}
	m, err := factory(args...)
	if err != nil {
		if errs.HasCode(err, errs.CodeInvalidMode) {
			return err
		}
		return errs.Wrap(errs.CodeInvalidMode, "Invalid mode", err)
	}
	if err := m.Startup(ctx); err != nil {
		return errs.Wrap(errs.CodeInvalidMode, "Invalid mode: startup failed", err)
	}
	p.mode = m
	return nil
}
