// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/jesopo/lykos/internal/events"
	"github.com/jesopo/lykos/internal/game"
	"github.com/jesopo/lykos/internal/log"
	"github.com/jesopo/lykos/internal/metrics"
	"github.com/jesopo/lykos/internal/users"
)

// shortDayPlayers is the roster size at or below which days use the short
// day timers.
const shortDayPlayers = 6

// startGame turns the pregame into a game: it resolves the mode, deals the
// roles, freezes the snapshot and enters the first phase.
func (s *Session) startGame(ctx context.Context, starter *users.User, forced bool) {
	cat := s.deps.Catalog
	if s.game != nil {
		s.PM(ctx, starter, cat.Get("game_already_running"))
		return
	}
	n := s.pregame.Len()
	if n < s.opts.MinPlayers {
		s.Say(ctx, cat.Format("not_enough_players", s.opts.MinPlayers))
		return
	}
	if s.pregame.Mode() == nil {
		if err := s.pregame.SelectMode(ctx, s.deps.Modes, s.opts.DefaultMode); err != nil {
			s.Say(ctx, modeErrorText(cat, err))
			return
		}
	}
	mode := s.pregame.Mode()
	counts, err := mode.RoleCounts(n)
	if err != nil {
		s.Say(ctx, cat.Format("invalid_mode", err.Error()))
		return
	}

	g := game.New(s.pregame, s.deps.Config)
	roleNames := make([]string, 0, len(counts))
	for role := range counts {
		roleNames = append(roleNames, role)
	}
	sort.Strings(roleNames)
	g.BeginSetup(roleNames)

	defaultRole := game.DefaultRole.Get(g)
	players := g.Players()
	rand.Shuffle(len(players), func(i, j int) { players[i], players[j] = players[j], players[i] })

	stats := game.RoleCount{}
	i := 0
	for _, role := range roleNames {
		for k := 0; k < counts[role]; k++ {
			g.AssignRole(players[i], role)
			i++
		}
		stats[role] = counts[role]
	}
	for ; i < len(players); i++ {
		g.AssignRole(players[i], defaultRole)
		stats[defaultRole]++
	}
	g.SetRoleStats([]game.RoleCount{stats})
	g.FinishSetup()

	s.game = g
	s.pregame = nil
	s.votes = make(map[*users.User]*users.User)
	ctx = s.context(ctx)

	metrics.IncSession("started")
	metrics.SetPlayers(n)
	logger := log.WithContext(ctx, s.logger)
	logger.Info().
		Str("event", "session.started").
		Str(log.FieldMode, mode.Name()).
		Int(log.FieldPlayers, n).
		Bool("forced", forced).
		Str(log.FieldNick, starter.Nick).
		Msg("game started")

	s.Say(ctx, cat.Format("game_started", mode.Name(), nickList(g.Players())))
	s.deps.Bus.Dispatch(ctx, events.SendRole, nil, nil)

	if game.StartWithDay.Get(g) {
		s.beginDay(ctx)
	} else {
		s.beginNight(ctx)
	}
}

// advance moves the game into next, dispatching the phase's begin event
// while the transition is open. The transition is closed even when the
// dispatch unwinds.
func (s *Session) advance(ctx context.Context, next string) {
	s.gen++
	s.stopTimers()
	g := s.game
	g.BeginPhaseTransition(next)
	defer func() {
		if g.State() != game.StateTornDown && g.InPhaseTransition() {
			g.EndPhaseTransition()
			metrics.IncPhaseTransition(next)
		}
	}()
	s.deps.Bus.Dispatch(ctx, "transition_"+next+"_begin", nil, nil)
}

func (s *Session) beginNight(ctx context.Context) {
	cat := s.deps.Catalog
	s.advance(ctx, game.PhaseNight)
	if s.game == nil {
		return
	}
	s.votes = make(map[*users.User]*users.User)
	s.Say(ctx, cat.Get("night_begins"))

	s.schedule("night_warn", game.NightTimeWarn.Get(s.game), func(ctx context.Context) error {
		s.Say(ctx, cat.Get("night_time_warn"))
		return nil
	})
	s.schedule("night_limit", game.NightTimeLimit.Get(s.game), func(ctx context.Context) error {
		s.Say(ctx, cat.Get("night_time_limit"))
		s.endNight(ctx)
		return nil
	})
}

func (s *Session) beginDay(ctx context.Context) {
	cat := s.deps.Catalog
	s.advance(ctx, game.PhaseDay)
	if s.game == nil {
		return
	}
	s.votes = make(map[*users.User]*users.User)
	s.Say(ctx, cat.Format("day_begins", s.game.Count(game.PhaseDay)))

	limit, warn := game.DayTimeLimit, game.DayTimeWarn
	if len(s.game.Players()) <= shortDayPlayers {
		limit, warn = game.ShortDayTimeLimit, game.ShortDayTimeWarn
	}
	s.schedule("day_warn", warn.Get(s.game), func(ctx context.Context) error {
		s.Say(ctx, cat.Get("day_time_warn"))
		return nil
	})
	s.schedule("day_limit", limit.Get(s.game), func(ctx context.Context) error {
		s.Say(ctx, cat.Get("day_time_limit"))
		s.beginNight(ctx)
		return nil
	})
}

// endNight resolves the night kills and, unless the game ends, starts the day.
func (s *Session) endNight(ctx context.Context) {
	if s.game == nil || s.game.Phase() != game.PhaseNight || s.game.InPhaseTransition() {
		return
	}
	evt := s.deps.Bus.Dispatch(ctx, events.NightKills, events.Data{KeyVictims: []*users.User{}}, nil)
	victims, _ := events.Value[[]*users.User](evt, KeyVictims)
	for _, v := range victims {
		if !s.game.IsPlayer(v) {
			continue
		}
		role, _ := s.game.MainRole(v)
		s.Say(ctx, s.deps.Catalog.Format("player_died", v.Nick, role))
		s.kill(ctx, v, ReasonNight)
	}
	if s.checkWin(ctx) {
		return
	}
	s.beginDay(ctx)
}

// checkVotes lynches the first player with a majority, or ends the day
// without a lynch when a majority abstained.
func (s *Session) checkVotes(ctx context.Context) {
	players := s.game.Players()
	need := len(players)/2 + 1

	tally := make(map[*users.User]int)
	abstains := 0
	for voter, target := range s.votes {
		if !s.game.IsPlayer(voter) {
			continue
		}
		if target == nil {
			abstains++
		} else if s.game.IsPlayer(target) {
			tally[target]++
		}
	}

	if abstains >= need {
		s.Say(ctx, s.deps.Catalog.Get("no_lynch"))
		s.beginNight(ctx)
		return
	}
	for _, p := range players {
		if tally[p] >= need {
			s.lynch(ctx, p)
			return
		}
	}
}

func (s *Session) lynch(ctx context.Context, u *users.User) {
	role, _ := s.game.MainRole(u)
	s.Say(ctx, s.deps.Catalog.Format("player_lynched", u.Nick, role))
	s.kill(ctx, u, ReasonLynch)
	if s.checkWin(ctx) {
		return
	}
	s.beginNight(ctx)
}

// kill dispatches del_player and then removes u from the roster.
func (s *Session) kill(ctx context.Context, u *users.User, reason string) {
	role, _ := s.game.MainRole(u)
	s.deps.Bus.Dispatch(ctx, events.DelPlayer, nil, DelPlayerArgs{Player: u, Role: role, Reason: reason})
	s.game.RemovePlayer(u)

	delete(s.votes, u)
	for voter, target := range s.votes {
		if target == u {
			delete(s.votes, voter)
		}
	}
	metrics.SetPlayers(len(s.game.Players()))
	logger := log.WithContext(ctx, s.logger)
	logger.Info().
		Str("event", "session.player_removed").
		Str(log.FieldNick, u.Nick).
		Str(log.FieldRole, role).
		Str("reason", reason).
		Msg("player removed")
}

// checkWin asks the chk_win listeners for a winner and ends the game if one
// was named.
func (s *Session) checkWin(ctx context.Context) bool {
	evt := s.deps.Bus.Dispatch(ctx, events.ChkWin, events.Data{KeyWinner: ""}, nil)
	winner, _ := events.Value[string](evt, KeyWinner)
	if winner == "" {
		return false
	}
	s.endGame(ctx, winner, "finished")
	return true
}

// endGame reports the frozen roles, resets every behavior, tears the game
// down and opens a new roster.
func (s *Session) endGame(ctx context.Context, winner, result string) {
	g := s.game
	cat := s.deps.Catalog
	if winner != "" {
		s.Say(ctx, cat.Format("game_winner", winner))
	}

	original := g.OriginalRoles()
	roles := make([]string, 0, len(original))
	for role, members := range original {
		if len(members) > 0 {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	for _, role := range roles {
		s.Say(ctx, cat.Format("end_roles", plural(role), nickList(original[role])))
	}

	s.deps.Bus.Dispatch(ctx, events.Reset, nil, nil)
	s.gen++
	s.stopTimers()
	g.Teardown(ctx)

	s.game = nil
	s.votes = nil
	s.pregame = game.NewPregame()

	metrics.IncSession(result)
	metrics.SetPlayers(0)
	logger := log.WithContext(ctx, s.logger)
	logger.Info().
		Str("event", "session.ended").
		Str("winner", winner).
		Str("result", result).
		Msg("game ended")
}

func nickList(us []*users.User) string {
	nicks := make([]string, len(us))
	for i, u := range us {
		nicks[i] = u.Nick
	}
	return strings.Join(nicks, ", ")
}

func plural(role string) string {
	switch {
	case strings.HasSuffix(role, "f"):
		return strings.TrimSuffix(role, "f") + "ves"
	case strings.HasSuffix(role, "s"):
		return role
	default:
		return role + "s"
	}
}
