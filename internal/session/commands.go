// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"errors"
	"strings"

	"github.com/jesopo/lykos/internal/command"
	"github.com/jesopo/lykos/internal/errs"
	"github.com/jesopo/lykos/internal/game"
	"github.com/jesopo/lykos/internal/log"
	"github.com/jesopo/lykos/internal/messages"
	"github.com/jesopo/lykos/internal/metrics"
	"github.com/jesopo/lykos/internal/modes"
)

type registration struct {
	aliases []string
	spec    command.Spec
	handler command.Handler
}

func (s *Session) registerCommands() error {
	day := []string{game.PhaseDay}
	night := []string{game.PhaseNight}
	join := []string{game.PhaseJoin}

	regs := []registration{
		{[]string{"join", "j"}, command.Spec{Chan: true}, s.cmdJoin},
		{[]string{"leave", "quit", "q"}, command.Spec{Chan: true, PM: true, Playing: true}, s.cmdLeave},
		{[]string{"start"}, command.Spec{Chan: true, Playing: true, Phases: join}, s.cmdStart},
		{[]string{"players", "p"}, command.Spec{Chan: true, PM: true}, s.cmdPlayers},
		{[]string{"vote", "lynch", "v"}, command.Spec{Chan: true, Playing: true, Phases: day}, s.cmdVote},
		{[]string{"abstain", "abs", "nolynch"}, command.Spec{Chan: true, Playing: true, Phases: day}, s.cmdAbstain},
		{[]string{"fgame"}, command.Spec{Chan: true, Flag: "g", Phases: join}, s.cmdGame},
		{[]string{"fstart"}, command.Spec{Chan: true, Flag: "S", Phases: join}, s.cmdForceStart},
		{[]string{"fstop", "fendgame"}, command.Spec{Chan: true, PM: true, Flag: "S"}, s.cmdStop},
		{[]string{"fday"}, command.Spec{Chan: true, PM: true, Flag: "N", Phases: night}, s.cmdDay},
		{[]string{"fnight"}, command.Spec{Chan: true, PM: true, Flag: "N", Phases: day}, s.cmdNight},
		{[]string{"fset"}, command.Spec{Chan: true, PM: true, Flag: "S"}, s.cmdSet},
		{[]string{"fsilence"}, command.Spec{Chan: true, PM: true, Flag: command.FlagDebug}, s.cmdSilence},
		{[]string{"frole"}, command.Spec{Chan: true, PM: true, Flag: command.FlagDebug}, s.cmdRole},
	}
	for _, r := range regs {
		if _, err := s.deps.Router.Register(r.aliases, r.spec, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) cmdJoin(ctx context.Context, inv *command.Invocation) error {
	cat := s.deps.Catalog
	switch {
	case s.game != nil:
		inv.Notice(ctx, cat.Get("game_already_running"))
	case s.pregame.Has(inv.Source):
		inv.Notice(ctx, cat.Get("already_playing"))
	case s.opts.MaxPlayers > 0 && s.pregame.Len() >= s.opts.MaxPlayers:
		inv.Notice(ctx, cat.Get("game_full"))
	default:
		s.pregame.Join(inv.Source)
		metrics.SetPlayers(s.pregame.Len())
		s.Say(ctx, cat.Format("player_joined", inv.Source.Nick, s.pregame.Len()))
	}
	return nil
}

func (s *Session) cmdLeave(ctx context.Context, inv *command.Invocation) error {
	cat := s.deps.Catalog
	if s.game == nil {
		s.pregame.Leave(inv.Source)
		metrics.SetPlayers(s.pregame.Len())
		s.Say(ctx, cat.Format("player_left", inv.Source.Nick, s.pregame.Len()))
		return nil
	}
	role, _ := s.game.MainRole(inv.Source)
	s.Say(ctx, cat.Format("player_quit", inv.Source.Nick, role))
	s.kill(ctx, inv.Source, ReasonQuit)
	if s.checkWin(ctx) {
		return nil
	}
	if s.Phase() == game.PhaseDay {
		s.checkVotes(ctx)
	}
	return nil
}

func (s *Session) cmdStart(ctx context.Context, inv *command.Invocation) error {
	s.startGame(ctx, inv.Source, false)
	return nil
}

func (s *Session) cmdForceStart(ctx context.Context, inv *command.Invocation) error {
	s.startGame(ctx, inv.Source, true)
	return nil
}

func (s *Session) cmdPlayers(ctx context.Context, inv *command.Invocation) error {
	if s.game != nil {
		inv.Reply(ctx, s.deps.Catalog.Format("players_list", nickList(s.game.Players())))
		return nil
	}
	inv.Reply(ctx, s.deps.Catalog.Format("players_list", nickList(s.pregame.Players())))
	return nil
}

func (s *Session) cmdVote(ctx context.Context, inv *command.Invocation) error {
	cat := s.deps.Catalog
	fields := inv.Fields()
	if len(fields) == 0 {
		inv.Notice(ctx, cat.Get("no_target"))
		return nil
	}
	target, ok := s.FindPlayer(fields[0])
	if !ok {
		inv.Notice(ctx, cat.Format("not_a_player", fields[0]))
		return nil
	}
	if target == inv.Source && !game.SelfLynchAllowed.Get(s.game) {
		inv.Notice(ctx, cat.Get("no_self_lynch"))
		return nil
	}
	s.votes[inv.Source] = target
	s.Say(ctx, cat.Format("player_voted", inv.Source.Nick, target.Nick))
	s.checkVotes(ctx)
	return nil
}

func (s *Session) cmdAbstain(ctx context.Context, inv *command.Invocation) error {
	cat := s.deps.Catalog
	if !game.AbstainEnabled.Get(s.game) {
		inv.Notice(ctx, cat.Get("abstain_disabled"))
		return nil
	}
	if game.LimitAbstain.Get(s.game) && s.game.Count(game.PhaseDay) == 1 {
		inv.Notice(ctx, cat.Get("abstain_limited"))
		return nil
	}
	s.votes[inv.Source] = nil
	s.Say(ctx, cat.Format("player_abstained", inv.Source.Nick))
	s.checkVotes(ctx)
	return nil
}

func (s *Session) cmdGame(ctx context.Context, inv *command.Invocation) error {
	cat := s.deps.Catalog
	if s.game != nil {
		inv.Notice(ctx, cat.Get("game_already_running"))
		return nil
	}
	arg := strings.TrimSpace(inv.Args)
	if arg == "" {
		inv.Notice(ctx, cat.Format("invalid_mode", strings.Join(s.deps.Modes.Names(), ", ")))
		return nil
	}
	previous := s.pregame.Mode()
	if err := s.pregame.SelectMode(ctx, s.deps.Modes, arg); err != nil {
		inv.Reply(ctx, modeErrorText(cat, err))
		return nil
	}
	if previous != nil {
		previous.Teardown(ctx)
	}
	s.Say(ctx, cat.Format("game_mode_selected", s.pregame.Mode().Name()))
	return nil
}

func (s *Session) cmdStop(ctx context.Context, inv *command.Invocation) error {
	if s.game == nil {
		inv.Notice(ctx, s.deps.Catalog.Get("no_game_running"))
		return nil
	}
	s.Say(ctx, s.deps.Catalog.Format("game_stopped", inv.Source.Nick))
	s.endGame(ctx, "", "stopped")
	return nil
}

func (s *Session) cmdDay(ctx context.Context, inv *command.Invocation) error {
	if s.game == nil {
		inv.Notice(ctx, s.deps.Catalog.Get("no_game_running"))
		return nil
	}
	s.endNight(ctx)
	return nil
}

func (s *Session) cmdNight(ctx context.Context, inv *command.Invocation) error {
	if s.game == nil {
		inv.Notice(ctx, s.deps.Catalog.Get("no_game_running"))
		return nil
	}
	s.beginNight(ctx)
	return nil
}

func (s *Session) cmdSet(ctx context.Context, inv *command.Invocation) error {
	cat := s.deps.Catalog
	if s.game == nil {
		inv.Notice(ctx, cat.Get("no_game_running"))
		return nil
	}
	key, raw, _ := strings.Cut(strings.TrimSpace(inv.Args), " ")
	key = strings.ToLower(key)
	if _, ok := modes.Tunables[key]; !ok {
		inv.Notice(ctx, cat.Format("unknown_setting", key))
		return nil
	}
	value, err := modes.ParseSetting(key, raw)
	if err != nil {
		inv.Notice(ctx, err.Error())
		return nil
	}
	s.game.SetOverride(key, value)
	logger := log.WithContext(ctx, s.logger)
	logger.Info().
		Str("event", "session.setting_overridden").
		Str("setting", key).
		Interface("value", value).
		Msg("setting overridden")
	inv.Reply(ctx, cat.Format("setting_updated", key, value))
	return nil
}

func (s *Session) cmdSilence(ctx context.Context, inv *command.Invocation) error {
	cat := s.deps.Catalog
	if s.game == nil {
		inv.Notice(ctx, cat.Get("no_game_running"))
		return nil
	}
	fields := inv.Fields()
	if len(fields) == 0 {
		inv.Notice(ctx, cat.Get("no_target"))
		return nil
	}
	target, ok := s.FindPlayer(fields[0])
	if !ok {
		inv.Notice(ctx, cat.Format("not_a_player", fields[0]))
		return nil
	}
	s.game.Silence(target)
	inv.Reply(ctx, cat.Format("silence_applied", target.Nick))
	return nil
}

func (s *Session) cmdRole(ctx context.Context, inv *command.Invocation) error {
	cat := s.deps.Catalog
	if s.game == nil {
		inv.Notice(ctx, cat.Get("no_game_running"))
		return nil
	}
	fields := inv.Fields()
	if len(fields) < 2 {
		inv.Notice(ctx, cat.Get("no_target"))
		return nil
	}
	target, ok := s.FindPlayer(fields[0])
	if !ok {
		inv.Notice(ctx, cat.Format("not_a_player", fields[0]))
		return nil
	}
	if s.ChangeRole(ctx, target, strings.ToLower(fields[1])) {
		role, _ := s.game.MainRole(target)
		inv.Reply(ctx, cat.Format("role_changed", target.Nick, role))
	}
	return nil
}

// modeErrorText renders a SelectMode failure with the catalog.
func modeErrorText(cat *messages.Catalog, err error) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Code == errs.CodeModeNotFound {
		return cat.Format("game_mode_not_found", e.Metadata["mode"])
	}
	return cat.Format("invalid_mode", strings.TrimPrefix(err.Error(), "Invalid mode: "))
}
