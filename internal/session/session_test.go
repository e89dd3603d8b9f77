// SPDX-License-Identifier: MIT

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/jesopo/lykos/internal/config"
	"github.com/jesopo/lykos/internal/events"
	"github.com/jesopo/lykos/internal/game"
	"github.com/jesopo/lykos/internal/session"
	"github.com/jesopo/lykos/internal/session/sessiontest"
	"github.com/jesopo/lykos/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startGame(t *testing.T, w *sessiontest.World, players ...string) *game.Game {
	t.Helper()
	w.Join(players...)
	w.Chan(players[0], "!start")
	g := w.Session.Game()
	require.NotNil(t, g, "game should have started: %v", w.Main())
	return g
}

func TestJoinLeaveAndPlayers(t *testing.T) {
	w := sessiontest.New(t)

	w.Join("alice", "bob")
	w.Chan("alice", "!join")
	w.Chan("bob", "!leave")
	w.Chan("carol", "!players")

	assert.Equal(t, []string{
		"alice has joined the game. New player count: 1.",
		"bob has joined the game. New player count: 2.",
		"bob has left the game. New player count: 1.",
		"Players: alice",
	}, w.Main())
	assert.Equal(t, []string{"You are already playing."}, w.Sender.Lines("alice"))
	assert.True(t, w.Session.IsPlaying(w.User("alice")))
	assert.False(t, w.Session.IsPlaying(w.User("bob")))
}

func TestStartNeedsEnoughPlayers(t *testing.T) {
	w := sessiontest.New(t)
	w.Join("alice", "bob")
	w.Chan("alice", "!start")

	assert.Nil(t, w.Session.Game())
	assert.Contains(t, w.Main(), "4 or more players are required to play.")

	w.Chan("carol", "!start")
	assert.Len(t, w.Main(), 3, "non-players are silently ignored")
}

func TestStartRespectsMaxPlayers(t *testing.T) {
	w := sessiontest.New(t, func(c *config.Config) { c.Game.MaxPlayers = 2 })
	w.Join("alice", "bob", "carol")

	assert.Equal(t, 2, w.Session.Pregame().Len())
	assert.Equal(t, []string{"Too many players! Try again next time."}, w.Sender.Lines("carol"))
}

func TestModeSelection(t *testing.T) {
	w := sessiontest.New(t)

	w.Admin("boss", "!fgame nope")
	w.Admin("boss", "!fgame roles=wolf:0")
	w.Admin("boss", "!fgame roles=wolf:1,investigator:1")

	assert.Equal(t, []string{
		"Game mode nope not found.",
		"Invalid mode: at least one wolf is required",
		"The game mode is now roles.",
	}, w.Main())
	require.NotNil(t, w.Session.Pregame().Mode())
	assert.Equal(t, "roles", w.Session.Pregame().Mode().Name())

	w.Chan("alice", "!fgame default")
	assert.Equal(t, "roles", w.Session.Pregame().Mode().Name(), "only admins select modes")
}

func TestFullCycleWithLynchAndStop(t *testing.T) {
	w := sessiontest.New(t)
	w.Admin("boss", "!fgame roles=wolf:1")
	g := startGame(t, w, "a", "b", "c", "d")

	assert.Equal(t, game.StateInGame, g.State())
	assert.Equal(t, game.PhaseNight, w.Session.Phase())
	assert.Equal(t, 1, len(g.RoleMembers("wolf")))
	assert.Equal(t, 3, len(g.RoleMembers("villager")))
	assert.Equal(t, []game.RoleCount{{"wolf": 1, "villager": 3}}, g.RoleStats())

	w.Admin("boss", "!fday")
	require.Equal(t, game.PhaseDay, w.Session.Phase())
	assert.Contains(t, w.Main(), "It is now daytime. The villagers awake and search the village. (day 1)")

	d := w.User("d")
	dRole, _ := g.MainRole(d)
	w.Chan("a", "!vote d")
	w.Chan("b", "!vote d")
	require.True(t, g.IsPlayer(d))
	w.Chan("c", "!lynch d")

	assert.False(t, g.IsPlayer(d))
	assert.Contains(t, w.Main(), "The villagers have lynched d, a "+dRole+".")
	assert.Equal(t, game.PhaseNight, w.Session.Phase())
	assert.Equal(t, 1, g.Count(game.PhaseDay))
	assert.Equal(t, 2, g.Count(game.PhaseNight))

	w.Admin("boss", "!fstop")
	assert.Nil(t, w.Session.Game())
	assert.Equal(t, game.StateTornDown, g.State())
	require.NotNil(t, w.Session.Pregame())
	assert.Zero(t, w.Session.Pregame().Len())
	assert.Contains(t, w.Main(), "boss has forced the game to stop.")
	assert.True(t, w.Sender.Contains(w.Config.Bot.MainChannel, "The villagers were "))
	assert.True(t, w.Sender.Contains(w.Config.Bot.MainChannel, "The wolves were "))

	recs := w.Audit.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"fgame", "fday", "fstop"}, []string{recs[0].Command, recs[1].Command, recs[2].Command})
}

func TestVoteValidation(t *testing.T) {
	w := sessiontest.New(t)
	startGame(t, w, "a", "b", "c", "d")

	w.Chan("a", "!vote b")
	assert.Empty(t, w.Sender.Lines("a"), "votes are ignored at night")

	w.Admin("boss", "!fday")
	w.Chan("a", "!vote zed")
	w.Chan("a", "!vote")
	w.Admin("boss", "!fset self_lynch_allowed false")
	w.Chan("a", "!vote a")

	assert.Equal(t, []string{
		"zed is not playing.",
		"Please specify a player.",
		"Please try to save yourself.",
	}, w.Sender.Lines("a"))
	assert.Contains(t, w.Main(), "Setting self_lynch_allowed is now false.")
}

func TestAbstain(t *testing.T) {
	w := sessiontest.New(t)
	startGame(t, w, "a", "b", "c", "d")
	w.Admin("boss", "!fday")

	w.Chan("a", "!abstain")
	assert.Equal(t, []string{"The village may not abstain on the first day."}, w.Sender.Lines("a"))

	w.Admin("boss", "!fset limit_abstain off")
	w.Chan("a", "!abstain")
	w.Chan("b", "!abs")
	w.Chan("c", "!nolynch")

	assert.Contains(t, w.Main(), "The villagers have agreed not to lynch anybody today.")
	assert.Equal(t, game.PhaseNight, w.Session.Phase())

	w.Admin("boss", "!fday")
	w.Admin("boss", "!fset abstain_enabled no")
	w.Chan("d", "!abstain")
	assert.Equal(t, []string{"Abstaining is disabled in this game."}, w.Sender.Lines("d"))
}

func TestSettingsCommandValidates(t *testing.T) {
	w := sessiontest.New(t)
	w.Admin("boss", "!fset day_time_limit 5")
	assert.Equal(t, []string{"No game is currently running."}, w.Sender.Lines("boss"))

	g := startGame(t, w, "a", "b", "c", "d")
	w.Sender.Reset()
	w.Admin("boss", "!fset bogus 1")
	w.Admin("boss", "!fset day_time_limit soon")
	w.Admin("boss", "!fset day_time_limit 300")

	lines := w.Sender.Lines("boss")
	require.Len(t, lines, 2)
	assert.Equal(t, "Unknown setting bogus.", lines[0])
	assert.Equal(t, 300, game.DayTimeLimit.Get(g))
}

func TestLeaveDuringGame(t *testing.T) {
	w := sessiontest.New(t)
	g := startGame(t, w, "a", "b", "c", "d")
	b := w.User("b")
	role, _ := g.MainRole(b)

	var got session.DelPlayerArgs
	w.Bus.MustRegister(events.DelPlayer, events.DefaultPriority, "test", func(_ context.Context, e *events.Event) {
		got, _ = events.ArgsAs[session.DelPlayerArgs](e)
	})

	w.PM("b", "quit")

	assert.False(t, g.IsPlayer(b))
	assert.Equal(t, session.DelPlayerArgs{Player: b, Role: role, Reason: session.ReasonQuit}, got)
	assert.Contains(t, w.Main(), "b, a "+role+", has left the game.")
	final, _ := g.FinalRole(b)
	assert.Equal(t, role, final)
}

func TestBrokenDelPlayerListenerDoesNotStopOthers(t *testing.T) {
	w := sessiontest.New(t)
	g := startGame(t, w, "a", "b", "c", "d")
	b := w.User("b")

	secondRan := false
	w.Bus.MustRegister(events.DelPlayer, events.DefaultPriority, "broken", func(context.Context, *events.Event) {
		panic("nil role table")
	})
	w.Bus.MustRegister(events.DelPlayer, events.DefaultPriority+1, "second", func(context.Context, *events.Event) {
		secondRan = true
	})

	w.Chan("b", "!leave")

	assert.True(t, secondRan)
	assert.False(t, g.IsPlayer(b))
	require.Len(t, w.ErrLog.Entries(), 1)
	assert.Contains(t, w.ErrLog.Entries()[0], "listener del_player")
}

func TestBrokenTransitionListenerStillChangesPhase(t *testing.T) {
	w := sessiontest.New(t)
	g := startGame(t, w, "a", "b", "c", "d")
	require.Equal(t, game.PhaseNight, w.Session.Phase())

	w.Bus.MustRegister("transition_day_begin", events.DefaultPriority, "broken", func(context.Context, *events.Event) {
		panic("day listener exploded")
	})

	w.Admin("boss", "!fday")
	assert.Equal(t, game.PhaseDay, w.Session.Phase())
	assert.False(t, g.InPhaseTransition())

	w.Admin("boss", "!fnight")
	assert.Equal(t, game.PhaseNight, w.Session.Phase())
	w.Admin("boss", "!fday")
	assert.Equal(t, game.PhaseDay, w.Session.Phase())
	assert.Equal(t, 2, g.Count(game.PhaseDay))
	assert.Len(t, w.ErrLog.Entries(), 2)
}

func TestDebugCommands(t *testing.T) {
	w := sessiontest.New(t)
	g := startGame(t, w, "a", "b", "c", "d")
	b := w.User("b")

	var oldRole string
	w.Bus.MustRegister(events.NewRole, events.DefaultPriority, "test", func(_ context.Context, e *events.Event) {
		args, _ := events.ArgsAs[session.NewRoleArgs](e)
		oldRole = args.OldRole
	})
	before, _ := g.MainRole(b)

	w.Admin("boss", "!frole b seer")
	w.Admin("boss", "!fsilence b")

	assert.True(t, g.HasRole(b, "seer"))
	assert.Equal(t, before, oldRole)
	assert.True(t, w.Session.IsSilenced(b))
	assert.Contains(t, w.Main(), "b is now a seer.")
	assert.Contains(t, w.Main(), "b is now silenced.")
}

func TestDebugCommandsNeedDebugMode(t *testing.T) {
	w := sessiontest.New(t, func(c *config.Config) { c.Bot.DebugMode = false })
	assert.Empty(t, w.Router.Lookup("fsilence"))
	assert.Empty(t, w.Router.Lookup("frole"))
	assert.NotEmpty(t, w.Router.Lookup("fstop"))
}

func TestRunProcessesInboundAndTimers(t *testing.T) {
	w := sessiontest.New(t, func(c *config.Config) {
		c.Timers.Night = config.PhaseTimer{Limit: 1}
	})

	inbound := make(chan transport.Message, 16)
	done := make(chan error, 1)
	go func() { done <- w.Session.Run(context.Background(), inbound) }()

	for _, nick := range []string{"a", "b", "c", "d"} {
		inbound <- transport.Message{RawSource: sessiontest.Raw(nick), Target: w.Config.Bot.MainChannel, Text: "!join"}
	}
	inbound <- transport.Message{RawSource: sessiontest.Raw("a"), Target: w.Config.Bot.MainChannel, Text: "!start"}

	require.Eventually(t, func() bool {
		return w.Sender.Contains(w.Config.Bot.MainChannel, "Dawn breaks before all night actions were taken.")
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return w.Sender.Contains(w.Config.Bot.MainChannel, "(day 1)")
	}, time.Second, 10*time.Millisecond)

	close(inbound)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, game.PhaseDay, w.Session.Phase())
}

func TestRunStopsOnCancel(t *testing.T) {
	w := sessiontest.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Session.Run(ctx, make(chan transport.Message)) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
