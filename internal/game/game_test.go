// SPDX-License-Identifier: MIT

package game

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jesopo/lykos/internal/errs"
	"github.com/jesopo/lykos/internal/modes"
	"github.com/jesopo/lykos/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapReader map[string]any

func (m mapReader) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

type stubMode struct {
	defaults  modes.Settings
	startErr  error
	torndown  int
	startedUp int
}

func (m *stubMode) Name() string { return "stub" }
func (m *stubMode) Startup(context.Context) error {
	m.startedUp++
	return m.startErr
}
func (m *stubMode) Teardown(context.Context)  { m.torndown++ }
func (m *stubMode) Defaults() modes.Settings { return m.defaults }
func (m *stubMode) RoleCounts(int) (map[string]int, error) {
	return map[string]int{"wolf": 1}, nil
}

func testRegistry(t *testing.T, mode *stubMode) *modes.Registry {
	t.Helper()
	reg := modes.NewRegistry()
	require.NoError(t, modes.RegisterBuiltins(reg))
	require.NoError(t, reg.Register("stub", func(args ...string) (modes.Mode, error) {
		if len(args) > 0 && args[0] == "broken" {
			return nil, errors.New("cannot parse")
		}
		return mode, nil
	}))
	return reg
}

func newUsers(nicks ...string) []*users.User {
	out := make([]*users.User, 0, len(nicks))
	for _, n := range nicks {
		out = append(out, &users.User{Nick: n, Ident: n, Host: "host"})
	}
	return out
}

func newGame(t *testing.T, mode *stubMode, cfg mapReader, players ...*users.User) *Game {
	t.Helper()
	p := NewPregame()
	for _, u := range players {
		p.Join(u)
	}
	require.NoError(t, p.SelectMode(context.Background(), testRegistry(t, mode), "stub"))
	return New(p, cfg)
}

func assertUsage(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a usage panic")
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errs.HasCode(err, errs.CodeUsage), "got %v", err)
	}()
	fn()
}

func TestPregameRoster(t *testing.T) {
	p := NewPregame()
	us := newUsers("alice", "bob")

	assert.Equal(t, PhaseJoin, p.Phase())
	assert.True(t, p.Join(us[0]))
	assert.True(t, p.Join(us[1]))
	assert.False(t, p.Join(us[0]), "membership is unique")
	assert.Equal(t, us, p.Players())
	assert.True(t, p.Leave(us[0]))
	assert.False(t, p.Leave(us[0]))
	assert.Equal(t, 1, p.Len())
	assert.NotEmpty(t, p.ID())
	assert.NotEqual(t, p.ID(), NewPregame().ID())
}

func TestSelectMode(t *testing.T) {
	mode := &stubMode{defaults: modes.Settings{}}
	reg := testRegistry(t, mode)
	ctx := context.Background()

	p := NewPregame()
	err := p.SelectMode(ctx, reg, "nonexistent")
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeModeNotFound))
	assert.Nil(t, p.Mode())

	err = p.SelectMode(ctx, reg, "roles=wolf:x")
	assert.True(t, errs.HasCode(err, errs.CodeInvalidMode))
	assert.Nil(t, p.Mode())

	err = p.SelectMode(ctx, reg, "stub=broken")
	assert.True(t, errs.HasCode(err, errs.CodeInvalidMode))
	assert.Nil(t, p.Mode())

	require.NoError(t, p.SelectMode(ctx, reg, " Roles = wolf:2,investigator:1 "))
	assert.Equal(t, "roles", p.Mode().Name())

	require.NoError(t, p.SelectMode(ctx, reg, "stub"))
	assert.Equal(t, 1, mode.startedUp)
}

func TestSelectModeStartupFailureLeavesStateUnchanged(t *testing.T) {
	mode := &stubMode{startErr: errors.New("no")}
	p := NewPregame()
	err := p.SelectMode(context.Background(), testRegistry(t, mode), "stub")
	assert.True(t, errs.HasCode(err, errs.CodeInvalidMode))
	assert.Nil(t, p.Mode())
}

func TestNewRequiresMode(t *testing.T) {
	assertUsage(t, func() { New(NewPregame(), nil) })
}

func TestLegalLifecycle(t *testing.T) {
	mode := &stubMode{defaults: modes.Settings{}}
	us := newUsers("alice", "bob", "carol")
	g := newGame(t, mode, nil, us...)

	assert.Equal(t, StateCreated, g.State())
	g.BeginSetup([]string{"wolf", "villager"})
	assert.Equal(t, StateSetup, g.State())

	g.AssignRole(us[0], "wolf")
	g.AssignRole(us[1], "villager")
	g.AssignRole(us[2], "villager")
	g.FinishSetup()
	assert.True(t, g.InGame())

	g.Teardown(context.Background())
	assert.Equal(t, StateTornDown, g.State())
	assert.Equal(t, 1, mode.torndown)
}

func TestLifecycleMisuse(t *testing.T) {
	mode := &stubMode{defaults: modes.Settings{}}

	g := newGame(t, mode, nil)
	assertUsage(t, g.FinishSetup)
	assert.Equal(t, StateCreated, g.State(), "failed call leaves state unchanged")

	g.BeginSetup(nil)
	assertUsage(t, func() { g.BeginSetup(nil) })
	g.FinishSetup()
	assertUsage(t, g.FinishSetup)
	assertUsage(t, func() { g.BeginSetup(nil) })

	g.Teardown(context.Background())
	assertUsage(t, func() { g.Teardown(context.Background()) })
	assertUsage(t, func() { g.BeginSetup(nil) })
	assert.Equal(t, 1, mode.torndown)
}

func TestTeardownDuringSetup(t *testing.T) {
	g := newGame(t, &stubMode{defaults: modes.Settings{}}, nil)
	g.BeginSetup([]string{"wolf"})
	g.Teardown(context.Background())
	assertUsage(t, g.FinishSetup)
}

func TestReadsAfterTeardownPanic(t *testing.T) {
	us := newUsers("alice")
	g := newGame(t, &stubMode{defaults: modes.Settings{}}, nil, us...)
	g.BeginSetup([]string{"wolf"})
	g.AssignRole(us[0], "wolf")
	g.FinishSetup()
	g.Teardown(context.Background())

	assertUsage(t, func() { g.Players() })
	assertUsage(t, func() { g.HasRole(us[0], "wolf") })
	assertUsage(t, func() { g.Phase() })
	assertUsage(t, func() { g.OriginalRoles() })
	assertUsage(t, func() { g.RoleStats() })
	assertUsage(t, func() { AbstainEnabled.Get(g) })
}

func TestSnapshotReadsRequireFinishedSetup(t *testing.T) {
	g := newGame(t, &stubMode{defaults: modes.Settings{}}, nil)
	assertUsage(t, func() { g.OriginalRoles() })
	g.BeginSetup([]string{"wolf"})
	assertUsage(t, func() { g.OriginalMainRoles() })
	g.FinishSetup()
	assert.NotPanics(t, func() { g.OriginalRoles() })
}

func TestSnapshotIsFrozen(t *testing.T) {
	us := newUsers("alice", "bob", "carol")
	g := newGame(t, &stubMode{defaults: modes.Settings{}}, nil, us...)
	g.BeginSetup([]string{"wolf", "villager", "investigator"})
	g.AssignRole(us[0], "wolf")
	g.AssignRole(us[1], "investigator")
	g.AssignRole(us[2], "villager")
	g.FinishSetup()

	wantRoles := map[string][]*users.User{
		"wolf":         {us[0]},
		"investigator": {us[1]},
		"villager":     {us[2]},
	}
	wantMain := map[*users.User]string{us[0]: "wolf", us[1]: "investigator", us[2]: "villager"}
	require.Empty(t, cmp.Diff(wantRoles, g.OriginalRoles()))
	require.Empty(t, cmp.Diff(wantMain, g.OriginalMainRoles()))

	g.AssignRole(us[2], "wolf")
	g.RemovePlayer(us[1])
	snap := g.OriginalRoles()
	snap["wolf"] = append(snap["wolf"], us[1])

	assert.Empty(t, cmp.Diff(wantRoles, g.OriginalRoles()), "live mutations never reach the snapshot")
	assert.Empty(t, cmp.Diff(wantMain, g.OriginalMainRoles()))
	assert.Equal(t, []*users.User{us[0], us[2]}, g.RoleMembers("wolf"))
	assert.Empty(t, g.RoleMembers("villager"))
}

func TestRemovePlayerRecordsFinalRole(t *testing.T) {
	us := newUsers("alice", "bob")
	g := newGame(t, &stubMode{defaults: modes.Settings{}}, nil, us...)
	g.BeginSetup([]string{"wolf"})
	g.AssignRole(us[0], "wolf")
	g.Silence(us[0])
	g.FinishSetup()

	assert.True(t, g.RemovePlayer(us[0]))
	assert.False(t, g.RemovePlayer(us[0]))
	assert.False(t, g.IsPlayer(us[0]))
	assert.False(t, g.HasRole(us[0], "wolf"))
	assert.False(t, g.IsSilenced(us[0]))

	role, ok := g.FinalRole(us[0])
	assert.True(t, ok)
	assert.Equal(t, "wolf", role)

	g.SetFinalRole(us[1], "villager")
	role, _ = g.FinalRole(us[1])
	assert.Equal(t, "villager", role)
}

func TestPhaseTransitions(t *testing.T) {
	g := newGame(t, &stubMode{defaults: modes.Settings{}}, nil)
	g.BeginSetup(nil)
	g.FinishSetup()

	assertUsage(t, g.EndPhaseTransition)

	g.BeginPhaseTransition(PhaseNight)
	assert.True(t, g.InPhaseTransition())
	assert.Equal(t, PhaseJoin, g.Phase(), "phase changes only when the transition ends")
	assertUsage(t, func() { g.BeginPhaseTransition(PhaseDay) })
	assert.Equal(t, PhaseNight, g.NextPhase())

	g.EndPhaseTransition()
	assert.Equal(t, PhaseNight, g.Phase())
	assert.Equal(t, 1, g.Count(PhaseNight))
	assert.Equal(t, 0, g.Count(PhaseDay))

	g.BeginPhaseTransition(PhaseDay)
	g.EndPhaseTransition()
	g.BeginPhaseTransition("sunset")
	g.EndPhaseTransition()
	assert.Equal(t, 1, g.Count(PhaseDay))
	assert.Equal(t, 1, g.Count("sunset"))
	assertUsage(t, g.EndPhaseTransition)
}

func TestSettingResolutionOrder(t *testing.T) {
	mode := &stubMode{defaults: modes.Settings{
		"abstain_enabled": false,
		"day_time_limit":  300,
	}}
	cfg := mapReader{
		"timers.day.limit":   600,
		"timers.night.limit": int64(120),
	}
	g := newGame(t, mode, cfg)

	assertUsage(t, func() { DayTimeLimit.Get(g) })
	g.BeginSetup(nil)

	assert.Equal(t, 300, DayTimeLimit.Get(g), "mode default beats configuration")
	assert.Equal(t, 120, NightTimeLimit.Get(g), "configuration is the last tier")
	assert.False(t, AbstainEnabled.Get(g))

	g.SetOverride("day_time_limit", 45)
	g.SetOverride("abstain_enabled", true)
	assert.Equal(t, 45, DayTimeLimit.Get(g), "session override beats everything")
	assert.True(t, AbstainEnabled.Get(g))

	assertUsage(t, func() { DayTimeWarn.Get(g) })
	assertUsage(t, func() { LimitAbstain.Get(g) })

	g.SetOverride("role_reveal", 3)
	assertUsage(t, func() { RoleReveal.Get(g) })
}

func TestRoleStats(t *testing.T) {
	g := newGame(t, &stubMode{defaults: modes.Settings{}}, nil)
	g.BeginSetup(nil)

	in := []RoleCount{{"wolf": 1, "villager": 5}, {"wolf": 2, "villager": 4}}
	g.SetRoleStats(in)
	in[0]["wolf"] = 9

	got := g.RoleStats()
	assert.Equal(t, []RoleCount{{"wolf": 1, "villager": 5}, {"wolf": 2, "villager": 4}}, got)
	got[1]["wolf"] = 7
	assert.Equal(t, 2, g.RoleStats()[1]["wolf"])

	g.Teardown(context.Background())
	assertUsage(t, func() { g.RoleStats() })
}

func TestConnectivity(t *testing.T) {
	us := newUsers("alice")
	g := newGame(t, &stubMode{defaults: modes.Settings{}}, nil, us...)
	assert.True(t, g.IsConnected(us[0]))
	g.SetConnected(us[0], false)
	assert.False(t, g.IsConnected(us[0]))
	g.SetConnected(us[0], true)
	assert.True(t, g.IsConnected(us[0]))
}
