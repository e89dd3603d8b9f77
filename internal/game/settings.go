// SPDX-License-Identifier: MIT

package game

import (
	"github.com/jesopo/lykos/internal/errs"
)

// Setting is a typed tunable. Resolution order: per-session override, then
// the mode's defaults, then the configuration key when one is set.
type Setting[T any] struct {
	Key       string
	ConfigKey string
}

// The tunables every game resolves.
var (
	AbstainEnabled    = Setting[bool]{Key: "abstain_enabled"}
	LimitAbstain      = Setting[bool]{Key: "limit_abstain"}
	SelfLynchAllowed  = Setting[bool]{Key: "self_lynch_allowed"}
	DefaultRole       = Setting[string]{Key: "default_role"}
	HiddenRole        = Setting[string]{Key: "hidden_role"}
	StartWithDay      = Setting[bool]{Key: "start_with_day"}
	AlwaysPMRole      = Setting[bool]{Key: "always_pm_role"}
	RoleReveal        = Setting[string]{Key: "role_reveal"}
	StatsType         = Setting[string]{Key: "stats_type"}
	DayTimeLimit      = Setting[int]{Key: "day_time_limit", ConfigKey: "timers.day.limit"}
	DayTimeWarn       = Setting[int]{Key: "day_time_warn", ConfigKey: "timers.day.warn"}
	ShortDayTimeLimit = Setting[int]{Key: "short_day_time_limit", ConfigKey: "timers.shortday.limit"}
	ShortDayTimeWarn  = Setting[int]{Key: "short_day_time_warn", ConfigKey: "timers.shortday.warn"}
	NightTimeLimit    = Setting[int]{Key: "night_time_limit", ConfigKey: "timers.night.limit"}
	NightTimeWarn     = Setting[int]{Key: "night_time_warn", ConfigKey: "timers.night.warn"}
)

// Get resolves the setting for g. It panics with a usage error before setup
// has begun, after teardown, or when no tier defines the setting.
func (s Setting[T]) Get(g *Game) T {
	g.mustHaveBegunSetup()

	if v, ok := g.overrides[s.Key]; ok {
		return convert[T](s.Key, v)
	}
	if v, ok := g.mode.Defaults()[s.Key]; ok {
		return convert[T](s.Key, v)
	}
	if s.ConfigKey != "" && g.cfg != nil {
		if v, ok := g.cfg.Get(s.ConfigKey); ok {
			return convert[T](s.Key, v)
		}
	}
	panic(errs.Usage("setting %q is not defined by the session, the mode or the configuration", s.Key))
}

func convert[T any](key string, v any) T {
	if t, ok := v.(T); ok {
		return t
	}
	var zero T
	if _, wantInt := any(zero).(int); wantInt {
		switch n := v.(type) {
		case int64:
			return any(int(n)).(T)
		case uint64:
			return any(int(n)).(T)
		case float64:
			return any(int(n)).(T)
		}
	}
	panic(errs.Usage("setting %q holds %T, want %T", key, v, zero))
}
