// SPDX-License-Identifier: MIT

package modes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Shipped mode names.
const (
	DefaultName = "default"
	RolesName   = "roles"
)

type defaultMode struct{}

// NewDefault builds the default mode. It takes no arguments.
func NewDefault(args ...string) (Mode, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return nil, Invalid("Invalid mode: %s takes no arguments", DefaultName)
	}
	return defaultMode{}, nil
}

func (defaultMode) Name() string                  { return DefaultName }
func (defaultMode) Startup(context.Context) error { return nil }
func (defaultMode) Teardown(context.Context)      {}
func (defaultMode) Defaults() Settings            { return BaseDefaults() }

// RoleCounts gives one wolf per four players and an investigator from six.
func (defaultMode) RoleCounts(players int) (map[string]int, error) {
	if players < 4 {
		return nil, fmt.Errorf("default mode needs at least 4 players, got %d", players)
	}
	counts := map[string]int{"wolf": players / 4}
	if players >= 6 {
		counts["investigator"] = 1
	}
	return counts, nil
}

type rolesMode struct {
	counts   map[string]int
	defaults Settings
}

// NewRoles builds a mode from an explicit distribution such as
// "wolf:2,investigator:1,limit_abstain:false". Keys naming a tunable
// override that setting; every other key is a role count.
func NewRoles(args ...string) (Mode, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, Invalid("Invalid mode: %s requires a role list", RolesName)
	}
	m := &rolesMode{counts: make(map[string]int), defaults: BaseDefaults()}
	for _, part := range strings.Split(args[0], ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), ":")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, Invalid("Invalid mode: malformed entry %q", part)
		}
		if _, tunable := Tunables[key]; tunable {
			v, err := ParseSetting(key, value)
			if err != nil {
				return nil, Invalid("Invalid mode: %v", err)
			}
			m.defaults[key] = v
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, Invalid("Invalid mode: role %q needs a non-negative count", key)
		}
		m.counts[key] = n
	}
	if m.counts["wolf"] < 1 {
		return nil, Invalid("Invalid mode: at least one wolf is required")
	}
	return m, nil
}

func (m *rolesMode) Name() string                  { return RolesName }
func (m *rolesMode) Startup(context.Context) error { return nil }
func (m *rolesMode) Teardown(context.Context)      {}
func (m *rolesMode) Defaults() Settings            { return m.defaults }

func (m *rolesMode) RoleCounts(players int) (map[string]int, error) {
	total := 0
	out := make(map[string]int, len(m.counts))
	for role, n := range m.counts {
		total += n
		out[role] = n
	}
	if total > players {
		return nil, fmt.Errorf("roles mode assigns %d roles but only %d players joined", total, players)
	}
	return out, nil
}
