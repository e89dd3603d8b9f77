// SPDX-License-Identifier: MIT

package modes

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the value type of a tunable.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindString
)

// Tunables lists every per-session setting and its type.
var Tunables = map[string]Kind{
	"abstain_enabled":      KindBool,
	"limit_abstain":        KindBool,
	"self_lynch_allowed":   KindBool,
	"default_role":         KindString,
	"hidden_role":          KindString,
	"start_with_day":       KindBool,
	"always_pm_role":       KindBool,
	"role_reveal":          KindString,
	"stats_type":           KindString,
	"day_time_limit":       KindInt,
	"day_time_warn":        KindInt,
	"short_day_time_limit": KindInt,
	"short_day_time_warn":  KindInt,
	"night_time_limit":     KindInt,
	"night_time_warn":      KindInt,
}

// BaseDefaults are the defaults every shipped mode starts from. Timer
// tunables are absent so they fall through to configuration.
func BaseDefaults() Settings {
	return Settings{
		"abstain_enabled":    true,
		"limit_abstain":      true,
		"self_lynch_allowed": true,
		"default_role":       "villager",
		"hidden_role":        "villager",
		"start_with_day":     false,
		"always_pm_role":     false,
		"role_reveal":        "on",
		"stats_type":         "default",
	}
}

// ParseSetting converts raw text into the typed value for tunable key.
func ParseSetting(key, raw string) (any, error) {
	kind, ok := Tunables[key]
	if !ok {
		return nil, fmt.Errorf("unknown setting %q", key)
	}
	raw = strings.TrimSpace(raw)
	switch kind {
	case KindBool:
		switch strings.ToLower(raw) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
		return nil, fmt.Errorf("setting %q expects a boolean, got %q", key, raw)
	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("setting %q expects a non-negative integer, got %q", key, raw)
		}
		return n, nil
	default:
		if raw == "" {
			return nil, fmt.Errorf("setting %q expects a value", key)
		}
		return raw, nil
	}
}
