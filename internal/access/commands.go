// SPDX-License-Identifier: MIT

package access

import (
	"context"
	"strings"

	"github.com/jesopo/lykos/internal/command"
	"github.com/jesopo/lykos/internal/errs"
	"github.com/jesopo/lykos/internal/messages"
)

// RegisterCommands adds the owner commands that edit the store:
//
//	fflags <mask|account> [+FLAGS|-FLAGS|FLAGS]
//	fdeny  <mask|account> [+cmd|-cmd ...]
//
// Without a change argument both commands show the current value.
func RegisterCommands(r *command.Router, store *Store, catalog *messages.Catalog) error {
	if store == nil {
		return errs.Configuration("access commands need a store")
	}
	if catalog == nil {
		catalog = messages.Default()
	}
	spec := command.Spec{Owner: true, Chan: true, PM: true}

	if _, err := r.Register([]string{"fflags"}, spec, func(ctx context.Context, inv *command.Invocation) error {
		fields := inv.Fields()
		if len(fields) == 0 {
			inv.Notice(ctx, catalog.Get("no_target"))
			return nil
		}
		target, scope := fields[0], ScopeOf(fields[0])
		flags := store.Flags(scope, target)
		if len(fields) > 1 {
			flags = applyFlags(flags, fields[1])
			if err := store.SetFlags(ctx, scope, target, flags); err != nil {
				return err
			}
			flags = store.Flags(scope, target)
		}
		inv.Reply(ctx, catalog.Format("flags_updated", target, orNone(flags)))
		return nil
	}); err != nil {
		return err
	}

	_, err := r.Register([]string{"fdeny"}, spec, func(ctx context.Context, inv *command.Invocation) error {
		fields := inv.Fields()
		if len(fields) == 0 {
			inv.Notice(ctx, catalog.Get("no_target"))
			return nil
		}
		target, scope := fields[0], ScopeOf(fields[0])
		denied := store.Denied(scope, target)
		if len(fields) > 1 {
			denied = applyDenials(denied, fields[1:])
			if err := store.SetDenied(ctx, scope, target, denied); err != nil {
				return err
			}
			denied = store.Denied(scope, target)
		}
		inv.Reply(ctx, catalog.Format("deny_updated", target, orNone(strings.Join(denied, ", "))))
		return nil
	})
	return err
}

// applyFlags applies "+AB", "-A" or a bare replacement set to current.
func applyFlags(current, change string) string {
	switch {
	case strings.HasPrefix(change, "+"):
		return current + change[1:]
	case strings.HasPrefix(change, "-"):
		return strings.Map(func(r rune) rune {
			if strings.ContainsRune(change[1:], r) {
				return -1
			}
			return r
		}, current)
	default:
		return change
	}
}

// applyDenials applies "+cmd" and "-cmd" items; a bare name adds.
func applyDenials(current, changes []string) []string {
	set := make(map[string]struct{}, len(current))
	for _, c := range current {
		set[c] = struct{}{}
	}
	for _, ch := range changes {
		for _, item := range strings.Split(ch, ",") {
			switch {
			case strings.HasPrefix(item, "-"):
				delete(set, strings.ToLower(item[1:]))
			case strings.HasPrefix(item, "+"):
				set[strings.ToLower(item[1:])] = struct{}{}
			case item != "":
				set[strings.ToLower(item)] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
