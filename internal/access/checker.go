// SPDX-License-Identifier: MIT

package access

import (
	"fmt"
	"sync"

	"github.com/jesopo/lykos/internal/config"
	"github.com/jesopo/lykos/internal/users"
)

// Checker answers the router's ownership and permission questions. Owners
// and admins come from configuration; flags and denylists from the Store.
type Checker struct {
	mu            sync.RWMutex
	owners        []Mask
	ownerAccounts map[string]struct{}
	admins        []Mask
	adminAccounts map[string]struct{}

	store *Store
}

// NewChecker builds a checker from the bot configuration. store may be nil,
// in which case nobody holds flags or denials.
func NewChecker(bot config.BotConfig, store *Store) (*Checker, error) {
	c := &Checker{store: store}
	if err := c.Reload(bot); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload replaces the owner and admin lists.
func (c *Checker) Reload(bot config.BotConfig) error {
	owners, err := compileAll(bot.Owners)
	if err != nil {
		return fmt.Errorf("owners: %w", err)
	}
	admins, err := compileAll(bot.Admins)
	if err != nil {
		return fmt.Errorf("admins: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.owners = owners
	c.admins = admins
	c.ownerAccounts = foldSet(bot.OwnerAccounts)
	c.adminAccounts = foldSet(bot.AdminAccounts)
	return nil
}

func compileAll(patterns []string) ([]Mask, error) {
	out := make([]Mask, 0, len(patterns))
	for _, p := range patterns {
		m, err := CompileMask(p)
		if err != nil {
			return nil, fmt.Errorf("mask %q: %w", p, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func foldSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[users.Fold(n)] = struct{}{}
	}
	return out
}

func matches(u *users.User, masks []Mask, accounts map[string]struct{}) bool {
	if u == nil {
		return false
	}
	if u.Account != "" {
		if _, ok := accounts[users.Fold(u.Account)]; ok {
			return true
		}
	}
	raw := u.RawNick()
	for _, m := range masks {
		if m.Match(raw) {
			return true
		}
	}
	return false
}

// IsOwner reports whether u matches an owner mask or account.
func (c *Checker) IsOwner(u *users.User) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return matches(u, c.owners, c.ownerAccounts)
}

// IsAdmin reports whether u matches an admin mask or account.
func (c *Checker) IsAdmin(u *users.User) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return matches(u, c.admins, c.adminAccounts)
}

// Flags returns the union of u's mask and account flags.
func (c *Checker) Flags(u *users.User) string {
	if c.store == nil || u == nil {
		return ""
	}
	return c.store.FlagsFor(u.RawNick(), u.Account)
}

// Denied returns the union of u's mask and account denylists.
func (c *Checker) Denied(u *users.User) []string {
	if c.store == nil || u == nil {
		return nil
	}
	return c.store.DeniedFor(u.RawNick(), u.Account)
}
