// SPDX-License-Identifier: MIT

package users

import "sync"

// Registry resolves identities to a single shared *User per folded nick.
// The transport goroutine and the session goroutine both call into it.
type Registry struct {
	mu    sync.Mutex
	users map[string]*User
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]*User)}
}

// Resolve returns the registered user for raw (nick!ident@host), creating it
// on first sight and refreshing ident, host and account otherwise.
func (r *Registry) Resolve(raw, account string) *User {
	parsed := ParseRawNick(raw)
	key := Fold(parsed.Nick)

	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[key]; ok {
		if parsed.Ident != "" {
			u.Ident = parsed.Ident
		}
		if parsed.Host != "" {
			u.Host = parsed.Host
		}
		if account != "" {
			u.Account = account
		}
		return u
	}
	u := &parsed
	u.Account = account
	r.users[key] = u
	return u
}

// Lookup returns the user registered under nick.
func (r *Registry) Lookup(nick string) (*User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[Fold(nick)]
	return u, ok
}
