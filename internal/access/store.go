// SPDX-License-Identifier: MIT

// Package access decides who owns and administers the bot, and keeps the
// per-mask and per-account admin flags and command denylists.
package access

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/jesopo/lykos/internal/log"
	"github.com/jesopo/lykos/internal/persistence/sqlite"
	"github.com/jesopo/lykos/internal/users"
	"github.com/rs/zerolog"
)

// Scope says what an entry is keyed by.
type Scope string

const (
	ScopeMask    Scope = "mask"
	ScopeAccount Scope = "account"
)

// ScopeOf classifies a target string as a hostmask or an account.
func ScopeOf(target string) Scope {
	if IsMask(target) {
		return ScopeMask
	}
	return ScopeAccount
}

var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS access_flags (
		scope TEXT NOT NULL,
		ident TEXT NOT NULL,
		flags TEXT NOT NULL,
		PRIMARY KEY (scope, ident)
	);
	CREATE TABLE IF NOT EXISTS access_deny (
		scope TEXT NOT NULL,
		ident TEXT NOT NULL,
		command TEXT NOT NULL,
		PRIMARY KEY (scope, ident, command)
	);
	`,
}

type entryKey struct {
	scope Scope
	ident string
}

type maskEntry struct {
	mask  Mask
	ident string
}

// Store persists flags and denylists in SQLite and serves reads from an
// in-memory copy loaded at open.
type Store struct {
	db *sql.DB

	mu     sync.RWMutex
	flags  map[entryKey]string
	deny   map[entryKey][]string
	masks  map[string]Mask
	logger zerolog.Logger
}

// OpenStore opens (creating if needed) the database at path.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s, err := NewStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore migrates db and loads its contents.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := sqlite.Migrate(db, migrations); err != nil {
		return nil, fmt.Errorf("access store: %w", err)
	}
	s := &Store{
		db:     db,
		flags:  make(map[entryKey]string),
		deny:   make(map[entryKey][]string),
		masks:  make(map[string]Mask),
		logger: log.WithComponent("access"),
	}
	if err := s.load(ctx); err != nil {
		return nil, fmt.Errorf("access store: load: %w", err)
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT scope, ident, flags FROM access_flags`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var scope, ident, flags string
		if err := rows.Scan(&scope, &ident, &flags); err != nil {
			return err
		}
		k := entryKey{Scope(scope), ident}
		s.flags[k] = flags
		s.rememberMask(k)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	drows, err := s.db.QueryContext(ctx, `SELECT scope, ident, command FROM access_deny ORDER BY command`)
	if err != nil {
		return err
	}
	defer func() { _ = drows.Close() }()
	for drows.Next() {
		var scope, ident, command string
		if err := drows.Scan(&scope, &ident, &command); err != nil {
			return err
		}
		k := entryKey{Scope(scope), ident}
		s.deny[k] = append(s.deny[k], command)
		s.rememberMask(k)
	}
	if err := drows.Err(); err != nil {
		return err
	}

	s.logger.Debug().Int("flag_entries", len(s.flags)).Int("deny_entries", len(s.deny)).Msg("access store loaded")
	return nil
}

func (s *Store) rememberMask(k entryKey) {
	if k.scope != ScopeMask {
		return
	}
	if _, ok := s.masks[k.ident]; ok {
		return
	}
	m, err := CompileMask(k.ident)
	if err != nil {
		s.logger.Warn().Err(err).Str("mask", k.ident).Msg("ignoring unparsable mask")
		return
	}
	s.masks[k.ident] = m
}

func normalize(scope Scope, ident string) entryKey {
	return entryKey{scope: scope, ident: users.Fold(strings.TrimSpace(ident))}
}

// Flags returns the flags stored for exactly (scope, ident).
func (s *Store) Flags(scope Scope, ident string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[normalize(scope, ident)]
}

// Denied returns the commands denied to exactly (scope, ident).
func (s *Store) Denied(scope Scope, ident string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.deny[normalize(scope, ident)])
}

// SetFlags replaces the flags for (scope, ident). Empty flags delete the entry.
func (s *Store) SetFlags(ctx context.Context, scope Scope, ident, flags string) error {
	k := normalize(scope, ident)
	flags = canonicalFlags(flags)

	var err error
	if flags == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM access_flags WHERE scope = ? AND ident = ?`, string(k.scope), k.ident)
	} else {
		_, err = s.db.ExecContext(ctx, `
		INSERT INTO access_flags (scope, ident, flags) VALUES (?, ?, ?)
		ON CONFLICT(scope, ident) DO UPDATE SET flags = excluded.flags
		`, string(k.scope), k.ident, flags)
	}
	if err != nil {
		return fmt.Errorf("access store: set flags for %s %s: %w", k.scope, k.ident, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if flags == "" {
		delete(s.flags, k)
	} else {
		s.flags[k] = flags
		s.rememberMask(k)
	}
	return nil
}

// SetDenied replaces the denylist for (scope, ident).
func (s *Store) SetDenied(ctx context.Context, scope Scope, ident string, commands []string) error {
	k := normalize(scope, ident)
	commands = canonicalCommands(commands)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM access_deny WHERE scope = ? AND ident = ?`, string(k.scope), k.ident); err != nil {
		return fmt.Errorf("access store: clear denylist: %w", err)
	}
	for _, c := range commands {
		if _, err := tx.ExecContext(ctx, `INSERT INTO access_deny (scope, ident, command) VALUES (?, ?, ?)`, string(k.scope), k.ident, c); err != nil {
			return fmt.Errorf("access store: deny %s: %w", c, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(commands) == 0 {
		delete(s.deny, k)
	} else {
		s.deny[k] = commands
		s.rememberMask(k)
	}
	return nil
}

// FlagsFor is the union of the flags of every mask matching rawNick and of
// account.
func (s *Store) FlagsFor(rawNick, account string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sb strings.Builder
	for k, flags := range s.flags {
		if s.matchesLocked(k, rawNick, account) {
			sb.WriteString(flags)
		}
	}
	return canonicalFlags(sb.String())
}

// DeniedFor is the union of the denylists of every mask matching rawNick
// and of account.
func (s *Store) DeniedFor(rawNick, account string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for k, cmds := range s.deny {
		if s.matchesLocked(k, rawNick, account) {
			out = append(out, cmds...)
		}
	}
	return canonicalCommands(out)
}

func (s *Store) matchesLocked(k entryKey, rawNick, account string) bool {
	switch k.scope {
	case ScopeAccount:
		return account != "" && k.ident == users.Fold(account)
	case ScopeMask:
		m, ok := s.masks[k.ident]
		return ok && m.Match(rawNick)
	}
	return false
}

// Ping checks that the database still answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// canonicalFlags keeps each letter once, sorted.
func canonicalFlags(flags string) string {
	seen := make(map[rune]struct{})
	var out []rune
	for _, r := range flags {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z') {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	slices.Sort(out)
	return string(out)
}

func canonicalCommands(commands []string) []string {
	out := make([]string, 0, len(commands))
	for _, c := range commands {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}
