// SPDX-License-Identifier: MIT

// Package modes defines game modes: named factories producing the role
// distribution and the per-mode setting defaults a game consults.
package modes

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jesopo/lykos/internal/errs"
)

// Settings maps a tunable name to its value.
type Settings map[string]any

// Clone returns a shallow copy.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Mode is one configured game mode instance.
type Mode interface {
	// Name returns the registry name of the mode.
	Name() string
	// Startup runs once when the mode is selected.
	Startup(ctx context.Context) error
	// Teardown runs once when the game is torn down.
	Teardown(ctx context.Context)
	// Defaults returns the mode's setting defaults. Callers must not mutate it.
	Defaults() Settings
	// RoleCounts returns how many players receive each non-default role.
	RoleCounts(players int) (map[string]int, error)
}

// Factory builds a mode from its raw arguments (the text after "=").
type Factory func(args ...string) (Mode, error)

// Registry maps mode names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a name twice is a configuration error.
func (r *Registry) Register(name string, f Factory) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || f == nil {
		return errs.Configuration("mode registration needs a name and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return errs.Configuration("mode %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Lookup returns the factory for name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[strings.ToLower(name)]
	return f, ok
}

// Names lists registered modes in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Invalid builds the error a factory returns for unusable arguments.
func Invalid(format string, args ...any) *errs.Error {
	return errs.Newf(errs.CodeInvalidMode, format, args...)
}

// RegisterBuiltins registers the shipped modes.
func RegisterBuiltins(r *Registry) error {
	if err := r.Register(DefaultName, NewDefault); err != nil {
		return err
	}
	return r.Register(RolesName, NewRoles)
}
