// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reader is read-only dotted-key access to configuration values.
type Reader interface {
	Get(key string) (any, bool)
}

// Snapshot is an immutable merged configuration plus its generic tree.
type Snapshot struct {
	Config Config
	tree   map[string]any
}

// NewSnapshot renders cfg into a tree addressable by dotted keys.
func NewSnapshot(cfg Config) (*Snapshot, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("render config tree: %w", err)
	}
	tree := make(map[string]any)
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("render config tree: %w", err)
	}
	return &Snapshot{Config: cfg, tree: tree}, nil
}

// Get resolves a dotted key such as "timers.day.limit".
func (s *Snapshot) Get(key string) (any, bool) {
	if s == nil || key == "" {
		return nil, false
	}
	var cur any = s.tree
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
