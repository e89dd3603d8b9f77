// SPDX-License-Identifier: MIT

// Package messages holds the user-visible message catalog. Rendering is a
// plain fmt substitution; translation is out of scope.
package messages

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Catalog maps message keys to fmt format strings.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]string
}

// Default returns a catalog populated from the embedded defaults.
func Default() *Catalog {
	c, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("messages: embedded defaults are invalid: %v", err))
	}
	return c
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	entries := make(map[string]string)
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse message catalog: %w", err)
	}
	return &Catalog{entries: entries}, nil
}

// LoadOverrides merges the entries of the YAML file at path over the catalog.
func (c *Catalog) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read message overrides: %w", err)
	}
	overrides, err := Parse(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range overrides.entries {
		c.entries[k] = v
	}
	return nil
}

// Get returns the raw template for key. Unknown keys render as the key in
// brackets so a missing entry is visible in chat instead of silent.
func (c *Catalog) Get(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.entries[key]; ok {
		return v
	}
	return "[" + key + "]"
}

// Format renders key with args.
func (c *Catalog) Format(key string, args ...any) string {
	tmpl := c.Get(key)
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// Has reports whether key is defined.
func (c *Catalog) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}
