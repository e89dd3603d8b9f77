// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jesopo/lykos/internal/access"
	"github.com/jesopo/lykos/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "commit:")
}

func TestConfigValidateExample(t *testing.T) {
	path := testutil.ExampleConfig(t)
	out, err := execute(t, "config", "validate", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestConfigValidateRejects(t *testing.T) {
	_, err := execute(t, "config", "validate")
	assert.ErrorContains(t, err, "--file is required")

	path := testutil.WriteConfig(t, "errors:\n  traceback_verbosity: 7\n")
	_, err = execute(t, "config", "validate", "-f", path)
	assert.ErrorContains(t, err, "traceback_verbosity")

	path = testutil.WriteConfig(t, "bot:\n  nickname: typo\n")
	_, err = execute(t, "config", "validate", "-f", path)
	assert.ErrorContains(t, err, "nickname")
}

func TestConfigDump(t *testing.T) {
	path := testutil.WriteConfig(t, "game:\n  min_players: 5\n")

	out, err := execute(t, "config", "dump", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "min_players: 5")
	assert.Contains(t, out, "#werewolf")

	out, err = execute(t, "config", "dump", "-f", path, "--format", "json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded, "Game")

	dest := filepath.Join(t.TempDir(), "effective.yaml")
	out, err = execute(t, "config", "dump", "-f", path, "-o", dest)
	require.NoError(t, err)
	assert.Empty(t, out)
	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(written), "min_players: 5")

	_, err = execute(t, "config", "dump", "--format", "toml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestDBVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lykos.db")
	store, err := access.OpenStore(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, store.SetFlags(context.Background(), access.ScopeAccount, "alice", "A"))
	require.NoError(t, store.Close())

	out, err := execute(t, "db", "verify", "--path", path, "--mode", "full")
	require.NoError(t, err)
	assert.Contains(t, out, "ok (full check)")

	_, err = execute(t, "db", "verify", "--path", filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)

	_, err = execute(t, "db", "verify", "--path", path, "--mode", "deep")
	assert.ErrorContains(t, err, "unknown mode")
}
