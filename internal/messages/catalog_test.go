// SPDX-License-Identifier: MIT

package messages

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogHasRouterKeys(t *testing.T) {
	c := Default()
	for _, key := range []string{"silenced", "not_owner", "invalid_permissions", "not_an_admin", "error_log", "error_pastebin"} {
		assert.True(t, c.Has(key), key)
	}
}

func TestFormat(t *testing.T) {
	c := Default()
	assert.Equal(t, "Game mode foo not found.", c.Format("game_mode_not_found", "foo"))
	assert.Equal(t, "You are not the owner.", c.Format("not_owner"))
	assert.Equal(t, "[nope]", c.Get("nope"))
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not_owner: \"Owners only.\"\n"), 0o600))

	c := Default()
	require.NoError(t, c.LoadOverrides(path))
	assert.Equal(t, "Owners only.", c.Get("not_owner"))
	assert.Equal(t, "You are not an admin.", c.Get("not_an_admin"))
}

func TestLoadOverridesRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o600))
	assert.Error(t, Default().LoadOverrides(path))
}
