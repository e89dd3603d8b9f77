// SPDX-License-Identifier: MIT

package daemon

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jesopo/lykos/internal/access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "lykos.yaml")
	body := `bot:
  nick: lykos
  main_channel: "#werewolf"
  owner_accounts: [root]
game:
  min_players: 4
  max_players: 8
storage:
  path: ` + filepath.Join(dir, "lykos.db") + `
logs:
  audit: ` + filepath.Join(dir, "audit.log") + `
  errors: ` + filepath.Join(dir, "errors.log") + `
metrics:
  listen: 127.0.0.1:0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("game:\n  min_players: 0\n"), 0o600))

	rt, err := Build(context.Background(), Options{ConfigPath: path, In: strings.NewReader(""), Out: io.Discard, LogOutput: io.Discard})
	assert.Nil(t, rt)
	assert.ErrorContains(t, err, "game.min_players must be positive")
}

func TestRuntimeEndToEnd(t *testing.T) {
	dir := t.TempDir()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	rt, err := Build(context.Background(), Options{
		ConfigPath: writeConfig(t, dir),
		Version:    "test",
		In:         inR,
		Out:        outW,
		LogOutput:  io.Discard,
	})
	require.NoError(t, err)

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(outR)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	next := func() string {
		select {
		case l := <-lines:
			return l
		case <-time.After(5 * time.Second):
			t.Fatal("no output")
			return ""
		}
	}

	done := make(chan error, 1)
	go func() { done <- rt.App.Run(context.Background()) }()

	_, err = io.WriteString(inW, "alice!a@alice.example #werewolf !join\n")
	require.NoError(t, err)
	assert.Equal(t, "#werewolf alice has joined the game. New player count: 1.", next())

	_, err = io.WriteString(inW, "root!r@root.example;root #werewolf !fflags bob +AS\n")
	require.NoError(t, err)
	assert.Equal(t, "#werewolf Flags for bob are now: AS", next())
	assert.Equal(t, "AS", rt.Store.Flags(access.ScopeAccount, "bob"))

	_, err = io.WriteString(inW, "alice!a@alice.example #werewolf !fflags alice +A\n")
	require.NoError(t, err)
	assert.Equal(t, "alice You are not the owner.", next())

	require.Eventually(t, func() bool { return rt.Server.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	client := &http.Client{Timeout: 2 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + rt.Server.Addr() + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, inW.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop after input closed")
	}
	require.NoError(t, outW.Close())
	require.NoError(t, rt.Close(context.Background()))

	audit, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	assert.Contains(t, string(audit), `"command":"fflags"`)
	assert.NotContains(t, string(audit), `"actor":"alice`)
}
