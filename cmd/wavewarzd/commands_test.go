package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	cmd := NewRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"start", "sync", "stats", "leaderboard", "runs", "init-config", "version"}, names)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "wavewarzd")
	assert.Contains(t, out, Version)
}

func TestInitConfigCmd(t *testing.T) {
	home := t.TempDir()
	_, err := execute(t, "init-config", "--home", home)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(home, "config", "wavewarz_config.json"))
	require.NoError(t, err)
	var cfg map[string]any
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Equal(t, "wavewarz_cache.db", cfg["database_file"])
	assert.NotContains(t, cfg, "node_home")
}

func TestReadCommandsOnEmptyCache(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	home := t.TempDir()

	out, err := execute(t, "stats", "--home", home)
	require.NoError(t, err)
	var s map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.EqualValues(t, 0, s["totalBattles"])

	out, err = execute(t, "leaderboard", "--home", home, "--sort-by", "wins")
	require.NoError(t, err)
	var board map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &board))
	assert.Equal(t, "wins", board["sortBy"])

	out, err = execute(t, "runs", "--home", home)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestSyncCmdRequiresCatalog(t *testing.T) {
	t.Setenv("OFFICIAL_WAVEWARZ_DB_URL", "")
	t.Setenv("REDIS_URL", "")
	_, err := execute(t, "sync", "--home", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog database url is required")
}

func TestExpandHome(t *testing.T) {
	userHome, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandHome("~/.wavewarz")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(userHome, ".wavewarz"), got)

	got, err = expandHome("/var/lib/wavewarz")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/wavewarz", got)
}
