package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSteps(t *testing.T) {
	steps, err := parseSteps(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, steps)

	steps, err = parseSteps([]string{" 3 "})
	require.NoError(t, err)
	assert.Equal(t, 3, steps)

	for _, raw := range []string{"0", "-1", "x"} {
		_, err := parseSteps([]string{raw})
		assert.Error(t, err, raw)
	}
}

func TestParseVersionAndTarget(t *testing.T) {
	v, err := parseVersion("1")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = parseVersion("-2")
	assert.Error(t, err)

	target, err := parseTarget("2")
	require.NoError(t, err)
	assert.Equal(t, uint(2), target)

	_, err = parseTarget("two")
	assert.Error(t, err)
}

func TestResolveMigrationsDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MIGRATIONS_DIR", "")

	got, err := resolveMigrationsDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	file := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	t.Chdir(dir)
	_, err = resolveMigrationsDir(file)
	assert.Error(t, err)
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"up", "down", "version", "force", "goto"} {
		assert.True(t, names[want], want)
	}
}
