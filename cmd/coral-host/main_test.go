package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coral-dev/coral-go/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestExportsCommand(t *testing.T) {
	out, _, err := execute(t, "exports")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 11)
	assert.Contains(t, lines, "GetReflectionType(i64, i32) -> (i32)")
	assert.Contains(t, lines, "FreeString(i64) -> ()")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "coral-host "))
}

func TestInspectCommand(t *testing.T) {
	out, _, err := execute(t, "inspect", "Coral.Bridge.Config", "--members", "--schema")
	require.NoError(t, err)

	var got inspection
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Coral.Bridge.Config", got.Type.FullName)
	assert.NotEmpty(t, got.Fields)
	assert.Equal(t, "ModuleName", got.Fields[0].Name)
	assert.Contains(t, string(got.Schema), "module_name")
}

func TestInspectCommand_NotFound(t *testing.T) {
	_, _, err := execute(t, "inspect", "Coral.Bridge.Nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestInspectCommand_ExposeOverride(t *testing.T) {
	_, _, err := execute(t, "--expose", "Coral/Bridge/Handle", "inspect", "Coral.Bridge.Config")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, _, err = execute(t, "--expose", "Coral/[oops", "inspect", "Coral.Bridge.Config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flags")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coral.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: \"{{.vars.level}}\"\n"), 0o600))

	_, stderr, err := execute(t, "--config", path, "--var", "level=debug", "inspect", "Coral.Bridge.Handle")
	require.NoError(t, err)
	assert.Contains(t, stderr, "bridge initialized")

	_, _, err = execute(t, "--config", path, "inspect", "Coral.Bridge.Handle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to render config")
}

func TestRunCommand_Errors(t *testing.T) {
	_, _, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.wasm"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read module")

	path := filepath.Join(t.TempDir(), "junk.wasm")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o600))
	_, _, err = execute(t, "run", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"junk"`)
}
