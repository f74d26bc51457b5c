package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gwctl/gwctl/pkg/gwctl/registry"
)

func runIn(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	root := NewRootCommand(Config{
		ConfigPath:   filepath.Join(dir, "config.yaml"),
		DataDir:      dir,
		OutputWriter: out,
		ErrWriter:    &bytes.Buffer{},
	})
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestConfigSetGetUnset(t *testing.T) {
	t.Setenv("GWCTL_API_URL", "")
	t.Setenv("GWCTL_OUTPUT", "")
	dir := t.TempDir()

	out, err := runIn(t, dir, "config", "set", "api-url", "https://gw.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "Set api-url to https://gw.example.com\n", out)

	out, err = runIn(t, dir, "config", "get", "api-url")
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example.com\n", out)

	_, err = runIn(t, dir, "config", "set", "api-url", "gw.example.com")
	require.Error(t, err)

	_, err = runIn(t, dir, "config", "set", "token-storage", "vault")
	require.Error(t, err)

	out, err = runIn(t, dir, "config", "view", "-o", "yaml")
	require.NoError(t, err)
	var view map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.Equal(t, "https://gw.example.com", view["api-url"])

	out, err = runIn(t, dir, "config", "unset", "api-url")
	require.NoError(t, err)
	assert.Equal(t, "Unset api-url\n", out)

	out, err = runIn(t, dir, "config", "unset", "api-url")
	require.NoError(t, err)
	assert.Contains(t, out, "was not set")

	out, err = runIn(t, dir, "config", "get", "api-url")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000\n", out)

	out, err = runIn(t, dir, "config", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "api-url: http://localhost:8000 (default)")
	assert.Contains(t, out, "jwks-ttl:")

	_, err = runIn(t, dir, "config", "get", "colour")
	require.Error(t, err)
}

func TestConfigGetHonoursEnvironment(t *testing.T) {
	t.Setenv("GWCTL_API_URL", "https://env.example.com/")
	out, err := runIn(t, t.TempDir(), "config", "get", "api-url")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com\n", out)
}

func TestConfigPath(t *testing.T) {
	dir := t.TempDir()
	out, err := runIn(t, dir, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "config.yaml"))
}

func TestInvalidConfigFileIsRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("version: v1\napi-url: ftp://nope\n"), 0o600))
	_, err := runIn(t, dir, "config", "get")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestInstanceLifecycle(t *testing.T) {
	t.Setenv("GWCTL_OUTPUT", "")
	dir := t.TempDir()

	out, err := runIn(t, dir, "instance", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No instances registered")

	out, err = runIn(t, dir, "instance", "add", "--label", "edge", "--ip", "10.0.0.5", "--port", "9000")
	require.NoError(t, err)
	id := registry.DeriveID("10.0.0.5", 9000, "edge")
	assert.Equal(t, "Saved instance edge ("+id+") at 10.0.0.5:9000\n", out)

	_, err = runIn(t, dir, "instance", "add", "--label", "core")
	require.NoError(t, err)

	// same label, new address: updated in place
	_, err = runIn(t, dir, "instance", "add", "--label", "edge", "--ip", "10.0.0.6", "--port", "9000")
	require.NoError(t, err)

	out, err = runIn(t, dir, "instance", "ls", "-o", "json")
	require.NoError(t, err)
	var list []registry.Instance
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "10.0.0.6", list[0].IP)
	assert.Equal(t, "127.0.0.1", list[1].IP)
	assert.Equal(t, uint16(8081), list[1].Port)
	assert.Equal(t, registry.DefaultPathPrefix, list[1].PathPrefix)

	out, err = runIn(t, dir, "instance", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "LABEL")
	assert.Contains(t, out, "10.0.0.6:9000")

	_, err = runIn(t, dir, "instance", "remove", "--ip", "127.0.0.1", "--port", "8081")
	require.NoError(t, err)

	out, err = runIn(t, dir, "instance", "rm", "edge")
	require.NoError(t, err)
	assert.Equal(t, "Removed.\n", out)

	_, err = runIn(t, dir, "instance", "remove", "edge")
	require.EqualError(t, err, "no matching instance")

	_, err = runIn(t, dir, "instance", "remove")
	require.Error(t, err)

	out, err = runIn(t, dir, "instance", "add")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved instance 127.0.0.1:8081 (")
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("GWCTL_OUTPUT", "")
	dir := t.TempDir()

	out, err := runIn(t, dir, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "gwctl "))

	out, err = runIn(t, dir, "version", "-o", "json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")

	_, err = runIn(t, dir, "version", "-o", "xml")
	require.Error(t, err)
}

func TestVersionSkipsBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(":::"), 0o600))
	_, err := runIn(t, dir, "version")
	require.NoError(t, err)
}

func TestCompletionCommand(t *testing.T) {
	dir := t.TempDir()
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		out, err := runIn(t, dir, "completion", shell)
		require.NoError(t, err, shell)
		assert.Contains(t, out, "gwctl", shell)
	}

	_, err := runIn(t, dir, "completion", "tcsh")
	require.EqualError(t, err, "unsupported shell: tcsh")

	cmd := NewCompletionCommand()
	assert.Contains(t, cmd.Example, "source <(gwctl completion bash)")
	assert.Contains(t, cmd.Long, "gwctl config get|set|unset")
}
