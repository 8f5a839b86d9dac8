package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructDefaultsBridge(t *testing.T) {
	m := structDefaults(reflect.TypeOf(Bridge{}))

	assert.Equal(t, ":3247", m["listen"])
	assert.Equal(t, "", m["key"])
	assert.Equal(t, false, m["plaintext"])
	assert.Equal(t, "2ms", m["tick"])
	assert.Equal(t, "500ms", m["idleAfter"])

	// Embedded transport configs flatten under their kong prefix.
	source, ok := m["source"].(map[string]any)
	require.True(t, ok, "source sub-map")
	assert.Contains(t, source, "path")
	serial, ok := m["serial"].(map[string]any)
	require.True(t, ok, "serial sub-map")
	assert.Contains(t, serial, "baud")
}

func TestStructDefaultsConsole(t *testing.T) {
	m := structDefaults(reflect.TypeOf(Console{}))
	assert.Equal(t, "127.0.0.1:3247", m["addr"])
	assert.Equal(t, "", m["key"])
}

func TestConfigInitWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "bridge.json")

	c := &ConfigInit{Command: "bridge", Format: "json", Output: dest}
	require.NoError(t, c.Run())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, ":3247", m["listen"])
	assert.Contains(t, m, "source")

	// A second run without --force must refuse to clobber the file.
	assert.Error(t, c.Run())
	c.Force = true
	assert.NoError(t, c.Run())
}

func TestConfigInitTOML(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "console.toml")
	c := &ConfigInit{Command: "console", Format: "toml", Output: dest}
	require.NoError(t, c.Run())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), `addr = "127.0.0.1:3247"`)
}

func TestConfigInitRejectsUnknownCommand(t *testing.T) {
	c := &ConfigInit{Command: "nope", Format: "toml",
		Output: filepath.Join(t.TempDir(), "x.toml")}
	assert.Error(t, c.Run())
}
