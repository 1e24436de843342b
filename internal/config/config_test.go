package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestLoadAndValidate(t *testing.T) {
	dir := t.TempDir()
	cfg := `name: demo
processes:
  - name: web
    command: "sleep 1"
    autostart: true
    autorestart: true
  - name: worker
    command: "sleep 1"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devmux.yml"), []byte(cfg), 0o644))

	pc, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "demo", pc.Name)
	require.Len(t, pc.Processes, 2)
	assert.Equal(t, "web", pc.Processes[0].Name)
	assert.True(t, pc.Processes[0].AutoStart)
	assert.True(t, pc.Processes[0].AutoRestart)
	assert.False(t, pc.Processes[1].AutoStart)
}

func TestLoadYamlExtension(t *testing.T) {
	dir := t.TempDir()
	cfg := "processes:\n  - name: a\n    command: \"true\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devmux.yaml"), []byte(cfg), 0o644))

	pc, err := Load(dir)
	require.NoError(t, err)
	// Name defaults to the directory basename when omitted.
	assert.Equal(t, filepath.Base(dir), pc.Name)
}

func TestLoadDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	cfg := "processes:\n  - name: a\n    command: x\n  - name: a\n    command: y\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devmux.yml"), []byte(cfg), 0o644))
	_, err := Load(dir)
	require.Error(t, err)
}

func TestInitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devmux.yml"), []byte("processes: []\n"), 0o644))
	_, err := Init(dir)
	require.Error(t, err)
}

func TestInitWritesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	pc, err := Init(dir)
	require.NoError(t, err)
	require.NotEmpty(t, pc.Processes)

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, pc.Name, loaded.Name)
	assert.Len(t, loaded.Processes, len(pc.Processes))
}

func TestReadWriteRaw(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteRaw(dir, "processes:\n  - name: a\n    command: x\n"))

	path, body, err := ReadRaw(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "devmux.yml"), path)
	assert.Contains(t, body, "name: a")
}
