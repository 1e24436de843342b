package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" warning "))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Dir: "/tmp/logs"}.Enabled())
}

func TestWritersCreateFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	cfg := Config{Dir: dir}

	outW, errW, err := cfg.Writers("web")
	require.NoError(t, err)
	require.NotNil(t, outW)
	require.NotNil(t, errW)
	defer func() { _ = outW.Close(); _ = errW.Close() }()

	_, err = outW.Write([]byte("hello\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "web.stdout.log"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestWritersNoDir(t *testing.T) {
	outW, errW, err := Config{}.Writers("web")
	require.NoError(t, err)
	assert.Nil(t, outW)
	assert.Nil(t, errW)
}

func TestSetupInstallsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	l := Setup("debug")
	require.NotNil(t, l)
	assert.Same(t, l, slog.Default())
	assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))
}
