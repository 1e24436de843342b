package client

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternlight/devmux/internal/logbus"
	"github.com/ternlight/devmux/internal/server"
	"github.com/ternlight/devmux/internal/store"
	"github.com/ternlight/devmux/internal/supervisor"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestClient(t *testing.T) (*Client, *supervisor.Supervisor) {
	t.Helper()
	sup := supervisor.New()
	t.Cleanup(sup.Shutdown)

	registry, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })
	require.NoError(t, registry.EnsureSchema(context.Background()))

	tail := logbus.NewTail(sup.Logs(), logbus.DefaultTailLines)
	t.Cleanup(tail.Close)

	r := server.NewRouter(sup, registry, tail, "/api")
	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)

	return New(Config{BaseURL: srv.URL + "/api"}), sup
}

func writeProject(t *testing.T, cfg string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devmux.yml"), []byte(cfg), 0o644))
	return dir
}

func TestIsReachable(t *testing.T) {
	c, _ := newTestClient(t)
	assert.True(t, c.IsReachable(context.Background()))

	dead := New(Config{BaseURL: "http://127.0.0.1:1/api"})
	assert.False(t, dead.IsReachable(context.Background()))
}

func TestProjectRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	dir := writeProject(t, "name: demo\nprocesses:\n  - name: web\n    command: \"sleep 1\"\n")

	require.NoError(t, c.AddProject(ctx, dir))

	list, err := c.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "demo", list[0].Name)

	sts, err := c.Statuses(ctx, dir)
	require.NoError(t, err)
	require.Len(t, sts, 1)
	assert.Equal(t, "web", sts[0].Key.Name)
	assert.Equal(t, supervisor.StateStopped, sts[0].State)

	st, err := c.Status(ctx, dir, "web")
	require.NoError(t, err)
	assert.Equal(t, supervisor.StateStopped, st.State)

	require.NoError(t, c.RemoveProject(ctx, dir))
	list, err = c.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStatusErrorSurfaced(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.Status(context.Background(), "/tmp/none", "web")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown process")
}

func TestConfigRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	orig := "processes:\n  - name: web\n    command: \"sleep 1\"\n"
	dir := writeProject(t, orig)

	cfg, err := c.GetConfig(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, orig, cfg.Contents)

	updated := "processes:\n  - name: worker\n    command: \"sleep 1\"\n"
	require.NoError(t, c.PutConfig(ctx, dir, updated))

	cfg, err = c.GetConfig(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, updated, cfg.Contents)
}

func TestTailLogsEmpty(t *testing.T) {
	c, _ := newTestClient(t)
	recs, err := c.TailLogs(context.Background(), "/tmp/p", "web")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStopNotRunning(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	dir := writeProject(t, "processes:\n  - name: web\n    command: \"sleep 1\"\n")
	require.NoError(t, c.AddProject(ctx, dir))

	err := c.Stop(ctx, dir, "web")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}
