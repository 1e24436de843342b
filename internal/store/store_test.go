package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestAddGetRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := Project{Path: "/tmp/demo", Name: "demo", AddedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, s.AddProject(ctx, p))

	got, err := s.GetProject(ctx, "/tmp/demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, "/tmp/demo", got.Path)

	require.NoError(t, s.RemoveProject(ctx, "/tmp/demo"))
	_, err = s.GetProject(ctx, "/tmp/demo")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddUpsertsName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddProject(ctx, Project{Path: "/tmp/demo", Name: "old"}))
	require.NoError(t, s.AddProject(ctx, Project{Path: "/tmp/demo", Name: "new"}))

	got, err := s.GetProject(ctx, "/tmp/demo")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.AddProject(ctx, Project{Path: "/b", Name: "b", AddedAt: base.Add(time.Second)}))
	require.NoError(t, s.AddProject(ctx, Project{Path: "/a", Name: "a", AddedAt: base}))

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "/a", list[0].Path)
	assert.Equal(t, "/b", list[1].Path)
}

func TestFileBackedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.AddProject(ctx, Project{Path: "/tmp/demo", Name: "demo"}))
	require.NoError(t, s.Close())

	// Reopen and confirm the registry survived.
	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()
	require.NoError(t, s2.EnsureSchema(ctx))
	got, err := s2.GetProject(ctx, "/tmp/demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
}
