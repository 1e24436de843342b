package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a project path is not registered.
var ErrNotFound = errors.New("project not found")

// SQLiteStore implements Store on an embedded sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the registry database at path. An empty
// path opens an in-memory database, which is what the tests use.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite works best with a single writer connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS projects (
    path     TEXT PRIMARY KEY,
    name     TEXT NOT NULL,
    added_at TIMESTAMP NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// AddProject registers a project, updating the name if the path is already
// present.
func (s *SQLiteStore) AddProject(ctx context.Context, p Project) error {
	if p.AddedAt.IsZero() {
		p.AddedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO projects(path, name, added_at) VALUES(?, ?, ?)
ON CONFLICT(path) DO UPDATE SET name = excluded.name`,
		p.Path, p.Name, p.AddedAt)
	if err != nil {
		return fmt.Errorf("add project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveProject(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("remove project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, path string) (Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx,
		`SELECT path, name, added_at FROM projects WHERE path = ?`, path).
		Scan(&p.Path, &p.Name, &p.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, name, added_at FROM projects ORDER BY added_at, path`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Path, &p.Name, &p.AddedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
