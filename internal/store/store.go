// Package store persists the project registry so the daemon restores its
// project list across restarts. Process state itself is never persisted; the
// supervisor rebuilds it from the live OS processes it starts.
package store

import (
	"context"
	"time"
)

// Project is one registered project directory. Path is unique and is the
// canonical identity; Name is the display name captured at add time.
type Project struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"added_at"`
}

// Store is the persistence surface for the project registry.
type Store interface {
	EnsureSchema(ctx context.Context) error
	AddProject(ctx context.Context, p Project) error
	RemoveProject(ctx context.Context, path string) error
	GetProject(ctx context.Context, path string) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	Close() error
}
