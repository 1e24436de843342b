// Package history exports process lifecycle events to external systems.
package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart   EventType = "start"
	EventStop    EventType = "stop"
	EventCrash   EventType = "crash"
	EventRestart EventType = "restart"
)

// Event is one lifecycle transition of a supervised process.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ProjectDir string    `json:"project_dir"`
	Process    string    `json:"process_name"`
	PID        int       `json:"pid"`
	ExitError  string    `json:"exit_error,omitempty"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use. Send failures are the
// sink's own problem; supervision never depends on them.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
