package supervisor

import (
	"errors"
	"fmt"

	"github.com/ternlight/devmux/internal/proc"
)

var (
	// ErrAlreadyRunning is returned by Start when the process is Running.
	ErrAlreadyRunning = errors.New("process already running")
	// ErrNotRunning is returned by Stop and WriteInput when there is no live
	// process under the key.
	ErrNotRunning = errors.New("process not running")
	// ErrUnknownProcess is returned for keys that were never registered.
	ErrUnknownProcess = errors.New("unknown process")
)

// SpawnError wraps an OS-level failure to launch a command. The entry stays
// Stopped and is not retried automatically.
type SpawnError struct {
	Key proc.Key
	Err error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("spawn %s: %v", e.Key, e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// WriteError wraps a failed stdin write. Process status is unaffected; if the
// process actually exited, the monitor reconciles state on its own.
type WriteError struct {
	Key proc.Key
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write to %s: %v", e.Key, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }
