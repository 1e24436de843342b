package supervisor

import (
	"fmt"

	"github.com/ternlight/devmux/internal/proc"
)

// State is the lifecycle state of one managed process.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *State) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"stopped"`:
		*s = StateStopped
	case `"running"`:
		*s = StateRunning
	case `"crashed"`:
		*s = StateCrashed
	default:
		return fmt.Errorf("unknown process state %s", string(b))
	}
	return nil
}

// StatusEvent announces a state transition. Events for one key are delivered
// in transition order; a generation's Running always precedes its terminal
// Stopped or Crashed.
type StatusEvent struct {
	Key    proc.Key `json:"key"`
	Status State    `json:"status"`
}
