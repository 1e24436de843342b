package supervisor

import "time"

// RestartDelay is the fixed settle delay before a crash-triggered relaunch.
// Deliberately unconditional: no backoff, no retry cap. A process crashing in
// a tight loop restarts once per second until stopped.
const RestartDelay = time.Second

// Decision is the outcome of the restart policy for one process exit.
type Decision struct {
	Next         State
	RestartAfter time.Duration // > 0 schedules a relaunch
}

// Decide maps an exit outcome to the next state. Pure function:
//   - a requested stop or a zero exit code is a clean Stop, never a crash;
//   - any other exit (nonzero code, killed by signal, wait failure) is a
//     Crash, with a delayed relaunch iff autoRestart is set.
func Decide(exitErr error, stopRequested, autoRestart bool) Decision {
	if stopRequested || exitErr == nil {
		return Decision{Next: StateStopped}
	}
	d := Decision{Next: StateCrashed}
	if autoRestart {
		d.RestartAfter = RestartDelay
	}
	return d
}
