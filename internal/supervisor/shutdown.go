package supervisor

import "time"

// stopTarget pairs an entry with the handle captured while marking it for
// stop, so the termination fan-out never races a concurrent restart.
type stopTarget struct {
	mp *ManagedProcess
	h  handleRef
}

// handleRef is the minimal surface the shutdown fan-out needs. It exists so
// tests can drive the coordinator without real processes.
type handleRef interface {
	Terminate() error
	Kill() error
	Alive() bool
	PID() int
}

// snapshotRunning marks every Running entry (optionally limited to one
// project; empty string means all) as stop-requested and returns the targets.
func (s *Supervisor) snapshotRunning(projectDir string) []stopTarget {
	s.mu.RLock()
	mps := make([]*ManagedProcess, 0, len(s.entries))
	for _, mp := range s.entries {
		if projectDir == "" || mp.key.ProjectDir == projectDir {
			mps = append(mps, mp)
		}
	}
	s.mu.RUnlock()

	targets := make([]stopTarget, 0, len(mps))
	for _, mp := range mps {
		mp.mu.Lock()
		if mp.state == StateRunning && mp.handle != nil {
			mp.stopRequested = true
			targets = append(targets, stopTarget{mp: mp, h: mp.handle})
		}
		mp.mu.Unlock()
	}
	return targets
}

// stopSet drives the two-phase termination of a target set: graceful signal
// to every group first (concurrently, not serially, so total latency does not
// multiply by process count), one shared grace window, then force kill of the
// stragglers and a bounded hard wait.
func (s *Supervisor) stopSet(targets []stopTarget) {
	if len(targets) == 0 {
		return
	}
	for _, t := range targets {
		_ = t.h.Terminate()
	}
	if waitAllDead(targets, s.cfg.GraceTimeout) {
		return
	}
	for _, t := range targets {
		if t.h.Alive() {
			s.log.Warn("force killing process group", "process", t.mp.key.String(), "pid", t.h.PID())
			_ = t.h.Kill()
		}
	}
	waitAllDead(targets, s.cfg.KillTimeout)
}

// waitAllDead polls the group liveness probes until all targets are gone or
// the budget elapses.
func waitAllDead(targets []stopTarget, budget time.Duration) bool {
	deadline := time.Now().Add(budget)
	for {
		alive := false
		for _, t := range targets {
			if t.h.Alive() {
				alive = true
				break
			}
		}
		if !alive {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// StopAll is the global exit coordinator: it terminates every running
// process group and blocks until all have settled or the shared budget has
// elapsed. The host must not exit before StopAll returns.
func (s *Supervisor) StopAll() {
	s.stopSet(s.snapshotRunning(""))
}

// Shutdown disables crash-triggered restarts and runs StopAll. The
// supervisor accepts no further automatic work afterwards; explicit
// operations still function for tests and late callers.
func (s *Supervisor) Shutdown() {
	s.closed.Store(true)
	s.StopAll()
}
