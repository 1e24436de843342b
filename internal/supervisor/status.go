package supervisor

import (
	"sort"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"github.com/ternlight/devmux/internal/proc"
)

// ProcessStatus is a point-in-time snapshot of one managed process.
type ProcessStatus struct {
	Key         proc.Key  `json:"key"`
	State       State     `json:"state"`
	PID         int       `json:"pid,omitempty"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	StoppedAt   time.Time `json:"stopped_at,omitzero"`
	Restarts    int       `json:"restarts"`
	AutoRestart bool      `json:"autorestart"`
	ExitError   string    `json:"exit_error,omitempty"`
	CPUPercent  float64   `json:"cpu_percent,omitempty"`
	MemoryRSS   uint64    `json:"memory_rss,omitempty"`
}

// Status snapshots one entry. Pure read; never blocks on process state.
func (s *Supervisor) Status(key proc.Key) (ProcessStatus, error) {
	mp := s.entry(key)
	if mp == nil {
		return ProcessStatus{}, ErrUnknownProcess
	}
	return s.snapshot(mp), nil
}

// Statuses lists all entries of one project, sorted by process name.
func (s *Supervisor) Statuses(projectDir string) []ProcessStatus {
	s.mu.RLock()
	mps := make([]*ManagedProcess, 0, len(s.entries))
	for _, mp := range s.entries {
		if mp.key.ProjectDir == projectDir {
			mps = append(mps, mp)
		}
	}
	s.mu.RUnlock()

	out := make([]ProcessStatus, 0, len(mps))
	for _, mp := range mps {
		out = append(out, s.snapshot(mp))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Name < out[j].Key.Name })
	return out
}

func (s *Supervisor) snapshot(mp *ManagedProcess) ProcessStatus {
	mp.mu.Lock()
	st := ProcessStatus{
		Key:         mp.key,
		State:       mp.state,
		StartedAt:   mp.startedAt,
		StoppedAt:   mp.stoppedAt,
		Restarts:    mp.restarts,
		AutoRestart: mp.spec.AutoRestart,
		ExitError:   errString(mp.exitErr),
	}
	if mp.handle != nil {
		st.PID = mp.handle.PID()
	}
	mp.mu.Unlock()

	if st.State == StateRunning && st.PID > 0 {
		enrichUsage(&st)
	}
	return st
}

// enrichUsage adds best-effort CPU and RSS figures for the immediate child.
// Failures (racing exit, platform gaps) leave the fields zero.
func enrichUsage(st *ProcessStatus) {
	p, err := gopsproc.NewProcess(int32(st.PID))
	if err != nil {
		return
	}
	if cpu, err := p.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if mi, err := p.MemoryInfo(); err == nil && mi != nil {
		st.MemoryRSS = mi.RSS
	}
}
