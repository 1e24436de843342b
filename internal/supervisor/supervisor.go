// Package supervisor owns the registry of managed processes and their
// lifecycle state machine: spawn, monitor, crash-triggered restart, and
// two-phase shutdown.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternlight/devmux/internal/history"
	"github.com/ternlight/devmux/internal/logbus"
	"github.com/ternlight/devmux/internal/metrics"
	"github.com/ternlight/devmux/internal/proc"
)

// Config tunes supervisor timing. Zero values select the defaults; tests
// shrink the windows.
type Config struct {
	GraceTimeout time.Duration // graceful-signal window before force kill
	KillTimeout  time.Duration // bounded wait after force kill
	RestartDelay time.Duration // settle delay before crash-triggered relaunch
	Logger       *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.GraceTimeout <= 0 {
		c.GraceTimeout = proc.GraceTimeout
	}
	if c.KillTimeout <= 0 {
		c.KillTimeout = proc.KillTimeout
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = RestartDelay
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// ManagedProcess is the runtime record for one supervised command within one
// project. All mutation goes through its mutex; the generation counter
// invalidates monitor callbacks from superseded spawns.
type ManagedProcess struct {
	mu            sync.Mutex
	key           proc.Key
	spec          proc.Spec
	state         State
	handle        *proc.Handle
	stopRequested bool
	generation    uint64
	restarts      int
	startedAt     time.Time
	stoppedAt     time.Time
	exitErr       error
}

// Supervisor is the registry of ManagedProcess entries keyed by
// (project dir, process name) and the only owner of their state machine.
type Supervisor struct {
	mu      sync.RWMutex
	entries map[string]*ManagedProcess
	sinks   []history.Sink

	cfg    Config
	logs   *logbus.Broadcaster
	events *statusBus
	log    *slog.Logger
	closed atomic.Bool
}

func New() *Supervisor { return NewWithConfig(Config{}) }

func NewWithConfig(cfg Config) *Supervisor {
	cfg = cfg.withDefaults()
	return &Supervisor{
		entries: make(map[string]*ManagedProcess),
		cfg:     cfg,
		logs:    logbus.New(cfg.Logger),
		events:  newStatusBus(),
		log:     cfg.Logger,
	}
}

// Logs exposes the output broadcaster for subscribers (HTTP layer, mirrors).
func (s *Supervisor) Logs() *logbus.Broadcaster { return s.logs }

// Events returns a status event subscription and its cancel func.
func (s *Supervisor) Events() (<-chan StatusEvent, func()) { return s.events.subscribe() }

// SetHistorySinks configures lifecycle event sinks. Passing none clears them.
func (s *Supervisor) SetHistorySinks(sinks ...history.Sink) {
	s.mu.Lock()
	s.sinks = append([]history.Sink(nil), sinks...)
	s.mu.Unlock()
}

// Register creates the entry in Stopped state, or replaces its spec. A
// replaced spec does not affect a running instance until the next restart.
func (s *Supervisor) Register(key proc.Key, spec proc.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	mp := s.ensureEntry(key)
	mp.mu.Lock()
	mp.spec = spec
	mp.mu.Unlock()
	return nil
}

// Apply registers every process of a project config and starts the autostart
// entries. Entries absent from the new config stay registered; they are only
// destroyed when the project itself is removed.
func (s *Supervisor) Apply(projectDir string, cfg proc.ProjectConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	var firstErr error
	for _, spec := range cfg.Processes {
		key := proc.Key{ProjectDir: projectDir, Name: spec.Name}
		if err := s.Register(key, spec); err != nil {
			return err
		}
		if spec.AutoStart {
			// Re-applying a config over a running project is steady state;
			// an entry that is already up is not an error.
			if err := s.Start(key); err != nil && !errors.Is(err, ErrAlreadyRunning) && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// StartSpec upserts the spec for key and starts it. This is the external
// start(project, name, command, autorestart) surface.
func (s *Supervisor) StartSpec(key proc.Key, spec proc.Spec) error {
	if err := s.Register(key, spec); err != nil {
		return err
	}
	return s.Start(key)
}

// Start spawns the registered command for key as a new OS process group.
// It fails with ErrAlreadyRunning when the entry is Running and with a
// SpawnError when the OS cannot launch the command; a spawn failure leaves
// the entry Stopped and is never retried automatically.
func (s *Supervisor) Start(key proc.Key) error {
	mp := s.entry(key)
	if mp == nil {
		return fmt.Errorf("%w: %s", ErrUnknownProcess, key)
	}

	mp.mu.Lock()
	if mp.state == StateRunning {
		mp.mu.Unlock()
		return ErrAlreadyRunning
	}
	spec := mp.spec
	prev := mp.state
	h, err := proc.Launch(spec.Command, key.ProjectDir, spec.Env)
	if err != nil {
		mp.state = StateStopped
		mp.mu.Unlock()
		s.logs.Publish(logbus.Record{
			ProjectDir: key.ProjectDir,
			Process:    key.Name,
			Stream:     logbus.Stderr,
			Text:       fmt.Sprintf("Failed to start: %v", err),
		})
		s.log.Error("spawn failed", "process", key.String(), "command", spec.Command, "error", err)
		return &SpawnError{Key: key, Err: err}
	}
	mp.handle = h
	mp.stopRequested = false
	mp.generation++
	gen := mp.generation
	mp.state = StateRunning
	mp.startedAt = time.Now()
	mp.exitErr = nil
	mp.mu.Unlock()

	s.logs.Attach(key, h.Stdout(), h.Stderr())
	s.emit(key, StateRunning)
	metrics.IncStart(key.ProjectDir, key.Name)
	metrics.AddRunning(key.ProjectDir, 1)
	metrics.RecordStateTransition(key.String(), prev.String(), StateRunning.String())
	s.record(history.Event{Type: history.EventStart, ProjectDir: key.ProjectDir, Process: key.Name, PID: h.PID()})
	s.log.Info("process started", "process", key.String(), "pid", h.PID())

	go s.monitor(mp, h, gen)
	return nil
}

// Stop requests termination of the running process group and returns once the
// process is confirmed dead or the kill window has elapsed. Concurrent stops
// converge on the same termination sequence. A user-initiated stop is never
// reported as a crash, regardless of the exit code.
func (s *Supervisor) Stop(key proc.Key) error {
	mp := s.entry(key)
	if mp == nil {
		return ErrNotRunning
	}
	mp.mu.Lock()
	if mp.state != StateRunning || mp.handle == nil {
		mp.mu.Unlock()
		return ErrNotRunning
	}
	mp.stopRequested = true
	h := mp.handle
	mp.mu.Unlock()

	s.log.Info("stopping process", "process", key.String(), "pid", h.PID())
	if !h.StopGroup(s.cfg.GraceTimeout, s.cfg.KillTimeout) {
		s.log.Warn("process not reaped within kill window", "process", key.String(), "pid", h.PID())
	}
	return nil
}

// WriteInput appends b verbatim to the process's stdin.
func (s *Supervisor) WriteInput(key proc.Key, b []byte) error {
	mp := s.entry(key)
	if mp == nil {
		return ErrNotRunning
	}
	mp.mu.Lock()
	if mp.state != StateRunning || mp.handle == nil {
		mp.mu.Unlock()
		return ErrNotRunning
	}
	h := mp.handle
	mp.mu.Unlock()

	if _, err := h.Write(b); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}

// RemoveProject stops every running process of the project and destroys its
// entries. This is the only way entries leave the registry.
func (s *Supervisor) RemoveProject(projectDir string) {
	s.stopSet(s.snapshotRunning(projectDir))
	s.mu.Lock()
	for k, mp := range s.entries {
		if mp.key.ProjectDir == projectDir {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}

// monitor waits for the exit of one spawn generation and applies the restart
// policy. A monitor whose generation has been superseded discards its work.
func (s *Supervisor) monitor(mp *ManagedProcess, h *proc.Handle, gen uint64) {
	<-h.Done()
	exitErr := h.ExitErr()
	s.publishExitTrailer(mp.key, exitErr)

	mp.mu.Lock()
	if mp.generation != gen {
		mp.mu.Unlock()
		return
	}
	d := Decide(exitErr, mp.stopRequested, mp.spec.AutoRestart)
	mp.state = d.Next
	mp.handle = nil
	mp.stoppedAt = time.Now()
	mp.exitErr = exitErr
	key := mp.key
	mp.mu.Unlock()

	s.emit(key, d.Next)
	metrics.AddRunning(key.ProjectDir, -1)
	metrics.RecordStateTransition(key.String(), StateRunning.String(), d.Next.String())

	if d.Next == StateCrashed {
		metrics.IncCrash(key.ProjectDir, key.Name)
		s.record(history.Event{Type: history.EventCrash, ProjectDir: key.ProjectDir, Process: key.Name, PID: h.PID(), ExitError: errString(exitErr)})
		s.log.Warn("process crashed", "process", key.String(), "pid", h.PID(), "error", exitErr)
		if d.RestartAfter > 0 && !s.closed.Load() {
			time.AfterFunc(s.cfg.RestartDelay, func() { s.autoRestart(mp, gen) })
		}
		return
	}
	metrics.IncStop(key.ProjectDir, key.Name)
	s.record(history.Event{Type: history.EventStop, ProjectDir: key.ProjectDir, Process: key.Name, PID: h.PID(), ExitError: errString(exitErr)})
	s.log.Info("process stopped", "process", key.String(), "pid", h.PID())
}

// autoRestart fires after the settle delay. The captured generation is the
// cancellation token: a manual restart or stop in the meantime supersedes it.
func (s *Supervisor) autoRestart(mp *ManagedProcess, gen uint64) {
	if s.closed.Load() {
		return
	}
	mp.mu.Lock()
	stale := mp.generation != gen || mp.stopRequested || mp.state != StateCrashed
	key := mp.key
	mp.mu.Unlock()
	if stale {
		return
	}
	if err := s.Start(key); err != nil {
		s.log.Warn("auto-restart failed", "process", key.String(), "error", err)
		return
	}
	mp.mu.Lock()
	mp.restarts++
	mp.mu.Unlock()
	metrics.IncRestart(key.ProjectDir, key.Name)
	s.record(history.Event{Type: history.EventRestart, ProjectDir: key.ProjectDir, Process: key.Name})
}

func (s *Supervisor) publishExitTrailer(key proc.Key, exitErr error) {
	rec := logbus.Record{ProjectDir: key.ProjectDir, Process: key.Name, Stream: logbus.Stdout}
	switch e := exitErr.(type) {
	case nil:
		rec.Text = "[exit] code 0"
	case *exec.ExitError:
		if code := e.ExitCode(); code >= 0 {
			rec.Text = fmt.Sprintf("[exit] code %d", code)
		} else {
			rec.Text = "[exit] terminated by signal"
		}
	default:
		rec.Stream = logbus.Stderr
		rec.Text = fmt.Sprintf("[exit] wait failed: %v", exitErr)
	}
	s.logs.Publish(rec)
}

func (s *Supervisor) emit(key proc.Key, st State) {
	s.events.publish(StatusEvent{Key: key, Status: st})
}

func (s *Supervisor) record(e history.Event) {
	s.mu.RLock()
	sinks := s.sinks
	s.mu.RUnlock()
	if len(sinks) == 0 {
		return
	}
	e.OccurredAt = time.Now().UTC()
	for _, snk := range sinks {
		if err := snk.Send(context.Background(), e); err != nil {
			s.log.Warn("history sink send failed", "error", err)
		}
	}
}

func (s *Supervisor) entry(key proc.Key) *ManagedProcess {
	s.mu.RLock()
	mp := s.entries[key.String()]
	s.mu.RUnlock()
	return mp
}

func (s *Supervisor) ensureEntry(key proc.Key) *ManagedProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	mp := s.entries[key.String()]
	if mp == nil {
		mp = &ManagedProcess{key: key, state: StateStopped}
		s.entries[key.String()] = mp
	}
	return mp
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
