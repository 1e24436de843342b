package proc

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Grace and force-kill budgets for two-phase group termination. The graceful
// window is intentionally short: supervised dev servers either honor SIGTERM
// quickly or not at all.
const (
	GraceTimeout  = 800 * time.Millisecond
	KillTimeout   = 800 * time.Millisecond
	alivePollStep = 50 * time.Millisecond
)

// Handle wraps one spawned OS process group: the live stdin pipe, the output
// pipes, and the exit-wait primitive. A Handle is single-use; a restart
// produces a fresh Handle.
type Handle struct {
	cmd  *exec.Cmd
	pgid int

	mu    sync.Mutex
	stdin io.WriteCloser

	stdout io.ReadCloser
	stderr io.ReadCloser

	done    chan struct{} // closed after cmd.Wait returns
	exitErr error         // valid once done is closed
}

// Launch spawns command (shell-wrapped) in workDir as a new process group.
// extraEnv entries are appended to the inherited environment.
func Launch(command, workDir string, extraEnv []string) (*Handle, error) {
	cmd := buildCommand(command, workDir)
	configureSysProcAttr(cmd)
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}

	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		closeAll(inR, inW)
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		closeAll(inR, inW, outR, outW)
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	// Plain os.Pipe ends instead of cmd.StdoutPipe: exec.Cmd closes its pipes
	// inside Wait, which races with readers that must drain grandchildren
	// output after the immediate child exits.
	cmd.Stdin = inR
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		closeAll(inR, inW, outR, outW, errR, errW)
		return nil, err
	}
	// Parent keeps the write end of stdin and the read ends of the outputs.
	closeAll(inR, outW, errW)

	h := &Handle{
		cmd:    cmd,
		pgid:   cmd.Process.Pid, // setpgid(0,0): pgid == child pid
		stdin:  inW,
		stdout: outR,
		stderr: errR,
		done:   make(chan struct{}),
	}
	go h.reap()
	return h, nil
}

// reap is the single cmd.Wait owner for this handle.
func (h *Handle) reap() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.exitErr = err
	if h.stdin != nil {
		_ = h.stdin.Close()
		h.stdin = nil
	}
	h.mu.Unlock()
	close(h.done)
}

// PID returns the immediate child PID (also the process group id).
func (h *Handle) PID() int { return h.pgid }

// Done is closed once the immediate child has been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// ExitErr reports the cmd.Wait outcome. Only meaningful after Done is closed;
// nil means exit status 0.
func (h *Handle) ExitErr() error {
	select {
	case <-h.done:
		return h.exitErr
	default:
		return nil
	}
}

// Stdout returns the read end of the process group's stdout.
func (h *Handle) Stdout() io.ReadCloser { return h.stdout }

// Stderr returns the read end of the process group's stderr.
func (h *Handle) Stderr() io.ReadCloser { return h.stderr }

// Write appends p verbatim to the process's stdin. No buffering beyond the
// OS pipe's own.
func (h *Handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	w := h.stdin
	h.mu.Unlock()
	if w == nil {
		return 0, fmt.Errorf("stdin closed")
	}
	return w.Write(p)
}

// Terminate delivers the graceful signal to the entire process group.
// A group that is already gone is success.
func (h *Handle) Terminate() error { return signalGroup(h.pgid, sigTerminate) }

// Kill delivers the forceful signal to the entire process group.
func (h *Handle) Kill() error { return signalGroup(h.pgid, sigKill) }

// Alive probes the process group non-destructively.
func (h *Handle) Alive() bool { return groupAlive(h.pgid) }

// StopGroup runs the two-phase termination primitive against this handle:
// graceful signal, bounded wait, forced kill of survivors, bounded hard wait.
// It returns true when the immediate child was confirmed reaped.
func (h *Handle) StopGroup(grace, kill time.Duration) bool {
	_ = h.Terminate()
	select {
	case <-h.done:
		return true
	case <-time.After(grace):
	}
	_ = h.Kill()
	select {
	case <-h.done:
		return true
	case <-time.After(kill):
		return false
	}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
