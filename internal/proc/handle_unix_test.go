//go:build !windows

package proc

import (
	"bufio"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func launch(t *testing.T, command string) *Handle {
	t.Helper()
	t.Setenv("SHELL", "/bin/sh")
	h, err := Launch(command, t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Kill() })
	return h
}

func waitDone(t *testing.T, h *Handle, timeout time.Duration) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(timeout):
		t.Fatal("process did not exit in time")
	}
}

func TestLaunchCleanExit(t *testing.T) {
	h := launch(t, "echo hello")

	sc := bufio.NewScanner(h.Stdout())
	require.True(t, sc.Scan())
	assert.Equal(t, "hello", sc.Text())

	waitDone(t, h, 5*time.Second)
	assert.NoError(t, h.ExitErr())
}

func TestLaunchExitCode(t *testing.T) {
	h := launch(t, "exit 7")
	waitDone(t, h, 5*time.Second)

	var ee *exec.ExitError
	require.ErrorAs(t, h.ExitErr(), &ee)
	assert.Equal(t, 7, ee.ExitCode())
}

func TestExitErrNilWhileRunning(t *testing.T) {
	h := launch(t, "sleep 2")
	assert.NoError(t, h.ExitErr())
	assert.True(t, h.Alive())
	require.NoError(t, h.Kill())
	waitDone(t, h, 5*time.Second)
}

func TestWriteStdin(t *testing.T) {
	h := launch(t, "cat")

	_, err := h.Write([]byte("ping\n"))
	require.NoError(t, err)

	sc := bufio.NewScanner(h.Stdout())
	require.True(t, sc.Scan())
	assert.Equal(t, "ping", sc.Text())

	assert.True(t, h.StopGroup(GraceTimeout, KillTimeout))
}

func TestWriteAfterExit(t *testing.T) {
	h := launch(t, "true")
	waitDone(t, h, 5*time.Second)

	_, err := h.Write([]byte("late\n"))
	require.Error(t, err)
}

func TestStopGroupGraceful(t *testing.T) {
	h := launch(t, "sleep 5")

	start := time.Now()
	require.True(t, h.StopGroup(GraceTimeout, KillTimeout))
	assert.Less(t, time.Since(start), GraceTimeout)

	var ee *exec.ExitError
	require.ErrorAs(t, h.ExitErr(), &ee)
	// Killed by signal, not a normal exit.
	assert.Equal(t, -1, ee.ExitCode())
}

func TestStopGroupForceKillsTermIgnorer(t *testing.T) {
	h := launch(t, "trap '' TERM; sleep 5")
	// Give the shell a moment to install the trap.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	require.True(t, h.StopGroup(200*time.Millisecond, KillTimeout))
	elapsed := time.Since(start)
	// Survived the graceful window, fell to SIGKILL.
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond+KillTimeout)
}

func TestStopGroupKillsWholeGroup(t *testing.T) {
	// A background grandchild holds the stdout write end; if only the shell
	// died, the pipe would stay open and the reader would block.
	h := launch(t, "(sleep 5; echo never) & echo started; wait")

	sc := bufio.NewScanner(h.Stdout())
	require.True(t, sc.Scan())
	require.Equal(t, "started", sc.Text())

	require.True(t, h.StopGroup(GraceTimeout, KillTimeout))

	eof := make(chan bool, 1)
	go func() { eof <- !sc.Scan() }()
	select {
	case sawEOF := <-eof:
		assert.True(t, sawEOF)
	case <-time.After(2 * time.Second):
		t.Fatal("stdout still open: grandchild survived the group signal")
	}
}

func TestAliveProbe(t *testing.T) {
	h := launch(t, "sleep 2")
	assert.True(t, h.Alive())

	require.NoError(t, h.Kill())
	waitDone(t, h, 5*time.Second)

	assert.Eventually(t, func() bool { return !h.Alive() },
		2*time.Second, 25*time.Millisecond)
}

func TestTerminateGoneGroupIsSuccess(t *testing.T) {
	h := launch(t, "true")
	waitDone(t, h, 5*time.Second)
	// ESRCH maps to success: the desired state is already reached.
	assert.Eventually(t, func() bool { return h.Terminate() == nil },
		2*time.Second, 25*time.Millisecond)
}
