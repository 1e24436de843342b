//go:build !windows

package proc

import (
	"errors"
	"syscall"
)

const (
	sigTerminate = syscall.SIGTERM
	sigKill      = syscall.SIGKILL
)

// signalGroup delivers sig to the whole process group. ESRCH (group already
// gone) is success-equivalent: the goal of every signal here is a dead group.
func signalGroup(pgid int, sig syscall.Signal) error {
	if pgid <= 0 {
		return nil
	}
	err := syscall.Kill(-pgid, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// groupAlive probes the group with the null signal. EPERM still means a live
// group we cannot signal, so it counts as alive.
func groupAlive(pgid int) bool {
	if pgid <= 0 {
		return false
	}
	err := syscall.Kill(-pgid, 0)
	if err == nil {
		return true
	}
	return !errors.Is(err, syscall.ESRCH)
}
