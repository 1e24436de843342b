//go:build windows

package proc

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// Windows has no POSIX process groups; approximate with taskkill /T, which
// walks the child tree. Signal constants mirror the Unix file so the handle
// code stays platform-free.
const (
	sigTerminate = syscall.Signal(15)
	sigKill      = syscall.Signal(9)
)

func signalGroup(pgid int, sig syscall.Signal) error {
	if pgid <= 0 {
		return nil
	}
	args := []string{"/T", "/PID", strconv.Itoa(pgid)}
	if sig == sigKill {
		args = append(args, "/F")
	}
	// taskkill failing because the tree is already gone is success.
	_ = exec.Command("taskkill", args...).Run()
	return nil
}

func groupAlive(pgid int) bool {
	if pgid <= 0 {
		return false
	}
	p, err := os.FindProcess(pgid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
