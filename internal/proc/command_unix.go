//go:build !windows

package proc

import (
	"os"
	"os/exec"
	"syscall"
)

// shellPath returns the user's shell, falling back to /bin/sh. Supervised
// commands are almost always package-manager wrappers (npm run dev, make
// watch) that rely on the user's PATH, so the login shell is preferred.
func shellPath() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// buildCommand wraps the command string in the user's shell. The supervisor
// never parses command syntax itself; pipes, &&, env assignments and the rest
// are the shell's problem.
func buildCommand(command, workDir string) *exec.Cmd {
	// #nosec G204 -- command comes from the user's own project config
	cmd := exec.Command(shellPath(), "-lc", command)
	cmd.Dir = workDir
	return cmd
}

// configureSysProcAttr places the child in a new process group (setpgid) so
// the whole subtree can be signaled as one unit.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
