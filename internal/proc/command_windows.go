//go:build windows

package proc

import (
	"os"
	"os/exec"
	"syscall"
)

func shellPath() string {
	if cs := os.Getenv("COMSPEC"); cs != "" {
		return cs
	}
	return "cmd.exe"
}

func buildCommand(command, workDir string) *exec.Cmd {
	// #nosec G204 -- command comes from the user's own project config
	cmd := exec.Command(shellPath(), "/C", command)
	cmd.Dir = workDir
	return cmd
}

// configureSysProcAttr creates the child in a new process group so
// taskkill /T can address the whole tree.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
