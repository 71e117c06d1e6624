//go:build windows
// +build windows

package executor

import (
	"os/exec"
	"syscall"
)

// createNoWindow keeps powershell from flashing a console window on every sample
const createNoWindow = 0x08000000

func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}
