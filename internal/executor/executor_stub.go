//go:build !windows
// +build !windows

package executor

import "os/exec"

// configureCommand needs no platform tweaks outside Windows
func configureCommand(cmd *exec.Cmd) {}
