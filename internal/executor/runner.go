package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CommandRunner runs probe programs (osascript, powershell) and returns their stdout
type CommandRunner struct {
	logger *zap.Logger
}

// NewRunner creates a runner for the current platform
func NewRunner(logger *zap.Logger) *CommandRunner {
	return &CommandRunner{logger: logger.Named("executor")}
}

// Run executes name with args and returns stdout. A non-zero exit status is an error
// carrying the trimmed stderr. ctx cancellation kills the process.
func (r *CommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	configureCommand(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	r.logger.Debug("Probe command finished",
		zap.String("command", name),
		zap.Duration("took", time.Since(start)),
		zap.Bool("ok", err == nil))

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %w (output: %s)", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// CommandExists checks if a binary exists in PATH
func CommandExists(binary string) bool {
	_, err := exec.LookPath(binary)
	return err == nil
}
