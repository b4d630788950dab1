package worktree

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/Iron-Ham/panedrive/internal/errors"
)

// CommandExecutor abstracts command execution for testability.
// This allows tests to fake the worktree manager and git without running them.
type CommandExecutor interface {
	// Run executes name with args in dir and returns its stdout. A non-zero
	// exit is returned as an error carrying stderr.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct {
	// Timeout bounds each command. Zero means no timeout beyond ctx.
	Timeout time.Duration
}

// NewCLICommandExecutor creates a new CLI command executor.
func NewCLICommandExecutor(timeout time.Duration) *CLICommandExecutor {
	return &CLICommandExecutor{Timeout: timeout}
}

// Run executes a command and returns its stdout.
func (e *CLICommandExecutor) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		desc := name + " " + strings.Join(args, " ")
		if ctx.Err() != nil {
			return nil, errors.Internal(desc+" timed out", ctx.Err())
		}
		return nil, errors.Internal(desc+" failed", err).WithStderr(stderr.String())
	}
	return stdout.Bytes(), nil
}
