// Package tmux is the adapter between panedrive and the tmux command line.
//
// Every interaction with tmux goes through a Runner, which executes a single
// tmux invocation and reports its stdout, stderr and exit code. The Client
// layers typed helpers on top of a Runner and translates tmux failures into
// the closed error taxonomy of the errors package. Tests substitute a fake
// Runner and never touch a real tmux server.
//
// A dedicated socket can be configured so that panedrive talks to an
// isolated tmux server; when no socket is set the user's default server is
// used.
package tmux

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/Iron-Ham/panedrive/internal/errors"
)

// DefaultBinary is the tmux executable looked up on PATH.
const DefaultBinary = "tmux"

// Result is the outcome of one tmux invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// OK reports whether tmux exited with status zero.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Runner executes a tmux command.
//
// A non-zero exit status is not an error: it is reported through
// Result.ExitCode so callers can inspect stderr. The returned error is
// reserved for failures to run tmux at all (missing binary, timeout,
// cancelled context).
type Runner interface {
	Run(ctx context.Context, args ...string) (Result, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, args ...string) (Result, error)

// Run calls f(ctx, args...).
func (f RunnerFunc) Run(ctx context.Context, args ...string) (Result, error) {
	return f(ctx, args...)
}

// ExecRunner runs tmux as a subprocess.
type ExecRunner struct {
	// Binary is the tmux executable. Defaults to DefaultBinary.
	Binary string
	// Socket selects a named server with -L. Empty uses the default server.
	Socket string
	// Timeout bounds each invocation. Zero means no timeout beyond ctx.
	Timeout time.Duration
}

// NewExecRunner creates an ExecRunner for the given binary and socket.
func NewExecRunner(binary, socket string, timeout time.Duration) *ExecRunner {
	if binary == "" {
		binary = DefaultBinary
	}
	return &ExecRunner{Binary: binary, Socket: socket, Timeout: timeout}
}

// Args returns the full argument list passed to the tmux binary, including
// the socket selector.
func (r *ExecRunner) Args(args ...string) []string {
	if r.Socket == "" {
		return args
	}
	return append([]string{"-L", r.Socket}, args...)
}

// Run executes tmux with args and captures its output.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	binary := r.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, r.Args(args...)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, err
}
