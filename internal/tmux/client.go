package tmux

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/Iron-Ham/panedrive/internal/errors"
)

var paneIDPattern = regexp.MustCompile(`^%\d+$`)

// ValidatePaneID checks that id has the tmux pane form "%<digits>".
func ValidatePaneID(id string) error {
	if !paneIDPattern.MatchString(id) {
		return errors.InvalidPane(id)
	}
	return nil
}

// Client wraps a Runner with typed tmux operations.
type Client struct {
	runner Runner
}

// NewClient creates a Client backed by runner.
func NewClient(runner Runner) *Client {
	return &Client{runner: runner}
}

// Exec runs a tmux command and converts every failure into a CommandError.
// A non-zero exit becomes CodeInternal carrying tmux's stderr, except when
// the server is unreachable, which is CodeTmuxUnavailable.
func (c *Client) Exec(ctx context.Context, args ...string) (Result, error) {
	res, err := c.runner.Run(ctx, args...)
	if err != nil {
		return res, runError(args, err)
	}
	if !res.OK() {
		return res, exitError(args, res)
	}
	return res, nil
}

// HasSession reports whether a session with exactly this name exists.
// An unreachable server is CodeTmuxUnavailable, not a missing session.
func (c *Client) HasSession(ctx context.Context, name string) (bool, error) {
	args := []string{"has-session", "-t", "=" + name}
	res, err := c.runner.Run(ctx, args...)
	if err != nil {
		return false, runError(args, err)
	}
	if res.OK() {
		return true, nil
	}
	if !isNoServer(res.Stderr) && isMissingTarget(res.Stderr) {
		return false, nil
	}
	return false, exitError(args, res)
}

// ListWindowNames returns the names of all windows in session.
func (c *Client) ListWindowNames(ctx context.Context, session string) ([]string, error) {
	res, err := c.Exec(ctx, "list-windows", "-t", "="+session, "-F", "#{window_name}")
	if err != nil {
		return nil, err
	}
	return splitLines(res.Stdout), nil
}

// Window identifies a window and its first pane.
type Window struct {
	ID     string `json:"windowId"`
	Index  int    `json:"windowIndex"`
	Name   string `json:"windowName"`
	PaneID string `json:"paneId"`
}

// NewWindowOptions describes a window to create.
type NewWindowOptions struct {
	Session string
	Name    string
	Cwd     string
}

const windowFormat = "#{window_id}\t#{window_index}\t#{window_name}\t#{pane_id}"

// NewWindow creates a detached window and returns its identity. When tmux
// created the window but its output cannot be fully parsed, the error is
// returned together with a Window carrying the window id so the caller can
// remove it.
func (c *Client) NewWindow(ctx context.Context, opts NewWindowOptions) (Window, error) {
	args := []string{"new-window", "-d", "-P", "-F", windowFormat, "-t", "=" + opts.Session + ":"}
	if opts.Name != "" {
		args = append(args, "-n", opts.Name)
	}
	if opts.Cwd != "" {
		args = append(args, "-c", opts.Cwd)
	}
	res, err := c.Exec(ctx, args...)
	if err != nil {
		return Window{}, err
	}
	return parseWindow(res.Stdout)
}

func parseWindow(out string) (Window, error) {
	fields := strings.Split(strings.TrimSpace(out), "\t")
	var partial Window
	if strings.HasPrefix(fields[0], "@") {
		partial.ID = fields[0]
	}
	if len(fields) != 4 {
		return partial, errors.Internal(fmt.Sprintf("unexpected new-window output: %q", out), nil)
	}
	index, err := strconv.Atoi(fields[1])
	if err != nil {
		return partial, errors.Internal("invalid window index "+fields[1], err)
	}
	return Window{ID: fields[0], Index: index, Name: fields[2], PaneID: fields[3]}, nil
}

// KillWindow removes a window. A window that no longer exists is not an error.
func (c *Client) KillWindow(ctx context.Context, target string) error {
	return c.kill(ctx, "kill-window", target)
}

// KillPane removes a pane. A pane that no longer exists is not an error.
func (c *Client) KillPane(ctx context.Context, paneID string) error {
	return c.kill(ctx, "kill-pane", paneID)
}

func (c *Client) kill(ctx context.Context, verb, target string) error {
	args := []string{verb, "-t", target}
	res, err := c.runner.Run(ctx, args...)
	if err != nil {
		return runError(args, err)
	}
	if res.OK() || isMissingTarget(res.Stderr) || isNoServer(res.Stderr) {
		return nil
	}
	return exitError(args, res)
}

// PaneInfo describes a pane and the window that holds it.
type PaneInfo struct {
	Session        string `json:"sessionName"`
	WindowID       string `json:"windowId"`
	WindowIndex    int    `json:"windowIndex"`
	WindowName     string `json:"windowName"`
	PaneID         string `json:"paneId"`
	PID            int    `json:"panePid"`
	CurrentCommand string `json:"currentCommand"`
	CurrentPath    string `json:"currentPath"`
}

const paneFormat = "#{session_name}\t#{window_id}\t#{window_index}\t#{window_name}\t#{pane_id}\t#{pane_pid}\t#{pane_current_command}\t#{pane_current_path}"

// PaneInfo looks up a pane. A malformed id or a pane that does not exist
// yields CodeInvalidPane.
func (c *Client) PaneInfo(ctx context.Context, paneID string) (PaneInfo, error) {
	if err := ValidatePaneID(paneID); err != nil {
		return PaneInfo{}, err
	}
	out, err := c.display(ctx, paneID, paneFormat)
	if err != nil {
		return PaneInfo{}, err
	}
	fields := strings.Split(out, "\t")
	if len(fields) != 8 {
		return PaneInfo{}, errors.Internal(fmt.Sprintf("unexpected pane info: %q", out), nil)
	}
	index, _ := strconv.Atoi(fields[2])
	pid, _ := strconv.Atoi(fields[5])
	return PaneInfo{
		Session:        fields[0],
		WindowID:       fields[1],
		WindowIndex:    index,
		WindowName:     fields[3],
		PaneID:         fields[4],
		PID:            pid,
		CurrentCommand: fields[6],
		CurrentPath:    fields[7],
	}, nil
}

// PaneCurrentCommand returns the name of the pane's foreground process.
func (c *Client) PaneCurrentCommand(ctx context.Context, paneID string) (string, error) {
	return c.display(ctx, paneID, "#{pane_current_command}")
}

func (c *Client) display(ctx context.Context, paneID, format string) (string, error) {
	args := []string{"display-message", "-p", "-t", paneID, format}
	res, err := c.runner.Run(ctx, args...)
	if err != nil {
		return "", runError(args, err)
	}
	if !res.OK() {
		if isMissingTarget(res.Stderr) {
			return "", errors.InvalidPane(paneID).WithStderr(res.Stderr)
		}
		return "", exitError(args, res)
	}
	return strings.TrimRight(res.Stdout, "\r\n"), nil
}

// ExitCopyMode leaves copy mode or any other pane mode. tmux rejects the
// cancel command when the pane is not in a mode, so callers treat the
// error as advisory.
func (c *Client) ExitCopyMode(ctx context.Context, paneID string) error {
	_, err := c.Exec(ctx, "send-keys", "-t", paneID, "-X", "cancel")
	return err
}

// SendLiteral types text into the pane without key-name lookup.
func (c *Client) SendLiteral(ctx context.Context, paneID, text string) error {
	_, err := c.Exec(ctx, "send-keys", "-t", paneID, "-l", "--", text)
	return err
}

// SendKey sends one named key such as "C-m" or "Escape".
func (c *Client) SendKey(ctx context.Context, paneID, key string) error {
	_, err := c.Exec(ctx, "send-keys", "-t", paneID, key)
	return err
}

func verb(args []string) string {
	if len(args) == 0 {
		return "tmux"
	}
	return "tmux " + args[0]
}

func runError(args []string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Internal(verb(args)+" timed out", err)
	case errors.Is(err, context.Canceled):
		return errors.Internal(verb(args)+" cancelled", err)
	case errors.Is(err, exec.ErrNotFound):
		return errors.TmuxUnavailable("tmux binary not found", err)
	default:
		return errors.TmuxUnavailable("failed to run "+verb(args), err)
	}
}

func exitError(args []string, res Result) error {
	if isNoServer(res.Stderr) {
		return errors.TmuxUnavailable("tmux server is not running", nil).WithStderr(res.Stderr)
	}
	return errors.Internal(fmt.Sprintf("%s exited with status %d", verb(args), res.ExitCode), nil).
		WithStderr(res.Stderr)
}

func isNoServer(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "no server running") || strings.Contains(s, "error connecting to")
}

func isMissingTarget(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "can't find") || strings.Contains(s, "no such") ||
		strings.Contains(s, "not found")
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
