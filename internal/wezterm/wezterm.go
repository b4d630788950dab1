// Package wezterm drives WezTerm panes through "wezterm cli". It implements
// the same pane transport as the tmux client so the dispatcher can target
// either multiplexer.
//
// WezTerm has no key-name input command; named keys are translated to the
// byte sequences a terminal would send and written with send-text.
package wezterm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Iron-Ham/panedrive/internal/errors"
	"github.com/Iron-Ham/panedrive/internal/tmux"
)

// DefaultBinary is the wezterm executable looked up on PATH.
const DefaultBinary = "wezterm"

var paneIDPattern = regexp.MustCompile(`^\d+$`)

// ValidatePaneID checks that id is a WezTerm pane id.
func ValidatePaneID(id string) error {
	if !paneIDPattern.MatchString(id) {
		return errors.InvalidPane(id)
	}
	return nil
}

// NewExecRunner runs the wezterm binary. The CLI reports failures through
// stderr and the exit status exactly like tmux does.
func NewExecRunner(binary string, timeout time.Duration) *tmux.ExecRunner {
	if binary == "" {
		binary = DefaultBinary
	}
	return &tmux.ExecRunner{Binary: binary, Timeout: timeout}
}

// Client sends input to WezTerm panes.
type Client struct {
	runner tmux.Runner
}

// NewClient creates a Client over runner.
func NewClient(runner tmux.Runner) *Client {
	return &Client{runner: runner}
}

// ExitCopyMode is a no-op: WezTerm's copy mode is a client-side overlay
// that does not swallow input sent through the CLI.
func (c *Client) ExitCopyMode(context.Context, string) error {
	return nil
}

// SendLiteral writes text to the pane as-is.
func (c *Client) SendLiteral(ctx context.Context, paneID, text string) error {
	return c.sendText(ctx, paneID, text)
}

// SendKey writes the byte sequence for a tmux-style key name.
func (c *Client) SendKey(ctx context.Context, paneID, key string) error {
	seq, ok := KeySequence(key)
	if !ok {
		return errors.InvalidPayload("key %q cannot be sent to a WezTerm pane", key)
	}
	return c.sendText(ctx, paneID, seq)
}

func (c *Client) sendText(ctx context.Context, paneID, text string) error {
	if err := ValidatePaneID(paneID); err != nil {
		return err
	}
	args := []string{"cli", "send-text", "--pane-id", paneID, "--no-paste", "--", text}
	res, err := c.runner.Run(ctx, args...)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return errors.Internal("wezterm cli send-text timed out", err)
		case errors.Is(err, context.Canceled):
			return errors.Internal("wezterm cli send-text cancelled", err)
		default:
			return errors.TmuxUnavailable("failed to run wezterm", err)
		}
	}
	if res.OK() {
		return nil
	}
	stderr := strings.ToLower(res.Stderr)
	switch {
	case strings.Contains(stderr, "no such pane") || strings.Contains(stderr, "not found"):
		return errors.InvalidPane(paneID).WithStderr(res.Stderr)
	case strings.Contains(stderr, "failed to connect") || strings.Contains(stderr, "no running wezterm"):
		return errors.TmuxUnavailable("wezterm is not running", nil).WithStderr(res.Stderr)
	default:
		return errors.Internal(fmt.Sprintf("wezterm cli send-text exited with status %d", res.ExitCode), nil).
			WithStderr(res.Stderr)
	}
}

var namedKeys = map[string]string{
	"Enter":    "\r",
	"C-m":      "\r",
	"C-j":      "\n",
	"Tab":      "\t",
	"BTab":     "\x1b[Z",
	"Escape":   "\x1b",
	"Space":    " ",
	"BSpace":   "\x7f",
	"DC":       "\x1b[3~",
	"IC":       "\x1b[2~",
	"Up":       "\x1b[A",
	"Down":     "\x1b[B",
	"Right":    "\x1b[C",
	"Left":     "\x1b[D",
	"Home":     "\x1b[H",
	"End":      "\x1b[F",
	"PageUp":   "\x1b[5~",
	"PageDown": "\x1b[6~",
	`C-\`:      "\x1c",
	"C-]":      "\x1d",
	"F1":       "\x1bOP",
	"F2":       "\x1bOQ",
	"F3":       "\x1bOR",
	"F4":       "\x1bOS",
	"F5":       "\x1b[15~",
	"F6":       "\x1b[17~",
	"F7":       "\x1b[18~",
	"F8":       "\x1b[19~",
	"F9":       "\x1b[20~",
	"F10":      "\x1b[21~",
	"F11":      "\x1b[23~",
	"F12":      "\x1b[24~",
}

// KeySequence returns the bytes a terminal sends for a tmux key name.
// C-Space (NUL) has no sequence because it cannot be passed as an argument.
func KeySequence(key string) (string, bool) {
	if seq, ok := namedKeys[key]; ok {
		return seq, true
	}
	if len(key) == 3 && strings.HasPrefix(key, "C-") && key[2] >= 'a' && key[2] <= 'z' {
		return string(rune(key[2] - 'a' + 1)), true
	}
	return "", false
}
