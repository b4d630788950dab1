package wezterm

import (
	"context"
	"slices"
	"testing"

	"github.com/Iron-Ham/panedrive/internal/errors"
	"github.com/Iron-Ham/panedrive/internal/tmux/tmuxtest"
)

func TestKeySequence(t *testing.T) {
	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"Enter", "\r", true},
		{"C-m", "\r", true},
		{"C-c", "\x03", true},
		{"C-a", "\x01", true},
		{"C-z", "\x1a", true},
		{"Up", "\x1b[A", true},
		{"F12", "\x1b[24~", true},
		{"C-Space", "", false},
		{"C-1", "", false},
		{"Bogus", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := KeySequence(tt.key)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("KeySequence(%q) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClient_SendArgs(t *testing.T) {
	runner := tmuxtest.New()
	c := NewClient(runner)
	ctx := context.Background()

	if err := c.ExitCopyMode(ctx, "4"); err != nil {
		t.Fatalf("ExitCopyMode() error = %v", err)
	}
	if err := c.SendLiteral(ctx, "4", "echo hi"); err != nil {
		t.Fatalf("SendLiteral() error = %v", err)
	}
	if err := c.SendKey(ctx, "4", "C-m"); err != nil {
		t.Fatalf("SendKey() error = %v", err)
	}

	want := [][]string{
		{"cli", "send-text", "--pane-id", "4", "--no-paste", "--", "echo hi"},
		{"cli", "send-text", "--pane-id", "4", "--no-paste", "--", "\r"},
	}
	calls := runner.Calls()
	if len(calls) != len(want) {
		t.Fatalf("calls = %q, want %q", calls, want)
	}
	for i := range want {
		if !slices.Equal(calls[i], want[i]) {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		pane   string
		key    string
		stderr string
		want   errors.Code
	}{
		{name: "malformed pane", pane: "%4", want: errors.CodeInvalidPane},
		{name: "missing pane", pane: "4", stderr: "Error: pane 4 not found", want: errors.CodeInvalidPane},
		{name: "not running", pane: "4", stderr: "failed to connect to gui", want: errors.CodeTmuxUnavailable},
		{name: "other failure", pane: "4", stderr: "boom", want: errors.CodeInternal},
		{name: "unsupported key", pane: "4", key: "C-Space", want: errors.CodeInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := tmuxtest.New()
			if tt.stderr != "" {
				runner.On("cli").Exit(1, tt.stderr)
			}
			c := NewClient(runner)

			var err error
			if tt.key != "" {
				err = c.SendKey(context.Background(), tt.pane, tt.key)
			} else {
				err = c.SendLiteral(context.Background(), tt.pane, "x")
			}
			if errors.CodeOf(err) != tt.want {
				t.Errorf("error = %v, want code %v", err, tt.want)
			}
		})
	}
}

func TestValidatePaneID(t *testing.T) {
	for _, id := range []string{"0", "12"} {
		if err := ValidatePaneID(id); err != nil {
			t.Errorf("ValidatePaneID(%q) = %v", id, err)
		}
	}
	for _, id := range []string{"", "%1", "a", "1 2"} {
		if err := ValidatePaneID(id); err == nil {
			t.Errorf("ValidatePaneID(%q) succeeded", id)
		}
	}
}
