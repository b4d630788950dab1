package shell

import (
	"os/exec"
	"strings"
	"testing"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"codex", "codex"},
		{"--model=o3", "--model=o3"},
		{"/usr/local/bin/claude", "/usr/local/bin/claude"},
		{"", "''"},
		{"hello world", "'hello world'"},
		{"it's", `'it'\''s'`},
		{"$HOME", "'$HOME'"},
		{"a;rm -rf /", "'a;rm -rf /'"},
		{"`id`", "'`id`'"},
		{"line\nbreak", "'line\nbreak'"},
		{"*", "'*'"},
		{"~", "'~'"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Quote(tt.in); got != tt.want {
				t.Errorf("Quote(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestQuote_RoundTrip feeds quoted words through a real shell and checks
// that each comes back unchanged.
func TestQuote_RoundTrip(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	inputs := []string{
		"plain",
		"with space",
		"it's",
		`back\slash`,
		"$(whoami)",
		"'''",
		"tab\there",
		"semi;colon && echo pwned",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			out, err := exec.Command("sh", "-c", "printf '%s' "+Quote(in)).Output()
			if err != nil {
				t.Fatalf("sh failed: %v", err)
			}
			if string(out) != in {
				t.Errorf("round trip of %q = %q", in, out)
			}
		})
	}
}

func TestCommand_String(t *testing.T) {
	tests := []struct {
		name string
		cmd  *Command
		want string
	}{
		{
			name: "program only",
			cmd:  New("codex"),
			want: "codex",
		},
		{
			name: "quoted options",
			cmd:  New("claude", "--model", "opus").Arg("--append-system-prompt", "be brief"),
			want: "claude --model opus --append-system-prompt 'be brief'",
		},
		{
			name: "directory prefix",
			cmd:  New("codex", "resume", "abc-123").InDir("/work/my repo"),
			want: "cd '/work/my repo' && codex resume abc-123",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommand_Argv(t *testing.T) {
	argv := New("codex", "--full-auto").Arg("resume", "x").Argv()
	if got := strings.Join(argv, "|"); got != "codex|--full-auto|resume|x" {
		t.Errorf("Argv() = %q", got)
	}
}
