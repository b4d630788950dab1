package launch

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/Iron-Ham/panedrive/internal/errors"
	"github.com/Iron-Ham/panedrive/internal/tmux"
)

// Agent names a supported coding agent.
type Agent string

// Supported agents.
const (
	AgentCodex  Agent = "codex"
	AgentClaude Agent = "claude"
)

// Agents returns every supported agent.
func Agents() []Agent {
	return []Agent{AgentCodex, AgentClaude}
}

// ResumeTarget selects where a resumed agent runs.
type ResumeTarget string

// Resume targets.
const (
	// ResumeInWindow starts the resumed agent in a new window.
	ResumeInWindow ResumeTarget = "window"
	// ResumeInPane stops whatever runs in an existing pane and resumes there.
	ResumeInPane ResumeTarget = "pane"
)

const (
	maxOptions      = 32
	maxOptionLength = 4096
	maxNameLength   = 128
)

// Request asks for an agent to be launched or resumed in a session.
type Request struct {
	Agent       Agent    `json:"agent"`
	SessionName string   `json:"sessionName"`
	WindowName  string   `json:"windowName,omitempty"`
	Cwd         string   `json:"cwd,omitempty"`
	Options     []string `json:"options,omitempty"`

	WorktreePath   string `json:"worktreePath,omitempty"`
	WorktreeBranch string `json:"worktreeBranch,omitempty"`
	CreateWorktree bool   `json:"createWorktree,omitempty"`

	ResumeSessionID string       `json:"resumeSessionId,omitempty"`
	ResumeCwd       string       `json:"resumeCwd,omitempty"`
	ResumeTarget    ResumeTarget `json:"resumeTarget,omitempty"`
	ResumePaneID    string       `json:"resumePaneId,omitempty"`

	// RequestID opts into idempotent replay. It is not part of the
	// payload fingerprint.
	RequestID string `json:"requestId,omitempty"`
}

// Normalize trims whitespace, cleans paths and fills defaults.
func (r Request) Normalize() Request {
	n := r
	n.Agent = Agent(strings.ToLower(strings.TrimSpace(string(r.Agent))))
	n.SessionName = strings.TrimSpace(r.SessionName)
	n.WindowName = strings.TrimSpace(r.WindowName)
	n.Cwd = cleanPath(r.Cwd)
	n.WorktreePath = cleanPath(r.WorktreePath)
	n.WorktreeBranch = strings.TrimSpace(r.WorktreeBranch)
	n.ResumeSessionID = strings.TrimSpace(r.ResumeSessionID)
	n.ResumeCwd = cleanPath(r.ResumeCwd)
	n.ResumePaneID = strings.TrimSpace(r.ResumePaneID)
	n.RequestID = strings.TrimSpace(r.RequestID)

	n.ResumeTarget = ResumeTarget(strings.ToLower(strings.TrimSpace(string(r.ResumeTarget))))
	if n.ResumeTarget == "" {
		n.ResumeTarget = ResumeInWindow
	}

	n.Options = make([]string, 0, len(r.Options))
	for _, opt := range r.Options {
		n.Options = append(n.Options, strings.TrimSpace(opt))
	}
	return n
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// Validate checks a normalized request. It performs no side effects
// beyond reading the filesystem.
func (r Request) Validate() error {
	if !slices.Contains(Agents(), r.Agent) {
		return errors.InvalidPayload("unsupported agent %q", r.Agent)
	}
	if err := validateName("sessionName", r.SessionName, true); err != nil {
		return err
	}
	if err := validateName("windowName", r.WindowName, false); err != nil {
		return err
	}
	if err := validateOptions(r.Options); err != nil {
		return err
	}
	if r.Cwd != "" {
		if err := validateDir("cwd", r.Cwd); err != nil {
			return err
		}
	}
	if r.WorktreePath != "" && !filepath.IsAbs(r.WorktreePath) {
		return errors.InvalidPayload("worktreePath must be absolute: %q", r.WorktreePath)
	}
	if r.WorktreeBranch != "" {
		if hasControl(r.WorktreeBranch) || strings.HasPrefix(r.WorktreeBranch, "-") {
			return errors.InvalidPayload("invalid worktreeBranch %q", r.WorktreeBranch)
		}
		if r.Cwd == "" && r.WorktreePath == "" {
			return errors.InvalidPayload("worktreeBranch requires cwd or worktreePath")
		}
	}
	if r.CreateWorktree && r.WorktreeBranch == "" {
		return errors.InvalidPayload("createWorktree requires worktreeBranch")
	}
	return r.validateResume()
}

func (r Request) validateResume() error {
	switch r.ResumeTarget {
	case ResumeInWindow, ResumeInPane:
	default:
		return errors.InvalidPayload("resumeTarget must be %q or %q", ResumeInWindow, ResumeInPane)
	}
	if r.ResumeSessionID == "" {
		if r.ResumeTarget == ResumeInPane || r.ResumePaneID != "" || r.ResumeCwd != "" {
			return errors.InvalidPayload("resume fields require resumeSessionId")
		}
		return nil
	}
	if hasControl(r.ResumeSessionID) || strings.HasPrefix(r.ResumeSessionID, "-") || len(r.ResumeSessionID) > maxNameLength {
		return errors.InvalidPayload("invalid resumeSessionId %q", r.ResumeSessionID)
	}
	if r.ResumeCwd != "" && !filepath.IsAbs(r.ResumeCwd) {
		return errors.InvalidPayload("resumeCwd must be absolute: %q", r.ResumeCwd)
	}
	if r.ResumeTarget == ResumeInPane {
		if r.ResumePaneID == "" {
			return errors.InvalidPayload("resumeTarget %q requires resumePaneId", ResumeInPane)
		}
		if err := tmux.ValidatePaneID(r.ResumePaneID); err != nil {
			return err
		}
	}
	return nil
}

func validateName(field, value string, required bool) error {
	if value == "" {
		if required {
			return errors.InvalidPayload("%s is required", field)
		}
		return nil
	}
	if len(value) > maxNameLength {
		return errors.InvalidPayload("%s is longer than %d characters", field, maxNameLength)
	}
	if hasControl(value) || strings.ContainsAny(value, ":.") {
		return errors.InvalidPayload("%s %q contains characters tmux treats as target separators", field, value)
	}
	return nil
}

func validateOptions(options []string) error {
	if len(options) > maxOptions {
		return errors.InvalidPayload("too many options: %d, limit is %d", len(options), maxOptions)
	}
	for i, opt := range options {
		if opt == "" {
			return errors.InvalidPayload("option %d is empty", i)
		}
		if len(opt) > maxOptionLength {
			return errors.InvalidPayload("option %d is longer than %d characters", i, maxOptionLength)
		}
		if hasControl(opt) {
			return errors.InvalidPayload("option %d contains control characters", i)
		}
	}
	return nil
}

func validateDir(field, path string) error {
	if !filepath.IsAbs(path) {
		return errors.InvalidPayload("%s must be absolute: %q", field, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.InvalidPayload("%s does not exist: %s", field, path)
	}
	if !info.IsDir() {
		return errors.InvalidPayload("%s is not a directory: %s", field, path)
	}
	return nil
}

func hasControl(s string) bool {
	return strings.ContainsFunc(s, unicode.IsControl)
}
