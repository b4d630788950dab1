package launch

import (
	"github.com/Iron-Ham/panedrive/internal/errors"
	"github.com/Iron-Ham/panedrive/internal/protocol"
)

// Verification is the outcome of polling the pane after the launch command
// was typed.
type Verification string

// Verification outcomes.
const (
	// Verified means the pane's foreground command matched the agent.
	Verified Verification = "verified"
	// Mismatch means a different, non-shell command was observed.
	Mismatch Verification = "mismatch"
	// Timeout means only a shell, or nothing, was observed.
	Timeout Verification = "timeout"
)

// Result describes a launched agent.
type Result struct {
	SessionName     string       `json:"sessionName"`
	Agent           Agent        `json:"agent"`
	WindowID        string       `json:"windowId"`
	WindowIndex     int          `json:"windowIndex"`
	WindowName      string       `json:"windowName"`
	PaneID          string       `json:"paneId"`
	Cwd             string       `json:"cwd,omitempty"`
	Worktree        string       `json:"worktreeBranch,omitempty"`
	Command         string       `json:"launchedCommand"`
	Options         []string     `json:"resolvedOptions"`
	Verification    Verification `json:"verification"`
	ObservedCommand string       `json:"observedCommand,omitempty"`
	LaunchID        string       `json:"launchId"`
}

// Rollback reports the compensating window removal after a failed launch.
type Rollback struct {
	Attempted bool   `json:"attempted"`
	OK        bool   `json:"ok"`
	Message   string `json:"message,omitempty"`
}

// ResumeInfo describes how a resume request was carried out.
type ResumeInfo struct {
	Target         ResumeTarget `json:"target"`
	SessionID      string       `json:"sessionId"`
	PaneID         string       `json:"paneId,omitempty"`
	Interrupted    bool         `json:"interrupted,omitempty"`
	FallbackReason string       `json:"fallbackReason,omitempty"`
}

// Response is the launch outcome returned to callers. Rollback is always
// present so a failed response says whether cleanup is still needed.
type Response struct {
	OK       bool                `json:"ok"`
	Result   *Result             `json:"result,omitempty"`
	Rollback Rollback            `json:"rollback"`
	Error    *protocol.ErrorBody `json:"error,omitempty"`
	Resume   *ResumeInfo         `json:"resume,omitempty"`
	// Replayed is set when the response came from the idempotency cache.
	Replayed bool `json:"replayed,omitempty"`
}

// Err returns the failure carried by r, or nil.
func (r Response) Err() error {
	if r.OK || r.Error == nil {
		return nil
	}
	return errors.NewCommandError(r.Error.Code, r.Error.Message)
}

func failure(err error, rollback Rollback, resume *ResumeInfo) Response {
	return Response{OK: false, Error: protocol.NewErrorBody(err), Rollback: rollback, Resume: resume}
}
