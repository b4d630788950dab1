package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/panedrive/internal/launch"
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch or resume an agent in a new tmux window",
	Long: `Launch a coding agent in a new window of an existing tmux session.

The window is named after the agent ("codex-work", "codex-work-2", ...)
unless --window is given. If typing the launch command fails the window is
removed again; the printed response reports both the failure and whether
that cleanup succeeded.

Use --resume to continue an earlier agent session, and --resume-target pane
with --resume-pane to stop whatever agent runs in an existing pane and
resume there instead.`,
	Args: cobra.NoArgs,
	RunE: runLaunch,
}

var launchReq launch.Request

func init() {
	f := launchCmd.Flags()
	f.StringVarP((*string)(&launchReq.Agent), "agent", "a", string(launch.AgentCodex), "Agent to start (codex, claude)")
	f.StringVarP(&launchReq.SessionName, "session", "s", "", "tmux session to launch in")
	f.StringVarP(&launchReq.WindowName, "window", "w", "", "Window name (default <agent>-work)")
	f.StringVar(&launchReq.Cwd, "cwd", "", "Absolute directory to start in")
	f.StringArrayVarP(&launchReq.Options, "option", "o", nil, "Argument passed to the agent (repeatable)")
	f.StringVar(&launchReq.WorktreePath, "worktree-path", "", "Start in the worktree containing this path")
	f.StringVar(&launchReq.WorktreeBranch, "worktree-branch", "", "Start in the worktree for this branch")
	f.BoolVar(&launchReq.CreateWorktree, "create-worktree", false, "Create the worktree for --worktree-branch if it does not exist")
	f.StringVar(&launchReq.ResumeSessionID, "resume", "", "Agent session id to resume")
	f.StringVar(&launchReq.ResumeCwd, "resume-cwd", "", "Directory the resumed session belongs to")
	f.StringVar((*string)(&launchReq.ResumeTarget), "resume-target", string(launch.ResumeInWindow), "Where to resume: window or pane")
	f.StringVar(&launchReq.ResumePaneID, "resume-pane", "", "Pane to resume in when --resume-target is pane")
	f.StringVar(&launchReq.RequestID, "request-id", "", "Idempotency key for retried launches")
	_ = launchCmd.MarkFlagRequired("session")
}

func runLaunch(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	launcher, err := a.requireLauncher()
	if err != nil {
		return err
	}
	resp := launcher.Launch(cmd.Context(), launchReq)
	if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	if !resp.OK {
		return errReported
	}
	return nil
}
