package launch

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/Iron-Ham/panedrive/internal/errors"
	"github.com/Iron-Ham/panedrive/internal/process"
	"github.com/Iron-Ham/panedrive/internal/tmux"
)

// resumeInPane resumes an agent session inside an existing pane. Whatever
// agent runs there is stopped first; input is never typed into a busy
// pane. A pane that no longer exists falls back to a new window.
func (o *Orchestrator) resumeInPane(ctx context.Context, a *attempt) Response {
	req, resume := a.req, a.resume

	pane, err := o.mux.PaneInfo(ctx, req.ResumePaneID)
	if err != nil {
		if errors.CodeOf(err) != errors.CodeInvalidPane {
			return failure(err, Rollback{}, resume)
		}
		resume.Target = ResumeInWindow
		resume.FallbackReason = fmt.Sprintf("pane %s no longer exists", req.ResumePaneID)
		a.logger.Info("resume pane is gone, launching in a new window", "pane", req.ResumePaneID)
		return o.launchWindow(ctx, a)
	}
	if pane.Session != req.SessionName {
		return failure(errors.InvalidPayload("pane %s belongs to session %q, not %q", pane.PaneID, pane.Session, req.SessionName), Rollback{}, resume)
	}
	logger := a.logger.WithPane(pane.PaneID).With("window", pane.WindowID)

	interrupted, err := o.interrupt(ctx, pane, a.profile)
	if err != nil {
		logger.Warn("could not free pane for resume", "error", err)
		return failure(err, Rollback{}, resume)
	}
	resume.Interrupted = interrupted

	dir := req.ResumeCwd
	if dir == "" {
		dir = a.dir.cwd
	}
	command := a.profile.Command(req.Options, req.ResumeSessionID, dir, pane.CurrentPath)
	if err := o.submitter.Submit(ctx, pane.PaneID, command); err != nil {
		logger.Error("failed to send resume command", "error", err)
		return failure(err, Rollback{}, resume)
	}

	verification, observed := o.verify(ctx, pane.PaneID, a.profile)
	logger.Info("resumed agent in pane", "interrupted", interrupted, "verification", string(verification))

	win := tmux.Window{ID: pane.WindowID, Index: pane.WindowIndex, Name: pane.WindowName, PaneID: pane.PaneID}
	result := a.result(win, command, verification, observed)
	if a.dir.cwd == "" {
		result.Cwd = pane.CurrentPath
	}
	return Response{OK: true, Result: result, Resume: resume}
}

// interrupt stops the agent running in pane. It signals the agent's
// processes below the pane's shell with SIGTERM, waits, and escalates to
// SIGKILL if the pane is still busy. It reports whether anything was
// signalled.
func (o *Orchestrator) interrupt(ctx context.Context, pane tmux.PaneInfo, profile Profile) (bool, error) {
	if idle(pane.CurrentCommand) {
		return false, nil
	}
	if o.processes == nil {
		return false, errors.Internal(fmt.Sprintf("pane %s is running %s and process inspection is not available", pane.PaneID, pane.CurrentCommand), nil)
	}

	procs, err := o.processes.List(ctx)
	if err != nil {
		return false, err
	}
	var targets []process.Process
	for _, p := range process.Descendants(procs, pane.PID) {
		if profile.Matches(p.Command) {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		return false, errors.Internal(fmt.Sprintf("pane %s is busy running %s, which is not %s", pane.PaneID, pane.CurrentCommand, profile.Agent), nil)
	}

	for _, sig := range []unix.Signal{unix.SIGTERM, unix.SIGKILL} {
		for _, p := range targets {
			if err := o.processes.Signal(p.PID, sig); err != nil {
				o.logger.Warn("failed to signal agent process", "pid", p.PID, "signal", sig.String(), "error", err)
			}
		}
		if err := o.sleep(ctx, o.interruptGrace); err != nil {
			return true, errors.Internal("interrupted while waiting for agent to exit", err)
		}
		current, err := o.mux.PaneCurrentCommand(ctx, pane.PaneID)
		if err != nil {
			return true, err
		}
		if idle(current) {
			return true, nil
		}
		o.logger.Debug("pane still busy after signal", "pane", pane.PaneID, "signal", sig.String(), "command", current)
	}
	return true, errors.Internal(fmt.Sprintf("pane %s is still running %s after SIGKILL", pane.PaneID, pane.CurrentCommand), nil)
}

func idle(command string) bool {
	return command == "" || isShell(command)
}
