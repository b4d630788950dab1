// Package launch starts and resumes coding agents in multiplexer windows.
//
// A launch validates the request, checks that the session exists, resolves
// the working directory (optionally through the worktree manager), picks a
// free window name, creates the window, types the agent command and polls
// the pane to see whether the agent came up. Any failure after the window
// was created removes it again; the outcome of that removal is reported
// separately from the launch error.
package launch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/panedrive/internal/config"
	"github.com/Iron-Ham/panedrive/internal/errors"
	"github.com/Iron-Ham/panedrive/internal/logging"
	"github.com/Iron-Ham/panedrive/internal/process"
	"github.com/Iron-Ham/panedrive/internal/tmux"
	"github.com/Iron-Ham/panedrive/internal/worktree"
)

// Multiplexer is the window and pane control the launcher needs.
// *tmux.Client implements it.
type Multiplexer interface {
	HasSession(ctx context.Context, name string) (bool, error)
	ListWindowNames(ctx context.Context, session string) ([]string, error)
	NewWindow(ctx context.Context, opts tmux.NewWindowOptions) (tmux.Window, error)
	KillWindow(ctx context.Context, target string) error
	PaneInfo(ctx context.Context, paneID string) (tmux.PaneInfo, error)
	PaneCurrentCommand(ctx context.Context, paneID string) (string, error)
}

// Submitter types a finished command line into a pane and presses enter.
// *input.Dispatcher implements it.
type Submitter interface {
	Submit(ctx context.Context, pane, command string) error
}

// WorktreeResolver maps worktree selectors to directories.
// *worktree.Resolver implements it.
type WorktreeResolver interface {
	ResolveByPath(ctx context.Context, path string) (worktree.Entry, error)
	EnsureBranch(ctx context.Context, cwd, branch string, create bool) (worktree.Entry, error)
}

// Orchestrator launches agents. It owns the idempotency cache, so one
// Orchestrator should serve every request of a process. It is safe for
// concurrent use.
type Orchestrator struct {
	mux       Multiplexer
	submitter Submitter
	resolver  WorktreeResolver
	processes process.Tree
	profiles  map[Agent]Profile

	verifyAttempts int
	verifyInterval time.Duration
	interruptGrace time.Duration
	maxSuffix      int
	idemTTL        time.Duration
	idemMax        int

	cache  *Cache
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
	newID  func() string
	logger *logging.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithResolver enables worktree selectors.
func WithResolver(resolver WorktreeResolver) Option {
	return func(o *Orchestrator) {
		o.resolver = resolver
	}
}

// WithProcessTree enables interrupting a busy pane before resuming into it.
func WithProcessTree(tree process.Tree) Option {
	return func(o *Orchestrator) {
		o.processes = tree
	}
}

// WithSleep replaces the wait used between verification polls and after
// interrupt signals.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		o.sleep = sleep
	}
}

// WithClock replaces time.Now for the idempotency cache.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithIDGenerator replaces the launch id generator.
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) {
		o.newID = newID
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an Orchestrator.
func New(mux Multiplexer, submitter Submitter, cfg config.LaunchConfig, profiles map[Agent]Profile, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		mux:            mux,
		submitter:      submitter,
		profiles:       profiles,
		verifyAttempts: cfg.VerifyAttempts,
		verifyInterval: cfg.VerifyInterval(),
		interruptGrace: cfg.InterruptGrace(),
		maxSuffix:      cfg.MaxWindowSuffix,
		idemTTL:        cfg.IdempotencyTTL(),
		idemMax:        cfg.IdempotencyMaxEntries,
		sleep:          sleep,
		now:            time.Now,
		newID:          uuid.NewString,
		logger:         logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.cache = NewCache(o.idemTTL, o.idemMax, o.now)
	return o
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cache returns the idempotency cache.
func (o *Orchestrator) Cache() *Cache {
	return o.cache
}

// Launch starts or resumes an agent. Errors are reported in the response,
// never returned, so that the rollback descriptor always reaches the
// caller.
//
// When the request carries a request id, duplicate calls for the same
// session share one launch. A launch already in flight keeps running when
// the caller that started it goes away.
func (o *Orchestrator) Launch(ctx context.Context, req Request) Response {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return failure(err, Rollback{}, nil)
	}
	if req.RequestID == "" {
		return o.launch(ctx, req)
	}

	fingerprint, err := Fingerprint(req)
	if err != nil {
		return failure(err, Rollback{}, nil)
	}
	detached := context.WithoutCancel(ctx)
	resp, err := o.cache.Do(ctx, req.SessionName, req.RequestID, fingerprint, func() Response {
		return o.launch(detached, req)
	})
	if err != nil {
		return failure(err, Rollback{}, nil)
	}
	return resp
}

// attempt carries one launch through its steps.
type attempt struct {
	id      string
	req     Request
	profile Profile
	dir     directory
	resume  *ResumeInfo
	logger  *logging.Logger
}

func (o *Orchestrator) launch(ctx context.Context, req Request) Response {
	id := o.newID()
	logger := o.logger.WithSession(req.SessionName).WithRequest(req.RequestID).
		With("launch_id", id, "agent", string(req.Agent))

	var resume *ResumeInfo
	if req.ResumeSessionID != "" {
		resume = &ResumeInfo{Target: req.ResumeTarget, SessionID: req.ResumeSessionID, PaneID: req.ResumePaneID}
	}

	profile, ok := o.profiles[req.Agent]
	if !ok {
		return failure(errors.InvalidPayload("agent %q is not configured", req.Agent), Rollback{}, resume)
	}

	exists, err := o.mux.HasSession(ctx, req.SessionName)
	if err != nil {
		return failure(err, Rollback{}, resume)
	}
	if !exists {
		return failure(errors.NotFound("session", req.SessionName), Rollback{}, resume)
	}

	target, err := o.resolveCwd(ctx, req)
	if err != nil {
		logger.Info("launch rejected", "error", err)
		return failure(err, Rollback{}, resume)
	}

	a := &attempt{id: id, req: req, profile: profile, dir: target, resume: resume, logger: logger}
	if resume != nil && req.ResumeTarget == ResumeInPane {
		return o.resumeInPane(ctx, a)
	}
	return o.launchWindow(ctx, a)
}

// directory is where the agent will run.
type directory struct {
	cwd    string
	branch string
}

func (o *Orchestrator) resolveCwd(ctx context.Context, req Request) (directory, error) {
	dir := directory{cwd: req.Cwd}
	if req.WorktreePath == "" && req.WorktreeBranch == "" {
		return dir, nil
	}
	if o.resolver == nil {
		return dir, errors.InvalidPayload("worktree selectors are not available: no worktree manager configured")
	}

	var byPath *worktree.Entry
	if req.WorktreePath != "" {
		entry, err := o.resolver.ResolveByPath(ctx, req.WorktreePath)
		if err != nil {
			return dir, err
		}
		byPath = &entry
		dir = directory{cwd: entry.Path, branch: entry.Branch}
	}

	if req.WorktreeBranch != "" {
		base := req.Cwd
		if base == "" {
			base = req.WorktreePath
		}
		// Never create a worktree when the path selector already names one.
		create := req.CreateWorktree && byPath == nil
		entry, err := o.resolver.EnsureBranch(ctx, base, req.WorktreeBranch, create)
		if err != nil {
			return dir, err
		}
		if byPath != nil && byPath.Path != entry.Path {
			return dir, errors.InvalidPayload("worktreePath and worktreeBranch resolved to different worktrees: %s, %s", byPath.Path, entry.Path)
		}
		dir = directory{cwd: entry.Path, branch: entry.Branch}
	}

	if info, err := os.Stat(dir.cwd); err != nil || !info.IsDir() {
		return dir, errors.NotFound("worktree directory", dir.cwd)
	}
	return dir, nil
}

func (o *Orchestrator) uniqueWindowName(ctx context.Context, session, base string) (string, error) {
	names, err := o.mux.ListWindowNames(ctx, session)
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(names))
	for _, name := range names {
		taken[name] = true
	}
	if !taken[base] {
		return base, nil
	}
	for i := 2; i <= o.maxSuffix; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !taken[candidate] {
			return candidate, nil
		}
	}
	return "", errors.Internal(fmt.Sprintf("no free window name for %q up to suffix %d", base, o.maxSuffix), nil)
}

func (o *Orchestrator) launchWindow(ctx context.Context, a *attempt) Response {
	req, resume := a.req, a.resume
	base := req.WindowName
	if base == "" {
		base = string(req.Agent) + "-work"
	}
	name, err := o.uniqueWindowName(ctx, req.SessionName, base)
	if err != nil {
		return failure(err, Rollback{}, resume)
	}

	win, err := o.mux.NewWindow(ctx, tmux.NewWindowOptions{Session: req.SessionName, Name: name, Cwd: a.dir.cwd})
	if err != nil {
		if win.ID == "" {
			return failure(err, Rollback{}, resume)
		}
		// The window exists even though its details could not be read.
		logger := a.logger.With("window", win.ID)
		logger.Error("failed to read created window", "error", err)
		return failure(err, o.rollback(ctx, win, logger), resume)
	}
	logger := a.logger.WithPane(win.PaneID).With("window", win.ID)

	command := a.profile.Command(req.Options, req.ResumeSessionID, req.ResumeCwd, a.dir.cwd)
	if err := o.submitter.Submit(ctx, win.PaneID, command); err != nil {
		logger.Error("failed to send launch command", "error", err)
		return failure(err, o.rollback(ctx, win, logger), resume)
	}

	verification, observed := o.verify(ctx, win.PaneID, a.profile)
	logger.Info("launched agent", "window_name", win.Name, "verification", string(verification), "observed", observed)
	return Response{OK: true, Result: a.result(win, command, verification, observed), Resume: resume}
}

func (a *attempt) result(win tmux.Window, command string, verification Verification, observed string) *Result {
	return &Result{
		SessionName:     a.req.SessionName,
		Agent:           a.req.Agent,
		WindowID:        win.ID,
		WindowIndex:     win.Index,
		WindowName:      win.Name,
		PaneID:          win.PaneID,
		Cwd:             a.dir.cwd,
		Worktree:        a.dir.branch,
		Command:         command,
		Options:         a.req.Options,
		Verification:    verification,
		ObservedCommand: observed,
		LaunchID:        a.id,
	}
}

// rollback removes a window created by a failed launch. Its failure is
// reported, never returned.
func (o *Orchestrator) rollback(ctx context.Context, win tmux.Window, logger *logging.Logger) Rollback {
	if err := o.mux.KillWindow(context.WithoutCancel(ctx), win.ID); err != nil {
		logger.Warn("rollback failed, window may be left behind", "error", err)
		return Rollback{Attempted: true, OK: false, Message: errors.Message(err)}
	}
	logger.Info("rolled back window")
	return Rollback{Attempted: true, OK: true}
}

// verify polls the pane's foreground command. A match ends polling early;
// otherwise every attempt runs.
func (o *Orchestrator) verify(ctx context.Context, pane string, profile Profile) (Verification, string) {
	outcome, observed := Timeout, ""
	for attempt := 0; attempt < o.verifyAttempts; attempt++ {
		if err := o.sleep(ctx, o.verifyInterval); err != nil {
			break
		}
		current, err := o.mux.PaneCurrentCommand(ctx, pane)
		if err != nil {
			o.logger.Debug("verification poll failed", "pane", pane, "attempt", attempt+1, "error", err)
			continue
		}
		switch {
		case profile.Matches(current):
			return Verified, current
		case current == "" || isShell(current):
		default:
			outcome, observed = Mismatch, current
		}
	}
	return outcome, observed
}
