// Package server runs the JSON-lines request loop behind "panedrive serve".
//
// Each input line is a request {"id", "op", "params"}; each output line is
// {"id", "response"}. Responses are written in completion order. Requests
// that target the same pane run in the order they were read, so pending
// input is accumulated exactly as the caller sent it. Launches into new
// windows of one session are ordered the same way. Everything else runs
// concurrently.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/panedrive/internal/errors"
	"github.com/Iron-Ham/panedrive/internal/input"
	"github.com/Iron-Ham/panedrive/internal/launch"
	"github.com/Iron-Ham/panedrive/internal/logging"
	"github.com/Iron-Ham/panedrive/internal/protocol"
	"github.com/Iron-Ham/panedrive/internal/worktree"
)

// Operation names.
const (
	OpSendText         = "sendText"
	OpSendKeys         = "sendKeys"
	OpSendRaw          = "sendRaw"
	OpInterrupt        = "interrupt"
	OpLaunch           = "launch"
	OpWorktreeSnapshot = "worktreeSnapshot"
	OpWorktreeResolve  = "worktreeResolve"
)

const (
	defaultConcurrency = 16
	maxLineBytes       = 4 << 20
)

// Request is one input line.
type Request struct {
	ID     string          `json:"id"`
	Op     string          `json:"op"`
	Params json.RawMessage `json:"params"`
}

// Response is one output line.
type Response struct {
	ID       string `json:"id"`
	Response any    `json:"response"`
}

// WorktreeResolver is the worktree lookup the server exposes.
// *worktree.Resolver implements it.
type WorktreeResolver interface {
	Snapshot(ctx context.Context, cwd string, opts worktree.SnapshotOptions) (*worktree.Snapshot, error)
	ResolveByPath(ctx context.Context, path string) (worktree.Entry, error)
	EnsureBranch(ctx context.Context, cwd, branch string, create bool) (worktree.Entry, error)
}

// WorktreeResult is the response to worktree operations.
type WorktreeResult struct {
	OK       bool                `json:"ok"`
	Snapshot *worktree.Snapshot  `json:"snapshot,omitempty"`
	Worktree *worktree.Entry     `json:"worktree,omitempty"`
	Error    *protocol.ErrorBody `json:"error,omitempty"`
}

// Server answers requests from one input stream.
type Server struct {
	dispatcher  *input.Dispatcher
	launcher    *launch.Orchestrator
	resolver    WorktreeResolver
	concurrency int
	newID       func() string
	logger      *logging.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLauncher enables the launch operation.
func WithLauncher(launcher *launch.Orchestrator) Option {
	return func(s *Server) {
		s.launcher = launcher
	}
}

// WithResolver enables the worktree operations.
func WithResolver(resolver WorktreeResolver) Option {
	return func(s *Server) {
		s.resolver = resolver
	}
}

// WithConcurrency bounds how many requests run at once.
func WithConcurrency(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithIDGenerator replaces the generator for requests without an id.
func WithIDGenerator(newID func() string) Option {
	return func(s *Server) {
		s.newID = newID
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server that sends pane input through dispatcher.
func New(dispatcher *input.Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher:  dispatcher,
		concurrency: defaultConcurrency,
		newID:       uuid.NewString,
		logger:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve reads requests from r until EOF and writes responses to w. It
// returns after every accepted request has been answered.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	var (
		writeMu sync.Mutex
		enc     = json.NewEncoder(w)
		order   = newPaneQueue()
		p       = pool.New().WithMaxGoroutines(s.concurrency)
	)
	write := func(resp Response) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := enc.Encode(resp); err != nil {
			s.logger.Error("failed to write response", "id", resp.ID, "error", err)
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			write(Response{Response: protocol.ActionFrom(errors.InvalidPayload("invalid request: %v", err))})
			continue
		}
		if req.ID == "" {
			req.ID = s.newID()
		}

		wait, done := order.enter(orderKey(req))
		p.Go(func() {
			defer done()
			if wait != nil {
				<-wait
			}
			write(s.Handle(ctx, req))
		})
	}
	p.Wait()
	return scanner.Err()
}

type paneParams struct {
	Pane string `json:"pane"`
}

// orderKey returns the key a request is ordered by: the pane it types
// into, or for a launch into a new window its session, so two launches
// never pick the same window name. Requests without a key run freely.
func orderKey(req Request) string {
	switch req.Op {
	case OpSendText, OpSendKeys, OpSendRaw, OpInterrupt:
		var p paneParams
		_ = json.Unmarshal(req.Params, &p)
		return strings.TrimSpace(p.Pane)
	case OpLaunch:
		var p launch.Request
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return ""
		}
		p = p.Normalize()
		if p.ResumeTarget == launch.ResumeInPane {
			return p.ResumePaneID
		}
		if p.SessionName != "" {
			return "session:" + p.SessionName
		}
	}
	return ""
}

// paneQueue chains requests with the same order key in arrival order.
type paneQueue struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func newPaneQueue() *paneQueue {
	return &paneQueue{tails: make(map[string]chan struct{})}
}

// enter registers a request for pane. The request must wait on the
// returned channel, if any, and call done when it finishes.
func (q *paneQueue) enter(pane string) (<-chan struct{}, func()) {
	if pane == "" {
		return nil, func() {}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	prev := q.tails[pane]
	cur := make(chan struct{})
	q.tails[pane] = cur
	return prev, func() {
		q.mu.Lock()
		if q.tails[pane] == cur {
			delete(q.tails, pane)
		}
		q.mu.Unlock()
		close(cur)
	}
}

// Handle answers one request.
func (s *Server) Handle(ctx context.Context, req Request) Response {
	logger := s.logger.WithRequest(req.ID).With("op", req.Op)
	resp := Response{ID: req.ID}

	switch req.Op {
	case OpSendText:
		var p struct {
			Pane  string `json:"pane"`
			Text  string `json:"text"`
			Enter bool   `json:"enter"`
		}
		resp.Response = s.action(req, &p, func() error {
			return s.dispatcher.SendText(ctx, p.Pane, p.Text, p.Enter)
		})
	case OpSendKeys:
		var p struct {
			Pane string   `json:"pane"`
			Keys []string `json:"keys"`
		}
		resp.Response = s.action(req, &p, func() error {
			return s.dispatcher.SendKeys(ctx, p.Pane, p.Keys)
		})
	case OpSendRaw:
		var p struct {
			Pane   string          `json:"pane"`
			Items  []input.RawItem `json:"items"`
			Unsafe bool            `json:"unsafe"`
		}
		resp.Response = s.action(req, &p, func() error {
			return s.dispatcher.SendRaw(ctx, p.Pane, p.Items, p.Unsafe)
		})
	case OpInterrupt:
		var p paneParams
		resp.Response = s.action(req, &p, func() error {
			return s.dispatcher.Interrupt(ctx, p.Pane)
		})
	case OpLaunch:
		resp.Response = s.launch(ctx, req)
	case OpWorktreeSnapshot, OpWorktreeResolve:
		resp.Response = s.worktree(ctx, req)
	default:
		resp.Response = protocol.ActionFrom(errors.InvalidPayload("unknown op %q", req.Op))
	}

	logger.Debug("handled request")
	return resp
}

func decode(req Request, v any) error {
	if len(req.Params) == 0 {
		return errors.InvalidPayload("%s requires params", req.Op)
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return errors.InvalidPayload("invalid %s params: %v", req.Op, err)
	}
	return nil
}

func (s *Server) action(req Request, params any, run func() error) protocol.ActionResult {
	if err := decode(req, params); err != nil {
		return protocol.ActionFrom(err)
	}
	return protocol.ActionFrom(run())
}

func (s *Server) launch(ctx context.Context, req Request) launch.Response {
	var params launch.Request
	if err := decode(req, &params); err != nil {
		return launch.Response{Error: protocol.NewErrorBody(err)}
	}
	if s.launcher == nil {
		return launch.Response{Error: protocol.NewErrorBody(errors.InvalidPayload("launch is not available with this backend"))}
	}
	return s.launcher.Launch(ctx, params)
}

func (s *Server) worktree(ctx context.Context, req Request) WorktreeResult {
	var p struct {
		Cwd    string `json:"cwd"`
		Path   string `json:"path"`
		Branch string `json:"branch"`
		Create bool   `json:"create"`
		Force  bool   `json:"force"`
	}
	if err := decode(req, &p); err != nil {
		return WorktreeResult{Error: protocol.NewErrorBody(err)}
	}
	if s.resolver == nil {
		return WorktreeResult{Error: protocol.NewErrorBody(errors.InvalidPayload("no worktree manager configured"))}
	}

	if req.Op == OpWorktreeSnapshot {
		snap, err := s.resolver.Snapshot(ctx, p.Cwd, worktree.SnapshotOptions{Force: p.Force})
		if err != nil {
			return WorktreeResult{Error: protocol.NewErrorBody(err)}
		}
		return WorktreeResult{OK: true, Snapshot: snap}
	}

	var (
		entry worktree.Entry
		err   error
	)
	if p.Branch != "" {
		entry, err = s.resolver.EnsureBranch(ctx, p.Cwd, p.Branch, p.Create)
	} else {
		entry, err = s.resolver.ResolveByPath(ctx, p.Path)
	}
	if err != nil {
		return WorktreeResult{Error: protocol.NewErrorBody(err)}
	}
	return WorktreeResult{OK: true, Worktree: &entry}
}
