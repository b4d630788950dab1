// Package worktree resolves working directories against an external
// worktree manager.
//
// The manager is a separate command line tool that prints a JSON snapshot of
// a repository's worktrees. The Resolver caches those snapshots per
// directory, throttles the expensive PR-aware refresh, and answers "which
// worktree owns this path" and "where is this branch checked out".
package worktree

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/Iron-Ham/panedrive/internal/config"
	"github.com/Iron-Ham/panedrive/internal/errors"
)

// Source is what the Resolver needs from the worktree manager.
type Source interface {
	// Snapshot lists the worktrees of the repository containing dir.
	// augmented requests PR and merge metadata, which is slower.
	Snapshot(ctx context.Context, dir string, augmented bool) (*Snapshot, error)
	// Switch checks out branch in a worktree, creating it when missing.
	Switch(ctx context.Context, dir, branch string) error
	// Path returns the worktree path for branch.
	Path(ctx context.Context, dir, branch string) (string, error)
	// CurrentBranch returns the branch checked out in dir.
	CurrentBranch(ctx context.Context, dir string) (string, error)
}

// Manager runs the worktree manager command line tool.
type Manager struct {
	command      string
	snapshotArgs []string
	augmentArgs  []string
	switchArgs   []string
	pathArgs     []string
	executor     CommandExecutor
}

// NewManager creates a Manager from configuration.
func NewManager(cfg config.WorktreeConfig, executor CommandExecutor) *Manager {
	if executor == nil {
		executor = NewCLICommandExecutor(cfg.Timeout())
	}
	return &Manager{
		command:      cfg.Command,
		snapshotArgs: slices.Clone(cfg.SnapshotArgs),
		augmentArgs:  slices.Clone(cfg.AugmentArgs),
		switchArgs:   slices.Clone(cfg.SwitchArgs),
		pathArgs:     slices.Clone(cfg.PathArgs),
		executor:     executor,
	}
}

// Snapshot implements Source.
func (m *Manager) Snapshot(ctx context.Context, dir string, augmented bool) (*Snapshot, error) {
	args := slices.Clone(m.snapshotArgs)
	if augmented {
		args = append(args, m.augmentArgs...)
	}
	output, err := m.executor.Run(ctx, dir, m.command, args...)
	if err != nil {
		return nil, err
	}
	snap, err := ParseSnapshot(output)
	if err != nil {
		return nil, err
	}
	snap.Augmented = augmented
	return snap, nil
}

// Switch implements Source.
func (m *Manager) Switch(ctx context.Context, dir, branch string) error {
	args := append(slices.Clone(m.switchArgs), branch)
	_, err := m.executor.Run(ctx, dir, m.command, args...)
	return err
}

type pathPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Path    string `json:"path"`
}

// Path implements Source. The tool may answer with {"status","path"} JSON
// or with the bare path.
func (m *Manager) Path(ctx context.Context, dir, branch string) (string, error) {
	args := append(slices.Clone(m.pathArgs), branch)
	output, err := m.executor.Run(ctx, dir, m.command, args...)
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(string(output))
	if !strings.HasPrefix(trimmed, "{") {
		if trimmed == "" {
			return "", errors.Internal("worktree manager returned no path for "+branch, nil)
		}
		return NormalizePath(trimmed), nil
	}

	var payload pathPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return "", errors.Internal("invalid worktree path response", err)
	}
	if payload.Status != "ok" || payload.Path == "" {
		msg := payload.Message
		if msg == "" {
			msg = "no path for " + branch
		}
		return "", errors.Internal("worktree manager reported an error: "+msg, nil)
	}
	return NormalizePath(payload.Path), nil
}

// CurrentBranch implements Source using git.
func (m *Manager) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return currentBranch(ctx, m.executor, dir)
}
