package worktree

import (
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/panedrive/internal/errors"
)

// Locked describes a worktree lock held by another tool or user.
type Locked struct {
	Value  bool   `json:"value"`
	Owner  string `json:"owner,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Merged is the merge state of a worktree's branch. Nil means unknown.
type Merged struct {
	Overall *bool `json:"overall"`
	ByPR    *bool `json:"byPR"`
}

// Entry is one worktree in a snapshot.
type Entry struct {
	Path   string `json:"path"`
	Branch string `json:"branch"`
	Dirty  bool   `json:"dirty"`
	Locked Locked `json:"locked"`
	Merged Merged `json:"merged"`
}

// Snapshot is the worktree manager's view of one repository.
type Snapshot struct {
	RepoRoot   string    `json:"repoRoot"`
	BaseBranch string    `json:"baseBranch"`
	Worktrees  []Entry   `json:"worktrees"`
	FetchedAt  time.Time `json:"fetchedAt"`
	// Augmented is set when merge metadata came from a PR-aware refresh,
	// either directly or overlaid from an earlier one.
	Augmented bool `json:"augmented"`
}

type snapshotPayload struct {
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	RepoRoot   string  `json:"repoRoot"`
	BaseBranch string  `json:"baseBranch"`
	Worktrees  []Entry `json:"worktrees"`
}

// ParseSnapshot decodes the manager's JSON output. Entries are sorted by
// descending path length so that the first prefix match is the most
// specific one.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Internal("invalid worktree snapshot", err)
	}
	if payload.Status != "ok" {
		msg := payload.Message
		if msg == "" {
			msg = "status " + payload.Status
		}
		return nil, errors.Internal("worktree manager reported an error: "+msg, nil)
	}

	snap := &Snapshot{
		RepoRoot:   NormalizePath(payload.RepoRoot),
		BaseBranch: payload.BaseBranch,
		Worktrees:  make([]Entry, 0, len(payload.Worktrees)),
	}
	for _, e := range payload.Worktrees {
		if e.Path == "" {
			continue
		}
		e.Path = NormalizePath(e.Path)
		snap.Worktrees = append(snap.Worktrees, e)
	}
	sortEntries(snap.Worktrees)
	return snap, nil
}

func sortEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if d := len(b.Path) - len(a.Path); d != 0 {
			return d
		}
		return strings.Compare(a.Path, b.Path)
	})
}

// NormalizePath cleans p and strips trailing separators. Relative paths are
// returned cleaned but otherwise unchanged.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// Match returns the worktree that owns path, preferring the longest
// matching prefix.
func (s *Snapshot) Match(path string) (Entry, bool) {
	path = NormalizePath(path)
	for _, e := range s.Worktrees {
		if contains(e.Path, path) {
			return e, true
		}
	}
	return Entry{}, false
}

func contains(root, path string) bool {
	if root == path {
		return true
	}
	if root == string(filepath.Separator) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// Branch returns the worktree checked out on branch.
func (s *Snapshot) Branch(branch string) (Entry, bool) {
	for _, e := range s.Worktrees {
		if e.Branch == branch {
			return e, true
		}
	}
	return Entry{}, false
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Worktrees = make([]Entry, len(s.Worktrees))
	for i, e := range s.Worktrees {
		e.Merged = Merged{Overall: cloneBool(e.Merged.Overall), ByPR: cloneBool(e.Merged.ByPR)}
		c.Worktrees[i] = e
	}
	return &c
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// overlay copies merge metadata from aug onto entries of s with the same
// branch whose metadata is unknown.
func (s *Snapshot) overlay(aug *Snapshot) {
	if aug == nil {
		return
	}
	byBranch := make(map[string]Merged, len(aug.Worktrees))
	for _, e := range aug.Worktrees {
		if e.Branch != "" {
			byBranch[e.Branch] = e.Merged
		}
	}
	for i := range s.Worktrees {
		e := &s.Worktrees[i]
		m, ok := byBranch[e.Branch]
		if !ok {
			continue
		}
		if e.Merged.Overall == nil {
			e.Merged.Overall = cloneBool(m.Overall)
		}
		if e.Merged.ByPR == nil {
			e.Merged.ByPR = cloneBool(m.ByPR)
		}
	}
	s.Augmented = true
}
