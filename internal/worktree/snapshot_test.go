package worktree

import (
	"testing"

	"github.com/Iron-Ham/panedrive/internal/errors"
)

const sampleSnapshot = `{
  "status": "ok",
  "repoRoot": "/repo/",
  "baseBranch": "main",
  "worktrees": [
    {"path": "/repo", "branch": "main", "dirty": false, "locked": {"value": false}, "merged": {"overall": null, "byPR": null}},
    {"path": "/repo/sub/", "branch": "feature/sub", "dirty": true, "locked": {"value": true, "owner": "ci", "reason": "build"}, "merged": {"overall": true, "byPR": false}},
    {"path": "/repository", "branch": "other", "dirty": false, "locked": {"value": false}, "merged": {}},
    {"path": "", "branch": "ghost"}
  ]
}`

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot([]byte(sampleSnapshot))
	if err != nil {
		t.Fatalf("ParseSnapshot() error = %v", err)
	}
	if snap.RepoRoot != "/repo" || snap.BaseBranch != "main" {
		t.Errorf("repoRoot/baseBranch = %q/%q", snap.RepoRoot, snap.BaseBranch)
	}
	if len(snap.Worktrees) != 3 {
		t.Fatalf("got %d worktrees, want 3 (empty path dropped)", len(snap.Worktrees))
	}
	for i := 1; i < len(snap.Worktrees); i++ {
		if len(snap.Worktrees[i-1].Path) < len(snap.Worktrees[i].Path) {
			t.Errorf("entries not sorted by descending path length: %v", snap.Worktrees)
		}
	}
	sub, _ := snap.Branch("feature/sub")
	if sub.Path != "/repo/sub" || !sub.Dirty || !sub.Locked.Value || sub.Locked.Owner != "ci" {
		t.Errorf("feature/sub entry = %+v", sub)
	}
	if sub.Merged.Overall == nil || !*sub.Merged.Overall || sub.Merged.ByPR == nil || *sub.Merged.ByPR {
		t.Errorf("feature/sub merged = %+v", sub.Merged)
	}
}

func TestParseSnapshot_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "vw: command failed"},
		{"error status", `{"status":"error","message":"not a repository"}`},
		{"missing status", `{"worktrees":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSnapshot([]byte(tt.data))
			if errors.CodeOf(err) != errors.CodeInternal || err == nil {
				t.Errorf("ParseSnapshot() error = %v, want INTERNAL", err)
			}
		})
	}
}

func TestSnapshot_Match(t *testing.T) {
	snap, err := ParseSnapshot([]byte(sampleSnapshot))
	if err != nil {
		t.Fatalf("ParseSnapshot() error = %v", err)
	}

	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"/repo/sub/deep", "/repo/sub", true},
		{"/repo/sub", "/repo/sub", true},
		{"/repo/sub/", "/repo/sub", true},
		{"/repo/subway", "/repo", true},
		{"/repo/src/main.go", "/repo", true},
		{"/repo", "/repo", true},
		{"/repository/x", "/repository", true},
		{"/elsewhere", "", false},
		{"/re", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := snap.Match(tt.path)
			if ok != tt.wantOK || got.Path != tt.want {
				t.Errorf("Match(%q) = %q, %v; want %q, %v", tt.path, got.Path, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSnapshot_MatchRoot(t *testing.T) {
	snap := &Snapshot{Worktrees: []Entry{{Path: "/", Branch: "main"}}}
	if e, ok := snap.Match("/anything"); !ok || e.Branch != "main" {
		t.Errorf("Match under / = %+v, %v", e, ok)
	}
}

func TestSnapshot_Overlay(t *testing.T) {
	yes, no := true, false
	aug := &Snapshot{Worktrees: []Entry{
		{Path: "/old/path", Branch: "feature", Merged: Merged{Overall: &yes, ByPR: &yes}},
		{Path: "/repo", Branch: "main", Merged: Merged{Overall: &no}},
	}}
	cheap := &Snapshot{Worktrees: []Entry{
		{Path: "/new/path", Branch: "feature"},
		{Path: "/repo", Branch: "main", Merged: Merged{Overall: &yes}},
		{Path: "/repo/fresh", Branch: "fresh"},
	}}

	cheap.overlay(aug)

	feature, _ := cheap.Branch("feature")
	if feature.Merged.Overall == nil || !*feature.Merged.Overall || feature.Merged.ByPR == nil {
		t.Errorf("feature merged not overlaid: %+v", feature.Merged)
	}
	if feature.Path != "/new/path" {
		t.Errorf("overlay must not change paths, got %q", feature.Path)
	}
	mainEntry, _ := cheap.Branch("main")
	if !*mainEntry.Merged.Overall {
		t.Error("known metadata on the fresh snapshot must win")
	}
	fresh, _ := cheap.Branch("fresh")
	if fresh.Merged.Overall != nil {
		t.Error("branches absent from the augmented snapshot stay unknown")
	}
	if !cheap.Augmented {
		t.Error("overlaid snapshot should be marked augmented")
	}

	*aug.Worktrees[0].Merged.Overall = false
	if !*feature.Merged.Overall {
		t.Error("overlay must copy values, not share pointers")
	}
}

func TestSnapshot_Clone(t *testing.T) {
	yes := true
	snap := &Snapshot{Worktrees: []Entry{{Path: "/a", Merged: Merged{Overall: &yes}}}}
	c := snap.Clone()
	c.Worktrees[0].Path = "/b"
	*c.Worktrees[0].Merged.Overall = false
	if snap.Worktrees[0].Path != "/a" || !*snap.Worktrees[0].Merged.Overall {
		t.Error("Clone shares state with the original")
	}
	if (*Snapshot)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}
