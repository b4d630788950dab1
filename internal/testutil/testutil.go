// Package testutil provides testing utilities for panedrive tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// SetupTestRepo creates a temporary git repository for testing.
// Returns the path to the repository. The repository is automatically
// cleaned up when the test completes.
func SetupTestRepo(t *testing.T) string {
	t.Helper()
	SkipIfNoGit(t)

	dir := t.TempDir()
	// Resolve symlinked temp roots (macOS /var -> /private/var) so paths
	// compare equal to what git reports.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	if err := runGit(dir, "init"); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Test Repository\n"), 0644); err != nil {
		t.Fatalf("failed to create README: %v", err)
	}
	if err := runGit(dir, "add", "."); err != nil {
		t.Fatalf("failed to stage files: %v", err)
	}
	if err := runGit(dir, "commit", "-m", "Initial commit"); err != nil {
		t.Fatalf("failed to create initial commit: %v", err)
	}

	// Create main branch (some systems default to master)
	if err := runGit(dir, "branch", "-M", "main"); err != nil {
		t.Fatalf("failed to rename branch to main: %v", err)
	}

	return dir
}

// AddWorktree creates a linked worktree for a new branch and returns its path.
func AddWorktree(t *testing.T, repoDir, branch string) string {
	t.Helper()

	path := filepath.Join(filepath.Dir(repoDir), filepath.Base(repoDir)+"-"+strings.ReplaceAll(branch, "/", "-"))
	if err := runGit(repoDir, "worktree", "add", "-b", branch, path); err != nil {
		t.Fatalf("failed to add worktree for %s: %v", branch, err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(path) })
	return path
}

// CheckoutBranch switches to a branch, creating it when create is set.
func CheckoutBranch(t *testing.T, repoDir, branch string, create bool) {
	t.Helper()

	args := []string{"checkout", branch}
	if create {
		args = []string{"checkout", "-b", branch}
	}
	if err := runGit(repoDir, args...); err != nil {
		t.Fatalf("failed to checkout branch %s: %v", branch, err)
	}
}

// WriteScript writes an executable shell script named name into dir and
// returns its path. Tests use it to stand in for external tools.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	SkipIfNoShell(t)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("failed to write script %s: %v", name, err)
	}
	return path
}

// SkipIfNoGit skips the test if git is not installed.
func SkipIfNoGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}

// SkipIfNoShell skips the test if /bin/sh is not available.
func SkipIfNoShell(t *testing.T) {
	t.Helper()

	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not found, skipping test")
	}
}

// runGit runs a git command in the specified directory.
func runGit(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Panedrive Test",
		"GIT_AUTHOR_EMAIL=test@panedrive.dev",
		"GIT_COMMITTER_NAME=Panedrive Test",
		"GIT_COMMITTER_EMAIL=test@panedrive.dev",
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &gitError{args: args, output: output, err: err}
	}
	return nil
}

type gitError struct {
	args   []string
	output []byte
	err    error
}

func (e *gitError) Error() string {
	return "git " + strings.Join(e.args, " ") + ": " + e.err.Error() + "\n" + string(e.output)
}

func (e *gitError) Unwrap() error {
	return e.err
}
