package worktree

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/panedrive/internal/config"
	"github.com/Iron-Ham/panedrive/internal/errors"
)

// fakeSource is an in-memory worktree manager.
type fakeSource struct {
	mu          sync.Mutex
	entries     []Entry
	prMerged    map[string]bool
	branch      string
	snapshots   []bool // augmented flag of each Snapshot call
	switches    []string
	switchErr   map[string]error
	pathErr     error
	augErr      error
	snapErr     error
	block       chan struct{}
	calls       atomic.Int32
	createPaths map[string]string
}

func newFakeSource(entries ...Entry) *fakeSource {
	return &fakeSource{
		entries:     entries,
		prMerged:    make(map[string]bool),
		branch:      "main",
		switchErr:   make(map[string]error),
		createPaths: make(map[string]string),
	}
}

func (f *fakeSource) Snapshot(_ context.Context, dir string, augmented bool) (*Snapshot, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, augmented)
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	if augmented && f.augErr != nil {
		return nil, f.augErr
	}
	snap := &Snapshot{RepoRoot: "/repo", BaseBranch: "main", Augmented: augmented}
	for _, e := range f.entries {
		if augmented {
			if v, ok := f.prMerged[e.Branch]; ok {
				v := v
				e.Merged = Merged{Overall: &v, ByPR: &v}
			}
		}
		snap.Worktrees = append(snap.Worktrees, e)
	}
	sortEntries(snap.Worktrees)
	return snap, nil
}

func (f *fakeSource) Switch(_ context.Context, _ string, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switches = append(f.switches, branch)
	if err := f.switchErr[branch]; err != nil {
		return err
	}
	if path, ok := f.createPaths[branch]; ok {
		f.entries = append(f.entries, Entry{Path: path, Branch: branch})
	}
	f.branch = branch
	return nil
}

func (f *fakeSource) Path(_ context.Context, _ string, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pathErr != nil {
		return "", f.pathErr
	}
	return f.createPaths[branch], nil
}

func (f *fakeSource) CurrentBranch(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.branch, nil
}

func (f *fakeSource) getSwitches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.switches...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestResolver(src Source) (*Resolver, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewResolver(src, config.Default().Worktree, WithClock(clock.Now)), clock
}

func repoEntries() []Entry {
	return []Entry{
		{Path: "/repo", Branch: "main"},
		{Path: "/repo/sub", Branch: "feature"},
	}
}

func TestResolver_ResolveByPath_LongestPrefix(t *testing.T) {
	r, _ := newTestResolver(newFakeSource(repoEntries()...))

	entry, err := r.ResolveByPath(context.Background(), "/repo/sub/deep")
	if err != nil {
		t.Fatalf("ResolveByPath() error = %v", err)
	}
	if entry.Path != "/repo/sub" {
		t.Errorf("ResolveByPath() = %q, want /repo/sub", entry.Path)
	}

	_, err = r.ResolveByPath(context.Background(), "/elsewhere")
	if errors.CodeOf(err) != errors.CodeNotFound {
		t.Errorf("ResolveByPath(/elsewhere) error = %v, want NOT_FOUND", err)
	}
}

func TestResolver_RejectsRelativePath(t *testing.T) {
	r, _ := newTestResolver(newFakeSource())
	_, err := r.Snapshot(context.Background(), "repo/sub", SnapshotOptions{})
	if errors.CodeOf(err) != errors.CodeInvalidPayload {
		t.Errorf("Snapshot() error = %v, want INVALID_PAYLOAD", err)
	}
}

func TestResolver_CacheTTL(t *testing.T) {
	src := newFakeSource(repoEntries()...)
	r, clock := newTestResolver(src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Snapshot(ctx, "/repo/", SnapshotOptions{}); err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source called %d times within TTL, want 1", n)
	}

	clock.Advance(3 * time.Second)
	if _, err := r.Snapshot(ctx, "/repo", SnapshotOptions{}); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("source called %d times after TTL, want 2", n)
	}
}

func TestResolver_AugmentedOverlay(t *testing.T) {
	src := newFakeSource(repoEntries()...)
	src.prMerged["feature"] = true
	r, clock := newTestResolver(src)
	ctx := context.Background()

	snap, err := r.Snapshot(ctx, "/repo", SnapshotOptions{})
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if !snap.Augmented {
		t.Fatal("first snapshot should be augmented")
	}

	// Cheap refresh after the TTL still reports merge state from the
	// augmented fetch.
	clock.Advance(5 * time.Second)
	snap, err = r.Snapshot(ctx, "/repo", SnapshotOptions{})
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	feature, _ := snap.Branch("feature")
	if feature.Merged.Overall == nil || !*feature.Merged.Overall {
		t.Errorf("merge metadata flickered to unknown: %+v", feature.Merged)
	}

	clock.Advance(30 * time.Second)
	if _, err := r.Snapshot(ctx, "/repo", SnapshotOptions{}); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	want := []bool{true, false, true}
	if fmt.Sprint(src.snapshots) != fmt.Sprint(want) {
		t.Errorf("augmented flags = %v, want %v", src.snapshots, want)
	}
}

func TestResolver_AugmentedFailureFallsBack(t *testing.T) {
	src := newFakeSource(repoEntries()...)
	src.augErr = errors.Internal("gh rate limited", nil)
	r, _ := newTestResolver(src)

	snap, err := r.Snapshot(context.Background(), "/repo", SnapshotOptions{})
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Augmented || len(snap.Worktrees) != 2 {
		t.Errorf("fallback snapshot = %+v", snap)
	}
}

func TestResolver_ForceRefreshRateLimit(t *testing.T) {
	src := newFakeSource(repoEntries()...)
	r, clock := newTestResolver(src)
	ctx := context.Background()

	if _, err := r.Snapshot(ctx, "/repo", SnapshotOptions{Force: true}); err != nil {
		t.Fatalf("first forced Snapshot() error = %v", err)
	}
	_, err := r.Snapshot(ctx, "/repo", SnapshotOptions{Force: true})
	if errors.CodeOf(err) != errors.CodeRateLimit {
		t.Fatalf("second forced Snapshot() error = %v, want RATE_LIMIT", err)
	}
	if _, err := r.Snapshot(ctx, "/repo", SnapshotOptions{}); err != nil {
		t.Errorf("cached Snapshot() should still work, got %v", err)
	}

	clock.Advance(time.Second)
	if _, err := r.Snapshot(ctx, "/repo", SnapshotOptions{Force: true}); err != nil {
		t.Errorf("forced Snapshot() after interval error = %v", err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("source called %d times, want 2", n)
	}
}

func TestResolver_FailedForceRefreshAllowsRetry(t *testing.T) {
	src := newFakeSource(repoEntries()...)
	src.snapErr = errors.Internal("worktree manager timed out", nil)
	r, _ := newTestResolver(src)
	ctx := context.Background()

	_, err := r.Snapshot(ctx, "/repo", SnapshotOptions{Force: true})
	if err == nil || errors.CodeOf(err) != errors.CodeInternal {
		t.Fatalf("failing forced Snapshot() error = %v, want INTERNAL", err)
	}

	src.mu.Lock()
	src.snapErr = nil
	src.mu.Unlock()

	snap, err := r.Snapshot(ctx, "/repo", SnapshotOptions{Force: true})
	if err != nil {
		t.Fatalf("forced retry after failure error = %v, want success", err)
	}
	if !snap.Augmented {
		t.Error("forced retry should fetch PR status")
	}

	_, err = r.Snapshot(ctx, "/repo", SnapshotOptions{Force: true})
	if errors.CodeOf(err) != errors.CodeRateLimit {
		t.Errorf("forced call after a successful refresh error = %v, want RATE_LIMIT", err)
	}
}

func TestResolver_WaiterHonorsContext(t *testing.T) {
	src := newFakeSource(repoEntries()...)
	src.block = make(chan struct{})
	r, _ := newTestResolver(src)

	leaderDone := make(chan error, 1)
	go func() {
		_, err := r.Snapshot(context.Background(), "/repo", SnapshotOptions{})
		leaderDone <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for src.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Snapshot(ctx, "/repo", SnapshotOptions{})
	if err == nil || errors.CodeOf(err) != errors.CodeInternal {
		t.Errorf("cancelled waiter error = %v, want INTERNAL", err)
	}

	close(src.block)
	if err := <-leaderDone; err != nil {
		t.Errorf("leader Snapshot() error = %v", err)
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source called %d times, want 1", n)
	}
}

func TestResolver_ConcurrentFetchesShareOneCall(t *testing.T) {
	src := newFakeSource(repoEntries()...)
	src.block = make(chan struct{})
	r, _ := newTestResolver(src)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Snapshot(context.Background(), "/repo", SnapshotOptions{})
			errs <- err
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for src.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// Give the remaining callers time to attach to the in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	close(src.block)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Snapshot() error = %v", err)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source called %d times, want 1", n)
	}
}

func TestResolver_EnsureBranch(t *testing.T) {
	t.Run("existing worktree", func(t *testing.T) {
		src := newFakeSource(repoEntries()...)
		r, _ := newTestResolver(src)
		entry, err := r.EnsureBranch(context.Background(), "/repo", "feature", true)
		if err != nil || entry.Path != "/repo/sub" {
			t.Fatalf("EnsureBranch() = %+v, %v", entry, err)
		}
		if len(src.getSwitches()) != 0 {
			t.Errorf("unexpected switches: %v", src.getSwitches())
		}
	})

	t.Run("missing without create", func(t *testing.T) {
		r, _ := newTestResolver(newFakeSource(repoEntries()...))
		_, err := r.EnsureBranch(context.Background(), "/repo", "nope", false)
		if errors.CodeOf(err) != errors.CodeNotFound {
			t.Errorf("EnsureBranch() error = %v, want NOT_FOUND", err)
		}
	})

	t.Run("creates worktree", func(t *testing.T) {
		dir := t.TempDir()
		src := newFakeSource(repoEntries()...)
		src.createPaths["new"] = dir
		r, _ := newTestResolver(src)

		// Prime the cache so creation has to invalidate it.
		if _, err := r.Snapshot(context.Background(), "/repo", SnapshotOptions{}); err != nil {
			t.Fatal(err)
		}
		entry, err := r.EnsureBranch(context.Background(), "/repo", "new", true)
		if err != nil {
			t.Fatalf("EnsureBranch() error = %v", err)
		}
		if entry.Path != dir || entry.Branch != "new" {
			t.Errorf("EnsureBranch() = %+v", entry)
		}
	})

	t.Run("path failure switches back", func(t *testing.T) {
		src := newFakeSource(repoEntries()...)
		src.branch = "develop"
		src.pathErr = errors.Internal("vw path failed", nil)
		r, _ := newTestResolver(src)

		_, err := r.EnsureBranch(context.Background(), "/repo", "new", true)
		if err == nil || errors.Message(err) != "vw path failed" {
			t.Fatalf("EnsureBranch() error = %v, want the path failure", err)
		}
		if got := src.getSwitches(); fmt.Sprint(got) != "[new develop]" {
			t.Errorf("switches = %v, want [new develop]", got)
		}
	})

	t.Run("failed switch back keeps original error", func(t *testing.T) {
		src := newFakeSource(repoEntries()...)
		src.branch = "develop"
		src.switchErr["new"] = errors.Internal("switch to new failed", nil)
		src.switchErr["develop"] = errors.Internal("switch back failed", nil)
		r, _ := newTestResolver(src)

		_, err := r.EnsureBranch(context.Background(), "/repo", "new", true)
		if errors.Message(err) != "switch to new failed" {
			t.Errorf("EnsureBranch() error = %v, want the original switch failure", err)
		}
		if got := src.getSwitches(); fmt.Sprint(got) != "[new develop]" {
			t.Errorf("switches = %v, want [new develop]", got)
		}
	})

	t.Run("missing path on disk is a failure", func(t *testing.T) {
		src := newFakeSource(repoEntries()...)
		src.createPaths["new"] = "/definitely/not/here"
		r, _ := newTestResolver(src)

		_, err := r.EnsureBranch(context.Background(), "/repo", "new", true)
		if errors.CodeOf(err) != errors.CodeInternal {
			t.Errorf("EnsureBranch() error = %v, want INTERNAL", err)
		}
		if got := src.getSwitches(); fmt.Sprint(got) != "[new main]" {
			t.Errorf("switches = %v, want [new main]", got)
		}
	})
}
