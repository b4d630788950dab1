package worktree

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Iron-Ham/panedrive/internal/config"
	"github.com/Iron-Ham/panedrive/internal/errors"
	"github.com/Iron-Ham/panedrive/internal/logging"
)

// SnapshotOptions tunes a snapshot request.
type SnapshotOptions struct {
	// Force bypasses the cache and requests PR metadata. It is honored at
	// most once per force interval per directory; more frequent requests
	// fail with RATE_LIMIT.
	Force bool
}

// Resolver caches snapshots per directory and resolves worktrees from them.
// It is safe for concurrent use.
type Resolver struct {
	source            Source
	ttl               time.Duration
	augmentedInterval time.Duration
	forceInterval     time.Duration
	now               func() time.Time
	logger            *logging.Logger

	mu        sync.Mutex
	cache     map[string]cachedSnapshot
	augmented map[string]cachedSnapshot
	forcedAt  map[string]time.Time
	group     singleflight.Group
}

type cachedSnapshot struct {
	snap *Snapshot
	at   time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver over source using the cache intervals
// from cfg.
func NewResolver(source Source, cfg config.WorktreeConfig, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source:            source,
		ttl:               cfg.SnapshotTTL(),
		augmentedInterval: cfg.AugmentedInterval(),
		forceInterval:     cfg.ForceRefreshInterval(),
		now:               time.Now,
		logger:            logging.NopLogger(),
		cache:             make(map[string]cachedSnapshot),
		augmented:         make(map[string]cachedSnapshot),
		forcedAt:          make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the worktree snapshot for the repository containing cwd.
// Concurrent requests for the same repository share one manager call.
func (r *Resolver) Snapshot(ctx context.Context, cwd string, opts SnapshotOptions) (*Snapshot, error) {
	key, err := cacheKey(cwd)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	now := r.now()
	if opts.Force {
		if last, ok := r.forcedAt[key]; ok && now.Sub(last) < r.forceInterval {
			r.mu.Unlock()
			return nil, errors.RateLimited("worktree refresh for %s was requested %s ago", key, now.Sub(last).Round(time.Millisecond))
		}
		r.forcedAt[key] = now
	} else if c, ok := r.cache[key]; ok && now.Sub(c.at) < r.ttl {
		r.mu.Unlock()
		return c.snap.Clone(), nil
	}
	r.mu.Unlock()

	// The shared call outlives any one caller; the source applies its own timeout.
	ch := r.group.DoChan(key, func() (any, error) {
		return r.refresh(context.WithoutCancel(ctx), key, opts.Force)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			if opts.Force {
				r.releaseForce(key, now)
			}
			return nil, res.Err
		}
		return res.Val.(*Snapshot).Clone(), nil
	case <-ctx.Done():
		if opts.Force {
			r.releaseForce(key, now)
		}
		return nil, errors.Internal("waiting for worktree snapshot", ctx.Err())
	}
}

// refresh fetches a snapshot and stores it in the cache. Augmented results
// are kept separately and overlaid onto later plain fetches.
func (r *Resolver) refresh(ctx context.Context, key string, force bool) (*Snapshot, error) {
	r.mu.Lock()
	aug, hasAug := r.augmented[key]
	wantAugmented := force || !hasAug || r.now().Sub(aug.at) >= r.augmentedInterval
	r.mu.Unlock()

	snap, err := r.fetch(ctx, key, wantAugmented)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	at := r.now()
	snap.FetchedAt = at
	if snap.Augmented {
		r.augmented[key] = cachedSnapshot{snap: snap.Clone(), at: at}
	} else if prev, ok := r.augmented[key]; ok {
		snap.overlay(prev.snap)
	}
	r.cache[key] = cachedSnapshot{snap: snap, at: at}
	return snap, nil
}

// releaseForce forgets a forced refresh that produced nothing, so it does
// not count against the force interval.
func (r *Resolver) releaseForce(key string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.forcedAt[key]; ok && last.Equal(at) {
		delete(r.forcedAt, key)
	}
}

// fetch asks the source for a snapshot. A failed augmented fetch falls
// back to a plain one so a PR lookup outage does not hide the worktrees.
func (r *Resolver) fetch(ctx context.Context, dir string, augmented bool) (*Snapshot, error) {
	snap, err := r.source.Snapshot(ctx, dir, augmented)
	if err == nil || !augmented {
		return snap, err
	}
	r.logger.Warn("augmented worktree snapshot failed, retrying without PR status", "dir", dir, "error", err)
	return r.source.Snapshot(ctx, dir, false)
}

// Invalidate drops cached snapshots for the repository containing cwd.
func (r *Resolver) Invalidate(cwd string) {
	key, err := cacheKey(cwd)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, key)
}

// ResolveByPath returns the worktree owning path.
func (r *Resolver) ResolveByPath(ctx context.Context, path string) (Entry, error) {
	snap, err := r.Snapshot(ctx, path, SnapshotOptions{})
	if err != nil {
		return Entry{}, err
	}
	entry, ok := snap.Match(path)
	if !ok {
		return Entry{}, errors.NotFound("worktree", path)
	}
	return entry, nil
}

// ResolveByBranch returns the worktree checked out on branch in the
// repository containing cwd.
func (r *Resolver) ResolveByBranch(ctx context.Context, cwd, branch string) (Entry, error) {
	snap, err := r.Snapshot(ctx, cwd, SnapshotOptions{})
	if err != nil {
		return Entry{}, err
	}
	entry, ok := snap.Branch(branch)
	if !ok {
		return Entry{}, errors.NotFound("worktree for branch", branch)
	}
	return entry, nil
}

// EnsureBranch returns the worktree for branch, creating it through the
// manager when create is set and none exists.
//
// If switching or reading the new path fails, the manager is switched back
// to the branch that was active before. A failure of that switch back is
// logged and never replaces the original error.
func (r *Resolver) EnsureBranch(ctx context.Context, cwd, branch string, create bool) (Entry, error) {
	entry, err := r.ResolveByBranch(ctx, cwd, branch)
	if err == nil || !create || errors.CodeOf(err) != errors.CodeNotFound {
		return entry, err
	}

	key, _ := cacheKey(cwd)
	previous, err := r.source.CurrentBranch(ctx, key)
	if err != nil {
		r.logger.Debug("could not read current branch before switch", "dir", key, "error", err)
		previous = ""
	}

	restore := func(cause error) {
		if previous == "" || previous == branch || previous == "HEAD" {
			return
		}
		if err := r.source.Switch(ctx, key, previous); err != nil {
			r.logger.Warn("failed to switch back after worktree creation failed",
				"dir", key, "branch", previous, "cause", cause, "error", err)
		}
	}

	if err := r.source.Switch(ctx, key, branch); err != nil {
		restore(err)
		return Entry{}, err
	}
	path, err := r.source.Path(ctx, key, branch)
	if err != nil {
		restore(err)
		return Entry{}, err
	}
	if info, statErr := os.Stat(path); statErr != nil || !info.IsDir() {
		err := errors.Internal("worktree path for "+branch+" does not exist: "+path, statErr)
		restore(err)
		return Entry{}, err
	}

	r.Invalidate(key)
	if entry, err := r.ResolveByBranch(ctx, key, branch); err == nil {
		return entry, nil
	}
	return Entry{Path: path, Branch: branch}, nil
}

func cacheKey(cwd string) (string, error) {
	if cwd == "" || !filepath.IsAbs(cwd) {
		return "", errors.InvalidPayload("cwd must be an absolute path: %q", cwd)
	}
	return NormalizePath(cwd), nil
}
