package launch

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/panedrive/internal/errors"
)

type idemKey struct {
	session   string
	requestID string
}

type idemEntry struct {
	fingerprint string
	seq         uint64
	expires     time.Time
	settled     bool
	done        chan struct{}
	resp        Response
}

// Cache replays launches keyed by (session, request id). The first call
// runs the launch; concurrent and later calls with the same payload share
// its response. Failed launches are forgotten as soon as they settle.
// Successful ones are kept until the TTL passes or the cache is full, in
// which case the oldest entry is evicted.
type Cache struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	seq     uint64
	entries map[idemKey]*idemEntry
}

// NewCache creates a Cache.
func NewCache(ttl time.Duration, maxEntries int, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Cache{ttl: ttl, maxEntries: maxEntries, now: now, entries: make(map[idemKey]*idemEntry)}
}

// Len returns the number of cached and in-flight entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Do runs launch once per key and fingerprint. A call whose fingerprint
// differs from the entry under its key fails with INVALID_PAYLOAD without
// running anything. The returned response has Replayed set when it was
// not produced by this call.
func (c *Cache) Do(ctx context.Context, session, requestID, fingerprint string, launch func() Response) (Response, error) {
	key := idemKey{session: session, requestID: requestID}

	c.mu.Lock()
	now := c.now()
	c.pruneLocked(now)
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		if e.fingerprint != fingerprint {
			return Response{}, errors.InvalidPayload("requestId %q was already used with a different payload", requestID)
		}
		select {
		case <-e.done:
		case <-ctx.Done():
			return Response{}, errors.Internal("cancelled while waiting for launch "+requestID, ctx.Err())
		}
		resp := e.resp
		resp.Replayed = true
		return resp, nil
	}

	for len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.seq++
	e := &idemEntry{fingerprint: fingerprint, seq: c.seq, done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	resp := launch()

	c.mu.Lock()
	e.resp = resp
	e.settled = true
	e.expires = c.now().Add(c.ttl)
	if !resp.OK && c.entries[key] == e {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	close(e.done)

	return resp, nil
}

func (c *Cache) pruneLocked(now time.Time) {
	for key, e := range c.entries {
		if e.settled && !now.Before(e.expires) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) evictOldestLocked() {
	var (
		oldestKey idemKey
		oldest    *idemEntry
	)
	for key, e := range c.entries {
		if oldest == nil || e.seq < oldest.seq {
			oldestKey, oldest = key, e
		}
	}
	if oldest != nil {
		delete(c.entries, oldestKey)
	}
}
