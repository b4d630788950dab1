package input

import "sync"

// PendingStore holds, per pane, the text typed since the last submitted
// line.
type PendingStore struct {
	mu    sync.Mutex
	panes map[string]string
}

// NewPendingStore creates an empty store.
func NewPendingStore() *PendingStore {
	return &PendingStore{panes: make(map[string]string)}
}

// Get returns the pending text for pane.
func (s *PendingStore) Get(pane string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panes[pane]
}

// Set stores text as the pane's pending line. Empty text clears it.
func (s *PendingStore) Set(pane, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == "" {
		delete(s.panes, pane)
		return
	}
	s.panes[pane] = text
}

// Clear drops the pane's pending line.
func (s *PendingStore) Clear(pane string) {
	s.Set(pane, "")
}

// Len returns the number of panes with pending text.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.panes)
}

// paneLocks serializes actions on one pane without blocking other panes.
type paneLocks struct {
	mu    sync.Mutex
	locks map[string]*paneLock
}

type paneLock struct {
	mu   sync.Mutex
	refs int
}

func newPaneLocks() *paneLocks {
	return &paneLocks{locks: make(map[string]*paneLock)}
}

// lock acquires the pane's lock and returns its release function.
func (p *paneLocks) lock(pane string) func() {
	p.mu.Lock()
	l, ok := p.locks[pane]
	if !ok {
		l = &paneLock{}
		p.locks[pane] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, pane)
		}
		p.mu.Unlock()
	}
}
