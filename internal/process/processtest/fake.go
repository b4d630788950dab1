// Package processtest provides an in-memory process.Tree for tests.
package processtest

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/Iron-Ham/panedrive/internal/process"
)

// Sent records one delivered signal.
type Sent struct {
	PID    int
	Signal unix.Signal
}

// Tree is a fake process table. Signalled processes are removed from the
// table when ExitOn includes the signal, which mimics a process that honors
// it.
type Tree struct {
	mu     sync.Mutex
	procs  []process.Process
	sent   []Sent
	ExitOn map[unix.Signal]bool
	// OnSignal runs after each delivery while the lock is not held.
	OnSignal func(pid int, sig unix.Signal)
	ListErr  error
}

// New creates a fake tree holding procs. By default processes exit on
// SIGTERM and SIGKILL.
func New(procs ...process.Process) *Tree {
	return &Tree{
		procs:  slices.Clone(procs),
		ExitOn: map[unix.Signal]bool{unix.SIGTERM: true, unix.SIGKILL: true},
	}
}

// List implements process.Tree.
func (t *Tree) List(context.Context) ([]process.Process, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ListErr != nil {
		return nil, t.ListErr
	}
	return slices.Clone(t.procs), nil
}

// Signal implements process.Tree.
func (t *Tree) Signal(pid int, sig unix.Signal) error {
	t.mu.Lock()
	t.sent = append(t.sent, Sent{PID: pid, Signal: sig})
	if t.ExitOn[sig] {
		t.procs = slices.DeleteFunc(t.procs, func(p process.Process) bool { return p.PID == pid })
	}
	hook := t.OnSignal
	t.mu.Unlock()

	if hook != nil {
		hook(pid, sig)
	}
	return nil
}

// Sent returns every signal delivered so far.
func (t *Tree) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.sent)
}
