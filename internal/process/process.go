// Package process inspects the process tree behind a terminal pane and
// delivers signals to it. The interrupt path of the launcher uses it to stop
// a running agent before typing a new command into its pane.
package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Iron-Ham/panedrive/internal/errors"
)

// Process is one row of the system process table.
type Process struct {
	PID     int    `json:"pid"`
	PPID    int    `json:"ppid"`
	Command string `json:"command"`
}

// Tree lists processes and signals them.
type Tree interface {
	// List returns a snapshot of every process visible to the caller.
	List(ctx context.Context) ([]Process, error)
	// Signal delivers sig to pid. A process that has already exited is
	// not an error.
	Signal(pid int, sig unix.Signal) error
}

// Descendants returns every process below root in procs, nearest first.
func Descendants(procs []Process, root int) []Process {
	children := make(map[int][]Process, len(procs))
	for _, p := range procs {
		if p.PID == p.PPID {
			continue
		}
		children[p.PPID] = append(children[p.PPID], p)
	}

	var out []Process
	seen := map[int]bool{root: true}
	queue := []int{root}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, child := range children[pid] {
			if seen[child.PID] {
				continue
			}
			seen[child.PID] = true
			out = append(out, child)
			queue = append(queue, child.PID)
		}
	}
	return out
}

// PSTree reads the process table with ps(1) and signals with kill(2).
type PSTree struct {
	// Timeout bounds each ps invocation.
	Timeout time.Duration
	// Binary is the ps executable. Defaults to "ps".
	Binary string
}

// NewPSTree creates a PSTree with the given per-call timeout.
func NewPSTree(timeout time.Duration) *PSTree {
	return &PSTree{Timeout: timeout, Binary: "ps"}
}

// List runs ps and parses its output.
func (t *PSTree) List(ctx context.Context) ([]Process, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	binary := t.Binary
	if binary == "" {
		binary = "ps"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-A", "-o", "pid=,ppid=,comm=")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Internal("failed to list processes", err).WithStderr(stderr.String())
	}
	return ParsePS(stdout.String()), nil
}

// ParsePS parses "pid ppid comm" rows. Malformed rows are skipped and the
// command is reduced to its base name.
func ParsePS(out string) []Process {
	var procs []Process
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		ppid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		command := strings.Join(fields[2:], " ")
		procs = append(procs, Process{PID: pid, PPID: ppid, Command: filepath.Base(command)})
	}
	return procs
}

// Signal sends sig to pid.
func (t *PSTree) Signal(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return errors.InvalidPayload("invalid pid %d", pid)
	}
	err := unix.Kill(pid, sig)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	return errors.Internal(fmt.Sprintf("failed to send %s to %d", unix.SignalName(sig), pid), err)
}
