// Package tmuxtest provides a recording tmux.Runner for tests.
package tmuxtest

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/Iron-Ham/panedrive/internal/tmux"
)

// Runner records every invocation and answers from registered rules.
// Calls that match no rule succeed with empty output.
type Runner struct {
	mu    sync.Mutex
	calls [][]string
	rules []*Rule
}

// Rule answers invocations whose arguments start with a prefix.
type Rule struct {
	mu      *sync.Mutex
	prefix  []string
	results []tmux.Result
	err     error
	hits    int
}

// New creates an empty Runner.
func New() *Runner {
	return &Runner{}
}

// On registers a rule for invocations starting with prefix. Rules added
// later take precedence over earlier ones.
func (f *Runner) On(prefix ...string) *Rule {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &Rule{mu: &f.mu, prefix: prefix}
	f.rules = append(f.rules, r)
	return r
}

// Return answers matching calls with results in order. The last result
// repeats once the sequence is exhausted.
func (r *Rule) Return(results ...tmux.Result) *Rule {
	r.results = results
	return r
}

// Stdout answers matching calls with a successful result.
func (r *Rule) Stdout(out string) *Rule {
	return r.Return(tmux.Result{Stdout: out})
}

// Exit answers matching calls with a non-zero exit status.
func (r *Rule) Exit(code int, stderr string) *Rule {
	return r.Return(tmux.Result{ExitCode: code, Stderr: stderr})
}

// Error makes matching calls fail to run at all.
func (r *Rule) Error(err error) *Rule {
	r.err = err
	return r
}

// Hits returns how many calls the rule answered.
func (r *Rule) Hits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits
}

// Run implements tmux.Runner.
func (f *Runner) Run(_ context.Context, args ...string) (tmux.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, slices.Clone(args))
	for i := len(f.rules) - 1; i >= 0; i-- {
		r := f.rules[i]
		if len(args) < len(r.prefix) || !slices.Equal(args[:len(r.prefix)], r.prefix) {
			continue
		}
		r.hits++
		if r.err != nil {
			return tmux.Result{}, r.err
		}
		if len(r.results) == 0 {
			return tmux.Result{}, nil
		}
		idx := min(r.hits-1, len(r.results)-1)
		return r.results[idx], nil
	}
	return tmux.Result{}, nil
}

// Calls returns a copy of every recorded invocation.
func (f *Runner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = slices.Clone(c)
	}
	return out
}

// CallsTo returns the recorded invocations of one tmux subcommand.
func (f *Runner) CallsTo(verb string) [][]string {
	var out [][]string
	for _, c := range f.Calls() {
		if len(c) > 0 && c[0] == verb {
			out = append(out, c)
		}
	}
	return out
}

// Joined renders each recorded call as a space-separated string.
func (f *Runner) Joined() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = strings.Join(c, " ")
	}
	return out
}
