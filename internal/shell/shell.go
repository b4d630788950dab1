// Package shell builds POSIX shell command lines that are typed into a
// terminal pane. Every argument goes through Quote, the single escaping
// function in the module.
package shell

import "strings"

// Quote returns s in a form the shell reads back as exactly s. Words made
// only of unambiguous characters are returned as-is; everything else is
// wrapped in single quotes with embedded quotes spelled '\''.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if isSafe(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("@%+=:,./_-", r):
		default:
			return false
		}
	}
	return true
}

// Join quotes every argument and joins them with spaces.
func Join(args ...string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = Quote(arg)
	}
	return strings.Join(quoted, " ")
}

// Command is a program invocation built argument by argument.
type Command struct {
	program string
	args    []string
	dir     string
}

// New starts a command line for program.
func New(program string, args ...string) *Command {
	return &Command{program: program, args: append([]string(nil), args...)}
}

// Arg appends arguments.
func (c *Command) Arg(args ...string) *Command {
	c.args = append(c.args, args...)
	return c
}

// InDir makes the command change to dir before running. An empty dir
// leaves the working directory alone.
func (c *Command) InDir(dir string) *Command {
	c.dir = dir
	return c
}

// Argv returns the program followed by its arguments, unquoted.
func (c *Command) Argv() []string {
	return append([]string{c.program}, c.args...)
}

// String renders the command line, prefixed with "cd <dir> && " when a
// directory was set.
func (c *Command) String() string {
	line := Join(c.Argv()...)
	if c.dir == "" {
		return line
	}
	return "cd " + Quote(c.dir) + " && " + line
}
