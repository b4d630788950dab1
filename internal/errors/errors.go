// Package errors provides the closed error taxonomy for pane commands and
// agent launches. Every failure that crosses the package boundary of the
// dispatcher, the launcher, or the worktree resolver carries exactly one
// Code, and callers translate that code into the wire form returned to
// clients.
//
// # Codes
//
// The codes fall into three categories:
//
//   - Validation (client-caused): CodeInvalidPayload, CodeDangerousCommand.
//     These are returned before any side effect happens.
//   - Operational (environment state): CodeNotFound, CodeTmuxUnavailable,
//     CodeInvalidPane, CodeRateLimit.
//   - Unexpected: CodeInternal. Anything that cannot be classified
//     collapses to this code.
//
// # Usage
//
// Creating errors:
//
//	err := errors.InvalidPayload("text must not be empty")
//	err := errors.Internal("send-keys failed", cause).WithStderr(stderr)
//
// Checking errors:
//
//	if errors.CodeOf(err) == errors.CodeDangerousCommand { ... }
//	if errors.Is(err, errors.ErrNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Code identifies the class of a failure. The set is closed: every switch
// over Code in this module is expected to handle all values.
type Code int

const (
	// CodeInternal is an unexpected failure. It is the zero value so that
	// an unclassified error never masquerades as a client error.
	CodeInternal Code = iota
	// CodeInvalidPayload means the request failed validation.
	CodeInvalidPayload
	// CodeDangerousCommand means the input matched a danger rule.
	CodeDangerousCommand
	// CodeNotFound means a referenced session, window or worktree does not exist.
	CodeNotFound
	// CodeTmuxUnavailable means the multiplexer binary or server is unreachable.
	CodeTmuxUnavailable
	// CodeInvalidPane means the pane id is malformed or the pane is gone.
	CodeInvalidPane
	// CodeRateLimit means the operation was throttled.
	CodeRateLimit
)

// AllCodes returns every defined code in declaration order.
func AllCodes() []Code {
	return []Code{
		CodeInternal,
		CodeInvalidPayload,
		CodeDangerousCommand,
		CodeNotFound,
		CodeTmuxUnavailable,
		CodeInvalidPane,
		CodeRateLimit,
	}
}

// String returns the wire form of the code.
func (c Code) String() string {
	switch c {
	case CodeInternal:
		return "INTERNAL"
	case CodeInvalidPayload:
		return "INVALID_PAYLOAD"
	case CodeDangerousCommand:
		return "DANGEROUS_COMMAND"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeTmuxUnavailable:
		return "TMUX_UNAVAILABLE"
	case CodeInvalidPane:
		return "INVALID_PANE"
	case CodeRateLimit:
		return "RATE_LIMIT"
	default:
		return "INTERNAL"
	}
}

// MarshalText encodes the code in its wire form.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a wire-form code.
func (c *Code) UnmarshalText(text []byte) error {
	parsed, ok := ParseCode(string(text))
	if !ok {
		return fmt.Errorf("unknown error code %q", string(text))
	}
	*c = parsed
	return nil
}

// ParseCode converts a wire-form code back to a Code.
func ParseCode(s string) (Code, bool) {
	for _, c := range AllCodes() {
		if c.String() == strings.ToUpper(strings.TrimSpace(s)) {
			return c, true
		}
	}
	return CodeInternal, false
}

// Category groups codes by who is responsible for the failure.
type Category int

const (
	// CategoryUnexpected is a bug or an unclassified failure.
	CategoryUnexpected Category = iota
	// CategoryValidation is a client-caused failure detected before side effects.
	CategoryValidation
	// CategoryOperational reflects the state of the environment.
	CategoryOperational
)

// String returns the string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryOperational:
		return "operational"
	default:
		return "unexpected"
	}
}

// Category returns the category the code belongs to.
func (c Code) Category() Category {
	switch c {
	case CodeInvalidPayload, CodeDangerousCommand:
		return CategoryValidation
	case CodeNotFound, CodeTmuxUnavailable, CodeInvalidPane, CodeRateLimit:
		return CategoryOperational
	case CodeInternal:
		return CategoryUnexpected
	default:
		return CategoryUnexpected
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// One sentinel per code, so that errors.Is(err, ErrNotFound) works on any
// CommandError carrying CodeNotFound.
var (
	ErrInternal         = New("internal error")
	ErrInvalidPayload   = New("invalid payload")
	ErrDangerousCommand = New("dangerous command")
	ErrNotFound         = New("not found")
	ErrTmuxUnavailable  = New("tmux unavailable")
	ErrInvalidPane      = New("invalid pane")
	ErrRateLimit        = New("rate limited")
)

// Sentinel returns the sentinel error for a code.
func (c Code) Sentinel() error {
	switch c {
	case CodeInvalidPayload:
		return ErrInvalidPayload
	case CodeDangerousCommand:
		return ErrDangerousCommand
	case CodeNotFound:
		return ErrNotFound
	case CodeTmuxUnavailable:
		return ErrTmuxUnavailable
	case CodeInvalidPane:
		return ErrInvalidPane
	case CodeRateLimit:
		return ErrRateLimit
	case CodeInternal:
		return ErrInternal
	default:
		return ErrInternal
	}
}

// -----------------------------------------------------------------------------
// CommandError
// -----------------------------------------------------------------------------

// CommandError is the single concrete error type returned by the core
// packages. Message is safe to show to the client; the cause is kept for
// logs and errors.Is/As traversal.
type CommandError struct {
	Code    Code
	Message string
	// Stderr holds the transport's stderr when a subprocess failed.
	Stderr string
	cause  error
}

// NewCommandError creates a CommandError with the given code and message.
func NewCommandError(code Code, message string) *CommandError {
	return &CommandError{Code: code, Message: message}
}

// WithCause attaches an underlying error.
func (e *CommandError) WithCause(cause error) *CommandError {
	e.cause = cause
	return e
}

// WithStderr attaches subprocess stderr output.
func (e *CommandError) WithStderr(stderr string) *CommandError {
	e.Stderr = strings.TrimSpace(stderr)
	return e
}

// Error returns the error message.
func (e *CommandError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Code.String())
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Stderr != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Stderr)
		sb.WriteString(")")
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.cause
}

// Is matches the sentinel for the error's code, then falls through to the cause.
func (e *CommandError) Is(target error) bool {
	if target == e.Code.Sentinel() {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

// InvalidPayload creates a validation error.
func InvalidPayload(format string, args ...any) *CommandError {
	return NewCommandError(CodeInvalidPayload, fmt.Sprintf(format, args...))
}

// Dangerous creates a danger-rule violation.
func Dangerous(format string, args ...any) *CommandError {
	return NewCommandError(CodeDangerousCommand, fmt.Sprintf(format, args...))
}

// NotFound creates an error for a missing resource.
func NotFound(resourceType, resourceID string) *CommandError {
	return NewCommandError(CodeNotFound, fmt.Sprintf("%s not found: %s", resourceType, resourceID))
}

// TmuxUnavailable creates an error for an unreachable multiplexer.
func TmuxUnavailable(message string, cause error) *CommandError {
	return NewCommandError(CodeTmuxUnavailable, message).WithCause(cause)
}

// InvalidPane creates an error for a malformed or vanished pane.
func InvalidPane(paneID string) *CommandError {
	return NewCommandError(CodeInvalidPane, fmt.Sprintf("invalid pane: %s", paneID))
}

// Internal creates an unexpected-failure error.
func Internal(message string, cause error) *CommandError {
	return NewCommandError(CodeInternal, message).WithCause(cause)
}

// RateLimited creates a throttling error.
func RateLimited(format string, args ...any) *CommandError {
	return NewCommandError(CodeRateLimit, fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// CodeOf extracts the code from err. Errors that are not CommandErrors are
// reported as CodeInternal. A nil error also reports CodeInternal; callers
// check for nil first.
func CodeOf(err error) Code {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

// Message extracts the client-facing message from err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		if ce.Stderr != "" {
			return ce.Message + ": " + ce.Stderr
		}
		return ce.Message
	}
	return err.Error()
}

// AsCommandError converts any error into a CommandError, wrapping foreign
// errors as CodeInternal. Returns nil for a nil error.
func AsCommandError(err error) *CommandError {
	if err == nil {
		return nil
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce
	}
	return Internal(err.Error(), err)
}

// IsValidation reports whether err was caused by the client.
func IsValidation(err error) bool {
	return err != nil && CodeOf(err).Category() == CategoryValidation
}

// IsRetryable reports whether retrying the same request may succeed.
// Validation failures never do; throttling and environment failures may.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case CodeRateLimit, CodeTmuxUnavailable:
		return true
	case CodeInvalidPayload, CodeDangerousCommand, CodeNotFound, CodeInvalidPane, CodeInternal:
		return false
	default:
		return false
	}
}

// Wrap wraps an error with additional context message, preserving its code.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
