// Package input validates user input for terminal panes and dispatches it as
// an ordered sequence of multiplexer calls.
//
// Text sent without a submitting key is remembered per pane so that a
// destructive command split across several sends is still matched against
// the danger patterns as one line.
package input

import (
	"context"
	"strings"
	"time"

	"github.com/Iron-Ham/panedrive/internal/errors"
	"github.com/Iron-Ham/panedrive/internal/logging"
	"github.com/Iron-Ham/panedrive/internal/tmux"
)

const (
	pasteStart = "\x1b[200~"
	pasteEnd   = "\x1b[201~"
)

// PaneTransport writes to a terminal pane. *tmux.Client implements it.
type PaneTransport interface {
	// ExitCopyMode leaves any selection or copy mode.
	ExitCopyMode(ctx context.Context, pane string) error
	// SendLiteral types text without key-name interpretation.
	SendLiteral(ctx context.Context, pane, text string) error
	// SendKey sends one named key.
	SendKey(ctx context.Context, pane, key string) error
}

// RawKind distinguishes raw items.
type RawKind string

// Raw item kinds.
const (
	RawText RawKind = "text"
	RawKey  RawKind = "key"
)

// RawItem is one element of a raw send.
type RawItem struct {
	Kind  RawKind `json:"kind"`
	Value string  `json:"value"`
}

// maxRawItems bounds a single raw or key send.
const maxRawItems = 64

// Dispatcher turns validated actions into transport calls.
type Dispatcher struct {
	transport    PaneTransport
	validator    *Validator
	pending      *PendingStore
	locks        *paneLocks
	enterKey     string
	enterDelay   time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	validatePane func(pane string) error
	logger       *logging.Logger
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithEnterKey sets the key that submits a line. Default "C-m".
func WithEnterKey(key string) Option {
	return func(d *Dispatcher) {
		if key != "" {
			d.enterKey = key
		}
	}
}

// WithEnterDelay sets the pause between typing text and pressing enter.
func WithEnterDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		d.enterDelay = delay
	}
}

// WithSleep replaces the function used to wait before enter.
// Tests pass a no-op.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) {
		d.sleep = sleep
	}
}

// WithPaneValidator replaces the pane id check. Default tmux.ValidatePaneID.
func WithPaneValidator(validate func(pane string) error) Option {
	return func(d *Dispatcher) {
		d.validatePane = validate
	}
}

// WithPendingStore shares a pending store between dispatchers.
func WithPendingStore(store *PendingStore) Option {
	return func(d *Dispatcher) {
		d.pending = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a Dispatcher writing through transport.
func NewDispatcher(transport PaneTransport, validator *Validator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport:    transport,
		validator:    validator,
		pending:      NewPendingStore(),
		locks:        newPaneLocks(),
		enterKey:     "C-m",
		sleep:        Sleep,
		validatePane: tmux.ValidatePaneID,
		logger:       logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Validator returns the validator used by the dispatcher.
func (d *Dispatcher) Validator() *Validator {
	return d.validator
}

// PendingText returns the unsubmitted text recorded for pane.
func (d *Dispatcher) PendingText(pane string) string {
	return d.pending.Get(pane)
}

// SendText types text into pane and, when enter is set, submits it.
//
// The pane's pending text plus the new text is checked against the danger
// patterns first. A match clears the pending text and nothing is sent.
func (d *Dispatcher) SendText(ctx context.Context, pane, text string, enter bool) error {
	if err := d.validatePane(pane); err != nil {
		return err
	}
	if err := d.validator.ValidateText(text); err != nil {
		return err
	}

	release := d.locks.lock(pane)
	defer release()

	logger := d.logger.WithPane(pane)
	candidate := d.pending.Get(pane) + text
	if err := d.validator.CheckDanger(candidate); err != nil {
		d.pending.Clear(pane)
		logger.Warn("blocked dangerous input", "error", err)
		return err
	}

	d.exitCopyMode(ctx, pane)
	if err := d.transport.SendLiteral(ctx, pane, encodeText(text)); err != nil {
		return err
	}

	if !enter {
		if hasNewline(text) {
			d.pending.Clear(pane)
		} else {
			d.pending.Set(pane, candidate)
		}
		return nil
	}

	// The text is in the pane from here on, so a failed enter leaves it pending.
	d.pending.Set(pane, candidate)
	if err := d.sleep(ctx, d.enterDelay); err != nil {
		return errors.Internal("interrupted before enter", err)
	}
	if err := d.transport.SendKey(ctx, pane, d.enterKey); err != nil {
		return err
	}
	d.pending.Clear(pane)
	logger.Debug("sent text", "length", len(text), "enter", enter)
	return nil
}

// SendKeys sends named keys to pane in order. Keys in the danger set are
// rejected.
func (d *Dispatcher) SendKeys(ctx context.Context, pane string, keys []string) error {
	items := make([]RawItem, len(keys))
	for i, k := range keys {
		items[i] = RawItem{Kind: RawKey, Value: k}
	}
	return d.SendRaw(ctx, pane, items, false)
}

// SendRaw sends a mix of literal text and keys. With unsafe set, keys from
// the danger set are allowed; text is always checked against the danger
// patterns.
func (d *Dispatcher) SendRaw(ctx context.Context, pane string, items []RawItem, unsafe bool) error {
	if err := d.validatePane(pane); err != nil {
		return err
	}
	if len(items) == 0 {
		return errors.InvalidPayload("at least one item is required")
	}
	if len(items) > maxRawItems {
		return errors.InvalidPayload("too many items: %d, limit is %d", len(items), maxRawItems)
	}

	resolved := make([]RawItem, len(items))
	for i, item := range items {
		switch item.Kind {
		case RawText:
			if item.Value == "" {
				return errors.InvalidPayload("item %d: text must not be empty", i)
			}
			if err := d.validator.validateLength(item.Value); err != nil {
				return err
			}
			resolved[i] = item
		case RawKey:
			key, err := d.validator.ValidateKey(item.Value, unsafe)
			if err != nil {
				return err
			}
			resolved[i] = RawItem{Kind: RawKey, Value: key}
		default:
			return errors.InvalidPayload("item %d: unknown kind %q", i, item.Kind)
		}
	}

	release := d.locks.lock(pane)
	defer release()

	// Replay the items against the pending line before anything is sent.
	line := d.pending.Get(pane)
	for _, item := range resolved {
		if item.Kind == RawText {
			line += item.Value
			if err := d.validator.CheckDanger(line); err != nil {
				d.pending.Clear(pane)
				d.logger.WithPane(pane).Warn("blocked dangerous input", "error", err)
				return err
			}
			if hasNewline(item.Value) {
				line = ""
			}
		} else if submitKeys[item.Value] {
			line = ""
		}
	}

	d.exitCopyMode(ctx, pane)
	line = d.pending.Get(pane)
	for _, item := range resolved {
		var err error
		if item.Kind == RawText {
			err = d.transport.SendLiteral(ctx, pane, item.Value)
		} else {
			err = d.transport.SendKey(ctx, pane, item.Value)
		}
		if err != nil {
			d.pending.Set(pane, line)
			return err
		}
		switch {
		case item.Kind == RawText && hasNewline(item.Value):
			line = ""
		case item.Kind == RawText:
			line += item.Value
		case submitKeys[item.Value]:
			line = ""
		}
	}
	d.pending.Set(pane, line)
	return nil
}

// Interrupt sends C-c to pane and forgets its pending text.
func (d *Dispatcher) Interrupt(ctx context.Context, pane string) error {
	if err := d.validatePane(pane); err != nil {
		return err
	}
	release := d.locks.lock(pane)
	defer release()

	d.exitCopyMode(ctx, pane)
	if err := d.transport.SendKey(ctx, pane, "C-c"); err != nil {
		return err
	}
	d.pending.Clear(pane)
	return nil
}

// Submit types a command line built by panedrive itself and presses enter.
// It skips client validation; the launcher quotes every argument.
func (d *Dispatcher) Submit(ctx context.Context, pane, command string) error {
	release := d.locks.lock(pane)
	defer release()

	d.exitCopyMode(ctx, pane)
	if err := d.transport.SendLiteral(ctx, pane, command); err != nil {
		return err
	}
	if err := d.sleep(ctx, d.enterDelay); err != nil {
		return errors.Internal("interrupted before enter", err)
	}
	if err := d.transport.SendKey(ctx, pane, d.enterKey); err != nil {
		return err
	}
	d.pending.Clear(pane)
	return nil
}

func (d *Dispatcher) exitCopyMode(ctx context.Context, pane string) {
	if err := d.transport.ExitCopyMode(ctx, pane); err != nil {
		d.logger.Debug("exit copy mode failed", "pane", pane, "error", err)
	}
}

// encodeText wraps multi-line text in a bracketed paste so the shell
// receives it as one paste instead of line by line.
func encodeText(text string) string {
	if !hasNewline(text) {
		return text
	}
	return pasteStart + text + pasteEnd
}

func hasNewline(text string) bool {
	return strings.ContainsAny(text, "\r\n")
}
