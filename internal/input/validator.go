package input

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Iron-Ham/panedrive/internal/errors"
	"github.com/Iron-Ham/panedrive/internal/tmux"
)

// allowedKeys is the fixed set of key names a client may send.
var allowedKeys = func() map[string]bool {
	keys := []string{
		"Enter", "Tab", "BTab", "Escape", "Space", "BSpace", "DC", "IC",
		"Up", "Down", "Left", "Right", "Home", "End", "PageUp", "PageDown",
		"C-m", "C-j", `C-\`, "C-]", "C-Space",
	}
	for c := 'a'; c <= 'z'; c++ {
		keys = append(keys, "C-"+string(c))
	}
	for i := 1; i <= 12; i++ {
		keys = append(keys, fmt.Sprintf("F%d", i))
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}()

// submitKeys end the line being typed, so pending text is dropped after them.
var submitKeys = map[string]bool{"Enter": true, "C-m": true, "C-j": true, "C-c": true, "C-u": true}

// IsAllowedKey reports whether key, after alias mapping, is in the allowlist.
func IsAllowedKey(key string) bool {
	return allowedKeys[tmux.MapKey(key)]
}

// Validator checks text and keys before they reach a pane. The danger
// patterns can be replaced at runtime.
type Validator struct {
	mu            sync.RWMutex
	maxTextLength int
	patterns      []*regexp.Regexp
	dangerKeys    map[string]bool
}

// NewValidator compiles patterns and builds a Validator.
func NewValidator(maxTextLength int, patterns, dangerKeys []string) (*Validator, error) {
	v := &Validator{maxTextLength: maxTextLength, dangerKeys: make(map[string]bool, len(dangerKeys))}
	for _, k := range dangerKeys {
		v.dangerKeys[tmux.MapKey(k)] = true
	}
	if err := v.SetPatterns(patterns); err != nil {
		return nil, err
	}
	return v, nil
}

// SetPatterns replaces the danger patterns. On a compile error the previous
// patterns stay in effect.
func (v *Validator) SetPatterns(patterns []string) error {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid danger pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	v.mu.Lock()
	v.patterns = compiled
	v.mu.Unlock()
	return nil
}

// ValidateText checks that text is non-blank and within the length limit.
func (v *Validator) ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.InvalidPayload("text must not be empty")
	}
	return v.validateLength(text)
}

func (v *Validator) validateLength(text string) error {
	if n := utf8.RuneCountInString(text); v.maxTextLength > 0 && n > v.maxTextLength {
		return errors.InvalidPayload("text is %d characters, limit is %d", n, v.maxTextLength)
	}
	return nil
}

// ValidateKey maps key to its tmux name and checks it against the
// allowlist and, unless unsafe is set, the danger-key set.
func (v *Validator) ValidateKey(key string, unsafe bool) (string, error) {
	mapped := tmux.MapKey(strings.TrimSpace(key))
	if !allowedKeys[mapped] {
		return "", errors.InvalidPayload("key %q is not allowed", key)
	}
	if !unsafe && v.dangerKeys[mapped] {
		return "", errors.Dangerous("key %q requires unsafe mode", mapped)
	}
	return mapped, nil
}

// CheckDanger matches candidate, the full line as it would appear in the
// pane, against the danger patterns.
func (v *Validator) CheckDanger(candidate string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, re := range v.patterns {
		if re.MatchString(candidate) {
			return errors.Dangerous("command matches blocked pattern %q", re.String())
		}
	}
	return nil
}
