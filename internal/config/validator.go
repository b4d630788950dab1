package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "launch.verify_attempts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidBackends returns the supported multiplexer backends
func ValidBackends() []string {
	return []string{"tmux", "wezterm"}
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// SupportedAgents returns the agent names the launcher knows how to start and resume
func SupportedAgents() []string {
	return []string{"codex", "claude"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateMultiplexer()...)
	errors = append(errors, c.validateInput()...)
	errors = append(errors, c.validateLaunch()...)
	errors = append(errors, c.validateAgents()...)
	errors = append(errors, c.validateWorktree()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateMultiplexer() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidBackends(), c.Multiplexer.Backend) {
		errors = append(errors, ValidationError{
			Field:   "multiplexer.backend",
			Value:   c.Multiplexer.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}
	if c.Multiplexer.CommandTimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "multiplexer.command_timeout_ms",
			Value:   c.Multiplexer.CommandTimeoutMs,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateInput() []ValidationError {
	var errors []ValidationError

	if c.Input.MaxTextLength <= 0 {
		errors = append(errors, ValidationError{
			Field:   "input.max_text_length",
			Value:   c.Input.MaxTextLength,
			Message: "must be positive",
		})
	}
	for i, pattern := range c.Input.DangerPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("input.danger_patterns[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}
	if strings.TrimSpace(c.Input.EnterKey) == "" {
		errors = append(errors, ValidationError{
			Field:   "input.enter_key",
			Value:   c.Input.EnterKey,
			Message: "must not be empty",
		})
	}
	if c.Input.EnterDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "input.enter_delay_ms",
			Value:   c.Input.EnterDelayMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateLaunch() []ValidationError {
	var errors []ValidationError

	positive := []struct {
		field string
		value int
	}{
		{"launch.verify_attempts", c.Launch.VerifyAttempts},
		{"launch.idempotency_ttl_seconds", c.Launch.IdempotencyTTLSeconds},
		{"launch.idempotency_max_entries", c.Launch.IdempotencyMaxEntries},
		{"launch.max_window_suffix", c.Launch.MaxWindowSuffix},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, ValidationError{Field: p.field, Value: p.value, Message: "must be positive"})
		}
	}

	nonNegative := []struct {
		field string
		value int
	}{
		{"launch.verify_interval_ms", c.Launch.VerifyIntervalMs},
		{"launch.interrupt_grace_ms", c.Launch.InterruptGraceMs},
	}
	for _, n := range nonNegative {
		if n.value < 0 {
			errors = append(errors, ValidationError{Field: n.field, Value: n.value, Message: "must be non-negative"})
		}
	}

	if c.Launch.MaxWindowSuffix > 0 && c.Launch.MaxWindowSuffix < 2 {
		errors = append(errors, ValidationError{
			Field:   "launch.max_window_suffix",
			Value:   c.Launch.MaxWindowSuffix,
			Message: "must be at least 2",
		})
	}

	return errors
}

func (c *Config) validateAgents() []ValidationError {
	var errors []ValidationError

	for name, agent := range c.Agents {
		if !slices.Contains(SupportedAgents(), name) {
			errors = append(errors, ValidationError{
				Field:   "agents." + name,
				Value:   name,
				Message: fmt.Sprintf("unsupported agent, must be one of: %s", strings.Join(SupportedAgents(), ", ")),
			})
			continue
		}
		if strings.TrimSpace(agent.Binary) == "" {
			errors = append(errors, ValidationError{
				Field:   "agents." + name + ".binary",
				Value:   agent.Binary,
				Message: "must not be empty",
			})
		}
		for i, pattern := range agent.ProcessPatterns {
			if _, err := glob.Compile(pattern); err != nil {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("agents.%s.process_patterns[%d]", name, i),
					Value:   pattern,
					Message: fmt.Sprintf("invalid glob: %v", err),
				})
			}
		}
	}

	return errors
}

func (c *Config) validateWorktree() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Worktree.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "worktree.command",
			Value:   c.Worktree.Command,
			Message: "must not be empty",
		})
	}
	positive := []struct {
		field string
		value int
	}{
		{"worktree.snapshot_ttl_ms", c.Worktree.SnapshotTTLMs},
		{"worktree.augmented_interval_seconds", c.Worktree.AugmentedIntervalSeconds},
		{"worktree.timeout_ms", c.Worktree.TimeoutMs},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, ValidationError{Field: p.field, Value: p.value, Message: "must be positive"})
		}
	}
	if c.Worktree.ForceRefreshIntervalMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "worktree.force_refresh_interval_ms",
			Value:   c.Worktree.ForceRefreshIntervalMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
