package config

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete panedrive configuration
type Config struct {
	Multiplexer MultiplexerConfig      `mapstructure:"multiplexer" yaml:"multiplexer"`
	Input       InputConfig            `mapstructure:"input" yaml:"input"`
	Launch      LaunchConfig           `mapstructure:"launch" yaml:"launch"`
	Agents      map[string]AgentConfig `mapstructure:"agents" yaml:"agents"`
	Worktree    WorktreeConfig         `mapstructure:"worktree" yaml:"worktree"`
	Logging     LoggingConfig          `mapstructure:"logging" yaml:"logging"`
}

// MultiplexerConfig selects and tunes the terminal multiplexer backend
type MultiplexerConfig struct {
	// Backend is "tmux" (default) or "wezterm"
	Backend string `mapstructure:"backend" yaml:"backend"`
	// TmuxBinary is the tmux executable name or path
	TmuxBinary string `mapstructure:"tmux_binary" yaml:"tmux_binary"`
	// TmuxSocket is passed as "-L <socket>" when non-empty
	TmuxSocket string `mapstructure:"tmux_socket" yaml:"tmux_socket"`
	// WeztermBinary is the wezterm executable name or path
	WeztermBinary string `mapstructure:"wezterm_binary" yaml:"wezterm_binary"`
	// CommandTimeoutMs bounds every individual multiplexer subprocess call
	CommandTimeoutMs int `mapstructure:"command_timeout_ms" yaml:"command_timeout_ms"`
}

// InputConfig controls validation of text and keys sent to panes
type InputConfig struct {
	// MaxTextLength is the maximum length of a single text send, in characters (runes)
	MaxTextLength int `mapstructure:"max_text_length" yaml:"max_text_length"`
	// DangerPatterns are regular expressions matched against pending+new text
	DangerPatterns []string `mapstructure:"danger_patterns" yaml:"danger_patterns"`
	// DangerKeys are key names rejected unless the caller opts into unsafe raw mode
	DangerKeys []string `mapstructure:"danger_keys" yaml:"danger_keys"`
	// EnterKey is the key sent to submit a line (default: "C-m")
	EnterKey string `mapstructure:"enter_key" yaml:"enter_key"`
	// EnterDelayMs is the pause between the literal write and the enter key
	EnterDelayMs int `mapstructure:"enter_delay_ms" yaml:"enter_delay_ms"`
}

// LaunchConfig controls agent launch, verification and replay
type LaunchConfig struct {
	// VerifyAttempts is how many times the pane's foreground command is polled
	VerifyAttempts int `mapstructure:"verify_attempts" yaml:"verify_attempts"`
	// VerifyIntervalMs is the pause between verification polls
	VerifyIntervalMs int `mapstructure:"verify_interval_ms" yaml:"verify_interval_ms"`
	// IdempotencyTTLSeconds is how long a successful launch is replayed for
	IdempotencyTTLSeconds int `mapstructure:"idempotency_ttl_seconds" yaml:"idempotency_ttl_seconds"`
	// IdempotencyMaxEntries bounds the replay map; oldest entries are evicted first
	IdempotencyMaxEntries int `mapstructure:"idempotency_max_entries" yaml:"idempotency_max_entries"`
	// InterruptGraceMs is how long to wait after SIGTERM before escalating to SIGKILL
	InterruptGraceMs int `mapstructure:"interrupt_grace_ms" yaml:"interrupt_grace_ms"`
	// MaxWindowSuffix is the largest numeric suffix tried when a window name is taken
	MaxWindowSuffix int `mapstructure:"max_window_suffix" yaml:"max_window_suffix"`
}

// AgentConfig describes how to start and recognize one agent
type AgentConfig struct {
	// Binary is the executable typed into the pane
	Binary string `mapstructure:"binary" yaml:"binary"`
	// ProcessPatterns are glob patterns matched against the pane's foreground
	// command and process names to recognize the running agent
	ProcessPatterns []string `mapstructure:"process_patterns" yaml:"process_patterns"`
}

// WorktreeConfig controls the external worktree manager
type WorktreeConfig struct {
	// Command is the worktree manager executable
	Command string `mapstructure:"command" yaml:"command"`
	// SnapshotArgs produce the JSON snapshot on stdout
	SnapshotArgs []string `mapstructure:"snapshot_args" yaml:"snapshot_args"`
	// AugmentArgs are appended to SnapshotArgs for the PR/merge-aware refresh
	AugmentArgs []string `mapstructure:"augment_args" yaml:"augment_args"`
	// SwitchArgs precede the branch name when switching (creating) a worktree
	SwitchArgs []string `mapstructure:"switch_args" yaml:"switch_args"`
	// PathArgs precede the branch name when reading a worktree path back
	PathArgs []string `mapstructure:"path_args" yaml:"path_args"`
	// SnapshotTTLMs is how long a snapshot is reused per directory
	SnapshotTTLMs int `mapstructure:"snapshot_ttl_ms" yaml:"snapshot_ttl_ms"`
	// AugmentedIntervalSeconds throttles the expensive PR/merge refresh
	AugmentedIntervalSeconds int `mapstructure:"augmented_interval_seconds" yaml:"augmented_interval_seconds"`
	// ForceRefreshIntervalMs is the minimum spacing between caller-forced refreshes
	ForceRefreshIntervalMs int `mapstructure:"force_refresh_interval_ms" yaml:"force_refresh_interval_ms"`
	// TimeoutMs bounds each worktree manager subprocess call
	TimeoutMs int `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the log directory; empty logs to stderr
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB rotates the log file once it reaches this size; 0 disables rotation
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is how many rotated files are kept next to the live log
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// DefaultDangerPatterns are the destructive command shapes blocked out of the box.
func DefaultDangerPatterns() []string {
	return []string{
		`(?i)\brm\s+(-[a-z]*\s+)*-[a-z]*(r[a-z]*f|f[a-z]*r)`,
		`(?i)\brm\s+(-[a-z]*\s+)*--recursive\b`,
		`(?i)\bmkfs(\.[a-z0-9]+)?\b`,
		`(?i)\bdd\s+if=`,
		`(?i)>\s*/dev/(sd[a-z]|nvme\d|disk\d)`,
		`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`,
		`(?i)\b(shutdown|reboot|halt|poweroff)\b`,
		`(?i)\bgit\s+push\s+(.*\s)?(--force|-f)\b`,
		`(?i)\bchmod\s+(-[a-z]+\s+)*777\s+/`,
	}
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Multiplexer: MultiplexerConfig{
			Backend:          "tmux",
			TmuxBinary:       "tmux",
			TmuxSocket:       "",
			WeztermBinary:    "wezterm",
			CommandTimeoutMs: 5000,
		},
		Input: InputConfig{
			MaxTextLength:  10000,
			DangerPatterns: DefaultDangerPatterns(),
			DangerKeys:     []string{"C-c", "C-d", "C-z", `C-\`},
			EnterKey:       "C-m",
			EnterDelayMs:   100,
		},
		Launch: LaunchConfig{
			VerifyAttempts:        5,
			VerifyIntervalMs:      200,
			IdempotencyTTLSeconds: 60,
			IdempotencyMaxEntries: 500,
			InterruptGraceMs:      500,
			MaxWindowSuffix:       10000,
		},
		Agents: map[string]AgentConfig{
			"codex": {
				Binary:          "codex",
				ProcessPatterns: []string{"codex", "codex-*"},
			},
			"claude": {
				Binary:          "claude",
				ProcessPatterns: []string{"claude", "claude-*"},
			},
		},
		Worktree: WorktreeConfig{
			Command:                  "vw",
			SnapshotArgs:             []string{"list", "--json"},
			AugmentArgs:              []string{"--pr-status"},
			SwitchArgs:               []string{"switch"},
			PathArgs:                 []string{"path", "--json"},
			SnapshotTTLMs:            3000,
			AugmentedIntervalSeconds: 30,
			ForceRefreshIntervalMs:   1000,
			TimeoutMs:                15000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// CommandTimeout returns the per-call multiplexer timeout
func (c *MultiplexerConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMs) * time.Millisecond
}

// EnterDelay returns the pause before the enter key
func (c *InputConfig) EnterDelay() time.Duration {
	return time.Duration(c.EnterDelayMs) * time.Millisecond
}

// VerifyInterval returns the pause between verification polls
func (c *LaunchConfig) VerifyInterval() time.Duration {
	return time.Duration(c.VerifyIntervalMs) * time.Millisecond
}

// IdempotencyTTL returns the replay window for successful launches
func (c *LaunchConfig) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLSeconds) * time.Second
}

// InterruptGrace returns the wait between SIGTERM and the re-check
func (c *LaunchConfig) InterruptGrace() time.Duration {
	return time.Duration(c.InterruptGraceMs) * time.Millisecond
}

// SnapshotTTL returns the per-directory snapshot cache lifetime
func (c *WorktreeConfig) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLMs) * time.Millisecond
}

// AugmentedInterval returns the minimum spacing between augmented refreshes
func (c *WorktreeConfig) AugmentedInterval() time.Duration {
	return time.Duration(c.AugmentedIntervalSeconds) * time.Second
}

// ForceRefreshInterval returns the minimum spacing between forced refreshes
func (c *WorktreeConfig) ForceRefreshInterval() time.Duration {
	return time.Duration(c.ForceRefreshIntervalMs) * time.Millisecond
}

// Timeout returns the per-call worktree manager timeout
func (c *WorktreeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Multiplexer defaults
	viper.SetDefault("multiplexer.backend", defaults.Multiplexer.Backend)
	viper.SetDefault("multiplexer.tmux_binary", defaults.Multiplexer.TmuxBinary)
	viper.SetDefault("multiplexer.tmux_socket", defaults.Multiplexer.TmuxSocket)
	viper.SetDefault("multiplexer.wezterm_binary", defaults.Multiplexer.WeztermBinary)
	viper.SetDefault("multiplexer.command_timeout_ms", defaults.Multiplexer.CommandTimeoutMs)

	// Input defaults
	viper.SetDefault("input.max_text_length", defaults.Input.MaxTextLength)
	viper.SetDefault("input.danger_patterns", defaults.Input.DangerPatterns)
	viper.SetDefault("input.danger_keys", defaults.Input.DangerKeys)
	viper.SetDefault("input.enter_key", defaults.Input.EnterKey)
	viper.SetDefault("input.enter_delay_ms", defaults.Input.EnterDelayMs)

	// Launch defaults
	viper.SetDefault("launch.verify_attempts", defaults.Launch.VerifyAttempts)
	viper.SetDefault("launch.verify_interval_ms", defaults.Launch.VerifyIntervalMs)
	viper.SetDefault("launch.idempotency_ttl_seconds", defaults.Launch.IdempotencyTTLSeconds)
	viper.SetDefault("launch.idempotency_max_entries", defaults.Launch.IdempotencyMaxEntries)
	viper.SetDefault("launch.interrupt_grace_ms", defaults.Launch.InterruptGraceMs)
	viper.SetDefault("launch.max_window_suffix", defaults.Launch.MaxWindowSuffix)

	// Agent defaults
	for name, agent := range defaults.Agents {
		viper.SetDefault("agents."+name+".binary", agent.Binary)
		viper.SetDefault("agents."+name+".process_patterns", agent.ProcessPatterns)
	}

	// Worktree defaults
	viper.SetDefault("worktree.command", defaults.Worktree.Command)
	viper.SetDefault("worktree.snapshot_args", defaults.Worktree.SnapshotArgs)
	viper.SetDefault("worktree.augment_args", defaults.Worktree.AugmentArgs)
	viper.SetDefault("worktree.switch_args", defaults.Worktree.SwitchArgs)
	viper.SetDefault("worktree.path_args", defaults.Worktree.PathArgs)
	viper.SetDefault("worktree.snapshot_ttl_ms", defaults.Worktree.SnapshotTTLMs)
	viper.SetDefault("worktree.augmented_interval_seconds", defaults.Worktree.AugmentedIntervalSeconds)
	viper.SetDefault("worktree.force_refresh_interval_ms", defaults.Worktree.ForceRefreshIntervalMs)
	viper.SetDefault("worktree.timeout_ms", defaults.Worktree.TimeoutMs)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "panedrive")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".panedrive"
	}
	return filepath.Join(home, ".config", "panedrive")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// YAML renders the configuration as a config file.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# panedrive configuration\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
