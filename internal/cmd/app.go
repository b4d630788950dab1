package cmd

import (
	"fmt"

	"github.com/Iron-Ham/panedrive/internal/config"
	"github.com/Iron-Ham/panedrive/internal/errors"
	"github.com/Iron-Ham/panedrive/internal/input"
	"github.com/Iron-Ham/panedrive/internal/launch"
	"github.com/Iron-Ham/panedrive/internal/logging"
	"github.com/Iron-Ham/panedrive/internal/process"
	"github.com/Iron-Ham/panedrive/internal/tmux"
	"github.com/Iron-Ham/panedrive/internal/wezterm"
	"github.com/Iron-Ham/panedrive/internal/worktree"
)

// app holds the components built from one configuration. The caches inside
// the dispatcher, launcher and resolver live as long as the app.
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	dispatcher *input.Dispatcher
	resolver   *worktree.Resolver
	// launcher is nil for backends that cannot create windows.
	launcher *launch.Orchestrator
}

// loadApp reads and validates the configuration and builds an app from it.
func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.NewRotatingLogger(cfg.Logging.Dir, cfg.Logging.Level, logging.Rotation{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, err
	}
	return newApp(cfg, logger)
}

func newApp(cfg *config.Config, logger *logging.Logger) (*app, error) {
	validator, err := input.NewValidator(cfg.Input.MaxTextLength, cfg.Input.DangerPatterns, cfg.Input.DangerKeys)
	if err != nil {
		return nil, fmt.Errorf("invalid input rules: %w", err)
	}
	dispatchOpts := []input.Option{
		input.WithEnterKey(cfg.Input.EnterKey),
		input.WithEnterDelay(cfg.Input.EnterDelay()),
		input.WithLogger(logger),
	}

	manager := worktree.NewManager(cfg.Worktree, nil)
	resolver := worktree.NewResolver(manager, cfg.Worktree, worktree.WithLogger(logger))

	a := &app{cfg: cfg, logger: logger, resolver: resolver}

	switch cfg.Multiplexer.Backend {
	case "wezterm":
		client := wezterm.NewClient(wezterm.NewExecRunner(cfg.Multiplexer.WeztermBinary, cfg.Multiplexer.CommandTimeout()))
		dispatchOpts = append(dispatchOpts, input.WithPaneValidator(wezterm.ValidatePaneID))
		a.dispatcher = input.NewDispatcher(client, validator, dispatchOpts...)
	default:
		runner := tmux.NewExecRunner(cfg.Multiplexer.TmuxBinary, cfg.Multiplexer.TmuxSocket, cfg.Multiplexer.CommandTimeout())
		client := tmux.NewClient(runner)
		a.dispatcher = input.NewDispatcher(client, validator, dispatchOpts...)

		profiles, err := launch.NewProfiles(cfg.Agents)
		if err != nil {
			return nil, err
		}
		a.launcher = launch.New(client, a.dispatcher, cfg.Launch, profiles,
			launch.WithResolver(resolver),
			launch.WithProcessTree(process.NewPSTree(cfg.Multiplexer.CommandTimeout())),
			launch.WithLogger(logger),
		)
	}
	return a, nil
}

// requireLauncher returns the launcher or an error naming the backend.
func (a *app) requireLauncher() (*launch.Orchestrator, error) {
	if a.launcher == nil {
		return nil, errors.InvalidPayload("launching agents requires the tmux backend, configured backend is %q", a.cfg.Multiplexer.Backend)
	}
	return a.launcher, nil
}

func (a *app) close() {
	_ = a.logger.Close()
}
