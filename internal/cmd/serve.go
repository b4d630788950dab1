package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/panedrive/internal/config"
	"github.com/Iron-Ham/panedrive/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer JSON-lines requests on stdin",
	Long: `Read one JSON request per line from stdin and write one JSON response per
line to stdout:

  {"id":"1","op":"sendText","params":{"pane":"%1","text":"ls","enter":true}}
  {"id":"1","response":{"ok":true}}

Operations: sendText, sendKeys, sendRaw, interrupt, launch,
worktreeSnapshot, worktreeResolve.

The process keeps pending pane input, launch replay entries and worktree
snapshots in memory for its whole lifetime. Danger patterns are reloaded
when the config file changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveConcurrency int

func init() {
	serveCmd.Flags().IntVar(&serveConcurrency, "concurrency", 16, "Maximum number of requests handled at once")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	config.Watch(func(cfg *config.Config, err error) {
		if err != nil {
			a.logger.Warn("ignoring invalid config change", "error", err)
			return
		}
		if err := a.dispatcher.Validator().SetPatterns(cfg.Input.DangerPatterns); err != nil {
			a.logger.Warn("ignoring invalid danger patterns", "error", err)
			return
		}
		a.logger.Info("reloaded danger patterns", "count", len(cfg.Input.DangerPatterns))
	})

	opts := []server.Option{
		server.WithResolver(a.resolver),
		server.WithConcurrency(serveConcurrency),
		server.WithLogger(a.logger),
	}
	if a.launcher != nil {
		opts = append(opts, server.WithLauncher(a.launcher))
	}

	a.logger.Info("serving requests", "backend", a.cfg.Multiplexer.Backend)
	return server.New(a.dispatcher, opts...).Serve(cmd.Context(), os.Stdin, cmd.OutOrStdout())
}
