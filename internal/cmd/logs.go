package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/panedrive/internal/config"
	"github.com/Iron-Ham/panedrive/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the panedrive log, including rotated files",
	Long: `Show entries from the panedrive log directory (logging.dir).

Entries from rotated files are merged in time order. Use the filters to follow
a single session, pane or request through interleaved output.`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsDir    string
	logsFilter logging.Filter
	logsSince  time.Duration
	logsFormat string
)

func init() {
	f := logsCmd.Flags()
	f.StringVar(&logsDir, "dir", "", "log directory (default: logging.dir)")
	f.StringVarP(&logsFilter.Level, "level", "l", "", "minimum level (debug, info, warn, error)")
	f.StringVarP(&logsFilter.Session, "session", "s", "", "only entries for this session")
	f.StringVarP(&logsFilter.Pane, "pane", "p", "", "only entries for this pane id")
	f.StringVarP(&logsFilter.RequestID, "request", "r", "", "only entries for this request id")
	f.StringVarP(&logsFilter.Contains, "grep", "g", "", "only entries whose message contains this text")
	f.DurationVar(&logsSince, "since", 0, "only entries newer than this (e.g. 10m)")
	f.StringVarP(&logsFormat, "format", "f", "text", "output format (text, json, csv)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir := logsDir
	if dir == "" {
		// An invalid config file should not stop anyone reading the log.
		dir = config.Get().Logging.Dir
	}
	if dir == "" {
		return fmt.Errorf("logging.dir is not set, logs are written to stderr")
	}

	entries, err := logging.ReadEntries(dir)
	if err != nil {
		return err
	}

	filter := logsFilter
	if logsSince > 0 {
		filter.Since = time.Now().Add(-logsSince)
	}
	return logging.Export(cmd.OutOrStdout(), filter.Apply(entries), logsFormat)
}
