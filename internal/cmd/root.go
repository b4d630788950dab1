package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/panedrive/internal/config"
	"github.com/Iron-Ham/panedrive/internal/errors"
)

var rootCmd = &cobra.Command{
	Use:   "panedrive",
	Short: "Drive coding agents running in tmux or WezTerm panes",
	Long: `Panedrive sends validated input to terminal multiplexer panes and launches
or resumes coding agents in new windows, rolling back on failure.

Run "panedrive serve" to keep the pending-input and launch replay caches
alive for a long-running caller.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// errReported marks a failure whose result was already written to stdout.
var errReported = errors.New("command failed")

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/panedrive/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.AddCommand(sendCmd, launchCmd, worktreeCmd, configCmd, logsCmd, serveCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PANEDRIVE")
	// e.g., PANEDRIVE_MULTIPLEXER_TMUX_SOCKET for multiplexer.tmux_socket
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
