package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/panedrive/internal/input"
	"github.com/Iron-Ham/panedrive/internal/protocol"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send validated input to a pane",
	Long: `Send text or keys to a multiplexer pane.

Input is checked against the configured length limit, key allowlist and
danger patterns before anything reaches the pane. Results are printed as
{"ok": true} or {"ok": false, "error": {"code": ..., "message": ...}}.`,
}

var sendTextCmd = &cobra.Command{
	Use:   "text <pane> <text>",
	Short: "Type text into a pane",
	Args:  cobra.ExactArgs(2),
	RunE:  runSendText,
}

var sendKeysCmd = &cobra.Command{
	Use:   "keys <pane> <key>...",
	Short: "Press named keys in a pane",
	Long: `Press named keys in a pane, e.g. "Enter", "Escape", "C-r" or "up".

Keys in input.danger_keys (C-c, C-d, ... by default) are rejected; use
"send raw --unsafe" to send them deliberately.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSendKeys,
}

var sendRawCmd = &cobra.Command{
	Use:   "raw <pane> <kind:value>...",
	Short: "Send a sequence of text and key items",
	Long: `Send a mixed sequence of items. Each item is "text:<value>" or "key:<name>":

  panedrive send raw %3 text:ls key:Enter`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSendRaw,
}

var (
	sendEnter bool
	rawUnsafe bool
)

func init() {
	sendTextCmd.Flags().BoolVarP(&sendEnter, "enter", "e", false, "Press enter after the text")
	sendRawCmd.Flags().BoolVar(&rawUnsafe, "unsafe", false, "Allow keys listed in input.danger_keys")

	sendCmd.AddCommand(sendTextCmd, sendKeysCmd, sendRawCmd)
}

func runSendText(cmd *cobra.Command, args []string) error {
	return runAction(cmd, func(ctx context.Context, d *input.Dispatcher) error {
		return d.SendText(ctx, args[0], args[1], sendEnter)
	})
}

func runSendKeys(cmd *cobra.Command, args []string) error {
	return runAction(cmd, func(ctx context.Context, d *input.Dispatcher) error {
		return d.SendKeys(ctx, args[0], args[1:])
	})
}

func runSendRaw(cmd *cobra.Command, args []string) error {
	items, err := parseRawItems(args[1:])
	if err != nil {
		return err
	}
	return runAction(cmd, func(ctx context.Context, d *input.Dispatcher) error {
		return d.SendRaw(ctx, args[0], items, rawUnsafe)
	})
}

func runAction(cmd *cobra.Command, action func(ctx context.Context, d *input.Dispatcher) error) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	result := protocol.ActionFrom(action(cmd.Context(), a.dispatcher))
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.OK {
		return errReported
	}
	return nil
}

// parseRawItems parses "text:<value>" and "key:<name>" arguments.
func parseRawItems(args []string) ([]input.RawItem, error) {
	items := make([]input.RawItem, 0, len(args))
	for _, arg := range args {
		kind, value, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("invalid item %q: expected text:<value> or key:<name>", arg)
		}
		switch input.RawKind(kind) {
		case input.RawText, input.RawKey:
			items = append(items, input.RawItem{Kind: input.RawKind(kind), Value: value})
		default:
			return nil, fmt.Errorf("invalid item kind %q: expected text or key", kind)
		}
	}
	return items, nil
}
