package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/panedrive/internal/worktree"
)

var worktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Inspect worktrees through the worktree manager",
}

var worktreeSnapshotCmd = &cobra.Command{
	Use:   "snapshot [dir]",
	Short: "Print the worktree snapshot for a repository",
	Long: `Print the worktree snapshot for dir. Without an argument the snapshot is
taken from the root of the git repository containing the working directory.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWorktreeSnapshot,
}

var worktreeResolveCmd = &cobra.Command{
	Use:   "resolve [path]",
	Short: "Print the worktree owning a path, or the worktree for --branch",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWorktreeResolve,
}

var (
	snapshotForce bool
	resolveBranch string
	resolveCreate bool
)

func init() {
	worktreeSnapshotCmd.Flags().BoolVarP(&snapshotForce, "force", "f", false, "Bypass the cache and fetch PR merge status")
	worktreeResolveCmd.Flags().StringVarP(&resolveBranch, "branch", "b", "", "Resolve the worktree for a branch instead of a path")
	worktreeResolveCmd.Flags().BoolVar(&resolveCreate, "create", false, "Create the worktree for --branch if it does not exist")

	worktreeCmd.AddCommand(worktreeSnapshotCmd, worktreeResolveCmd)
}

// dirArg returns the absolute form of the optional directory argument,
// defaulting to the working directory.
func dirArg(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "." {
		return os.Getwd()
	}
	return filepath.Abs(dir)
}

func runWorktreeSnapshot(cmd *cobra.Command, args []string) error {
	dir, err := dirArg(args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		if root, err := worktree.FindGitRoot(dir); err == nil {
			dir = root
		}
	}
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	snap, err := a.resolver.Snapshot(cmd.Context(), dir, worktree.SnapshotOptions{Force: snapshotForce})
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), snap)
}

func runWorktreeResolve(cmd *cobra.Command, args []string) error {
	dir, err := dirArg(args)
	if err != nil {
		return err
	}
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	var entry worktree.Entry
	if resolveBranch != "" {
		entry, err = a.resolver.EnsureBranch(cmd.Context(), dir, resolveBranch, resolveCreate)
	} else {
		entry, err = a.resolver.ResolveByPath(cmd.Context(), dir)
	}
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), entry)
}
