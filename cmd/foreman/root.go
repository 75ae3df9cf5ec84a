package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Recursive task orchestrator over git worktrees",
	Long: `Foreman breaks a task into a hierarchical plan and drives it to
completion: plan, work, verify, merge.

Each plan step gets its own branch (foreman/<number>) checked out into its
own worktree. Workers implement atomic steps, a verifier checks the diff
against the step's acceptance criteria, and accepted work merges up into
the parent step's branch. Progress lives in .foreman/plan.json, so an
interrupted run can be resumed by running the same task again.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
