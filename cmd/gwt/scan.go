package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gwt-tools/gwt/internal/global"
)

var scanCmd = &cobra.Command{
	Use:   "scan [dir...]",
	Short: "List repositories that still use the .worktrees/ layout",
	Long: `Walk the given directories (default: current directory) and list every
repository that keeps linked worktrees under .worktrees/ and can be migrated.

Examples:
  gwt scan
  gwt scan ~/src ~/work`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	roots := args
	if len(roots) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		roots = []string{cwd}
	}

	repos, err := global.ScanRepositories(roots)
	if err != nil {
		return fmt.Errorf("failed to scan: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(repos) == 0 {
		fmt.Fprintln(out, secondaryStyle.Render("No repositories to migrate."))
		return nil
	}
	for _, repo := range repos {
		fmt.Fprintln(out, repo.Path)
	}
	return nil
}
