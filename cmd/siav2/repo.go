package main

import (
	"context"
	"fmt"

	"github.com/lsst-sqre/vo-siav2/adapters/direct"
	"github.com/spf13/cobra"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage direct repositories",
}

var repoInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Create a SQLite repository with the ObsCore schema",
	Long: `Create (or migrate) a SQLite repository usable by DIRECT
collections. Existing data is kept; only pending schema migrations run.

Examples:
  siav2 repo init ./dp02.sqlite3`,
	Args: cobra.ExactArgs(1),
	RunE: runRepoInit,
}

func init() {
	rootCmd.AddCommand(repoCmd)
	repoCmd.AddCommand(repoInitCmd)
}

func runRepoInit(cmd *cobra.Command, args []string) error {
	if err := direct.InitRepository(context.Background(), args[0]); err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	fmt.Printf("Repository ready: %s\n", args[0])
	return nil
}
