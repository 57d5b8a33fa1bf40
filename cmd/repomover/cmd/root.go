// Package cmd implements the repomover command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var jsonOut bool

var rootCmd = &cobra.Command{
	Use:   "repomover",
	Short: "Move GitHub repositories between accounts in batches",
	Long: `repomover transfers repositories from your GitHub account, or from
organizations you belong to, to another user or organization.

Transfers run one at a time with a pause between them, and each repository
succeeds or fails on its own. A transfer cannot be undone from here.

Configuration comes from REPOMOVER_* environment variables, optionally
loaded from a .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with ctx, printing any error to stderr.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
}
