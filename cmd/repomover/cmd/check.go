package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check NAME",
	Short: "Check that a destination account exists",
	Long: `Looks up a user or organization by login and prints its canonical
name. Exits non-zero when the account does not exist.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		identity, err := a.workflow.ValidateDestination(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if identity == nil {
			return fmt.Errorf("account %q not found", args[0])
		}

		if jsonOut {
			return outputJSON(cmd.OutOrStdout(), identity)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", identity.Label(), identity.Kind)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
