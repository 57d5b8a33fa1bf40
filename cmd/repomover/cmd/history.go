package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [BATCH]",
	Short: "Show past transfer attempts",
	Long: `Without arguments, lists the most recent transfer attempts. With a
batch ID, lists every attempt of that batch in order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		var records []recordView
		if len(args) == 1 {
			recs, err := a.workflow.TransferHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				return fmt.Errorf("no transfers recorded for batch %s", args[0])
			}
			records = toRecordViews(recs)
		} else {
			recs, err := a.workflow.RecentTransfers(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			records = toRecordViews(recs)
		}

		if jsonOut {
			return outputJSON(cmd.OutOrStdout(), records)
		}

		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No transfers recorded")
			return nil
		}

		w := newTable(cmd.OutOrStdout())
		fmt.Fprintln(w, "WHEN\tBATCH\tREPOSITORY\tTO\tRESULT")
		for _, r := range records {
			result := "moved"
			if !r.Success {
				result = "failed: " + r.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.AttemptedAt, shortID(r.BatchID), r.Repository, r.NewOwner, result)
		}
		return w.Flush()
	},
}

// shortID trims a batch UUID to its first block for table output.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of recent attempts to show")
	rootCmd.AddCommand(historyCmd)
}
