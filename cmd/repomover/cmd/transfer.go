package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/repomover/internal/domain/model"
)

// destinationTimeout bounds the wait for the destination lookup.
const destinationTimeout = 30 * time.Second

var (
	transferTo  string
	transferOrg bool
	transferYes bool
)

var transferCmd = &cobra.Command{
	Use:   "transfer --to ACCOUNT REF...",
	Short: "Transfer repositories to another account",
	Long: `Transfers each REF to ACCOUNT, one at a time. A REF is a repository
name you own, or owner/name for an organization repository; see
'repomover repos'.

Transfers cannot be undone here. Unless --yes is given you are asked to type
the destination login to confirm.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(transferTo) == "" {
			return errors.New("--to is required")
		}

		ctx := cmd.Context()
		a, err := bootstrap(ctx, false)
		if err != nil {
			return err
		}
		defer a.close()

		if _, err := a.requireLogin(); err != nil {
			return err
		}

		dest, err := prepareTransfer(ctx, a, args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		prompt := cmd.ErrOrStderr()
		st := a.workflow.State()
		fmt.Fprintf(prompt, "About to transfer %d repositories to %s:\n", len(st.Selection), dest.Label())
		for _, ref := range st.Selection {
			fmt.Fprintf(prompt, "  %s\n", ref)
		}

		if !transferYes {
			if err := confirmDestination(cmd.InOrStdin(), prompt, dest.Login); err != nil {
				return err
			}
		}

		batchID, outcomes, err := a.workflow.Transfer(ctx)
		if jsonOut {
			if encErr := outputJSON(out, map[string]any{
				"batch_id": batchID,
				"outcomes": toOutcomeViews(outcomes),
			}); encErr != nil {
				return encErr
			}
		} else {
			writeOutcomes(out, outcomes)
		}
		if err != nil {
			return err
		}

		if s := model.Summarize(outcomes); s.Failed > 0 {
			return fmt.Errorf("%d of %d transfers failed (batch %s)", s.Failed, s.Total, batchID)
		}
		return nil
	},
}

// prepareTransfer walks the workflow from selection to the confirm step and
// returns the resolved destination.
func prepareTransfer(ctx context.Context, a *app, refs []string) (model.Identity, error) {
	if err := a.workflow.SetSelection(refs); err != nil {
		return model.Identity{}, err
	}
	if err := a.workflow.MoveTo(ctx, model.StepConfigure); err != nil {
		return model.Identity{}, err
	}
	if err := a.workflow.SetDestination(ctx, transferTo, transferOrg); err != nil {
		return model.Identity{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, destinationTimeout)
	defer cancel()

	st, err := a.workflow.WaitDestination(waitCtx)
	if err != nil {
		return model.Identity{}, fmt.Errorf("waiting for destination lookup: %w", err)
	}
	if st.Destination.Resolved == nil {
		kind := "user"
		if transferOrg {
			kind = "organization"
		}
		return model.Identity{}, fmt.Errorf("destination %s %q not found", kind, transferTo)
	}

	if err := a.workflow.MoveTo(ctx, model.StepConfirm); err != nil {
		return model.Identity{}, err
	}
	return *st.Destination.Resolved, nil
}

// confirmDestination asks the user to retype the destination login. The
// comparison ignores case.
func confirmDestination(in io.Reader, out io.Writer, login string) error {
	fmt.Fprintf(out, "\nType %q to confirm: ", login)

	reader := bufio.NewReader(in)
	answer, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}

	if !strings.EqualFold(strings.TrimSpace(answer), login) {
		return errors.New("transfer aborted")
	}
	return nil
}

func init() {
	transferCmd.Flags().StringVar(&transferTo, "to", "", "destination user or organization login")
	transferCmd.Flags().BoolVar(&transferOrg, "org", false, "the destination is an organization")
	transferCmd.Flags().BoolVarP(&transferYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(transferCmd)
}
