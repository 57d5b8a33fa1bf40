package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/repomover/internal/domain/model"
)

var (
	reposQuery      string
	reposVisibility string
	reposOwner      string
	orgsQuery       string
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List repositories that can be transferred",
	Long: `Lists repositories owned by you and by every organization you belong
to. The REF column is what 'repomover transfer' expects.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, err := buildFilter(reposQuery, reposVisibility, reposOwner)
		if err != nil {
			return err
		}

		a, err := bootstrap(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.close()

		login, err := a.requireLogin()
		if err != nil {
			return err
		}
		if msg := a.workflow.State().Error; msg != "" {
			return fmt.Errorf("loading repositories: %s", msg)
		}

		repos := a.workflow.Repositories(filter)
		if jsonOut {
			return outputJSON(cmd.OutOrStdout(), toRepoViews(repos, login))
		}

		if len(repos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No repositories found")
			return nil
		}

		w := newTable(cmd.OutOrStdout())
		fmt.Fprintln(w, "REF\tPRIVATE\tOWNER TYPE\tUPDATED")
		for _, r := range repos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.SelectionKey(login), yesNo(r.IsPrivate), r.Owner.Kind, r.UpdatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var orgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "List organizations you belong to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		if _, err := a.requireLogin(); err != nil {
			return err
		}

		a.workflow.FetchOrganizations(cmd.Context())
		orgs := a.workflow.SearchOrganizations(orgsQuery)
		if jsonOut {
			return outputJSON(cmd.OutOrStdout(), orgs)
		}

		if len(orgs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No organizations found")
			return nil
		}
		for _, o := range orgs {
			fmt.Fprintln(cmd.OutOrStdout(), o.Label())
		}
		return nil
	},
}

// buildFilter validates the repository filter flags.
func buildFilter(query, visibility, owner string) (model.RepositoryFilter, error) {
	f := model.RepositoryFilter{
		Query:      query,
		Visibility: model.Visibility(visibility),
		Owner:      model.OwnerFilter(owner),
	}

	switch f.Visibility {
	case model.VisibilityAll, model.VisibilityPublic, model.VisibilityPrivate:
	default:
		return f, fmt.Errorf("invalid --visibility %q: want all, public, or private", visibility)
	}

	switch f.Owner {
	case model.OwnerFilterAll, model.OwnerFilterPersonal, model.OwnerFilterOrganization:
	default:
		return f, fmt.Errorf("invalid --owner %q: want all, personal, or organization", owner)
	}

	return f, nil
}

func init() {
	reposCmd.Flags().StringVarP(&reposQuery, "query", "q", "", "filter by name or description")
	reposCmd.Flags().StringVar(&reposVisibility, "visibility", "all", "filter by visibility (all, public, private)")
	reposCmd.Flags().StringVar(&reposOwner, "owner", "all", "filter by owner type (all, personal, organization)")
	orgsCmd.Flags().StringVarP(&orgsQuery, "query", "q", "", "fuzzy search by login or name")
	rootCmd.AddCommand(reposCmd, orgsCmd)
}
