package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ericfisherdev/repomover/internal/domain/model"
)

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// repoView is the CLI's JSON form of a repository.
type repoView struct {
	Ref         string `json:"ref"`
	FullName    string `json:"full_name"`
	Private     bool   `json:"private"`
	OwnerType   string `json:"owner_type"`
	Description string `json:"description,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// outcomeView is the CLI's JSON form of a transfer outcome.
type outcomeView struct {
	Repository string `json:"repository"`
	Success    bool   `json:"success"`
	NewURL     string `json:"new_url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// recordView is the CLI's JSON form of a transfer log entry.
type recordView struct {
	BatchID     string `json:"batch_id"`
	Repository  string `json:"repository"`
	NewOwner    string `json:"new_owner"`
	Success     bool   `json:"success"`
	NewURL      string `json:"new_url,omitempty"`
	Error       string `json:"error,omitempty"`
	AttemptedAt string `json:"attempted_at"`
}

func toRepoViews(repos []model.Repository, viewer string) []repoView {
	out := make([]repoView, 0, len(repos))
	for _, r := range repos {
		v := repoView{
			Ref:         r.SelectionKey(viewer),
			FullName:    r.FullName,
			Private:     r.IsPrivate,
			OwnerType:   string(r.Owner.Kind),
			Description: r.Description,
		}
		if !r.UpdatedAt.IsZero() {
			v.UpdatedAt = r.UpdatedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, v)
	}
	return out
}

func toOutcomeViews(outcomes []model.TransferOutcome) []outcomeView {
	out := make([]outcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, outcomeView{
			Repository: o.Repository,
			Success:    o.Success,
			NewURL:     o.NewURL,
			Error:      o.ErrorMessage,
		})
	}
	return out
}

func toRecordViews(records []model.TransferRecord) []recordView {
	out := make([]recordView, 0, len(records))
	for _, r := range records {
		out = append(out, recordView{
			BatchID:     r.BatchID,
			Repository:  r.Repository,
			NewOwner:    r.NewOwner,
			Success:     r.Success,
			NewURL:      r.NewURL,
			Error:       r.ErrorMessage,
			AttemptedAt: r.AttemptedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// writeOutcomes prints one line per outcome followed by the batch summary.
func writeOutcomes(w io.Writer, outcomes []model.TransferOutcome) {
	tw := newTable(w)
	fmt.Fprintln(tw, "REPOSITORY\tRESULT\tDETAIL")
	for _, o := range outcomes {
		if o.Success {
			fmt.Fprintf(tw, "%s\tmoved\t%s\n", o.Repository, o.NewURL)
		} else {
			fmt.Fprintf(tw, "%s\tfailed\t%s\n", o.Repository, o.ErrorMessage)
		}
	}
	tw.Flush()

	s := model.Summarize(outcomes)
	fmt.Fprintf(w, "\n%d transferred, %d failed, %d total\n", s.Succeeded, s.Failed, s.Total)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
