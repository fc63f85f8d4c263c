package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/poi-interlink/internal/model"
	"github.com/sells-group/poi-interlink/internal/resilience"
	"github.com/sells-group/poi-interlink/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect persisted interlinking runs",
	Long:  "Lists runs recorded by eval when a store driver is configured.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		ds, _ := cmd.Flags().GetString("dataset")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:  model.RunStatus(status),
			Dataset: ds,
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
			return nil
		}
		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// runDetail is the JSON document printed by runs show.
type runDetail struct {
	*model.Run
	Pairs       []model.CandidatePairRecord `json:"pairs"`
	UnmatchedID []string                    `json:"unmatched_ids"`
	FailedTiles []resilience.FailedTile     `json:"failed_tiles,omitempty"`
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run with its pairs, unmatched ids and failed tiles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openRunStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		detail := runDetail{Run: run}
		if detail.Pairs, err = st.ListPairs(ctx, run.ID); err != nil {
			return eris.Wrap(err, "runs show")
		}
		if detail.UnmatchedID, err = st.ListUnmatched(ctx, run.ID); err != nil {
			return eris.Wrap(err, "runs show")
		}
		if detail.FailedTiles, err = st.ListFailedTiles(ctx, run.ID); err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	},
}

func openRunStore(cmd *cobra.Command) (store.Store, error) {
	st, err := initStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("no run store configured (set store.driver)")
	}
	return st, nil
}

func init() {
	runsCmd.Flags().String("status", "", "filter by run status (queued, acquiring, complete, failed, ...)")
	runsCmd.Flags().String("dataset", "", "filter by dataset path")
	runsCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATASET\tSTATUS\tPOIS\tMATCHED\tUNMATCHED\tFAILED_TILES\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t----\t-------\t---------\t------------\t-------\t--------")

	for _, r := range runs {
		ds := r.Dataset
		if len(ds) > 30 {
			ds = "..." + ds[len(ds)-27:]
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			ds,
			r.Status,
			r.POIs,
			r.Matched,
			r.Unmatched,
			r.FailedTiles,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
