package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/islamic-data/internal/model"
	"github.com/sells-group/islamic-data/internal/resilience"
	"github.com/sells-group/islamic-data/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect extraction run history",
	Long:  "Commands for listing and viewing extraction runs recorded in the run ledger.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List extraction runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		l, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close() //nolint:errcheck

		category, _ := cmd.Flags().GetString("category")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := l.ListRuns(ctx, store.RunFilter{
			Category: category,
			Status:   model.RunStatus(status),
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and the outcome of each entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		l, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close() //nolint:errcheck

		run, err := l.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		outcomes, err := l.ListOutcomes(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*model.Run
				Outcomes []model.EntityOutcome `json:"outcomes"`
			}{run, outcomes})
		}
		formatOutcomes(os.Stdout, run, outcomes)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("category", "", "filter by category (surahs, names, prophets, ...)")
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().Bool("json", false, "print the run as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a table of runs to w.
func formatRunsList(w io.Writer, runs []model.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Category", "Status", "Total", "OK", "Failed", "Started", "Duration"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.Category,
			r.Status,
			r.Total,
			r.Succeeded,
			r.Failed,
			r.StartedAt.Local().Format(time.DateTime),
			runDuration(r),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func runDuration(r model.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}

// formatOutcomes writes a run header and one row per entity to w.
func formatOutcomes(w io.Writer, run *model.Run, outcomes []model.EntityOutcome) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s %s (%s)", run.Category, run.ID, run.Status))
	t.AppendHeader(table.Row{"Entity", "Status", "Error Kind", "Reason", "Failure", "Error"})
	for _, o := range outcomes {
		class := ""
		if o.ErrorKind != "" {
			class = resilience.FailureClass(resilience.Kind(o.ErrorKind), o.ErrorReason)
		}
		t.AppendRow(table.Row{o.EntityID, o.Status, o.ErrorKind, o.ErrorReason, class, o.Error})
	}
	if run.Error != "" {
		t.AppendFooter(table.Row{"run error", "", "", "", "", run.Error})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
