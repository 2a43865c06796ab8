package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/islamic-data/internal/pipeline"
)

// extractCategories lists the categories "extract all" runs, in order.
var extractCategories = []string{
	pipeline.CategorySurahs,
	pipeline.CategoryNames,
	pipeline.CategoryProphets,
	pipeline.CategoryQibla,
	pipeline.CategoryManners,
	pipeline.CategoryHadith,
}

var extractCmd = &cobra.Command{
	Use:       "extract [<category|all>...]",
	Short:     "Fetch, merge and store records for one or more categories",
	Long:      "Runs the two-phase pipeline for each category: plan the entity list, then fetch, extract and merge every entity concurrently, writing each record as soon as it is ready.",
	Args:      extractArgs,
	ValidArgs: append([]string{"all"}, extractCategories...),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		categories := args
		if len(args) == 1 && args[0] == "all" {
			categories = extractCategories
		}

		var replay *pipeline.Replay
		if runID, _ := cmd.Flags().GetString("retry-failed"); runID != "" {
			rp, err := planReplay(ctx, runID)
			if err != nil {
				return err
			}
			if len(rp.IDs) == 0 {
				fmt.Fprintf(os.Stdout, "run %s: nothing to retry (%d permanent failures)\n", runID, rp.Skipped)
				return nil
			}
			replay = rp
			categories = []string{rp.Category}
		}

		workers, _ := cmd.Flags().GetInt("workers")
		first, _ := cmd.Flags().GetInt("first")
		last, _ := cmd.Flags().GetInt("last")
		quiet, _ := cmd.Flags().GetBool("no-progress")

		var summaries []*pipeline.Summary
		for _, category := range categories {
			env, err := initEnv(ctx, validateMode(category), true)
			if err != nil {
				return err
			}

			src, err := newSource(category, env, sourceOptions{First: first, Last: last})
			if err != nil {
				env.Close()
				return err
			}
			if replay != nil {
				src = pipeline.OnlyJobs(src, replay.IDs)
			}

			opts := orchestratorOptions(workers)
			var pw progress.Writer
			if !quiet {
				var tracker *progress.Tracker
				pw, tracker = newProgress(os.Stderr, category)
				opts.Progress = func(_, total int, _ pipeline.Outcome) {
					tracker.UpdateTotal(int64(total))
					tracker.Increment(1)
				}
			}

			runner := &pipeline.Runner{Records: env.Store, Ledger: env.Ledger, Opts: opts}
			sum, err := runner.Run(ctx, src)
			if pw != nil {
				stopProgress(pw)
			}
			env.Close()
			if err != nil {
				return eris.Wrapf(err, "extract %s", category)
			}
			summaries = append(summaries, sum)
		}

		formatSummaries(os.Stdout, summaries)
		return nil
	},
}

func init() {
	extractCmd.Flags().Int("workers", 0, "concurrent jobs (default from config, then half the logical CPUs)")
	extractCmd.Flags().Int("first", 0, "first surah to extract (surahs only)")
	extractCmd.Flags().Int("last", 0, "last surah to extract (surahs only)")
	extractCmd.Flags().Bool("no-progress", false, "disable the progress bar")
	extractCmd.Flags().String("retry-failed", "", "re-run the transient failures of an earlier run `id`")
	rootCmd.AddCommand(extractCmd)
}

// extractArgs requires categories unless --retry-failed names a run, which
// carries its own category.
func extractArgs(cmd *cobra.Command, args []string) error {
	if runID, _ := cmd.Flags().GetString("retry-failed"); runID != "" {
		if len(args) > 0 {
			return eris.New("extract: --retry-failed takes no categories")
		}
		return nil
	}
	return cobra.MinimumNArgs(1)(cmd, args)
}

func planReplay(ctx context.Context, runID string) (*pipeline.Replay, error) {
	l, err := initLedger(ctx)
	if err != nil {
		return nil, err
	}
	defer l.Close() //nolint:errcheck

	rp, err := pipeline.PlanReplay(ctx, l, runID)
	if err != nil {
		return nil, eris.Wrap(err, "extract: retry failed")
	}
	zap.L().Info("extract: retrying failed entities",
		zap.String("run_id", runID),
		zap.String("category", rp.Category),
		zap.Int("entities", len(rp.IDs)),
		zap.Int("permanent", rp.Skipped),
	)
	return rp, nil
}

func newProgress(out io.Writer, category string) (progress.Writer, *progress.Tracker) {
	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetMessageLength(12)
	pw.SetStyle(progress.StyleDefault)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Percentage = true

	tracker := &progress.Tracker{Message: category, Units: progress.UnitsDefault}
	pw.AppendTracker(tracker)
	go pw.Render()
	return pw, tracker
}

// stopProgress stops pw and waits for its last frame.
func stopProgress(pw progress.Writer) {
	pw.Stop()
	for pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}

// formatSummaries writes one row per category run to w.
func formatSummaries(w io.Writer, summaries []*pipeline.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Category", "Run", "Total", "Complete", "Partial", "Failed", "Duration"})
	for _, s := range summaries {
		t.AppendRow(table.Row{
			s.Category,
			s.RunID,
			s.Total,
			s.Succeeded - s.Partial,
			s.Partial,
			s.Failed,
			s.Duration.Round(time.Millisecond),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
