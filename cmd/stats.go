package main

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/sells-group/islamic-data/internal/extract"
	"github.com/sells-group/islamic-data/internal/pipeline"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print Quran statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "surahs", false)
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := pipeline.FetchStats(ctx, env.Fetcher, cfg.Endpoints.Quran, cfg.RapidAPI.Headers())
		if err != nil {
			return err
		}
		formatStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func formatStats(w io.Writer, stats []extract.Stat) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Quran Statistics")
	t.AppendHeader(table.Row{"Statistic", "Value"})
	for _, s := range stats {
		t.AppendRow(table.Row{s.Name, s.Value})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
