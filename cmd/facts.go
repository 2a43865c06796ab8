package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/islamic-data/internal/pipeline"
	"github.com/sells-group/islamic-data/internal/registry"
)

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Accumulate distinct facts and print one at random",
	Long:  "Fetches the random-fact page until the stored fact list reaches facts.target_size or facts.max_idle_rounds consecutive rounds add nothing new, then saves the union.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "facts", false)
		if err != nil {
			return err
		}
		defer env.Close()

		target, _ := cmd.Flags().GetInt("target")
		if target == 0 {
			target = cfg.Facts.TargetSize
		}

		res, err := pipeline.CollectFacts(ctx, env.Fetcher, cfg.Endpoints.IslamFacts, env.Store, registry.AccumulateOptions{
			TargetSize:    target,
			MaxIdleRounds: cfg.Facts.MaxIdleRounds,
			BatchSize:     cfg.Facts.BatchSize,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "%d facts stored (%d rounds, stopped on %s)\n",
			res.Registry.Len(), res.Stats.Rounds, res.Stats.Reason)
		if res.Random != "" {
			fmt.Println(res.Random)
		}
		return nil
	},
}

func init() {
	factsCmd.Flags().Int("target", 0, "target number of distinct facts (default from config)")
	rootCmd.AddCommand(factsCmd)
}
