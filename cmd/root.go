package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/islamic-data/internal/config"
)

var (
	cfg *config.Config

	configPath string
	dataRoot   string
)

var rootCmd = &cobra.Command{
	Use:           "islamic-data",
	Short:         "Religious-text aggregation pipeline",
	Long:          "Fetches scripture, names, narratives, prayer directions, facts and hadith collections from public APIs and pages, merges them into records and stores them as JSON.",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.LoadFile(configPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if dataRoot != "" {
			c.SetDataRoot(dataRoot)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		zap.L().Debug("config loaded",
			zap.String("command", cmd.CommandPath()),
			zap.String("store", cfg.Store.Root),
		)
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&dataRoot, "data-root", "", "record store directory (overrides store.root)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
