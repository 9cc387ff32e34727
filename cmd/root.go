package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/resolver-cli/internal/config"
)

var (
	cfg *config.Config

	rootConfigPath string
	rootLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "resolver",
	Short: "Assess an automated forecasting-question resolver",
	Long:  "Resolves forecasting questions from gathered evidence, checks the verdicts against known outcomes, and aggregates the checks into a confusion-matrix accuracy report.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(rootConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if rootLogLevel != "" {
			cfg.Log.Level = rootLogLevel
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "config file path (default searches . and $HOME/.resolver)")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
