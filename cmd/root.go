package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/credit-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "credit-cli",
	Short: "Credit risk analysis for Brazilian companies",
	Long:  "Looks a CNPJ up in public registries, scores credit risk, writes an AI narrative and keeps a history of analyses with PDF reports.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
