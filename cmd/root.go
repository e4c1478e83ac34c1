package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/traceability-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "traceability-cli",
	Short: "Jira to Azure DevOps work item traceability reporting",
	Long:  "Reconciles Jira issues against Azure DevOps work items: resolves cross-references, compares status, severity, and assignee alignment, suggests matches for unlinked issues by title similarity, and writes an xlsx traceability report.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

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
