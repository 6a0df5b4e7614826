package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/censusgeo/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "censusgeo",
	Short: "Geographic entity resolution against Census TIGERweb",
	Long:  "Resolves place names and GEOIDs against TIGERweb map service layers, answers spatial containment queries, and builds Census geography query parameters.",
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
