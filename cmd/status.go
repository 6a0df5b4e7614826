package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/censusgeo/internal/arcgis"
)

// statusResult summarizes client health for one invocation.
type statusResult struct {
	Service string               `json:"service" yaml:"service"`
	Breaker string               `json:"breaker" yaml:"breaker"`
	Layers  int                  `json:"layers" yaml:"layers"`
	Stats   arcgis.StatsSnapshot `json:"stats" yaml:"stats"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the map service and report client health",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(statusResult{
			Service: env.Client.BaseURL(),
			Breaker: env.Client.BreakerState().String(),
			Layers:  len(env.Areas.LayerNames()),
			Stats:   env.Client.StatsSnapshot(),
		})
	},
}

func init() {
	statusCmd.Flags().StringVar(&outputFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(statusCmd)
}
