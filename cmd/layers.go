package main

import (
	"github.com/spf13/cobra"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "List the map service's available layers",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(env.Areas.LayerNames())
	},
}

func init() {
	layersCmd.Flags().StringVar(&outputFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(layersCmd)
}
