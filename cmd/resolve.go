package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/censusgeo/internal/tiger"
)

var (
	resolveLayer    string
	resolveGEOID    string
	resolveGeometry bool
)

// areaResult is the serialized form of a resolved area.
type areaResult struct {
	Name       string            `json:"name" yaml:"name"`
	GEOID      string            `json:"geoid" yaml:"geoid"`
	Layer      string            `json:"layer" yaml:"layer"`
	Attributes map[string]string `json:"attributes" yaml:"attributes"`
	Geometry   any               `json:"geometry,omitempty" yaml:"geometry,omitempty"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [name]",
	Short: "Resolve an area by name or GEOID",
	Long:  "Resolves a geographic area in a map service layer, by fuzzy name search or exact GEOID.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}

		req := tiger.AreaRequest{GEOID: resolveGEOID}
		if len(args) == 1 {
			req.Name = args[0]
		}

		area, err := env.Areas.Area(ctx, resolveLayer, req)
		if err != nil {
			return err
		}
		return printResult(buildAreaResult(ctx, env, area))
	},
}

func buildAreaResult(ctx context.Context, env *appEnv, area *tiger.Area) *areaResult {
	out := &areaResult{GEOID: area.GEOID(), Layer: area.LayerName()}
	if name, err := area.Name(ctx); err == nil {
		out.Name = name
	}
	if attrs, err := area.Attributes(ctx); err == nil {
		out.Attributes = attrs
	}
	if resolveGeometry {
		if g, err := area.Geometry(ctx); err == nil && g != nil {
			out.Geometry = encodeGeometry(g)
		}
	}
	return out
}

func init() {
	resolveCmd.Flags().StringVar(&resolveLayer, "layer", "States", "layer to search")
	resolveCmd.Flags().StringVar(&resolveGEOID, "geoid", "", "resolve by exact GEOID instead of name")
	resolveCmd.Flags().BoolVar(&resolveGeometry, "geometry", false, "include the resolved boundary geometry")
	resolveCmd.Flags().StringVar(&outputFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(resolveCmd)
}
