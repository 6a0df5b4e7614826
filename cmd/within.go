package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/censusgeo/internal/tiger"
)

var (
	withinRegionLayer  string
	withinRegionGEOID  string
	withinTargetLayers []string
	withinThreshold    float64
)

// featureResult is one feature kept by a containment query.
type featureResult struct {
	GEOID        string  `json:"geoid" yaml:"geoid"`
	Name         string  `json:"name,omitempty" yaml:"name,omitempty"`
	OverlapRatio float64 `json:"overlap_ratio" yaml:"overlap_ratio"`
}

var withinCmd = &cobra.Command{
	Use:   "within [region name]",
	Short: "Find features of target layers inside a region",
	Long:  "Resolves a region, then keeps the target layers' features whose fractional overlap with it meets the threshold.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}

		req := tiger.AreaRequest{GEOID: withinRegionGEOID}
		if len(args) == 1 {
			req.Name = args[0]
		}
		region, err := env.Areas.Area(ctx, withinRegionLayer, req)
		if err != nil {
			return err
		}

		var threshold *float64
		if cmd.Flags().Changed("threshold") {
			threshold = &withinThreshold
		}
		feats, err := env.Areas.FeaturesWithin(ctx, []*tiger.Area{region}, withinTargetLayers, threshold)
		if err != nil {
			return err
		}

		out := make([]featureResult, len(feats))
		for i, f := range feats {
			r := featureResult{GEOID: f.GEOID(), Name: f.StringProp("NAME")}
			if ratio, ok := f.Properties["overlap_ratio"].(float64); ok {
				r.OverlapRatio = ratio
			}
			out[i] = r
		}
		return printResult(out)
	},
}

func init() {
	withinCmd.Flags().StringVar(&withinRegionLayer, "region-layer", "States", "layer to resolve the region in")
	withinCmd.Flags().StringVar(&withinRegionGEOID, "region-geoid", "", "resolve the region by exact GEOID instead of name")
	withinCmd.Flags().StringSliceVar(&withinTargetLayers, "layer", []string{"Counties"}, "target layer (repeatable)")
	withinCmd.Flags().Float64Var(&withinThreshold, "threshold", 0, "fractional-overlap threshold (default from config)")
	withinCmd.Flags().StringVar(&outputFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(withinCmd)
}
