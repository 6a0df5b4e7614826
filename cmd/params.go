package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/censusgeo/internal/geography"
	"github.com/sells-group/censusgeo/internal/tiger"
)

var (
	paramsLevel       string
	paramsFilters     []string
	paramsWithin      string
	paramsWithinLayer string
	paramsTargetLayer []string
)

// paramsResult is one built for/in parameter set.
type paramsResult struct {
	Geography string   `json:"geography" yaml:"geography"`
	Path      string   `json:"path" yaml:"path"`
	For       string   `json:"for" yaml:"for"`
	In        []string `json:"in,omitempty" yaml:"in,omitempty"`
}

var paramsCmd = &cobra.Command{
	Use:   "params [target]",
	Short: "Build Census geography query parameters",
	Long: "Builds for/in query parameters for a target geography level, " +
		"either from explicit level filters or from the areas contained in a named region.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		geos, err := loadGeographies(ctx)
		if err != nil {
			return err
		}

		target := ""
		if len(args) == 1 {
			target = args[0]
		}

		if paramsWithin == "" {
			g, params, err := buildDirect(geos, target)
			if err != nil {
				return err
			}
			return printResult([]paramsResult{toParamsResult(g, params)})
		}

		if target == "" {
			return eris.New("a target geography name is required with --within")
		}
		return runParamsWithin(cmd, geos, target)
	},
}

// buildDirect builds parameters from explicit filters, by level code or by
// geography name.
func buildDirect(geos *geography.Collection, target string) (*geography.Geography, *geography.QueryParams, error) {
	filters, err := parseFilterFlags(paramsFilters)
	if err != nil {
		return nil, nil, err
	}
	if paramsLevel != "" {
		return geos.BuildParamsByLevel(paramsLevel, filters)
	}
	if target == "" {
		return nil, nil, eris.New("provide a target geography name or --level")
	}
	return geos.BuildParamsByName(target, filters)
}

// runParamsWithin resolves a containing region and builds the parameter sets
// covering the target geographies inside it. When the region's own
// attributes pin a hierarchy, no feature resolution is needed; otherwise the
// target layer's features within the region decide.
func runParamsWithin(cmd *cobra.Command, geos *geography.Collection, target string) error {
	ctx := cmd.Context()

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}

	region, err := env.Areas.Area(ctx, paramsWithinLayer, tiger.AreaRequest{Name: paramsWithin})
	if err != nil {
		return err
	}
	attrs, err := region.Attributes(ctx)
	if err != nil {
		return err
	}

	isNation := region.GEOID() == tiger.NationGEOID
	areaLevel := tiger.LayerLevel(region.LayerName())
	if g, params, ok := geos.ParamsForArea(target, attrs, areaLevel, isNation); ok {
		return printResult([]paramsResult{toParamsResult(g, params)})
	}

	if len(paramsTargetLayer) == 0 {
		return eris.Errorf(
			"target %q cannot be resolved from the region's own hierarchy; specify --target-layer", target)
	}

	feats, err := env.Areas.FeaturesWithin(ctx, []*tiger.Area{region}, paramsTargetLayer, nil)
	if err != nil {
		return err
	}
	featAttrs := make([]map[string]string, len(feats))
	for i, f := range feats {
		m := make(map[string]string, len(f.Properties))
		for k, v := range f.Properties {
			m[k] = fmt.Sprint(v)
		}
		featAttrs[i] = m
	}

	g, paramsList, err := geos.ParamsFromFeatures(target, featAttrs)
	if err != nil {
		return err
	}
	out := make([]paramsResult, len(paramsList))
	for i, p := range paramsList {
		out[i] = toParamsResult(g, p)
	}
	return printResult(out)
}

func toParamsResult(g *geography.Geography, p *geography.QueryParams) paramsResult {
	return paramsResult{Geography: g.Name, Path: g.ReadablePath(), For: p.For, In: p.In}
}

func parseFilterFlags(pairs []string) (map[string]string, error) {
	filters := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, eris.Errorf("filter %q is not of the form level=value", pair)
		}
		filters[key] = value
	}
	return filters, nil
}

func init() {
	paramsCmd.Flags().StringVar(&paramsLevel, "level", "", "target geography by level code instead of name")
	paramsCmd.Flags().StringSliceVar(&paramsFilters, "filter", nil, "level filter, level=value (repeatable)")
	paramsCmd.Flags().StringVar(&paramsWithin, "within", "", "containing region name")
	paramsCmd.Flags().StringVar(&paramsWithinLayer, "within-layer", "States", "layer to resolve the containing region in")
	paramsCmd.Flags().StringSliceVar(&paramsTargetLayer, "target-layer", nil, "map service layer holding the target geographies (repeatable)")
	paramsCmd.Flags().StringVar(&outputFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(paramsCmd)
}
