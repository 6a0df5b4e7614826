package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"gopkg.in/yaml.v3"
)

var outputFormat string

// printResult writes a value to stdout in the selected output format.
func printResult(v any) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "marshal yaml")
		}
		fmt.Print(string(data))
		return nil
	default:
		return eris.Errorf("unknown output format %q", outputFormat)
	}
}

// encodeGeometry renders a geometry as a GeoJSON document usable in both
// output formats.
func encodeGeometry(g geom.T) any {
	data, err := geojson.Marshal(g)
	if err != nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	return v
}
