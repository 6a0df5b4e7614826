// Package arcgis implements a paginated, retrying client for ArcGIS-style
// map services: numbered layers queried with SQL-like predicates, envelope
// spatial filters, and resultOffset/resultRecordCount windows.
package arcgis

import (
	"fmt"
	"strconv"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Feature is one record in a remote layer: attributes plus optional geometry.
type Feature struct {
	Properties map[string]any
	Geometry   geom.T
}

// GEOID returns the feature's GEOID attribute, or the empty string.
func (f *Feature) GEOID() string {
	return f.StringProp("GEOID")
}

// StringProp returns the named attribute rendered as a string. Numeric
// attributes (the service is loose about types) are formatted without an
// exponent.
func (f *Feature) StringProp(key string) string {
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// FeatureSet is an ordered, GEOID-deduplicated collection of features.
type FeatureSet struct {
	Features []*Feature

	// Truncated is set when the server flagged exceededTransferLimit on a
	// fully-covered page and a single re-page did not clear it. The set may
	// be incomplete.
	Truncated bool
}

// Len returns the number of features in the set.
func (fs *FeatureSet) Len() int { return len(fs.Features) }

// GEOIDs returns the feature identifiers in set order.
func (fs *FeatureSet) GEOIDs() []string {
	ids := make([]string, 0, len(fs.Features))
	for _, f := range fs.Features {
		ids = append(ids, f.GEOID())
	}
	return ids
}

// Envelope is a bounding box used as an "intersects" spatial predicate.
type Envelope struct {
	MinX, MinY, MaxX, MaxY float64
}

// EnvelopeOf returns the bounding envelope of a geometry.
func EnvelopeOf(g geom.T) Envelope {
	b := g.Bounds()
	return Envelope{MinX: b.Min(0), MinY: b.Min(1), MaxX: b.Max(0), MaxY: b.Max(1)}
}

func (e Envelope) param() string {
	return fmt.Sprintf("%v,%v,%v,%v", e.MinX, e.MinY, e.MaxX, e.MaxY)
}

// FetchSpec describes one paged fetch against a single layer.
type FetchSpec struct {
	// LayerID is the numeric id of the layer within the map service.
	LayerID int

	// Where is a SQL-like predicate. Empty means "1=1" (all records).
	Where string

	// OutFields is a comma list of attribute names, or "*" for all. Empty
	// requests no attributes beyond the identifier.
	OutFields string

	// Geometry, when non-nil, restricts results to features intersecting
	// the envelope.
	Geometry *Envelope

	// WantGeometry requests feature geometry in the response.
	WantGeometry bool

	// PageSize overrides the client's default page window. Zero uses the
	// per-layer default, falling back to the global default of 100.
	PageSize int

	// Count is the total matching record count if already known; a negative
	// value makes the client issue a count-only probe first.
	Count int
}

func (s FetchSpec) where() string {
	if s.Where == "" {
		return "1=1"
	}
	return s.Where
}

func fromGeoJSON(gf *geojson.Feature) *Feature {
	props := gf.Properties
	if props == nil {
		props = map[string]any{}
	}
	return &Feature{Properties: props, Geometry: gf.Geometry}
}
