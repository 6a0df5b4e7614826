// Package tiger resolves ambiguous references to geographic regions against
// a remote map service: layer registry, fuzzy name search, containment
// queries, and memoized area resolution.
package tiger

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"

	"github.com/sells-group/censusgeo/internal/arcgis"
	"github.com/sells-group/censusgeo/internal/match"
)

// Source identifies where an Area's attributes and geometry come from.
// Exactly one variant is bound per Area at construction.
type Source interface {
	sourceName() string
}

// LayerRecord resolves from a single record of a map service layer.
type LayerRecord struct {
	LayerID   int
	LayerName string
	GEOID     string
}

func (LayerRecord) sourceName() string { return "layer record" }

// FromFeature resolves from an already-fetched feature record; geometry, if
// absent from the record, is fetched from the owning layer.
type FromFeature struct {
	LayerID   int
	LayerName string
	Feature   *arcgis.Feature
}

func (FromFeature) sourceName() string { return "prefetched feature" }

// FromFile resolves from a local shapefile (.shp or zipped).
type FromFile struct {
	Path string
}

func (FromFile) sourceName() string { return "file" }

// FromURL resolves from a shapefile zip fetched over HTTP.
type FromURL struct {
	URL string
}

func (FromURL) sourceName() string { return "url" }

// Area is a single resolved geographic entity. It is created unresolved;
// attributes and geometry are each populated exactly once, on first access,
// by the bound source. Resolution is memoized and safe for concurrent first
// access.
type Area struct {
	source Source
	deps   *deps
	clip   bool

	geoid     string
	layerName string

	attrsOnce sync.Once
	attrsErr  error
	name      string
	baseName  string
	attrs     map[string]string

	geomOnce sync.Once
	geomErr  error
	geometry geom.T

	// fileGeom caches geometry read as a side effect of file attribute
	// resolution, so file sources are loaded once.
	fileGeom geom.T
}

// SpatialEngine is the subset of planar operations area resolution and
// containment filtering need. *spatial.Engine satisfies it.
type SpatialEngine interface {
	Intersection(a, b geom.T) (geom.T, error)
	Union(gs []geom.T) (geom.T, error)
	Envelope(g geom.T) (geom.T, error)
	OverlapRatio(candidate, reference geom.T) (float64, error)
}

// deps holds the collaborators every area resolution needs.
type deps struct {
	client    *arcgis.Client
	engine    SpatialEngine
	nation    *NationHandle
	download  func(ctx context.Context, url string) (string, error)
	matchOpts match.Options
}

func newArea(source Source, d *deps, clip bool) *Area {
	a := &Area{source: source, deps: d, clip: clip}
	switch s := source.(type) {
	case LayerRecord:
		a.geoid = s.GEOID
		a.layerName = s.LayerName
	case FromFeature:
		a.geoid = s.Feature.GEOID()
		a.layerName = s.LayerName
	}
	return a
}

// GEOID returns the area's identifier, if known before resolution.
func (a *Area) GEOID() string { return a.geoid }

// LayerName returns the name of the layer the area was resolved from.
func (a *Area) LayerName() string { return a.layerName }

// Name returns the area's display name, resolving attributes if needed.
func (a *Area) Name(ctx context.Context) (string, error) {
	if _, err := a.Attributes(ctx); err != nil {
		return "", err
	}
	return a.name, nil
}

func (a *Area) String() string {
	if a.name != "" {
		return fmt.Sprintf("%s (GEOID=%s)", a.name, a.geoid)
	}
	return fmt.Sprintf("unresolved area (GEOID=%s)", a.geoid)
}

// Attributes resolves and returns the area's attribute map, keyed by
// geography level names (state, county, ...) where the service attribute has
// a known rename.
func (a *Area) Attributes(ctx context.Context) (map[string]string, error) {
	a.attrsOnce.Do(func() {
		a.attrsErr = a.resolveAttributes(ctx)
	})
	if a.attrsErr != nil {
		return nil, a.attrsErr
	}
	return a.attrs, nil
}

// Geometry resolves and returns the area's boundary geometry, clipped to the
// national cartographic boundary when the area was created with clipping.
func (a *Area) Geometry(ctx context.Context) (geom.T, error) {
	a.geomOnce.Do(func() {
		a.geomErr = a.resolveGeometry(ctx)
	})
	if a.geomErr != nil {
		return nil, a.geomErr
	}
	return a.geometry, nil
}

func (a *Area) resolveAttributes(ctx context.Context) error {
	switch s := a.source.(type) {
	case LayerRecord:
		feat, err := a.fetchRecord(ctx, s.LayerID, s.GEOID, "*", false)
		if err != nil {
			return err
		}
		a.setFromFeature(feat)
		return nil
	case FromFeature:
		a.setFromFeature(s.Feature)
		return nil
	case FromFile:
		return a.loadShapefile(ctx, s.Path)
	case FromURL:
		path, err := a.deps.download(ctx, s.URL)
		if err != nil {
			return err
		}
		return a.loadShapefile(ctx, path)
	default:
		return eris.Errorf("tiger: unknown resolution source %q", a.source.sourceName())
	}
}

func (a *Area) resolveGeometry(ctx context.Context) error {
	switch s := a.source.(type) {
	case LayerRecord:
		return a.fetchGeometry(ctx, s.LayerID, s.GEOID)
	case FromFeature:
		if s.Feature.Geometry != nil {
			a.geometry = s.Feature.Geometry
			return a.clipGeometry(ctx)
		}
		return a.fetchGeometry(ctx, s.LayerID, s.Feature.GEOID())
	case FromFile, FromURL:
		// File attribute resolution reads geometry as a side effect.
		if _, err := a.Attributes(ctx); err != nil {
			return err
		}
		a.geometry = a.fileGeom
		return a.clipGeometry(ctx)
	default:
		return eris.Errorf("tiger: unknown resolution source %q", a.source.sourceName())
	}
}

func (a *Area) fetchRecord(ctx context.Context, layerID int, geoid, outFields string, wantGeometry bool) (*arcgis.Feature, error) {
	fs, err := a.deps.client.Fetch(ctx, arcgis.FetchSpec{
		LayerID:      layerID,
		Where:        fmt.Sprintf("GEOID='%s'", geoid),
		OutFields:    outFields,
		WantGeometry: wantGeometry,
		Count:        1,
	})
	if err != nil {
		return nil, err
	}
	if fs.Len() == 0 {
		return nil, eris.Errorf("tiger: no feature with GEOID %s in layer %d", geoid, layerID)
	}
	return fs.Features[0], nil
}

func (a *Area) fetchGeometry(ctx context.Context, layerID int, geoid string) error {
	feat, err := a.fetchRecord(ctx, layerID, geoid, "", true)
	if err != nil {
		return err
	}
	if feat.Geometry == nil {
		return eris.Errorf("tiger: feature %s in layer %d has no geometry", geoid, layerID)
	}
	a.geometry = feat.Geometry
	return a.clipGeometry(ctx)
}

// clipGeometry intersects the resolved geometry with the national
// cartographic boundary. The nation handle is nil for the nation area
// itself and for collections built without one.
func (a *Area) clipGeometry(ctx context.Context) error {
	if !a.clip || a.deps.nation == nil || a.geometry == nil {
		return nil
	}
	nation, err := a.deps.nation.Area(ctx)
	if err != nil {
		return err
	}
	nationGeom, err := nation.Geometry(ctx)
	if err != nil {
		return err
	}
	clipped, err := a.deps.engine.Intersection(nationGeom, a.geometry)
	if err != nil {
		return err
	}
	a.geometry = clipped
	return nil
}

// setFromFeature populates identity and attributes from a service record,
// renaming known attributes to their geography level names.
func (a *Area) setFromFeature(feat *arcgis.Feature) {
	a.name = feat.StringProp("NAME")
	a.baseName = feat.StringProp("BASENAME")
	if a.geoid == "" {
		a.geoid = feat.GEOID()
	}

	attrs := make(map[string]string, len(feat.Properties))
	for key := range feat.Properties {
		if key == "NAME" || key == "BASENAME" {
			continue
		}
		name := key
		if renamed, ok := featureAttributeMap[key]; ok {
			name = renamed
		}
		attrs[name] = feat.StringProp(key)
	}
	a.attrs = attrs
}
