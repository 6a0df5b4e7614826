package tiger

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/censusgeo/internal/arcgis"
	"github.com/sells-group/censusgeo/internal/match"
	"github.com/sells-group/censusgeo/internal/spatial"
)

// layerNameCutoff is the minimum similarity for a fuzzy layer-name lookup.
// Stricter than area-name matching: layer names are a short, known list.
const layerNameCutoff = 0.9

// CollectionOptions configures an AreaCollection.
type CollectionOptions struct {
	// AreaThreshold is the default fractional-overlap threshold for
	// containment queries.
	AreaThreshold float64

	// BoundaryURL points at the national cartographic boundary shapefile
	// zip. Empty disables the nation handle and geometry clipping.
	BoundaryURL string

	// UserAgent is sent on boundary downloads.
	UserAgent string

	// MatchCutoff overrides the minimum similarity for name resolution.
	// Zero keeps the matcher's default.
	MatchCutoff float64

	// MatchShortlist overrides the refinement shortlist size. Zero keeps
	// the matcher's default.
	MatchShortlist int
}

// AreaCollection is the top-level handle on a map service: its layer
// registry, area resolution entry points, and containment queries. Layers
// are discovered once at construction; everything per-layer stays lazy.
type AreaCollection struct {
	client    *arcgis.Client
	engine    *spatial.Engine
	d         *deps
	threshold float64

	layers map[string]*Layer
	names  []string
}

// NewAreaCollection discovers the service's layers and builds the
// collection. Label-only layers are skipped: they carry annotation text, not
// boundaries.
func NewAreaCollection(ctx context.Context, client *arcgis.Client, engine *spatial.Engine, opts CollectionOptions) (*AreaCollection, error) {
	infos, err := client.ServiceLayers(ctx)
	if err != nil {
		return nil, err
	}

	d := &deps{
		client:   client,
		engine:   engine,
		download: downloadTemp(&http.Client{Timeout: 5 * time.Minute}, opts.UserAgent),
		matchOpts: match.Options{
			ScoreCutoff: opts.MatchCutoff,
			Shortlist:   opts.MatchShortlist,
		},
	}
	d.nation = NewNationHandle(d, opts.BoundaryURL)

	c := &AreaCollection{
		client:    client,
		engine:    engine,
		d:         d,
		threshold: opts.AreaThreshold,
		layers:    make(map[string]*Layer, len(infos)),
	}
	for _, info := range infos {
		if strings.Contains(info.Name, "Labels") {
			continue
		}
		c.layers[info.Name] = newLayer(info, d)
		c.names = append(c.names, info.Name)
	}
	sort.Strings(c.names)

	zap.L().Info("discovered map service layers",
		zap.String("service", client.BaseURL()),
		zap.Int("layers", len(c.names)),
	)
	return c, nil
}

// LayerNames returns the available layer names, sorted.
func (c *AreaCollection) LayerNames() []string { return c.names }

// Layer looks a layer up by name, fuzzily: an exact name wins, otherwise the
// best candidate at or above the lookup cutoff.
func (c *AreaCollection) Layer(name string) (*Layer, error) {
	if l, ok := c.layers[name]; ok {
		return l, nil
	}

	cands := make([]match.Candidate, 0, len(c.names))
	for _, n := range c.names {
		cands = append(cands, match.Candidate{ID: n, Name: n})
	}
	m := match.New(cands, match.Options{ScoreCutoff: layerNameCutoff})
	scores := m.Rank(name, 1)
	if len(scores) == 0 {
		return nil, eris.Errorf("tiger: layer %q is not available; available layers: %s",
			name, strings.Join(c.names, ", "))
	}
	return c.layers[scores[0].ID], nil
}

// Nation returns the national cartographic boundary area.
func (c *AreaCollection) Nation(ctx context.Context) (*Area, error) {
	if c.d.nation == nil {
		return nil, eris.New("tiger: no national boundary source configured")
	}
	return c.d.nation.Area(ctx)
}

// AreaRequest identifies one area: exactly one of Name or GEOID must be set.
type AreaRequest struct {
	Name  string
	GEOID string
}

func (r AreaRequest) validate() error {
	if (r.Name == "") == (r.GEOID == "") {
		return eris.New("tiger: provide either a name or a GEOID, but not both")
	}
	return nil
}

// Area resolves one area from the named layer, by fuzzy name search or exact
// GEOID.
func (c *AreaCollection) Area(ctx context.Context, layerName string, req AreaRequest) (*Area, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	layer, err := c.Layer(layerName)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		return layer.AreaByName(ctx, req.Name)
	}
	return layer.AreaByGEOID(ctx, req.GEOID)
}

// AreaMultilayer resolves an area that may live in any of several layers
// (places, for example, span incorporated places, designated places, and
// county subdivisions). With specificLayer set, only that layer is searched,
// and it must be one of layerNames. Otherwise the first successful layer
// wins; when none succeeds, the per-layer failures are aggregated.
func (c *AreaCollection) AreaMultilayer(ctx context.Context, layerNames []string, specificLayer string, req AreaRequest) (*Area, error) {
	if specificLayer != "" {
		for _, n := range layerNames {
			if n == specificLayer {
				return c.Area(ctx, specificLayer, req)
			}
		}
		return nil, eris.Errorf("tiger: layer must be one of %s, not %q",
			strings.Join(layerNames, ", "), specificLayer)
	}

	var failures []string
	for _, layerName := range layerNames {
		if _, ok := c.layers[layerName]; !ok {
			continue
		}
		area, err := c.Area(ctx, layerName, req)
		if err == nil {
			return area, nil
		}
		failures = append(failures, layerName+": "+err.Error())
	}
	return nil, eris.Errorf("tiger: no layer matched %q; searched %s:\n%s",
		req.Name+req.GEOID, strings.Join(layerNames, ", "), strings.Join(failures, "\n"))
}

// Region resolves a Census region by name or GEOID.
func (c *AreaCollection) Region(ctx context.Context, req AreaRequest) (*Area, error) {
	return c.Area(ctx, "Census Regions", req)
}

// Division resolves a Census division by name or GEOID.
func (c *AreaCollection) Division(ctx context.Context, req AreaRequest) (*Area, error) {
	return c.Area(ctx, "Census Divisions", req)
}

// State resolves a state by name or GEOID.
func (c *AreaCollection) State(ctx context.Context, req AreaRequest) (*Area, error) {
	return c.Area(ctx, "States", req)
}

// County resolves a county by name or GEOID.
func (c *AreaCollection) County(ctx context.Context, req AreaRequest) (*Area, error) {
	return c.Area(ctx, "Counties", req)
}

// Tract resolves a Census tract by GEOID. Tracts have no searchable names.
func (c *AreaCollection) Tract(ctx context.Context, geoid string) (*Area, error) {
	return c.Area(ctx, "Census Tracts", AreaRequest{GEOID: geoid})
}

// BlockGroup resolves a Census block group by GEOID.
func (c *AreaCollection) BlockGroup(ctx context.Context, geoid string) (*Area, error) {
	return c.Area(ctx, "Census Block Groups", AreaRequest{GEOID: geoid})
}

// Place resolves a populated place. Searches incorporated places, Census
// designated places, and county subdivisions unless placeType pins one.
func (c *AreaCollection) Place(ctx context.Context, placeType string, req AreaRequest) (*Area, error) {
	layers := []string{"Incorporated Places", "Census Designated Places", "County Subdivisions"}
	return c.AreaMultilayer(ctx, layers, placeType, req)
}

// MSA resolves a metropolitan or micropolitan statistical area; mType pins
// the variant.
func (c *AreaCollection) MSA(ctx context.Context, mType string, req AreaRequest) (*Area, error) {
	layers := []string{"Metropolitan Statistical Areas", "Micropolitan Statistical Areas"}
	return c.AreaMultilayer(ctx, layers, mType, req)
}

// CSA resolves a combined statistical area by name or GEOID.
func (c *AreaCollection) CSA(ctx context.Context, req AreaRequest) (*Area, error) {
	return c.Area(ctx, "Combined Statistical Areas", req)
}

// CongressionalDistrict resolves a congressional district by name or GEOID.
func (c *AreaCollection) CongressionalDistrict(ctx context.Context, req AreaRequest) (*Area, error) {
	return c.Area(ctx, "Congressional Districts", req)
}

// ZCTA resolves a ZIP code tabulation area by GEOID.
func (c *AreaCollection) ZCTA(ctx context.Context, geoid string) (*Area, error) {
	return c.Area(ctx, "Census ZIP Code Tabulation Areas", AreaRequest{GEOID: geoid})
}

// FeaturesWithin finds the features of the named layers that lie within the
// union of the given areas: a bounding-box fetch per area and layer, a GEOID
// dedupe across the fetches, then a fractional-overlap filter against the
// union. Kept features carry their geometry clipped to the union. A nil
// threshold uses the collection default.
//
// Containment against the national boundary needs no service round trip: the
// answer is the single national feature.
func (c *AreaCollection) FeaturesWithin(ctx context.Context, within []*Area, layerNames []string, threshold *float64) ([]*arcgis.Feature, error) {
	if len(within) == 0 {
		return nil, eris.New("tiger: containment query needs at least one region")
	}

	if len(within) == 1 && c.d.nation.Is(within[0]) {
		g, err := within[0].Geometry(ctx)
		if err != nil {
			return nil, err
		}
		return []*arcgis.Feature{{
			Properties: map[string]any{"GEOID": NationGEOID},
			Geometry:   g,
		}}, nil
	}

	t := c.threshold
	if threshold != nil {
		t = *threshold
	}

	geoms := make([]geom.T, len(within))
	for i, a := range within {
		g, err := a.Geometry(ctx)
		if err != nil {
			return nil, err
		}
		geoms[i] = g
	}
	union, err := c.engine.Union(geoms)
	if err != nil {
		return nil, err
	}

	var all []*arcgis.Feature
	for i, a := range within {
		for _, layerName := range layerNames {
			layer, err := c.Layer(layerName)
			if err != nil {
				return nil, err
			}
			feats, err := layer.Features(ctx, FeatureQuery{Within: geoms[i], Geometry: true})
			if err != nil {
				return nil, eris.Wrapf(err, "tiger: fetch %s within %s", layerName, a)
			}
			all = append(all, feats...)
		}
	}

	seen := make(map[string]struct{}, len(all))
	cands := make([]spatial.Candidate, 0, len(all))
	for _, f := range all {
		id := f.GEOID()
		if id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		cands = append(cands, spatial.Candidate{Attributes: f.Properties, Geometry: f.Geometry})
	}

	kept, err := spatial.Filter(c.engine, cands, union, t)
	if err != nil {
		return nil, err
	}

	out := make([]*arcgis.Feature, len(kept))
	for i, cand := range kept {
		clipped, err := c.engine.Intersection(cand.Geometry, union)
		if err != nil {
			return nil, err
		}
		cand.Attributes["overlap_ratio"] = cand.OverlapRatio
		out[i] = &arcgis.Feature{Properties: cand.Attributes, Geometry: clipped}
	}
	return out, nil
}

// RemoveWater subtracts exterior water bodies from an area's geometry, using
// the service's hydrography layers as the water source. Only water meeting
// the overlap threshold against the area's exterior reference is removed;
// interior lakes stay.
func (c *AreaCollection) RemoveWater(ctx context.Context, area *Area, threshold float64) (geom.T, error) {
	land, err := area.Geometry(ctx)
	if err != nil {
		return nil, err
	}

	var waters []spatial.Candidate
	found := false
	for _, name := range c.names {
		if !strings.Contains(name, "Hydrography") {
			continue
		}
		found = true
		feats, err := c.layers[name].Features(ctx, FeatureQuery{Within: land, Geometry: true})
		if err != nil {
			return nil, eris.Wrapf(err, "tiger: fetch %s", name)
		}
		for _, f := range feats {
			waters = append(waters, spatial.Candidate{Attributes: f.Properties, Geometry: f.Geometry})
		}
	}
	if !found {
		return nil, eris.New("tiger: map service has no hydrography layers")
	}
	return spatial.RemoveWater(c.engine, land, waters, threshold)
}
