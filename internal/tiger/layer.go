package tiger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	geom "github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/censusgeo/internal/arcgis"
	"github.com/sells-group/censusgeo/internal/match"
	"github.com/sells-group/censusgeo/internal/spatial"
)

// Layer is a handle on one layer of the map service. It fetches features,
// filters them spatially, and resolves individual areas by GEOID or by
// fuzzy-matched name. A layer's GEOID index and name matcher are built
// lazily, once.
type Layer struct {
	ID             int
	Name           string
	MaxRecordCount int
	Fields         []arcgis.Field

	d *deps

	geoidOnce sync.Once
	geoidErr  error
	geoids    map[string]struct{}

	matchOnce sync.Once
	matchErr  error
	matcher   *match.Matcher
	byGEOID   map[string]*arcgis.Feature
}

func newLayer(info arcgis.LayerInfo, d *deps) *Layer {
	return &Layer{
		ID:             info.ID,
		Name:           info.Name,
		MaxRecordCount: info.MaxRecordCount,
		Fields:         info.Fields,
		d:              d,
	}
}

func (l *Layer) String() string {
	return fmt.Sprintf("%s (layer %d)", l.Name, l.ID)
}

// Level returns the geography level this layer corresponds to, or "" when
// the layer has no known level mapping.
func (l *Layer) Level() string { return LayerLevel(l.Name) }

// FeatureQuery selects features from a layer. Within restricts the fetch to
// the region's bounding box; OverlapThreshold, when set, additionally keeps
// only features whose fractional overlap with Within meets it.
type FeatureQuery struct {
	Within           geom.T
	OverlapThreshold *float64
	Where            string
	OutFields        string
	Geometry         bool
}

// Features fetches the layer's features matching the query. Attribute and
// geometry fetches run as separate passes: attributes page at the service
// default, geometry pages at the layer's (usually smaller) size, and the two
// are joined on GEOID. When an overlap threshold is set, kept features carry
// their computed ratio under the overlap_ratio attribute.
func (l *Layer) Features(ctx context.Context, q FeatureQuery) ([]*arcgis.Feature, error) {
	spec := arcgis.FetchSpec{
		LayerID:   l.ID,
		Where:     q.Where,
		OutFields: q.OutFields,
		Count:     -1,
	}
	if q.Within != nil {
		env := arcgis.EnvelopeOf(q.Within)
		spec.Geometry = &env
	}

	attrs, err := l.d.client.Fetch(ctx, spec)
	if err != nil {
		return nil, err
	}
	features := attrs.Features
	for _, f := range features {
		f.Properties = RenameAttributes(f.Properties)
	}

	wantGeometry := q.Geometry || q.OverlapThreshold != nil
	if wantGeometry && len(features) > 0 {
		if err := l.joinGeometries(ctx, spec, features); err != nil {
			return nil, err
		}
	}

	if q.OverlapThreshold != nil {
		features, err = l.filterByOverlap(features, q.Within, *q.OverlapThreshold)
		if err != nil {
			return nil, err
		}
	}

	if !q.Geometry {
		for _, f := range features {
			f.Geometry = nil
		}
	}
	return features, nil
}

// joinGeometries runs the geometry pass for an attribute fetch and joins the
// results onto the features by GEOID. Features whose geometry did not come
// back are left without one.
func (l *Layer) joinGeometries(ctx context.Context, spec arcgis.FetchSpec, features []*arcgis.Feature) error {
	geomSpec := spec
	geomSpec.OutFields = "GEOID"
	geomSpec.WantGeometry = true
	geomSpec.Count = len(features)
	geomSpec.PageSize = l.d.client.LayerPageSize(l.Name)

	shapes, err := l.d.client.Fetch(ctx, geomSpec)
	if err != nil {
		return err
	}

	byGEOID := make(map[string]geom.T, shapes.Len())
	for _, f := range shapes.Features {
		if id := f.GEOID(); id != "" && f.Geometry != nil {
			byGEOID[id] = f.Geometry
		}
	}

	missing := 0
	for _, f := range features {
		if g, ok := byGEOID[f.GEOID()]; ok {
			f.Geometry = g
		} else {
			missing++
		}
	}
	if missing > 0 {
		zap.L().Warn("geometry pass left features without shapes",
			zap.String("layer", l.Name),
			zap.Int("missing", missing),
		)
	}
	return nil
}

func (l *Layer) filterByOverlap(features []*arcgis.Feature, within geom.T, threshold float64) ([]*arcgis.Feature, error) {
	cands := make([]spatial.Candidate, len(features))
	for i, f := range features {
		cands[i] = spatial.Candidate{Attributes: f.Properties, Geometry: f.Geometry}
	}
	kept, err := spatial.Filter(l.d.engine, cands, within, threshold)
	if err != nil {
		return nil, err
	}
	out := make([]*arcgis.Feature, len(kept))
	for i, c := range kept {
		c.Attributes["overlap_ratio"] = c.OverlapRatio
		out[i] = &arcgis.Feature{Properties: c.Attributes, Geometry: c.Geometry}
	}
	return out, nil
}

// AreaByGEOID resolves one area of this layer by its exact identifier. The
// identifier is checked against the layer's GEOID index before any record
// fetch, so a miss is cheap and lists nearby valid identifiers.
func (l *Layer) AreaByGEOID(ctx context.Context, geoid string) (*Area, error) {
	geoids, err := l.allGEOIDs(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := geoids[geoid]; !ok {
		return nil, &match.NoMatchError{Query: geoid, Examples: l.exampleGEOIDs(5)}
	}
	return newArea(LayerRecord{LayerID: l.ID, LayerName: l.Name, GEOID: geoid}, l.d, true), nil
}

// AreaByName resolves one area of this layer by fuzzy name search. Candidate
// names are detailed with their state's full name so bare city or county
// names disambiguate across states.
func (l *Layer) AreaByName(ctx context.Context, name string) (*Area, error) {
	m, err := l.nameMatcher(ctx)
	if err != nil {
		return nil, err
	}
	score, err := m.Match(name)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("matched area name",
		zap.String("layer", l.Name),
		zap.String("query", name),
		zap.String("matched", score.Name),
		zap.Float64("score", score.Score),
	)
	feat := l.byGEOID[score.ID]
	return newArea(FromFeature{LayerID: l.ID, LayerName: l.Name, Feature: feat}, l.d, true), nil
}

func (l *Layer) allGEOIDs(ctx context.Context) (map[string]struct{}, error) {
	l.geoidOnce.Do(func() {
		fs, err := l.d.client.Fetch(ctx, arcgis.FetchSpec{
			LayerID:   l.ID,
			OutFields: "GEOID",
			Count:     -1,
		})
		if err != nil {
			l.geoidErr = err
			return
		}
		l.geoids = make(map[string]struct{}, fs.Len())
		for _, id := range fs.GEOIDs() {
			l.geoids[id] = struct{}{}
		}
	})
	return l.geoids, l.geoidErr
}

func (l *Layer) exampleGEOIDs(n int) []string {
	ids := make([]string, 0, len(l.geoids))
	for id := range l.geoids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// nameMatcher lazily builds the layer's fuzzy matcher over detailed
// candidate names.
func (l *Layer) nameMatcher(ctx context.Context) (*match.Matcher, error) {
	l.matchOnce.Do(func() {
		fs, err := l.d.client.Fetch(ctx, arcgis.FetchSpec{
			LayerID:   l.ID,
			OutFields: "NAME,BASENAME,GEOID,STATE",
			Count:     -1,
		})
		if err != nil {
			l.matchErr = err
			return
		}

		cands := make([]match.Candidate, 0, fs.Len())
		l.byGEOID = make(map[string]*arcgis.Feature, fs.Len())
		for _, f := range fs.Features {
			id := f.GEOID()
			if id == "" {
				continue
			}
			l.byGEOID[id] = f
			cands = append(cands, match.Candidate{
				ID:   id,
				Name: l.detailedName(f),
			})
		}
		mo := l.d.matchOpts
		mo.Expansions = AbbrToFull()
		l.matcher = match.New(cands, mo)
	})
	return l.matcher, l.matchErr
}

// detailedName appends the containing state's full name so that queries like
// "Los Angeles County, California" resolve unambiguously. State-level layers
// and layers without a STATE attribute keep the bare name.
func (l *Layer) detailedName(f *arcgis.Feature) string {
	name := f.StringProp("NAME")
	if l.Name == "States" {
		return name
	}
	if full := FIPSToFull(f.StringProp("STATE")); full != "" {
		return name + ", " + full
	}
	return name
}
