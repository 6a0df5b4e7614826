package tiger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/censusgeo/internal/arcgis"
	"github.com/sells-group/censusgeo/internal/spatial"
)

// fakeMapService emulates a small map service: layer metadata plus per-layer
// feature queries with GEOID predicates, count probes, and paging. Spatial
// envelope parameters are accepted and ignored; containment filtering is the
// client's job.
type fakeMapService struct {
	layers []svcLayer // index doubles as the layer id
}

type svcLayer struct {
	name  string
	feats []svcFeature
}

type svcFeature struct {
	props    map[string]any
	geometry any
}

var (
	queryPath  = regexp.MustCompile(`^/(\d+)/query$`)
	geoidWhere = regexp.MustCompile(`GEOID='([^']+)'`)
)

func (fs *fakeMapService) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path == "/layers" {
			infos := make([]map[string]any, 0, len(fs.layers))
			for i, l := range fs.layers {
				infos = append(infos, map[string]any{
					"id":             i,
					"name":           l.name,
					"maxRecordCount": 1000,
				})
			}
			json.NewEncoder(w).Encode(map[string]any{"layers": infos})
			return
		}

		m := queryPath.FindStringSubmatch(r.URL.Path)
		if m == nil {
			http.NotFound(w, r)
			return
		}
		id, _ := strconv.Atoi(m[1])
		if id >= len(fs.layers) {
			http.NotFound(w, r)
			return
		}

		q := r.URL.Query()
		matched := fs.layers[id].feats
		if wm := geoidWhere.FindStringSubmatch(q.Get("where")); wm != nil {
			matched = nil
			for _, f := range fs.layers[id].feats {
				if f.props["GEOID"] == wm[1] {
					matched = append(matched, f)
				}
			}
		}

		if q.Get("returnCountOnly") == "true" {
			json.NewEncoder(w).Encode(map[string]int{"count": len(matched)})
			return
		}

		offset, _ := strconv.Atoi(q.Get("resultOffset"))
		size, _ := strconv.Atoi(q.Get("resultRecordCount"))
		if offset > len(matched) {
			offset = len(matched)
		}
		end := len(matched)
		if size > 0 && offset+size < end {
			end = offset + size
		}

		features := make([]map[string]any, 0, end-offset)
		for _, f := range matched[offset:end] {
			out := map[string]any{"type": "Feature", "properties": f.props}
			if f.geometry != nil {
				out["geometry"] = f.geometry
			}
			features = append(features, out)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"type":     "FeatureCollection",
			"features": features,
		})
	}
}

// gjSquare builds a GeoJSON rectangle covering [minX,maxX] x [minY,maxY].
func gjSquare(minX, minY, maxX, maxY float64) map[string]any {
	return map[string]any{
		"type": "Polygon",
		"coordinates": [][][]float64{{
			{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
		}},
	}
}

// censusService builds the standing fixture: two states, three counties (two
// in California, one of them only half inside), a label layer to be skipped,
// and an empty tract layer.
func censusService() *fakeMapService {
	return &fakeMapService{layers: []svcLayer{
		{name: "States", feats: []svcFeature{
			{
				props:    map[string]any{"GEOID": "06", "NAME": "California", "BASENAME": "California", "STATE": "06"},
				geometry: gjSquare(0, 0, 10, 10),
			},
			{
				props:    map[string]any{"GEOID": "48", "NAME": "Texas", "BASENAME": "Texas", "STATE": "48"},
				geometry: gjSquare(20, 0, 30, 10),
			},
		}},
		{name: "Counties", feats: []svcFeature{
			{
				props:    map[string]any{"GEOID": "06037", "NAME": "Los Angeles", "STATE": "06", "COUNTY": "037"},
				geometry: gjSquare(0, 0, 4, 4),
			},
			{
				props:    map[string]any{"GEOID": "06113", "NAME": "Yolo", "STATE": "06", "COUNTY": "113"},
				geometry: gjSquare(8, 0, 12, 4),
			},
			{
				props:    map[string]any{"GEOID": "48201", "NAME": "Harris", "STATE": "48", "COUNTY": "201"},
				geometry: gjSquare(20, 0, 24, 4),
			},
		}},
		{name: "Counties Labels"},
		{name: "Census Tracts"},
	}}
}

func newTestCollection(t *testing.T, fs *fakeMapService, opts CollectionOptions) *AreaCollection {
	t.Helper()
	srv := httptest.NewServer(fs.handler())
	t.Cleanup(srv.Close)

	client := arcgis.NewClient(arcgis.Options{
		BaseURL:       srv.URL,
		RatePerSecond: 1000,
		RetrySleep:    time.Millisecond,
	})
	c, err := NewAreaCollection(context.Background(), client, spatial.NewEngine(), opts)
	require.NoError(t, err)
	return c
}
