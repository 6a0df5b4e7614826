package tiger

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/censusgeo/internal/match"
)

func TestLayer_AreaByGEOID(t *testing.T) {
	c := newTestCollection(t, censusService(), CollectionOptions{})
	ctx := context.Background()

	layer, err := c.Layer("Counties")
	require.NoError(t, err)

	area, err := layer.AreaByGEOID(ctx, "06037")
	require.NoError(t, err)
	assert.Equal(t, "06037", area.GEOID())
	assert.Equal(t, "Counties", area.LayerName())

	name, err := area.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Los Angeles", name)

	attrs, err := area.Attributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "06", attrs["state"])
	assert.Equal(t, "037", attrs["county"])
	assert.NotContains(t, attrs, "NAME")
}

func TestLayer_AreaByGEOID_UnknownID(t *testing.T) {
	c := newTestCollection(t, censusService(), CollectionOptions{})
	layer, err := c.Layer("Counties")
	require.NoError(t, err)

	_, err = layer.AreaByGEOID(context.Background(), "99999")
	require.Error(t, err)

	var nm *match.NoMatchError
	require.True(t, errors.As(err, &nm))
	assert.Equal(t, "99999", nm.Query)
	assert.Contains(t, nm.Examples, "06037")
}

func TestLayer_AreaByName(t *testing.T) {
	c := newTestCollection(t, censusService(), CollectionOptions{})
	ctx := context.Background()

	layer, err := c.Layer("Counties")
	require.NoError(t, err)

	// Candidate names carry the containing state, so the full form resolves
	// exactly and the bare name resolves through token weighting.
	for _, query := range []string{"Los Angeles, California", "Los Angeles"} {
		area, err := layer.AreaByName(ctx, query)
		require.NoError(t, err, "query %q", query)
		assert.Equal(t, "06037", area.GEOID(), "query %q", query)
	}
}

func TestLayer_AreaByName_StateAbbreviation(t *testing.T) {
	c := newTestCollection(t, censusService(), CollectionOptions{})

	area, err := c.Layer("Counties")
	require.NoError(t, err)
	got, err := area.AreaByName(context.Background(), "Yolo, CA")
	require.NoError(t, err)
	assert.Equal(t, "06113", got.GEOID())
}

// A raised cutoff reaches the layer's name matcher through the collection
// options: exact detailed names still resolve, partial forms fall short.
func TestLayer_AreaByName_ConfiguredCutoff(t *testing.T) {
	c := newTestCollection(t, censusService(), CollectionOptions{MatchCutoff: 0.99})
	ctx := context.Background()

	layer, err := c.Layer("Counties")
	require.NoError(t, err)

	area, err := layer.AreaByName(ctx, "Los Angeles, California")
	require.NoError(t, err)
	assert.Equal(t, "06037", area.GEOID())

	_, err = layer.AreaByName(ctx, "Los Angeles")
	var nm *match.NoMatchError
	require.True(t, errors.As(err, &nm))
}

func TestLayer_Features_RenamesAttributes(t *testing.T) {
	c := newTestCollection(t, censusService(), CollectionOptions{})
	layer, err := c.Layer("Counties")
	require.NoError(t, err)

	feats, err := layer.Features(context.Background(), FeatureQuery{})
	require.NoError(t, err)
	require.Len(t, feats, 3)
	for _, f := range feats {
		assert.Contains(t, f.Properties, "state")
		assert.Contains(t, f.Properties, "county")
		assert.NotContains(t, f.Properties, "STATE")
		assert.Nil(t, f.Geometry, "geometry must be stripped unless requested")
	}
}

// The States layer of the reference dataset carries 56 features: 50 states,
// DC, and five territories. The FIPS table mirrors it, so a service built
// from the table is a fixed oracle for an unfiltered fetch.
func TestLayer_Features_StatesReferenceCount(t *testing.T) {
	codes := make([]string, 0, len(stateFIPS))
	for code := range stateFIPS {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	feats := make([]svcFeature, 0, len(codes))
	for i, code := range codes {
		full := stateFIPS[code].Full
		feats = append(feats, svcFeature{
			props:    map[string]any{"GEOID": code, "NAME": full, "BASENAME": full, "STATE": code},
			geometry: gjSquare(float64(i), 0, float64(i)+0.5, 0.5),
		})
	}
	fs := &fakeMapService{layers: []svcLayer{{name: "States", feats: feats}}}
	c := newTestCollection(t, fs, CollectionOptions{})

	layer, err := c.Layer("States")
	require.NoError(t, err)

	got, err := layer.Features(context.Background(), FeatureQuery{})
	require.NoError(t, err)
	require.Len(t, got, 56)

	seen := map[string]bool{}
	for _, f := range got {
		seen[f.GEOID()] = true
	}
	assert.Len(t, seen, 56)
}

func TestLayer_Features_OverlapFilter(t *testing.T) {
	c := newTestCollection(t, censusService(), CollectionOptions{})
	ctx := context.Background()

	state, err := c.State(ctx, AreaRequest{GEOID: "06"})
	require.NoError(t, err)
	within, err := state.Geometry(ctx)
	require.NoError(t, err)

	layer, err := c.Layer("Counties")
	require.NoError(t, err)

	threshold := 0.5
	feats, err := layer.Features(ctx, FeatureQuery{
		Within:           within,
		OverlapThreshold: &threshold,
		Geometry:         true,
	})
	require.NoError(t, err)

	// Los Angeles is fully inside, Yolo exactly half inside (kept, the
	// comparison is inclusive), Harris entirely in Texas.
	require.Len(t, feats, 2)

	byID := map[string]float64{}
	for _, f := range feats {
		require.NotNil(t, f.Geometry)
		ratio, ok := f.Properties["overlap_ratio"].(float64)
		require.True(t, ok)
		byID[f.GEOID()] = ratio
	}
	assert.InDelta(t, 1.0, byID["06037"], 1e-9)
	assert.InDelta(t, 0.5, byID["06113"], 1e-9)
}
