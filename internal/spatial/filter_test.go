package spatial

import (
	"errors"
	"testing"

	geom "github.com/twpayne/go-geom"
)

// stubOverlap returns a fixed ratio per candidate geometry and records how
// many times it was consulted.
type stubOverlap struct {
	ratios map[geom.T]float64
	err    error
	calls  int
}

func (s *stubOverlap) OverlapRatio(candidate, reference geom.T) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.ratios[candidate], nil
}

func TestFilter_InclusiveThreshold(t *testing.T) {
	low := square(0, 0, 1, 1)
	exact := square(1, 0, 2, 1)
	high := square(2, 0, 3, 1)

	stub := &stubOverlap{ratios: map[geom.T]float64{low: 0.5, exact: 0.7, high: 0.9}}
	candidates := []Candidate{
		{Attributes: map[string]any{"GEOID": "1"}, Geometry: low},
		{Attributes: map[string]any{"GEOID": "2"}, Geometry: exact},
		{Attributes: map[string]any{"GEOID": "3"}, Geometry: high},
	}

	kept, err := Filter(stub, candidates, square(0, 0, 10, 10), 0.7)
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 2 {
		t.Fatalf("kept %d candidates, want 2", len(kept))
	}
	// A ratio exactly at the threshold survives.
	if kept[0].Attributes["GEOID"] != "2" || kept[1].Attributes["GEOID"] != "3" {
		t.Errorf("kept wrong candidates: %v", kept)
	}
	approx(t, kept[0].OverlapRatio, 0.7, "recorded ratio")
	approx(t, kept[1].OverlapRatio, 0.9, "recorded ratio")
}

func TestFilter_ThresholdExtremes(t *testing.T) {
	a := square(0, 0, 1, 1)
	b := square(1, 0, 2, 1)
	stub := &stubOverlap{ratios: map[geom.T]float64{a: 0.0, b: 1.0}}
	candidates := []Candidate{{Geometry: a}, {Geometry: b}}

	all, err := Filter(stub, candidates, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("threshold 0 kept %d, want every candidate", len(all))
	}

	contained, err := Filter(stub, candidates, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(contained) != 1 || contained[0].Geometry != b {
		t.Errorf("threshold 1 kept %v, want only the fully contained candidate", contained)
	}
}

func TestFilter_SkipsNilGeometry(t *testing.T) {
	withGeom := square(0, 0, 1, 1)
	stub := &stubOverlap{ratios: map[geom.T]float64{withGeom: 1.0}}
	candidates := []Candidate{
		{Attributes: map[string]any{"GEOID": "nil"}},
		{Attributes: map[string]any{"GEOID": "ok"}, Geometry: withGeom},
	}

	kept, err := Filter(stub, candidates, nil, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 1 || kept[0].Attributes["GEOID"] != "ok" {
		t.Errorf("kept %v, want only the candidate with geometry", kept)
	}
	if stub.calls != 1 {
		t.Errorf("overlap computed %d times, want 1 (nil geometry skipped)", stub.calls)
	}
}

func TestFilter_PropagatesError(t *testing.T) {
	stub := &stubOverlap{err: errors.New("geos exploded")}
	_, err := Filter(stub, []Candidate{{Geometry: square(0, 0, 1, 1)}}, nil, 0.5)
	if err == nil {
		t.Fatal("expected the engine error to propagate")
	}
}
