package spatial

import (
	"math"
	"testing"

	geom "github.com/twpayne/go-geom"
)

func square(minX, minY, maxX, maxY float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
}

func triangle(coords ...geom.Coord) *geom.Polygon {
	ring := append(append([]geom.Coord{}, coords...), coords[0])
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{ring})
}

func approx(t *testing.T, got, want float64, what string) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func TestOverlapRatio(t *testing.T) {
	e := NewEngine()
	unit := square(0, 0, 1, 1)

	cases := []struct {
		name      string
		reference geom.T
		want      float64
	}{
		{"full containment", square(-1, -1, 2, 2), 1},
		{"half overlap", square(0.5, 0, 1.5, 1), 0.5},
		{"quarter overlap", square(0.5, 0.5, 2, 2), 0.25},
		{"disjoint", square(5, 5, 6, 6), 0},
		{"edge touch only", square(1, 0, 2, 1), 0},
	}
	for _, c := range cases {
		got, err := e.OverlapRatio(unit, c.reference)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		approx(t, got, c.want, c.name)
	}
}

func TestOverlapRatio_ZeroAreaCandidate(t *testing.T) {
	e := NewEngine()
	line := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0, 0}, {1, 1}})

	got, err := e.OverlapRatio(line, square(-1, -1, 2, 2))
	if err != nil {
		t.Fatal(err)
	}
	approx(t, got, 0, "zero-area candidate ratio")
}

func TestIntersection(t *testing.T) {
	e := NewEngine()

	inter, err := e.Intersection(square(0, 0, 2, 2), square(1, 1, 3, 3))
	if err != nil {
		t.Fatal(err)
	}
	if inter == nil {
		t.Fatal("expected a non-empty intersection")
	}
	// The clipped region is exactly the overlapping unit square.
	ratio, err := e.OverlapRatio(inter, square(1, 1, 2, 2))
	if err != nil {
		t.Fatal(err)
	}
	approx(t, ratio, 1, "intersection coverage")

	empty, err := e.Intersection(square(0, 0, 1, 1), square(5, 5, 6, 6))
	if err != nil {
		t.Fatal(err)
	}
	if empty != nil {
		t.Errorf("disjoint intersection = %v, want nil", empty)
	}
}

func TestDifference(t *testing.T) {
	e := NewEngine()
	whole := square(0, 0, 2, 1)
	right := square(1, 0, 2, 1)

	diff, err := e.Difference(whole, right)
	if err != nil {
		t.Fatal(err)
	}
	if diff == nil {
		t.Fatal("expected a non-empty difference")
	}

	kept, err := e.OverlapRatio(square(0, 0, 1, 1), diff)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, kept, 1, "kept half coverage")

	removed, err := e.OverlapRatio(right, diff)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, removed, 0, "removed half coverage")
}

func TestUnion(t *testing.T) {
	e := NewEngine()
	a := square(0, 0, 1, 1)
	b := square(5, 5, 6, 6)

	merged, err := e.Union([]geom.T{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if merged == nil {
		t.Fatal("expected a non-empty union")
	}
	for _, part := range []geom.T{a, b} {
		ratio, err := e.OverlapRatio(part, merged)
		if err != nil {
			t.Fatal(err)
		}
		approx(t, ratio, 1, "union covers input")
	}

	empty, err := e.Union(nil)
	if err != nil {
		t.Fatal(err)
	}
	if empty != nil {
		t.Errorf("empty union = %v, want nil", empty)
	}
}

func TestEnvelope(t *testing.T) {
	e := NewEngine()
	tri := triangle(geom.Coord{0, 0}, geom.Coord{4, 0}, geom.Coord{0, 4})

	env, err := e.Envelope(tri)
	if err != nil {
		t.Fatal(err)
	}
	if env == nil {
		t.Fatal("expected a non-empty envelope")
	}

	// The envelope contains the input and matches its bounding square.
	contained, err := e.OverlapRatio(tri, env)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, contained, 1, "envelope contains input")

	ratio, err := e.OverlapRatio(env, square(0, 0, 4, 4))
	if err != nil {
		t.Fatal(err)
	}
	approx(t, ratio, 1, "envelope extent")
}
