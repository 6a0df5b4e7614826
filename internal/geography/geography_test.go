package geography

import (
	"errors"
	"reflect"
	"testing"
)

func tractGeo() *Geography {
	return &Geography{
		Name:     "tract",
		Level:    "140",
		Requires: []string{"state", "county"},
		Wildcard: []string{"county"},
	}
}

func blockGroupGeo() *Geography {
	return &Geography{
		Name:     "block group",
		Level:    "150",
		Requires: []string{"state", "county", "tract"},
		Wildcard: []string{"county", "tract"},
	}
}

func TestPadFilters(t *testing.T) {
	got, err := PadFilters(map[string]string{
		"state":  "6",
		"county": "37",
		"tract":  "12345",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"state":  "06",
		"county": "037",
		"tract":  "012345",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PadFilters = %v, want %v", got, want)
	}
}

func TestPadFilters_SpecialCases(t *testing.T) {
	cases := []struct {
		level, in, want string
	}{
		{"state", "*", "*"},                // wildcards pass through
		{"block group", "01", "1"},         // stripped, never padded
		{"county subdivision", "x1", "x1"}, // unknown levels pass through
		{"zip code tabulation area", "501", "00501"},
		{"congressional district", "5", "05"},
	}
	for _, c := range cases {
		got, err := PadFilters(map[string]string{c.level: c.in})
		if err != nil {
			t.Fatalf("%s %q: %v", c.level, c.in, err)
		}
		if got[c.level] != c.want {
			t.Errorf("pad %s %q = %q, want %q", c.level, c.in, got[c.level], c.want)
		}
	}
}

func TestPadFilters_NonNumeric(t *testing.T) {
	if _, err := PadFilters(map[string]string{"state": "CA"}); err == nil {
		t.Fatal("expected an error for a non-numeric padded value")
	}
}

func TestBuildParams_InnerWildcardTarget(t *testing.T) {
	params, err := tractGeo().BuildParams(map[string]string{
		"state":  "6",
		"county": "37",
	})
	if err != nil {
		t.Fatal(err)
	}
	if params.For != "tract:*" {
		t.Errorf("For = %q, want tract:*", params.For)
	}
	// In reads outermost level first.
	want := []string{"state:06", "county:037"}
	if !reflect.DeepEqual(params.In, want) {
		t.Errorf("In = %v, want %v", params.In, want)
	}
}

func TestBuildParams_PinnedTarget(t *testing.T) {
	params, err := tractGeo().BuildParams(map[string]string{
		"state":  "06",
		"county": "037",
		"tract":  "400",
	})
	if err != nil {
		t.Fatal(err)
	}
	if params.For != "tract:000400" {
		t.Errorf("For = %q, want tract:000400", params.For)
	}
}

func TestBuildParams_MissingRequiredLevel(t *testing.T) {
	_, err := tractGeo().BuildParams(map[string]string{"county": "037"})
	if err == nil {
		t.Fatal("expected an error: state is required and not wildcard-eligible")
	}
	var ihe *InvalidHierarchyError
	if !errors.As(err, &ihe) {
		t.Fatalf("error = %v, want *InvalidHierarchyError", err)
	}
	if ihe.Level != "state" {
		t.Errorf("offending level = %q, want state", ihe.Level)
	}
}

func TestBuildParams_ExplicitWildcardOnRequiredLevel(t *testing.T) {
	_, err := tractGeo().BuildParams(map[string]string{
		"state":  "*",
		"county": "037",
	})
	var ihe *InvalidHierarchyError
	if !errors.As(err, &ihe) {
		t.Fatalf("error = %v, want *InvalidHierarchyError", err)
	}
	if ihe.Level != "state" {
		t.Errorf("offending level = %q, want state", ihe.Level)
	}
}

func TestBuildParams_WildcardAbovePinnedLevel(t *testing.T) {
	// tract is pinned but county, above it, is left as a wildcard; the
	// hierarchy cannot skip a level.
	_, err := blockGroupGeo().BuildParams(map[string]string{
		"state": "06",
		"tract": "400",
	})
	var ihe *InvalidHierarchyError
	if !errors.As(err, &ihe) {
		t.Fatalf("error = %v, want *InvalidHierarchyError", err)
	}
	if ihe.Level != "county" {
		t.Errorf("offending level = %q, want county", ihe.Level)
	}
}

func TestBuildParams_AllWildcardsBelowUnpinned(t *testing.T) {
	params, err := blockGroupGeo().BuildParams(map[string]string{"state": "06"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"state:06", "county:*", "tract:*"}
	if !reflect.DeepEqual(params.In, want) {
		t.Errorf("In = %v, want %v", params.In, want)
	}
}

func TestBroadestParams(t *testing.T) {
	// Only the non-wildcard requirement (state) is pinned, so every county
	// of the same state collapses to one parameter set.
	params, ok := tractGeo().BroadestParams(map[string]string{
		"state":  "06",
		"county": "037",
		"tract":  "001234",
	})
	if !ok {
		t.Fatal("expected broadest params to build")
	}
	if params.For != "tract:*" {
		t.Errorf("For = %q", params.For)
	}
	want := []string{"state:06", "county:*"}
	if !reflect.DeepEqual(params.In, want) {
		t.Errorf("In = %v, want %v", params.In, want)
	}

	if _, ok := tractGeo().BroadestParams(map[string]string{"county": "037"}); ok {
		t.Error("expected failure without the required state attribute")
	}
}

func TestQueryParams_Values(t *testing.T) {
	p := &QueryParams{For: "tract:*", In: []string{"state:06", "county:037"}}
	v := p.Values()
	if got := v.Get("for"); got != "tract:*" {
		t.Errorf("for = %q", got)
	}
	if got := v.Get("in"); got != "state:06 county:037" {
		t.Errorf("in = %q", got)
	}

	bare := &QueryParams{For: "state:*"}
	if _, ok := bare.Values()["in"]; ok {
		t.Error("empty In must not emit an in parameter")
	}
}

func TestGeography_Path(t *testing.T) {
	g := tractGeo()
	if !reflect.DeepEqual(g.Path(), []string{"state", "county", "tract"}) {
		t.Errorf("Path = %v", g.Path())
	}
	if g.ReadablePath() != "state -> county -> tract" {
		t.Errorf("ReadablePath = %q", g.ReadablePath())
	}
}
