package match

import (
	"reflect"
	"testing"
)

func TestNormalize_StripsLeadingZeros(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Census Tract 007.01", "Census Tract 7.01"},
		{"Block Group 004", "Block Group 4"},
		{"District 10", "District 10"},
		{"007 005", "7 5"},
		{"no digits here", "no digits here"},
	}
	for _, c := range cases {
		if got := Normalize(c.in, nil); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalize_ExpandsWholeWordsOnly(t *testing.T) {
	exp := map[string]string{"CA": "California", "NY": "New York"}

	got := Normalize("Los Angeles County, CA", exp)
	if got != "Los Angeles County, California" {
		t.Errorf("expansion failed: got %q", got)
	}

	// Substrings of larger words must survive untouched.
	if got := Normalize("SCATTER CREEK", exp); got != "SCATTER CREEK" {
		t.Errorf("partial-word expansion: got %q", got)
	}
	if got := Normalize("NYACK", exp); got != "NYACK" {
		t.Errorf("partial-word expansion: got %q", got)
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Los Angeles  County, California")
	want := []string{"los", "angeles", "county", "california"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestTokenize_DedupesAndFolds(t *testing.T) {
	got := Tokenize("New York, New YORK")
	want := []string{"new", "york"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}

	if got := Tokenize("  ,, "); len(got) != 0 {
		t.Errorf("Tokenize of separators only = %v, want empty", got)
	}
}
