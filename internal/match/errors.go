package match

import (
	"fmt"
	"strings"
)

// NoMatchError reports that no candidate scored above the cutoff. Examples
// carries a few candidate names so the caller can surface what the layer
// actually contains.
type NoMatchError struct {
	Query    string
	Examples []string
}

func (e *NoMatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no match for %q; example candidates:", e.Query)
	for _, ex := range e.Examples {
		fmt.Fprintf(&b, "\n  - %s", ex)
	}
	return b.String()
}

// AmbiguousMatchError reports that several candidates scored too closely to
// pick one. The matcher never guesses; the ranked near-matches are attached
// for the caller to surface.
type AmbiguousMatchError struct {
	Query      string
	Candidates []Score
}

func (e *AmbiguousMatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q is ambiguous; did you mean one of:", e.Query)
	for _, c := range e.Candidates {
		fmt.Fprintf(&b, "\n  - %s (id=%s, score=%.3f)", c.Name, c.ID, c.Score)
	}
	return b.String()
}
