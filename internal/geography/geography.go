// Package geography models the Census geography hierarchies: which levels
// exist, what each requires, and how a target level plus a set of filters
// turns into for/in query parameters.
package geography

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Wildcard is the filter value meaning "all areas at this level".
const Wildcard = "*"

// InvalidHierarchyError reports a filter set that cannot satisfy a
// hierarchy: a required level is missing, or a wildcard appears above a
// pinned level. It always names the offending level.
type InvalidHierarchyError struct {
	Level  string
	Reason string
}

func (e *InvalidHierarchyError) Error() string {
	return fmt.Sprintf("geography: level %q: %s", e.Level, e.Reason)
}

// UnknownGeographyError reports a lookup for a level or name the dataset
// does not support.
type UnknownGeographyError struct {
	Query string
}

func (e *UnknownGeographyError) Error() string {
	return fmt.Sprintf("geography: %q is not available for this dataset", e.Query)
}

// Geography is one Census geography hierarchy: a named level, the levels it
// requires above it, and which of those admit wildcards.
type Geography struct {
	// Name is the level name, like "state", "county", or "tract".
	Name string

	// Level is the dataset's display code for the hierarchy, like "050".
	// It uniquely identifies a hierarchy; names may repeat.
	Level string

	// Requires lists the containing levels, outermost first.
	Requires []string

	// Wildcard lists the required levels that may be left unpinned.
	Wildcard []string

	// OptionalWildcard lists the lowest-level optional wildcards.
	OptionalWildcard []string
}

// Path is the hierarchy's full level path: the requirements, then the level
// itself.
func (g *Geography) Path() []string {
	return append(append([]string{}, g.Requires...), g.Name)
}

// ReadablePath renders the path as "state -> county -> tract".
func (g *Geography) ReadablePath() string {
	return strings.Join(g.Path(), " -> ")
}

func (g *Geography) String() string {
	return fmt.Sprintf("%s (%s) [%s]", g.Name, g.Level, g.ReadablePath())
}

func (g *Geography) isWildcard(level string) bool {
	for _, w := range g.Wildcard {
		if w == level {
			return true
		}
	}
	return false
}

// QueryParams is a built for/in parameter pair. In is ordered outermost
// level first.
type QueryParams struct {
	For string
	In  []string
}

// Values renders the parameters for a query string. The in clauses join
// into a single space-separated value.
func (p *QueryParams) Values() url.Values {
	v := url.Values{}
	v.Set("for", p.For)
	if len(p.In) > 0 {
		v.Set("in", strings.Join(p.In, " "))
	}
	return v
}

// key is a canonical form used to deduplicate parameter sets.
func (p *QueryParams) key() string {
	return p.For + "|" + strings.Join(p.In, ";")
}

// padWidths gives the zero-padded identifier width per level. Levels absent
// here pass through unpadded.
var padWidths = map[string]int{
	"state":  2,
	"county": 3,
	"tract":  6,
	"block":  4,
	"place":  5,
	"metropolitan statistical area/micropolitan statistical area": 5,
	"combined statistical area":                                   3,
	"congressional district":                                      2,
	"voting district":                                             6,
	"zip code tabulation area":                                    5,
}

// PadFilters zero-pads numeric filter values to their level's identifier
// width, so "6" becomes "06" for a state. Wildcards pass through. Returns a
// new map.
func PadFilters(filters map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(filters))
	for level, value := range filters {
		padded, err := padValue(level, value)
		if err != nil {
			return nil, err
		}
		out[level] = padded
	}
	return out, nil
}

func padValue(level, value string) (string, error) {
	if value == Wildcard {
		return value, nil
	}
	width, ok := padWidths[level]
	if !ok && level != "block group" {
		return value, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return "", eris.Wrapf(err, "geography: %s filter %q is not numeric", level, value)
	}
	return fmt.Sprintf("%0*d", width, n), nil
}

// BuildParams turns a set of level filters into for/in parameters for this
// hierarchy. The walk runs from the innermost required level outward: every
// required level must be pinned or wildcard-eligible, and no level may be a
// wildcard once any level beneath it is pinned.
func (g *Geography) BuildParams(filters map[string]string) (*QueryParams, error) {
	filters, err := PadFilters(filters)
	if err != nil {
		return nil, err
	}

	params := &QueryParams{}
	hasSpecified := false
	if v, ok := filters[g.Name]; ok && v != Wildcard {
		params.For = g.Name + ":" + v
		hasSpecified = true
	} else {
		params.For = g.Name + ":" + Wildcard
	}

	// Innermost required level first; reversed before returning so the in
	// clause reads outermost-first.
	for i := len(g.Requires) - 1; i >= 0; i-- {
		level := g.Requires[i]
		value, ok := filters[level]
		if !ok {
			if !g.isWildcard(level) {
				return nil, &InvalidHierarchyError{Level: level, Reason: "must be supplied as a filter"}
			}
			value = Wildcard
		}

		if value == Wildcard {
			if !g.isWildcard(level) {
				return nil, &InvalidHierarchyError{Level: level, Reason: "must be specified and cannot be a wildcard"}
			}
			if hasSpecified {
				return nil, &InvalidHierarchyError{Level: level, Reason: "cannot be a wildcard once an inner level is pinned"}
			}
		} else {
			hasSpecified = true
		}

		params.In = append(params.In, level+":"+value)
	}

	for i, j := 0, len(params.In)-1; i < j; i, j = i+1, j-1 {
		params.In[i], params.In[j] = params.In[j], params.In[i]
	}
	return params, nil
}

// BroadestParams builds the widest valid parameters for a feature: only the
// non-wildcard required levels are pinned from the feature's attributes, so
// features sharing those ancestors collapse to one parameter set. Returns
// ok=false when the feature cannot satisfy the hierarchy.
func (g *Geography) BroadestParams(attrs map[string]string) (*QueryParams, bool) {
	filters := make(map[string]string)
	for _, level := range g.Requires {
		if g.isWildcard(level) {
			continue
		}
		if v, ok := attrs[level]; ok {
			filters[level] = v
		}
	}
	params, err := g.BuildParams(filters)
	if err != nil {
		return nil, false
	}
	return params, true
}
