package geography

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Collection is the set of geography hierarchies a dataset supports,
// indexed by level code and by name, with a parent/children tree derived
// from path prefixes. Names may map to several hierarchies; level codes are
// unique.
type Collection struct {
	byLevel  map[string]*Geography
	ordered  []*Geography
	byPath   map[string]*Geography
	children map[string][]*Geography
}

// geographyJSON mirrors one entry of the dataset's supported-geographies
// document. optionalWithWCFor appears as either a string or a list.
type geographyJSON struct {
	Name             string       `json:"name"`
	GeoLevelDisplay  string       `json:"geoLevelDisplay"`
	Requires         []string     `json:"requires"`
	Wildcard         []string     `json:"wildcard"`
	OptionalWildcard stringOrList `json:"optionalWithWCFor"`
}

type stringOrList []string

func (s *stringOrList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// ParseCollection reads a supported-geographies document of the form
// {"fips": [...]}.
func ParseCollection(data []byte) (*Collection, error) {
	var doc struct {
		FIPS []geographyJSON `json:"fips"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "geography: parse supported geographies")
	}
	if len(doc.FIPS) == 0 {
		return nil, eris.New("geography: supported geographies document has no fips entries")
	}

	c := &Collection{
		byLevel:  make(map[string]*Geography, len(doc.FIPS)),
		byPath:   make(map[string]*Geography, len(doc.FIPS)),
		children: make(map[string][]*Geography),
	}
	for _, gj := range doc.FIPS {
		g := &Geography{
			Name:             gj.Name,
			Level:            gj.GeoLevelDisplay,
			Requires:         gj.Requires,
			Wildcard:         gj.Wildcard,
			OptionalWildcard: gj.OptionalWildcard,
		}
		c.byLevel[g.Level] = g
		c.ordered = append(c.ordered, g)
		key := pathKey(g.Path())
		if _, ok := c.byPath[key]; !ok {
			c.byPath[key] = g
		}
	}
	for _, g := range c.ordered {
		if parent := c.Parent(g); parent != nil {
			pk := pathKey(parent.Path())
			c.children[pk] = append(c.children[pk], g)
		}
	}
	return c, nil
}

func pathKey(path []string) string { return strings.Join(path, " -> ") }

// Parent returns the hierarchy whose path is g's path minus its last
// element, or nil when g is a root.
func (c *Collection) Parent(g *Geography) *Geography {
	path := g.Path()
	if len(path) <= 1 {
		return nil
	}
	return c.byPath[pathKey(path[:len(path)-1])]
}

// Children returns the hierarchies directly below g, in document order.
func (c *Collection) Children(g *Geography) []*Geography {
	return c.children[pathKey(g.Path())]
}

// Roots returns the hierarchies with no parent in the collection.
func (c *Collection) Roots() []*Geography {
	var roots []*Geography
	for _, g := range c.ordered {
		if c.Parent(g) == nil {
			roots = append(roots, g)
		}
	}
	return roots
}

// Len returns the number of hierarchies.
func (c *Collection) Len() int { return len(c.ordered) }

// All returns the hierarchies in document order.
func (c *Collection) All() []*Geography { return c.ordered }

// ByLevel looks a hierarchy up by its level code.
func (c *Collection) ByLevel(level string) (*Geography, error) {
	g, ok := c.byLevel[level]
	if !ok {
		return nil, &UnknownGeographyError{Query: level}
	}
	return g, nil
}

// ByName returns every hierarchy with the given level name.
func (c *Collection) ByName(name string) ([]*Geography, error) {
	var matches []*Geography
	for _, g := range c.ordered {
		if g.Name == name {
			matches = append(matches, g)
		}
	}
	if len(matches) == 0 {
		return nil, &UnknownGeographyError{Query: name}
	}
	return matches, nil
}

// BuildParamsByLevel builds parameters for the hierarchy with the given
// level code.
func (c *Collection) BuildParamsByLevel(level string, filters map[string]string) (*Geography, *QueryParams, error) {
	g, err := c.ByLevel(level)
	if err != nil {
		return nil, nil, err
	}
	params, err := g.BuildParams(filters)
	if err != nil {
		return nil, nil, err
	}
	return g, params, nil
}

// BuildParamsByName builds parameters for the first hierarchy with the given
// name that the filters satisfy. When a name maps to several hierarchies and
// none fits, the per-hierarchy failures are aggregated so the caller can see
// which filters each one wanted.
func (c *Collection) BuildParamsByName(name string, filters map[string]string) (*Geography, *QueryParams, error) {
	matches, err := c.ByName(name)
	if err != nil {
		return nil, nil, err
	}

	var failures []string
	for _, g := range matches {
		params, err := g.BuildParams(filters)
		if err == nil {
			return g, params, nil
		}
		if len(matches) == 1 {
			return nil, nil, err
		}
		failures = append(failures, g.String()+": "+err.Error())
	}
	return nil, nil, eris.Errorf(
		"geography: %d hierarchies named %q, none satisfied by the given filters:\n%s",
		len(matches), name, strings.Join(failures, "\n"))
}

// ParamsFromFeatures builds the parameter sets that cover a set of resolved
// features for a target level name. Each candidate hierarchy gets the
// broadest parameters per feature; a hierarchy any feature cannot satisfy is
// discarded. Among the surviving hierarchies, the one producing the fewest
// distinct parameter sets wins.
func (c *Collection) ParamsFromFeatures(target string, features []map[string]string) (*Geography, []*QueryParams, error) {
	matches, err := c.ByName(target)
	if err != nil {
		return nil, nil, err
	}

	type candidate struct {
		g      *Geography
		params []*QueryParams
	}
	var candidates []candidate

	for _, g := range matches {
		distinct := make(map[string]*QueryParams)
		possible := true
		for _, attrs := range features {
			params, ok := g.BroadestParams(attrs)
			if !ok {
				possible = false
				break
			}
			distinct[params.key()] = params
		}
		if !possible {
			continue
		}

		keys := make([]string, 0, len(distinct))
		for k := range distinct {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ps := make([]*QueryParams, len(keys))
		for i, k := range keys {
			ps[i] = distinct[k]
		}
		candidates = append(candidates, candidate{g: g, params: ps})
	}

	if len(candidates) == 0 {
		return nil, nil, eris.Errorf("geography: no hierarchy named %q can cover the resolved features", target)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].params) < len(candidates[j].params)
	})
	best := candidates[0]
	return best.g, best.params, nil
}

// ParamsForArea tries to answer a containment query for a single region
// without any feature resolution: when the region's own attributes pin every
// non-wildcard requirement of a hierarchy named target, the parameters fall
// out directly. isNation marks the national boundary, which always
// qualifies; otherwise the region's own level must appear among the pinned
// filters. Returns ok=false when no hierarchy fits and the caller should
// fall back to feature resolution.
func (c *Collection) ParamsForArea(target string, attrs map[string]string, areaLevel string, isNation bool) (*Geography, *QueryParams, bool) {
	matches, err := c.ByName(target)
	if err != nil {
		return nil, nil, false
	}

	for _, g := range matches {
		filters := make(map[string]string)
		for _, level := range g.Requires {
			if v, ok := attrs[level]; ok {
				filters[level] = v
			}
		}
		if !isNation {
			if areaLevel == "" {
				continue
			}
			if _, ok := filters[areaLevel]; !ok {
				continue
			}
		}
		params, err := g.BuildParams(filters)
		if err != nil {
			continue
		}
		return g, params, true
	}
	return nil, nil, false
}
