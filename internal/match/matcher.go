// Package match resolves free-text names against candidate records using a
// normalized setwise Levenshtein distance: tokens are compared under an
// optimal one-to-one assignment, with rare tokens weighted by inverse
// document frequency so dropping a defining word costs more than dropping a
// common one.
package match

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// Candidate is one record eligible for name resolution.
type Candidate struct {
	ID   string
	Name string
}

// Score is a ranked candidate with its similarity in [0, 1].
type Score struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Options tunes matcher behavior.
type Options struct {
	// ScoreCutoff is the minimum similarity to shortlist a candidate.
	// Default: 0.8.
	ScoreCutoff float64

	// Shortlist caps the number of candidates kept for refinement and
	// diagnostics. Default: 20.
	Shortlist int

	// Expansions maps whole-word abbreviations (upper case) to their full
	// form, applied to queries and candidate names alike.
	Expansions map[string]string
}

func (o Options) withDefaults() Options {
	if o.ScoreCutoff <= 0 {
		o.ScoreCutoff = 0.8
	}
	if o.Shortlist <= 0 {
		o.Shortlist = 20
	}
	return o
}

// Matcher scores queries against a fixed candidate set. Token document
// frequencies are computed once at construction; a Matcher is immutable and
// safe for concurrent use.
type Matcher struct {
	opts       Options
	candidates []Candidate
	names      map[string]string   // id -> normalized name
	tokens     map[string][]string // id -> token set
	idf        map[string]float64
}

// New builds a matcher over the candidate set.
func New(candidates []Candidate, opts Options) *Matcher {
	opts = opts.withDefaults()
	m := &Matcher{
		opts:       opts,
		candidates: candidates,
		names:      make(map[string]string, len(candidates)),
		tokens:     make(map[string][]string, len(candidates)),
		idf:        map[string]float64{},
	}

	df := map[string]int{}
	for _, c := range candidates {
		name := Normalize(c.Name, opts.Expansions)
		ts := Tokenize(name)
		m.names[c.ID] = name
		m.tokens[c.ID] = ts
		for _, t := range ts {
			df[t]++
		}
	}

	n := float64(len(candidates))
	for t, count := range df {
		m.idf[t] = math.Log(n / float64(count))
	}
	return m
}

// Similarity scores a single query/candidate-name pair in [0, 1].
func (m *Matcher) Similarity(query, name string) float64 {
	q := Normalize(query, m.opts.Expansions)
	c := Normalize(name, m.opts.Expansions)
	return m.similarity(Tokenize(q), q, Tokenize(c), c)
}

func (m *Matcher) similarity(qTokens []string, q string, cTokens []string, c string) float64 {
	if len(qTokens) == 1 && len(cTokens) == 1 {
		// The set formulation degenerates for single tokens; plain ratio is
		// cheaper and equivalent.
		return levenshtein.Similarity(qTokens[0], cTokens[0], nil)
	}
	return 1 - m.setDistance(qTokens, cTokens)
}

// setDistance computes the normalized setwise Levenshtein distance between
// two token sets: optimal one-to-one assignment cost (the smaller set padded
// with empty tokens), normalized by total token length.
func (m *Matcher) setDistance(a, b []string) float64 {
	k := max(len(a), len(b))
	if k == 0 {
		return 0
	}

	la, lb := 0, 0
	for _, t := range a {
		la += utf8.RuneCountInString(t)
	}
	for _, t := range b {
		lb += utf8.RuneCountInString(t)
	}

	pa := pad(a, k)
	pb := pad(b, k)
	cost := make([][]float64, k)
	for i := range cost {
		cost[i] = make([]float64, k)
		for j := range cost[i] {
			cost[i][j] = m.tokenDistance(pa[i], pb[j])
		}
	}

	cols := assign(cost)
	sld := 0.0
	for i, j := range cols {
		sld += cost[i][j]
	}

	denom := float64(la+lb) + sld
	if denom == 0 {
		return 0
	}
	return (2 * sld) / denom
}

// tokenDistance is the edit distance between two tokens, except that a token
// matched against "no token" costs half its inverse-frequency weight when
// known, so dropping a rare defining word is penalized more than dropping a
// common one.
func (m *Matcher) tokenDistance(a, b string) float64 {
	if a == "" || b == "" {
		t := a
		if t == "" {
			t = b
		}
		if w, ok := m.idf[t]; ok {
			return w / 2
		}
		return float64(utf8.RuneCountInString(t))
	}
	return float64(levenshtein.Distance(a, b, nil))
}

// Rank scores the query against every candidate and returns those at or
// above the cutoff, best first, capped at limit (0 = no cap).
func (m *Matcher) Rank(query string, limit int) []Score {
	q := Normalize(query, m.opts.Expansions)
	qTokens := Tokenize(q)

	var ranked []Score
	for _, c := range m.candidates {
		s := m.similarity(qTokens, q, m.tokens[c.ID], m.names[c.ID])
		if s >= m.opts.ScoreCutoff {
			ranked = append(ranked, Score{ID: c.ID, Name: c.Name, Score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Match resolves a query to exactly one candidate, or fails with
// *NoMatchError / *AmbiguousMatchError. Acceptance ladder:
//
//  1. a single shortlisted candidate, or a top score >= 0.99, is accepted;
//  2. a top score > 0.95 with a margin > 0.05 over the runner-up is accepted;
//  3. otherwise, each token present in a shortlisted candidate but absent
//     from the query is tried as a query addition against the shortlist;
//     exactly one confident re-match accepts it;
//  4. otherwise the match is ambiguous — the matcher never guesses.
func (m *Matcher) Match(query string) (*Score, error) {
	best := m.Rank(query, m.opts.Shortlist)
	if len(best) == 0 {
		return nil, &NoMatchError{Query: query, Examples: m.exampleNames(5)}
	}

	if len(best) == 1 || best[0].Score >= 0.99 {
		return &best[0], nil
	}
	if best[0].Score > 0.95 && best[0].Score-best[1].Score > 0.05 {
		return &best[0], nil
	}

	if s := m.refine(query, best); s != nil {
		return s, nil
	}

	top := best
	if len(top) > 10 {
		top = top[:10]
	}
	return nil, &AmbiguousMatchError{Query: query, Candidates: top}
}

// refine retries ambiguous queries with one missing token appended at a
// time. Only a uniquely confident addition resolves the ambiguity.
func (m *Matcher) refine(query string, shortlist []Score) *Score {
	q := Normalize(query, m.opts.Expansions)
	qTokens := Tokenize(q)
	have := map[string]bool{}
	for _, t := range qTokens {
		have[t] = true
	}

	missing := map[string]bool{}
	for _, s := range shortlist {
		for _, t := range m.tokens[s.ID] {
			if !have[t] {
				missing[t] = true
			}
		}
	}

	var accepted *Score
	found := 0
	for t := range missing {
		extended := append(append([]string{}, qTokens...), t)
		extQuery := strings.Join(extended, " ")

		var ranked []Score
		for _, s := range shortlist {
			sim := m.similarity(extended, extQuery, m.tokens[s.ID], m.names[s.ID])
			if sim >= m.opts.ScoreCutoff {
				ranked = append(ranked, Score{ID: s.ID, Name: s.Name, Score: sim})
			}
		}
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

		if (len(ranked) == 1 && ranked[0].Score > 0.95) ||
			(len(ranked) > 0 && ranked[0].Score >= 0.98) {
			found++
			accepted = &ranked[0]
		}
	}

	if found == 1 {
		return accepted
	}
	return nil
}

func (m *Matcher) exampleNames(n int) []string {
	var names []string
	for _, c := range m.candidates {
		names = append(names, c.Name)
		if len(names) >= n {
			break
		}
	}
	return names
}

func pad(ts []string, k int) []string {
	if len(ts) >= k {
		return ts
	}
	out := make([]string, k)
	copy(out, ts)
	return out
}
