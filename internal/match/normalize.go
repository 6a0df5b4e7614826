package match

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

var (
	foldCaser = cases.Fold()

	// leadingZeros matches insignificant leading zeros inside numbers, e.g.
	// "Tract 007.01" -> "Tract 7.01". Go's regexp has no lookarounds, so the
	// preceding non-digit (or start) is captured and reassembled.
	leadingZeros = regexp.MustCompile(`(^|[^0-9])0+([0-9])`)

	nonWord = regexp.MustCompile(`\W+`)
)

// Normalize expands known abbreviations (whole-word, case-sensitive) and
// strips insignificant leading zeros from numbers.
func Normalize(name string, expansions map[string]string) string {
	if len(expansions) > 0 {
		name = expandPattern(expansions).ReplaceAllStringFunc(name, func(abbr string) string {
			return expansions[strings.ToUpper(abbr)]
		})
	}
	return leadingZeros.ReplaceAllString(name, "${1}${2}")
}

// expandPattern builds a whole-word alternation over the expansion keys.
// Patterns are tiny (state postal codes) so rebuilding per call is cheap
// relative to the network fetch that precedes every match.
func expandPattern(expansions map[string]string) *regexp.Regexp {
	keys := make([]string, 0, len(expansions))
	for k := range expansions {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	sort.Strings(keys)
	return regexp.MustCompile(`\b(` + strings.Join(keys, "|") + `)\b`)
}

// Tokenize splits a name into its unique case-folded word tokens.
func Tokenize(name string) []string {
	seen := map[string]bool{}
	var tokens []string
	for _, t := range nonWord.Split(name, -1) {
		if t == "" {
			continue
		}
		t = foldCaser.String(t)
		if !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	return tokens
}
