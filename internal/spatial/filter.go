package spatial

import (
	geom "github.com/twpayne/go-geom"
)

// Candidate pairs a feature's attributes with its geometry. After filtering,
// OverlapRatio holds the computed intersection-area ratio.
type Candidate struct {
	Attributes   map[string]any
	Geometry     geom.T
	OverlapRatio float64
}

// Overlapper computes intersection-area ratios. Satisfied by Engine;
// narrow on purpose so callers can fake it in tests.
type Overlapper interface {
	OverlapRatio(candidate, reference geom.T) (float64, error)
}

// Filter keeps the candidates whose intersection-area ratio with the
// reference region meets the threshold. The comparison is inclusive: a ratio
// exactly equal to the threshold is kept. The threshold is a required,
// explicit caller input — there is no default.
func Filter(e Overlapper, candidates []Candidate, reference geom.T, threshold float64) ([]Candidate, error) {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Geometry == nil {
			continue
		}
		ratio, err := e.OverlapRatio(c.Geometry, reference)
		if err != nil {
			return nil, err
		}
		if ratio >= threshold {
			c.OverlapRatio = ratio
			out = append(out, c)
		}
	}
	return out, nil
}
