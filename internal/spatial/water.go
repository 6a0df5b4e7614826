package spatial

import (
	geom "github.com/twpayne/go-geom"
)

// WaterReference builds the reference region used to classify water bodies
// against a land polygon: the land's bounding box minus the land itself.
// Water touching the exterior boundary overlaps this region and is treated
// as external (removable); water fully interior does not.
func WaterReference(e *Engine, land geom.T) (geom.T, error) {
	env, err := e.Envelope(land)
	if err != nil {
		return nil, err
	}
	return e.Difference(env, land)
}

// RemoveWater excises qualifying water bodies from a land geometry. A water
// body qualifies when its overlap ratio against the exterior reference meets
// the threshold; fully interior water is kept unless the caller lowers the
// threshold to zero.
func RemoveWater(e *Engine, land geom.T, waters []Candidate, threshold float64) (geom.T, error) {
	reference, err := WaterReference(e, land)
	if err != nil {
		return nil, err
	}
	if reference == nil {
		return land, nil
	}

	removable, err := Filter(e, waters, reference, threshold)
	if err != nil {
		return nil, err
	}

	result := land
	for _, w := range removable {
		result, err = e.Difference(result, w.Geometry)
		if err != nil {
			return nil, err
		}
		if result == nil {
			break
		}
	}
	return result, nil
}
