// Package spatial decides which candidate features count as "inside" a
// reference region by fractional-area overlap. Geometry predicates are
// delegated to GEOS rather than reimplementing polygon clipping.
package spatial

import (
	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// Engine bridges go-geom geometries to a GEOS context via WKB. The GEOS
// context serializes access internally, so one Engine may be shared across
// goroutines.
type Engine struct {
	ctx *geos.Context
}

// NewEngine creates a geometry engine with its own GEOS context.
func NewEngine() *Engine {
	return &Engine{ctx: geos.NewContext()}
}

func (e *Engine) toGeos(g geom.T) (*geos.Geom, error) {
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "spatial: encode WKB")
	}
	gg, err := e.ctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, eris.Wrap(err, "spatial: decode WKB into GEOS")
	}
	return gg, nil
}

func (e *Engine) toGeom(g *geos.Geom) (geom.T, error) {
	if g == nil || g.IsEmpty() {
		return nil, nil
	}
	out, err := wkb.Unmarshal(g.ToWKB())
	if err != nil {
		return nil, eris.Wrap(err, "spatial: decode WKB from GEOS")
	}
	return out, nil
}

// OverlapRatio returns area(candidate ∩ reference) / area(candidate).
// A candidate with zero area yields ratio 0.
func (e *Engine) OverlapRatio(candidate, reference geom.T) (float64, error) {
	gc, err := e.toGeos(candidate)
	if err != nil {
		return 0, err
	}
	defer gc.Destroy()
	gr, err := e.toGeos(reference)
	if err != nil {
		return 0, err
	}
	defer gr.Destroy()

	candArea := gc.Area()
	if candArea == 0 {
		return 0, nil
	}

	inter := gc.Intersection(gr)
	defer inter.Destroy()
	return inter.Area() / candArea, nil
}

// Intersection returns candidate ∩ reference, or nil when empty.
func (e *Engine) Intersection(a, b geom.T) (geom.T, error) {
	ga, err := e.toGeos(a)
	if err != nil {
		return nil, err
	}
	defer ga.Destroy()
	gb, err := e.toGeos(b)
	if err != nil {
		return nil, err
	}
	defer gb.Destroy()

	inter := ga.Intersection(gb)
	defer inter.Destroy()
	return e.toGeom(inter)
}

// Difference returns a − b, or nil when empty.
func (e *Engine) Difference(a, b geom.T) (geom.T, error) {
	ga, err := e.toGeos(a)
	if err != nil {
		return nil, err
	}
	defer ga.Destroy()
	gb, err := e.toGeos(b)
	if err != nil {
		return nil, err
	}
	defer gb.Destroy()

	diff := ga.Difference(gb)
	defer diff.Destroy()
	return e.toGeom(diff)
}

// Union merges all geometries into one, or nil for an empty input.
func (e *Engine) Union(gs []geom.T) (geom.T, error) {
	var acc *geos.Geom
	for _, g := range gs {
		gg, err := e.toGeos(g)
		if err != nil {
			if acc != nil {
				acc.Destroy()
			}
			return nil, err
		}
		if acc == nil {
			acc = gg
			continue
		}
		merged := acc.Union(gg)
		acc.Destroy()
		gg.Destroy()
		acc = merged
	}
	if acc == nil {
		return nil, nil
	}
	defer acc.Destroy()
	return e.toGeom(acc)
}

// Envelope returns the bounding-box polygon of a geometry.
func (e *Engine) Envelope(g geom.T) (geom.T, error) {
	gg, err := e.toGeos(g)
	if err != nil {
		return nil, err
	}
	defer gg.Destroy()

	env := gg.Envelope()
	defer env.Destroy()
	return e.toGeom(env)
}
