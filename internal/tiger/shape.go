package tiger

import (
	"github.com/jonas-p/go-shp"
	geom "github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// shapeToGeom converts a go-shp geometry to a go-geom geometry with SRID
// 4326. Returns nil for unsupported or nil shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(4326)
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	default:
		return nil
	}
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Ring winding carries topology: outer rings are clockwise, hole rings
// counterclockwise and follow the outer ring they cut into.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	var outer *geom.Polygon
	flush := func() {
		if outer == nil {
			return
		}
		if err := mp.Push(outer); err != nil {
			zap.L().Debug("tiger: skipping malformed polygon part", zap.Error(err))
		}
		outer = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		coords := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			coords = append(coords, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}
		ring := geom.NewLinearRingFlat(geom.XY, flatCoords(coords))

		if signedArea(coords) > 0 && outer != nil {
			if err := outer.Push(ring); err != nil {
				zap.L().Debug("tiger: skipping malformed hole ring", zap.Int32("part", i), zap.Error(err))
			}
			continue
		}

		flush()
		next := geom.NewPolygon(geom.XY)
		if err := next.Push(ring); err != nil {
			zap.L().Debug("tiger: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		outer = next
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is the shoelace sum over a closed ring. Negative for the
// clockwise winding shapefiles use on outer rings.
func signedArea(coords []geom.Coord) float64 {
	var sum float64
	for i := range coords {
		j := (i + 1) % len(coords)
		sum += coords[i][0]*coords[j][1] - coords[j][0]*coords[i][1]
	}
	return sum / 2
}

// flatCoords converts a slice of Coord to flat coordinate pairs for go-geom.
func flatCoords(coords []geom.Coord) []float64 {
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c[0], c[1])
	}
	return flat
}
