package extent

import (
	"math"

	"github.com/geoharvest/extentd/internal/model"
)

// DefaultTolerance is the coordinate tolerance, in output CRS units, below
// which an extent collapses to a single point. Many real datasets (a single
// sampling station, a single specimen record) degenerate this way and must
// be presented as a point rather than a zero-area rectangle.
const DefaultTolerance = 1e-6

// DetectBBoxPoint reports whether b collapses to one point within tol on
// both axes independently. The returned point is the rectangle's min corner.
func DetectBBoxPoint(b model.BBox, tol float64) (bool, []float64) {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	if math.Abs(b.MinX-b.MaxX) <= tol && math.Abs(b.MinY-b.MaxY) <= tol {
		return true, []float64{b.MinX, b.MinY}
	}
	return false, nil
}

// DetectHullPoint reports whether every vertex equals the first vertex
// within tol on both axes. Vertices with fewer than two coordinates are
// ignored; an empty vertex list is not a point.
func DetectHullPoint(vertices [][]float64, tol float64) (bool, []float64) {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	var first []float64
	for _, v := range vertices {
		if len(v) < 2 {
			continue
		}
		if first == nil {
			first = v
			continue
		}
		if math.Abs(v[0]-first[0]) > tol || math.Abs(v[1]-first[1]) > tol {
			return false, nil
		}
	}
	if first == nil {
		return false, nil
	}
	return true, []float64{first[0], first[1]}
}
