// Package extent merges many per-file spatial/temporal extents into one
// aggregate extent in the common output CRS.
package extent

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"

	"github.com/geoharvest/extentd/internal/crs"
	"github.com/geoharvest/extentd/internal/model"
	"github.com/geoharvest/extentd/internal/observability"
)

type Mode string

const (
	ModeBBox Mode = "bbox"
	ModeHull Mode = "hull"
)

// ParseMode accepts bbox|hull; the empty string means bbox.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bbox":
		return ModeBBox, nil
	case "hull":
		return ModeHull, nil
	default:
		return "", fmt.Errorf("invalid merge mode %q (want bbox|hull)", s)
	}
}

// DefaultEpsilon expands zero-extent rectangle axes before hull
// construction so a line- or point-like record still yields a valid
// polygon. Far below any realistic extraction precision.
const DefaultEpsilon = 1e-10

type Options struct {
	Tolerance float64 // point degeneracy tolerance, DefaultTolerance when <=0
	Epsilon   float64 // degenerate rectangle expansion, DefaultEpsilon when <=0
}

type Merger struct {
	logger *slog.Logger
	norm   *crs.Normalizer
	tol    float64
	eps    float64
}

func NewMerger(logger *slog.Logger, norm *crs.Normalizer, opts Options) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	if norm == nil {
		norm = crs.NewNormalizer()
	}
	tol := opts.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	eps := opts.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	return &Merger{logger: logger, norm: norm, tol: tol, eps: eps}
}

// Merge combines the records' spatial extents. Malformed records are
// skipped, never fatal: the result is best-effort over the valid subset,
// with a nil BBox when nothing valid remains. In hull mode a point set the
// hull algorithm cannot turn into a polygon falls back to bbox union.
func (m *Merger) Merge(records []model.ExtentRecord, mode Mode) model.MergedExtent {
	start := time.Now()
	outcome := "ok"

	if mode == ModeHull {
		poly, fellBack := m.hullUnion(records)
		if poly != nil {
			out := m.fromHull(poly)
			observability.ObserveMerge(string(mode), outcome, time.Since(start).Seconds())
			return out
		}
		if fellBack {
			m.logger.Warn("convex hull construction failed, falling back to bbox union")
			observability.IncHullFallback()
			outcome = "fallback"
		}
	}

	var out model.MergedExtent
	if bb := m.bboxUnion(records); bb != nil {
		out.BBox = bb
		out.CRS = crs.Target
		out.IsPoint, out.Point = DetectBBoxPoint(*bb, m.tol)
	} else {
		outcome = "empty"
	}
	observability.ObserveMerge(string(mode), outcome, time.Since(start).Seconds())
	return out
}

func (m *Merger) bboxUnion(records []model.ExtentRecord) *model.BBox {
	var out *model.BBox
	for i, rec := range records {
		norm, ok := m.normalizedBBox(i, rec)
		if !ok {
			continue
		}
		if out == nil {
			v := norm
			out = &v
			continue
		}
		out.MinX = math.Min(out.MinX, norm.MinX)
		out.MinY = math.Min(out.MinY, norm.MinY)
		out.MaxX = math.Max(out.MaxX, norm.MaxX)
		out.MaxY = math.Max(out.MaxY, norm.MaxY)
	}
	return out
}

// hullUnion collects every contributing geometry's vertices into one point
// set and hulls that full set (not a hull of hulls). A nil polygon with
// fellBack=false means no record contributed anything.
func (m *Merger) hullUnion(records []model.ExtentRecord) (poly *geom.Polygon, fellBack bool) {
	var flat []float64
	for i, rec := range records {
		if len(rec.Hull) >= 3 {
			pts, err := m.normalizedHull(rec.Hull, rec.CRS)
			if err != nil {
				m.logger.Warn("skipping record, hull reprojection failed",
					"record", i, "crs", rec.CRS, "err", err)
				observability.IncRecordSkipped("reprojection")
				continue
			}
			if pts == nil {
				m.logger.Warn("skipping record with unparsable hull", "record", i)
				observability.IncRecordSkipped("invalid_geometry")
				continue
			}
			flat = append(flat, pts...)
			continue
		}

		norm, ok := m.normalizedBBox(i, rec)
		if !ok {
			continue
		}
		r := m.expandDegenerate(norm)
		flat = append(flat,
			r.MinX, r.MinY,
			r.MaxX, r.MinY,
			r.MaxX, r.MaxY,
			r.MinX, r.MaxY,
		)
	}
	if len(flat) == 0 {
		return nil, false
	}

	hull := xy.ConvexHullFlat(geom.XY, flat)
	p, ok := hull.(*geom.Polygon)
	if !ok || len(p.FlatCoords()) < 8 {
		// collinear or fewer than 3 distinct points
		return nil, true
	}
	return p, false
}

// normalizedBBox validates a record's bbox and reprojects it into the
// output CRS. Both failure kinds are recovered per record.
func (m *Merger) normalizedBBox(i int, rec model.ExtentRecord) (model.BBox, bool) {
	if rec.BBox == nil {
		m.logger.Debug("record has no bbox", "record", i)
		return model.BBox{}, false
	}
	bb, ok := parseBBox(rec.BBox)
	if !ok {
		m.logger.Warn("skipping record with unparsable bbox", "record", i)
		observability.IncRecordSkipped("invalid_geometry")
		return model.BBox{}, false
	}
	norm, err := m.norm.Normalize(bb, rec.CRS, crs.Target)
	if err != nil {
		m.logger.Warn("skipping record, reprojection failed",
			"record", i, "crs", rec.CRS, "err", err)
		observability.IncRecordSkipped("reprojection")
		return model.BBox{}, false
	}
	return norm, true
}

// normalizedHull flattens and reprojects hull vertices. nil,nil marks a
// hull with fewer than 3 usable vertices.
func (m *Merger) normalizedHull(vertices [][]float64, source string) ([]float64, error) {
	out := make([]float64, 0, len(vertices)*2)
	for _, v := range vertices {
		if len(v) < 2 || !finite(v[0]) || !finite(v[1]) {
			continue
		}
		x, y := v[0], v[1]
		if strings.TrimSpace(source) != "" {
			var err error
			x, y, err = m.norm.NormalizePoint(x, y, source, crs.Target)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, x, y)
	}
	if len(out) < 6 {
		return nil, nil
	}
	return out, nil
}

func (m *Merger) expandDegenerate(b model.BBox) model.BBox {
	if b.Width() == 0 {
		b.MinX -= m.eps
		b.MaxX += m.eps
	}
	if b.Height() == 0 {
		b.MinY -= m.eps
		b.MaxY += m.eps
	}
	return b
}

func (m *Merger) fromHull(poly *geom.Polygon) model.MergedExtent {
	out := model.MergedExtent{CRS: crs.Target}

	bounds := poly.Bounds()
	out.BBox = &model.BBox{
		MinX: bounds.Min(0), MinY: bounds.Min(1),
		MaxX: bounds.Max(0), MaxY: bounds.Max(1),
	}

	if buf, err := geojson.Marshal(poly); err == nil {
		out.Hull = buf
	} else {
		m.logger.Warn("encode hull geojson", "err", err)
	}

	out.IsPoint, out.Point = DetectHullPoint(ringVertices(poly), m.tol)
	return out
}

func ringVertices(poly *geom.Polygon) [][]float64 {
	if poly.NumLinearRings() == 0 {
		return nil
	}
	ring := poly.LinearRing(0).Coords()
	out := make([][]float64, 0, len(ring))
	for _, c := range ring {
		out = append(out, []float64{c.X(), c.Y()})
	}
	return out
}

// parseBBox re-derives min/max so reversed corners from sloppy extractors
// still satisfy the output invariant.
func parseBBox(v []float64) (model.BBox, bool) {
	if len(v) != 4 {
		return model.BBox{}, false
	}
	for _, f := range v {
		if !finite(f) {
			return model.BBox{}, false
		}
	}
	return model.BBox{
		MinX: math.Min(v[0], v[2]),
		MinY: math.Min(v[1], v[3]),
		MaxX: math.Max(v[0], v[2]),
		MaxY: math.Max(v[1], v[3]),
	}, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
