// Package crs normalizes rectangles between coordinate reference systems.
//
// Reprojection transforms only the two diagonal corners of a rectangle and
// re-derives min/max from the result. Under a non-similarity projection the
// true envelope can be larger than the two corners suggest; that
// approximation is deliberate and kept.
package crs

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/wroge/wgs84"

	"github.com/geoharvest/extentd/internal/model"
)

// Target is the common output reference for all merged extents (WGS84).
const Target = "4326"

var ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")

// Normalizer reprojects coordinates into a target CRS. Compiled transforms
// are memoized per (source,target) pair; the zero value is not usable, use
// NewNormalizer.
type Normalizer struct {
	transforms *lru.Cache[string, wgs84.SafeFunc]
}

func NewNormalizer() *Normalizer {
	c, _ := lru.New[string, wgs84.SafeFunc](128)
	return &Normalizer{transforms: c}
}

// Code parses a CRS identifier into a numeric EPSG code. Accepted spellings:
// "4326", "EPSG:4326", "epsg:4326" and "urn:ogc:def:crs:EPSG::4326".
func Code(s string) (int, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty identifier", ErrUnsupportedCRS)
	}
	v := raw
	switch {
	case strings.HasPrefix(strings.ToLower(v), "urn:"):
		// urn:ogc:def:crs:EPSG::4326 keeps the code in the last segment
		parts := strings.Split(v, ":")
		v = parts[len(parts)-1]
	case strings.Contains(v, ":"):
		parts := strings.SplitN(v, ":", 2)
		if !strings.EqualFold(strings.TrimSpace(parts[0]), "epsg") {
			return 0, fmt.Errorf("%w: %q", ErrUnsupportedCRS, raw)
		}
		v = parts[1]
	}
	code, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || code <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCRS, raw)
	}
	return code, nil
}

// Normalize reprojects b from source into target. If the two references
// resolve to the same EPSG code the rectangle is returned unchanged. An
// empty source is taken to already be in the target reference.
func (n *Normalizer) Normalize(b model.BBox, source, target string) (model.BBox, error) {
	if strings.TrimSpace(source) == "" {
		source = target
	}
	src, err := Code(source)
	if err != nil {
		return model.BBox{}, err
	}
	dst, err := Code(target)
	if err != nil {
		return model.BBox{}, err
	}
	if src == dst {
		return b, nil
	}

	tf, err := n.transform(src, dst)
	if err != nil {
		return model.BBox{}, err
	}
	x1, y1, err := apply(tf, b.MinX, b.MinY)
	if err != nil {
		return model.BBox{}, fmt.Errorf("reproject corner (%g,%g) EPSG:%d->%d: %w", b.MinX, b.MinY, src, dst, err)
	}
	x2, y2, err := apply(tf, b.MaxX, b.MaxY)
	if err != nil {
		return model.BBox{}, fmt.Errorf("reproject corner (%g,%g) EPSG:%d->%d: %w", b.MaxX, b.MaxY, src, dst, err)
	}
	return model.BBox{
		MinX: math.Min(x1, x2),
		MinY: math.Min(y1, y2),
		MaxX: math.Max(x1, x2),
		MaxY: math.Max(y1, y2),
	}, nil
}

// NormalizePoint reprojects a single vertex from source into target.
func (n *Normalizer) NormalizePoint(x, y float64, source, target string) (float64, float64, error) {
	src, err := Code(source)
	if err != nil {
		return 0, 0, err
	}
	dst, err := Code(target)
	if err != nil {
		return 0, 0, err
	}
	if src == dst {
		return x, y, nil
	}
	tf, err := n.transform(src, dst)
	if err != nil {
		return 0, 0, err
	}
	return apply(tf, x, y)
}

func (n *Normalizer) transform(src, dst int) (wgs84.SafeFunc, error) {
	key := strconv.Itoa(src) + ">" + strconv.Itoa(dst)
	if f, ok := n.transforms.Get(key); ok {
		return f, nil
	}

	epsg := wgs84.EPSG()
	from := epsg.Code(src)
	if from == nil {
		return nil, fmt.Errorf("%w: EPSG:%d", ErrUnsupportedCRS, src)
	}
	to := epsg.Code(dst)
	if to == nil {
		return nil, fmt.Errorf("%w: EPSG:%d", ErrUnsupportedCRS, dst)
	}

	f := wgs84.SafeTransform(from, to)
	n.transforms.Add(key, f)
	return f, nil
}

func apply(tf wgs84.SafeFunc, x, y float64) (float64, float64, error) {
	x2, y2, _, err := tf(x, y, 0)
	if err != nil {
		return 0, 0, err
	}
	if math.IsNaN(x2) || math.IsNaN(y2) || math.IsInf(x2, 0) || math.IsInf(y2, 0) {
		return 0, 0, errors.New("transform produced a non-finite coordinate")
	}
	return x2, y2, nil
}
