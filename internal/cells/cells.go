// Package cells summarizes a merged extent as the H3 cells covering it,
// for downstream consumers that index coverage by cell.
package cells

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/geoharvest/extentd/internal/model"
)

// ForExtent returns the sorted cell cover of ext at the given resolution.
// Extents are expected in EPSG:4326 (the merger's output CRS). A point
// extent maps to its single containing cell; a hull to its polyfill; a
// plain bbox to the polyfill of its rectangle. An empty extent yields nil.
func ForExtent(ext model.MergedExtent, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}

	switch {
	case ext.IsPoint && len(ext.Point) == 2:
		cell, err := h3.LatLngToCell(h3.LatLng{Lat: ext.Point[1], Lng: ext.Point[0]}, res)
		if err != nil {
			return nil, fmt.Errorf("h3 cell for point: %w", err)
		}
		return model.Cells{cell.String()}, nil

	case len(ext.Hull) > 0:
		outer, err := hullLoop(ext.Hull)
		if err != nil {
			return nil, err
		}
		return polyfillOne(outer, res)

	case ext.BBox != nil:
		bb := *ext.BBox
		outer := h3.GeoLoop{
			{Lat: bb.MinY, Lng: bb.MinX},
			{Lat: bb.MinY, Lng: bb.MaxX},
			{Lat: bb.MaxY, Lng: bb.MaxX},
			{Lat: bb.MaxY, Lng: bb.MinX},
		}
		return polyfillOne(outer, res)

	default:
		return nil, nil
	}
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// hullLoop parses the merged hull GeoJSON Polygon into its outer loop.
func hullLoop(raw json.RawMessage) (h3.GeoLoop, error) {
	var tmp struct {
		Type        string        `json:"type"`
		Coordinates [][][]float64 `json:"coordinates"` // [ring][i][lon,lat]
	}
	if err := json.Unmarshal(raw, &tmp); err != nil {
		return nil, fmt.Errorf("parse hull geojson: %w", err)
	}
	if tmp.Type != "Polygon" {
		return nil, fmt.Errorf("hull must be a Polygon (got %q)", tmp.Type)
	}
	if len(tmp.Coordinates) == 0 {
		return nil, errors.New("empty hull polygon")
	}
	outer := toLoop(tmp.Coordinates[0])
	if len(outer) < 3 {
		return nil, errors.New("hull outer ring has < 3 vertices")
	}
	return outer, nil
}

// Convert a GeoJSON ring [[lon,lat], ...] to an h3.GeoLoop (in degrees).
// If the ring is explicitly closed (last == first), drop the trailing duplicate.
func toLoop(coords [][]float64) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(coords))
	for _, xy := range coords {
		if len(xy) != 2 {
			continue
		}
		loop = append(loop, h3.LatLng{Lat: xy[1], Lng: xy[0]})
	}
	if len(loop) >= 2 {
		last := loop[len(loop)-1]
		first := loop[0]
		if last.Lat == first.Lat && last.Lng == first.Lng {
			loop = loop[:len(loop)-1]
		}
	}
	return loop
}

// polyfillOne computes unique cells and returns them sorted for determinism.
func polyfillOne(outer h3.GeoLoop, res int) (model.Cells, error) {
	if len(outer) < 3 {
		return nil, errors.New("outer ring has < 3 vertices")
	}
	poly := h3.GeoPolygon{GeoLoop: outer}

	indexes, err := h3.PolygonToCells(poly, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
