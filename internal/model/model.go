// Package model holds the value objects exchanged between the extent
// aggregation core and its collaborators.
package model

import (
	"encoding/json"
	"fmt"
)

// BBox is an axis-aligned rectangle. Invariant: MinX<=MaxX and MinY<=MaxY.
// It marshals as the conventional [minX,minY,maxX,maxY] array.
type BBox struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

func (b BBox) Width() float64  { return b.MaxX - b.MinX }
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.MinX, b.MinY, b.MaxX, b.MaxY})
}

func (b *BBox) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("bbox must be [minX,minY,maxX,maxY]: %w", err)
	}
	if len(arr) != 4 {
		return fmt.Errorf("bbox must have 4 elements (got %d)", len(arr))
	}
	b.MinX, b.MinY, b.MaxX, b.MaxY = arr[0], arr[1], arr[2], arr[3]
	return nil
}

// ExtentRecord is one file's (or one sub-aggregate's) known extent, as
// produced by an upstream extractor. Nil slices mean "unknown".
type ExtentRecord struct {
	BBox []float64   `json:"bbox,omitempty"` // [minX,minY,maxX,maxY]
	CRS  string      `json:"crs,omitempty"`  // e.g. "4326", "EPSG:25832"
	TBox []string    `json:"tbox,omitempty"` // [start,end] as YYYY-MM-DD
	Hull [][]float64 `json:"hull,omitempty"` // [[x,y], ...]
}

// MergedExtent is the aggregate of many records in the common output CRS.
// When IsPoint is set, BBox/Hull still hold the degenerate geometry but
// consumers should prefer Point.
type MergedExtent struct {
	BBox    *BBox           `json:"bbox,omitempty"`
	CRS     string          `json:"crs,omitempty"`
	Hull    json.RawMessage `json:"hull,omitempty"` // GeoJSON Polygon
	IsPoint bool            `json:"is_point"`
	Point   []float64       `json:"point,omitempty"` // [x,y]
}

// CandidateFile is one file discoverable at a remote source.
// Size==0 is the sentinel for "size unknown upstream".
type CandidateFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// SelectionResult is the plan handed to a download executor. TotalBytes
// counts only selected files with a known positive size.
type SelectionResult struct {
	Selected   []CandidateFile `json:"selected"`
	TotalBytes int64           `json:"total_bytes"`
	Skipped    []CandidateFile `json:"skipped"`
}

// Cells is a sorted list of H3 cell indexes covering an extent.
type Cells []string
