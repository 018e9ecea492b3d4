package extent

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/geoharvest/extentd/internal/model"
)

func newTestMerger(t *testing.T) *Merger {
	t.Helper()
	return NewMerger(nil, nil, Options{})
}

func rec(bbox ...float64) model.ExtentRecord {
	return model.ExtentRecord{BBox: bbox, CRS: "4326"}
}

func checkInvariant(t *testing.T, b *model.BBox) {
	t.Helper()
	if b == nil {
		t.Fatalf("bbox is nil")
	}
	if b.MinX > b.MaxX || b.MinY > b.MaxY {
		t.Fatalf("bbox %v violates min<=max", *b)
	}
}

func TestMerge_SingletonIdempotence(t *testing.T) {
	m := newTestMerger(t)
	out := m.Merge([]model.ExtentRecord{rec(1, 2, 3, 4)}, ModeBBox)
	checkInvariant(t, out.BBox)
	if *out.BBox != (model.BBox{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}) {
		t.Fatalf("bbox=%v want [1 2 3 4]", *out.BBox)
	}
	if out.CRS != "4326" {
		t.Fatalf("crs=%q want 4326", out.CRS)
	}
	if out.IsPoint {
		t.Fatalf("is_point=true want false")
	}
}

func TestMerge_UnionIdempotence(t *testing.T) {
	m := newTestMerger(t)
	records := []model.ExtentRecord{rec(1, 2, 3, 4), rec(1, 2, 3, 4), rec(1, 2, 3, 4)}
	out := m.Merge(records, ModeBBox)
	checkInvariant(t, out.BBox)
	if *out.BBox != (model.BBox{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}) {
		t.Fatalf("bbox=%v want [1 2 3 4]", *out.BBox)
	}
}

func TestMerge_UnionCoversAllRecords(t *testing.T) {
	m := newTestMerger(t)
	out := m.Merge([]model.ExtentRecord{
		rec(0, 0, 1, 1),
		rec(5, -2, 6, 3),
		rec(-1, 0.5, 0.5, 0.6),
	}, ModeBBox)
	checkInvariant(t, out.BBox)
	want := model.BBox{MinX: -1, MinY: -2, MaxX: 6, MaxY: 3}
	if *out.BBox != want {
		t.Fatalf("bbox=%v want %v", *out.BBox, want)
	}
}

func TestMerge_ReversedCornersStillSatisfyInvariant(t *testing.T) {
	m := newTestMerger(t)
	out := m.Merge([]model.ExtentRecord{rec(3, 4, 1, 2)}, ModeBBox)
	checkInvariant(t, out.BBox)
	if *out.BBox != (model.BBox{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}) {
		t.Fatalf("bbox=%v want re-derived [1 2 3 4]", *out.BBox)
	}
}

func TestMerge_MalformedRecordsAreSkippedNotFatal(t *testing.T) {
	m := newTestMerger(t)
	out := m.Merge([]model.ExtentRecord{
		{BBox: []float64{1, 2, 3}, CRS: "4326"},                  // wrong arity
		{BBox: []float64{math.NaN(), 0, 1, 1}, CRS: "4326"},      // non-finite
		{BBox: []float64{0, 0, 1, 1}, CRS: "EPSG:999999"},        // unknown CRS
		{BBox: []float64{10, 10, 11, 11}, CRS: "urn:ogc:def:crs:EPSG::4326"},
		{}, // no bbox at all
	}, ModeBBox)
	checkInvariant(t, out.BBox)
	want := model.BBox{MinX: 10, MinY: 10, MaxX: 11, MaxY: 11}
	if *out.BBox != want {
		t.Fatalf("bbox=%v want %v (only the valid record)", *out.BBox, want)
	}
}

func TestMerge_NothingValidReturnsNullBBox(t *testing.T) {
	m := newTestMerger(t)
	out := m.Merge([]model.ExtentRecord{
		{BBox: []float64{1}, CRS: "4326"},
		{},
	}, ModeBBox)
	if out.BBox != nil {
		t.Fatalf("bbox=%v want nil", out.BBox)
	}
	if out.CRS != "" || out.IsPoint || out.Point != nil {
		t.Fatalf("expected empty result, got %+v", out)
	}
}

func TestMerge_PointRecordDegeneratesToPoint(t *testing.T) {
	m := newTestMerger(t)
	out := m.Merge([]model.ExtentRecord{rec(7.6, 51.9, 7.6, 51.9)}, ModeBBox)
	if !out.IsPoint {
		t.Fatalf("is_point=false want true")
	}
	if math.Abs(out.Point[0]-7.6) > 1e-9 || math.Abs(out.Point[1]-51.9) > 1e-9 {
		t.Fatalf("point=%v want [7.6 51.9]", out.Point)
	}
}

func decodeHull(t *testing.T, raw json.RawMessage) [][]float64 {
	t.Helper()
	var g struct {
		Type        string        `json:"type"`
		Coordinates [][][]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		t.Fatalf("unmarshal hull: %v\n%s", err, string(raw))
	}
	if g.Type != "Polygon" {
		t.Fatalf("hull type=%q want Polygon", g.Type)
	}
	if len(g.Coordinates) == 0 {
		t.Fatalf("hull has no rings")
	}
	return g.Coordinates[0]
}

func TestMerge_HullMode_CoversAllRectangles(t *testing.T) {
	m := newTestMerger(t)
	out := m.Merge([]model.ExtentRecord{
		rec(0, 0, 1, 1),
		rec(2, 2, 3, 3),
	}, ModeHull)
	checkInvariant(t, out.BBox)
	want := model.BBox{MinX: 0, MinY: 0, MaxX: 3, MaxY: 3}
	if *out.BBox != want {
		t.Fatalf("bbox=%v want %v", *out.BBox, want)
	}
	if out.Hull == nil {
		t.Fatalf("hull is nil")
	}
	ring := decodeHull(t, out.Hull)
	// every hull vertex must come from the input corner set
	for _, v := range ring {
		for _, c := range v {
			if c != 0 && c != 1 && c != 2 && c != 3 {
				t.Fatalf("unexpected hull coordinate %v", v)
			}
		}
	}
	if out.IsPoint {
		t.Fatalf("is_point=true want false")
	}
}

func TestMerge_HullMode_UsesPriorHulls(t *testing.T) {
	m := newTestMerger(t)
	out := m.Merge([]model.ExtentRecord{
		{Hull: [][]float64{{0, 0}, {4, 0}, {0, 4}}, CRS: "4326"},
		rec(1, 1, 2, 2),
	}, ModeHull)
	checkInvariant(t, out.BBox)
	want := model.BBox{MinX: 0, MinY: 0, MaxX: 4, MaxY: 4}
	if *out.BBox != want {
		t.Fatalf("bbox=%v want %v", *out.BBox, want)
	}
}

func TestMerge_HullMode_CollinearFallsBackToBBoxUnion(t *testing.T) {
	m := newTestMerger(t)
	// collinear hull vertices cannot form a polygon; the batch must fall
	// back to bbox union instead of raising
	out := m.Merge([]model.ExtentRecord{
		{Hull: [][]float64{{0, 0}, {1, 1}, {2, 2}}, BBox: []float64{0, 0, 2, 2}, CRS: "4326"},
	}, ModeHull)
	if out.Hull != nil {
		t.Fatalf("hull=%s want nil after fallback", string(out.Hull))
	}
	checkInvariant(t, out.BBox)
	want := model.BBox{MinX: 0, MinY: 0, MaxX: 2, MaxY: 2}
	if *out.BBox != want {
		t.Fatalf("bbox=%v want %v", *out.BBox, want)
	}
}

func TestMerge_HullMode_PointRecordStillYieldsPoint(t *testing.T) {
	m := newTestMerger(t)
	// a single point-like record is epsilon-expanded into a valid tiny
	// polygon, and the detector must still classify the result as a point
	out := m.Merge([]model.ExtentRecord{rec(7.6, 51.9, 7.6, 51.9)}, ModeHull)
	if !out.IsPoint {
		t.Fatalf("is_point=false want true")
	}
	if math.Abs(out.Point[0]-7.6) > 1e-6 || math.Abs(out.Point[1]-51.9) > 1e-6 {
		t.Fatalf("point=%v want ~[7.6 51.9]", out.Point)
	}
	if out.Hull == nil {
		t.Fatalf("hull is nil (epsilon expansion should have produced one)")
	}
}

func TestMerge_HullMode_NoContributingRecords(t *testing.T) {
	m := newTestMerger(t)
	out := m.Merge(nil, ModeHull)
	if out.BBox != nil || out.Hull != nil {
		t.Fatalf("expected empty result, got %+v", out)
	}
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeBBox, false},
		{"bbox", ModeBBox, false},
		{"hull", ModeHull, false},
		{"HULL", ModeHull, false},
		{"envelope", "", true},
	} {
		got, err := ParseMode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseMode(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseMode(%q)=%q,%v want %q", tc.in, got, err, tc.want)
		}
	}
}
