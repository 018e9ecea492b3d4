package selection

import (
	"testing"

	"github.com/geoharvest/extentd/internal/model"
)

func TestSplitComposite_Shapefile(t *testing.T) {
	files := []model.CandidateFile{
		cf("roads.shp", 40),
		cf("ortho.tif", 50),
		cf("roads.dbf", 25),
		cf("roads.shx", 10),
		cf("rivers.shp", 30),
		cf("rivers.dbf", 5),
	}
	groups, standalone := SplitComposite(files, nil)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	checkNames(t, groups[0], "roads.shp", "roads.dbf", "roads.shx")
	checkNames(t, groups[1], "rivers.shp", "rivers.dbf")
	checkNames(t, standalone, "ortho.tif")
}

func TestSplitComposite_LoneSidecarDegrades(t *testing.T) {
	files := []model.CandidateFile{cf("roads.shp", 40), cf("ortho.tif", 50)}
	groups, standalone := SplitComposite(files, nil)
	if len(groups) != 0 {
		t.Fatalf("got %d groups, want 0", len(groups))
	}
	checkNames(t, standalone, "roads.shp", "ortho.tif")
}

func TestSplitComposite_CaseInsensitiveExtensions(t *testing.T) {
	files := []model.CandidateFile{cf("Roads.SHP", 40), cf("Roads.DBF", 25)}
	groups, standalone := SplitComposite(files, nil)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	checkNames(t, groups[0], "Roads.SHP", "Roads.DBF")
	if len(standalone) != 0 {
		t.Fatalf("standalone=%v want none", names(standalone))
	}
}

func TestSplitComposite_CustomExtensions(t *testing.T) {
	files := []model.CandidateFile{
		cf("scene.img", 100),
		cf("scene.hdr", 1),
		cf("scene.shp", 40), // not composite under the custom set
	}
	groups, standalone := SplitComposite(files, []string{"img", ".hdr"})
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	checkNames(t, groups[0], "scene.img", "scene.hdr")
	checkNames(t, standalone, "scene.shp")
}

func TestBuildUnits_GroupSizeSumsMembers(t *testing.T) {
	units := buildUnits([]model.CandidateFile{
		cf("roads.shp", 40),
		cf("roads.dbf", 25),
	}, DefaultCompositeExts)
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if units[0].size != 65 {
		t.Fatalf("size=%d want 65", units[0].size)
	}
}

func TestBuildUnits_StemsWithPathsStayDistinct(t *testing.T) {
	units := buildUnits([]model.CandidateFile{
		cf("north/roads.shp", 40),
		cf("south/roads.shp", 30),
		cf("north/roads.dbf", 5),
	}, DefaultCompositeExts)
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	checkNames(t, units[0].files, "north/roads.shp", "north/roads.dbf")
	checkNames(t, units[1].files, "south/roads.shp")
}
