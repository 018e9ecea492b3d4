package selection

import (
	"path"
	"strings"

	"github.com/geoharvest/extentd/internal/model"
)

// DefaultCompositeExts is the shapefile sidecar set: the component files
// that jointly constitute one vector dataset and must be fetched together.
var DefaultCompositeExts = []string{".shp", ".shx", ".dbf", ".prj", ".cpg", ".sbn", ".sbx"}

// unit is one atomic selection item: a composite group or a single file.
type unit struct {
	files []model.CandidateFile
	size  int64
}

// buildUnits groups files that share a base name and carry a composite
// extension into one unit, in order of first appearance; everything else
// becomes a standalone unit in input order.
func buildUnits(files []model.CandidateFile, exts []string) []unit {
	extSet := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		extSet[e] = struct{}{}
	}

	var units []unit
	groupIdx := map[string]int{}
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f.Name))
		if _, composite := extSet[ext]; !composite {
			units = append(units, unit{files: []model.CandidateFile{f}, size: f.Size})
			continue
		}
		stem := f.Name[:len(f.Name)-len(ext)]
		if i, ok := groupIdx[stem]; ok {
			units[i].files = append(units[i].files, f)
			units[i].size += f.Size
			continue
		}
		groupIdx[stem] = len(units)
		units = append(units, unit{files: []model.CandidateFile{f}, size: f.Size})
	}
	return units
}

// SplitComposite partitions files into atomic multi-file groups and
// standalone files. A group needs at least two members; a composite
// extension on its own degrades to a standalone file.
func SplitComposite(files []model.CandidateFile, exts []string) (groups [][]model.CandidateFile, standalone []model.CandidateFile) {
	if exts == nil {
		exts = DefaultCompositeExts
	}
	for _, u := range buildUnits(files, exts) {
		if len(u.files) >= 2 {
			groups = append(groups, u.files)
			continue
		}
		standalone = append(standalone, u.files[0])
	}
	return groups, standalone
}
