package extent

import (
	"time"

	"github.com/geoharvest/extentd/internal/model"
)

const dateLayout = "2006-01-02"

// MergeTemporal combines the records' date ranges into one [start,end] pair.
// Records without a parsable two-element tbox are ignored; the result is nil
// when no record contributes. Calendar-date granularity only, no timezones:
// YYYY-MM-DD strings are validated by parsing and compared lexically, which
// orders them chronologically.
func MergeTemporal(records []model.ExtentRecord) []string {
	var start, end string
	for _, rec := range records {
		if len(rec.TBox) != 2 {
			continue
		}
		s, e := rec.TBox[0], rec.TBox[1]
		if !validDate(s) || !validDate(e) {
			continue
		}
		if e < s {
			s, e = e, s
		}
		if start == "" || s < start {
			start = s
		}
		if end == "" || e > end {
			end = e
		}
	}
	if start == "" {
		return nil
	}
	return []string{start, end}
}

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}
