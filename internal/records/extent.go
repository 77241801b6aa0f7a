package records

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// areaKeywords groups the header words that mark an area column of the land
// register summary. A header matching any word of any group is summed.
var areaKeywords = [][]string{
	{"dry", "punjai", "punsey"},
	{"wet", "nanjai", "nanjei"},
	{"inam", "manyam"},
	{"dotted"},
	{"unassessed", "anadheenam", "tharisu"},
	{"poramboke", "government", "govt"},
}

// IsAreaColumn reports whether header names an area column counted in the
// total extent. Headers containing "total" never count.
func IsAreaColumn(header string) bool {
	h := strings.ToLower(header)
	if strings.Contains(h, "total") {
		return false
	}
	for _, group := range areaKeywords {
		for _, kw := range group {
			if strings.Contains(h, kw) {
				return true
			}
		}
	}
	return false
}

// ParseArea reads an area value such as "2.5 Ac" or "1,200.75". Every
// character other than digits and the decimal point is dropped; anything
// still unparseable counts as zero.
func ParseArea(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

// TotalExtent sums every area column of cols and formats the result with
// two decimals.
func TotalExtent(cols types.Columns) string {
	var sum float64
	cols.Range(func(name, value string) bool {
		if IsAreaColumn(name) {
			sum += ParseArea(value)
		}
		return true
	})
	return fmt.Sprintf("%.2f", sum)
}
