package ingest

// convert.go turns raw CSV cells into holding fields.
//
// Broker exports are messy: thousands separators, percent signs, blank
// cells, ragged rows. None of that may abort a run, so every numeric cell
// that cannot be parsed becomes 0.

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// ParseNumber applies the numeric cell policy: remove every ',', trim,
// strip one trailing '%', trim again and parse as float64. Full-width digits
// and signs are narrowed first. Unparseable input yields 0, as do NaN and
// infinities, which a JSON document cannot carry.
func ParseNumber(s string) float64 {
	s = width.Narrow.String(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// headerIndex maps header names to their column position. A repeated header
// keeps its last position.
type headerIndex map[string]int

func makeHeaderIndex(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		idx[h] = i
	}
	return idx
}

// cell returns the value under column, or "" when the column is absent or
// the row is too short to reach it.
func (h headerIndex) cell(row []string, column string) string {
	i, ok := h[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// rawRow mirrors a row as header -> value for the spot-check sample. Cells
// missing from a short row are null; cells beyond the header are kept under
// "_extra".
func rawRow(header []string, row []string) map[string]any {
	out := make(map[string]any, len(header))
	for i, h := range header {
		if i < len(row) {
			out[h] = row[i]
		} else {
			out[h] = nil
		}
	}
	if len(row) > len(header) {
		extra := make([]string, len(row)-len(header))
		copy(extra, row[len(header):])
		out["_extra"] = extra
	}
	return out
}
