package report

import (
	"strconv"
	"strings"
)

// fixedRow is a fixed-width declaration row prefilled with spaces. Positions
// are 1-based and inclusive, matching the column numbering of the filing
// authority's media-file layout.
type fixedRow struct {
	data []byte
}

func newFixedRow(width int) *fixedRow {
	d := make([]byte, width)
	for i := range d {
		d[i] = ' '
	}
	return &fixedRow{data: d}
}

// put places s at positions [start, end], left-aligned and truncated to fit.
func (r *fixedRow) put(start, end int, s string) {
	width := end - start + 1
	if len(s) > width {
		s = s[:width]
	}
	copy(r.data[start-1:], s)
}

func (r *fixedRow) String() string {
	return string(r.data)
}

// padRight left-aligns s in a field of n characters, space filled.
func padRight(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

// zeroPad right-aligns a non-negative amount in n digits. Negative values
// clamp to zero; the media format has no signed columns.
func zeroPad(v int64, n int) string {
	if v < 0 {
		v = 0
	}
	s := strconv.FormatInt(v, 10)
	if len(s) >= n {
		return s[len(s)-n:]
	}
	return strings.Repeat("0", n-len(s)) + s
}

// zeroPadInt is zeroPad for sequence numbers and counts.
func zeroPadInt(v, n int) string {
	return zeroPad(int64(v), n)
}
