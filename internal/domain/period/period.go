// Package period models the bi-monthly VAT filing window used by Taiwan's
// tax authority. Periods are identified by a Republic-of-China calendar year
// and an odd start month; the canonical textual form is the 5-character
// "yyyMM" string that appears in declaration files and period records.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidFormat indicates a canonical period string that cannot be parsed.
var ErrInvalidFormat = errors.New("invalid period format")

// Period is a bi-monthly filing window. StartMonth is always odd; the window
// covers StartMonth and StartMonth+1 of ROCYear.
type Period struct {
	ROCYear    int `json:"roc_year"`
	StartMonth int `json:"start_month"`
}

// FromCanonical parses a canonical period string such as "11305". The year is
// every rune except the last two, the month is the last two. Month values are
// normalized down to the odd start of their bi-monthly bucket, so "11306"
// parses to the same period as "11305".
func FromCanonical(s string) (Period, error) {
	if len(s) < 5 {
		return Period{}, fmt.Errorf("%w: %q is shorter than 5 characters", ErrInvalidFormat, s)
	}
	yearPart, monthPart := s[:len(s)-2], s[len(s)-2:]
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return Period{}, fmt.Errorf("%w: year %q is not numeric", ErrInvalidFormat, yearPart)
	}
	month, err := strconv.Atoi(monthPart)
	if err != nil {
		return Period{}, fmt.Errorf("%w: month %q is not numeric", ErrInvalidFormat, monthPart)
	}
	if year <= 0 {
		return Period{}, fmt.Errorf("%w: year %d out of range", ErrInvalidFormat, year)
	}
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d out of range", ErrInvalidFormat, month)
	}
	return Period{ROCYear: year, StartMonth: normalizeMonth(month)}, nil
}

// At returns the period containing the given time.
func At(t time.Time) Period {
	return Period{
		ROCYear:    t.Year() - 1911,
		StartMonth: normalizeMonth(int(t.Month())),
	}
}

// Now returns the period containing the current date.
func Now() Period {
	return At(time.Now())
}

// ForYear returns the six bi-monthly periods of a ROC year in month order.
func ForYear(rocYear int) [6]Period {
	var periods [6]Period
	for i := 0; i < 6; i++ {
		periods[i] = Period{ROCYear: rocYear, StartMonth: i*2 + 1}
	}
	return periods
}

// Canonical renders the 5-character "yyyMM" form: the ROC year zero-padded to
// three digits followed by the start month zero-padded to two.
func (p Period) Canonical() string {
	return fmt.Sprintf("%03d%02d", p.ROCYear, p.StartMonth)
}

// EndMonth returns the second month of the window.
func (p Period) EndMonth() int {
	return p.StartMonth + 1
}

// Label renders a human-readable form such as "113年05-06月" for logs and
// operator output.
func (p Period) Label() string {
	return fmt.Sprintf("%d年%02d-%02d月", p.ROCYear, p.StartMonth, p.EndMonth())
}

// Valid reports whether the period satisfies its invariants: a positive ROC
// year and an odd start month between 1 and 11.
func (p Period) Valid() error {
	if p.ROCYear <= 0 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidFormat, p.ROCYear)
	}
	if p.StartMonth < 1 || p.StartMonth > 11 || p.StartMonth%2 == 0 {
		return fmt.Errorf("%w: start month %d is not an odd month in 1..11", ErrInvalidFormat, p.StartMonth)
	}
	return nil
}

func normalizeMonth(m int) int {
	if m%2 == 0 {
		return m - 1
	}
	return m
}
