package entity

import (
	"strconv"
	"time"
)

// InvoiceRange is a declared book of paper invoice numbers assigned to a
// client for one period: a two-letter track (字軌) plus an inclusive numeric
// range. The filing engine reads ranges to disclose unused numbers; it never
// writes them.
type InvoiceRange struct {
	ID          string      `json:"id"`
	ClientID    string      `json:"client_id"`
	PeriodCode  string      `json:"period_code"`
	InvoiceType InvoiceType `json:"invoice_type"`
	Track       string      `json:"track"`
	RangeFrom   string      `json:"range_from"`
	RangeTo     string      `json:"range_to"`
	UsedThrough string      `json:"used_through"` // last consumed number, empty when none used
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// FirstUnused returns the first number of the range not yet consumed, with
// the range's zero padding preserved. ok is false when the range is fully
// used or malformed.
func (r *InvoiceRange) FirstUnused() (string, bool) {
	to, err := strconv.Atoi(r.RangeTo)
	if err != nil {
		return "", false
	}
	if r.UsedThrough == "" {
		if _, err := strconv.Atoi(r.RangeFrom); err != nil {
			return "", false
		}
		return r.RangeFrom, true
	}
	used, err := strconv.Atoi(r.UsedThrough)
	if err != nil {
		return "", false
	}
	next := used + 1
	if next > to {
		return "", false
	}
	return padNumber(next, len(r.RangeFrom)), true
}

// UnusedCount returns how many numbers of the range remain unconsumed.
func (r *InvoiceRange) UnusedCount() int {
	from, err := strconv.Atoi(r.RangeFrom)
	if err != nil {
		return 0
	}
	to, err := strconv.Atoi(r.RangeTo)
	if err != nil || to < from {
		return 0
	}
	if r.UsedThrough == "" {
		return to - from + 1
	}
	used, err := strconv.Atoi(r.UsedThrough)
	if err != nil {
		return 0
	}
	if used >= to {
		return 0
	}
	if used < from {
		return to - from + 1
	}
	return to - used
}

func padNumber(n, width int) string {
	s := strconv.Itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}
