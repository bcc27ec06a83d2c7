package entity

import "time"

// TaxFilingPeriod tracks one client's filing state for one bi-monthly
// period. Records are created on demand the first time a firm works a
// period; PeriodCode holds the canonical 5-character form.
type TaxFilingPeriod struct {
	ID         string       `json:"id"`
	FirmID     string       `json:"firm_id"`
	ClientID   string       `json:"client_id"`
	PeriodCode string       `json:"period_code"`
	Status     PeriodStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
