package port

import "errors"

// Error taxonomy shared across the application boundary. Storage drivers
// translate their native violations to these sentinels; services and
// transport adapters classify with errors.Is.
var (
	// ErrDuplicateSerialCode reports a unique-index violation on a
	// document's (client_id, serial_code) key.
	ErrDuplicateSerialCode = errors.New("duplicate serial code")

	// ErrPeriodLocked blocks every document mutation for a locked or
	// filed client period.
	ErrPeriodLocked = errors.New("filing period is locked")

	// ErrInvalidTransition reports an illegal filing-period status change.
	ErrInvalidTransition = errors.New("invalid period status transition")

	ErrClientNotFound    = errors.New("client not found")
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrAllowanceNotFound = errors.New("allowance not found")
	ErrPeriodNotFound    = errors.New("filing period not found")
)
