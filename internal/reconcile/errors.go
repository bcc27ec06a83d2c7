package reconcile

import "errors"

var (
	// ErrUnsupportedFileFormat indicates a payload that is neither a
	// readable workbook nor a recognizable delimited feed, or a sheet whose
	// columns match neither the invoice nor the allowance shape.
	ErrUnsupportedFileFormat = errors.New("unsupported file format")

	// ErrInvalidRow indicates a data row missing or corrupting a required
	// field. Row-scoped: the surrounding import continues.
	ErrInvalidRow = errors.New("invalid row format")
)
