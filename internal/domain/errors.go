package domain

import "errors"

var (
	// ErrTableMismatch reports reference tables that disagree with each other.
	ErrTableMismatch = errors.New("reference table mismatch")

	// ErrUnknownCode reports a country or cluster code missing from the reference tables.
	ErrUnknownCode = errors.New("unknown code")

	// ErrMalformedRow reports a table row that cannot be interpreted.
	ErrMalformedRow = errors.New("malformed row")

	// ErrTemplate reports an unusable output template.
	ErrTemplate = errors.New("invalid template")
)
