package rate

import "errors"

var (
	// ErrInvalidInput indicates invalid rate record input.
	ErrInvalidInput = errors.New("invalid rate record input")
	// ErrRecordNotFound indicates the rate record doesn't exist.
	ErrRecordNotFound = errors.New("rate record not found")
)
