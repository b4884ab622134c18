package retainer

import "errors"

var (
	// ErrBlockNotFound indicates the retainer block doesn't exist.
	ErrBlockNotFound = errors.New("retainer block not found")
	// ErrInvalidInput indicates invalid retainer block input.
	ErrInvalidInput = errors.New("invalid retainer block input")
	// ErrDebitContention indicates the optimistic debit lost the version
	// race on every retry.
	ErrDebitContention = errors.New("retainer debit contention")
)
