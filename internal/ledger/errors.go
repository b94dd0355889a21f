package ledger

import "errors"

// Error kinds surfaced by the ledger. Callers discriminate with errors.Is;
// none of them are retried internally and every mutating operation is
// all-or-nothing.
var (
	// ErrValidation marks malformed or out-of-range input. Rejected before any
	// state change.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance marks a SELL exceeding the tracked holdings.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidState marks an operation attempted against an entity whose
	// current lifecycle state forbids it.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotFound marks a reference to a nonexistent asset, exchange,
	// transaction, alert or trade.
	ErrNotFound = errors.New("not found")
)
