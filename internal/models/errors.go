package models

import "errors"

// Error kinds. Callers wrap these with context using fmt.Errorf("%w: ...")
// and inspect them with errors.Is.
var (
	// ErrValidation marks malformed input; nothing was written.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a request that collides with current state.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks a missing or foreign-owned record.
	ErrNotFound = errors.New("not found")
	// ErrConsistency marks a write that did not touch the expected rows.
	ErrConsistency = errors.New("consistency check failed")
	// ErrGateway marks a payment-gateway rejection or transport failure.
	ErrGateway = errors.New("payment gateway error")
	// ErrForbidden marks an actor acting outside their role or company.
	ErrForbidden = errors.New("forbidden")
)
