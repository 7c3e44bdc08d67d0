package reconcile

import "errors"

var (
	// ErrInvalidTransactionStatus is returned alongside the unsaved
	// placeholder transaction when a callback carries an unrecognized or
	// missing status code. The caller decides whether to treat it as fatal;
	// the gateway still gets its acknowledgment either way.
	ErrInvalidTransactionStatus = errors.New("reconcile: invalid transaction status")

	// ErrMissingTransactionNumber is returned when a callback has no
	// transaction number; without it there is no idempotency key.
	ErrMissingTransactionNumber = errors.New("reconcile: missing transaction number")

	// ErrNoPayment is returned when the order aggregate was loaded without
	// its payment record.
	ErrNoPayment = errors.New("reconcile: order has no payment")
)
