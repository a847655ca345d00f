/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All sentinel errors in one place. The calculator itself is total and
  never fails; errors here come from the store boundary and the
  workflow layer wrapping it.

USAGE:
  Callers match with errors.Is:

    if errors.Is(err, billing.ErrDonorNotFound) { ... }
*/
package billing

import "errors"

var (
	// ErrDonorNotFound is returned when a referenced donor does not
	// exist or has been soft-deleted.
	ErrDonorNotFound = errors.New("donor not found")

	// ErrUserNotFound is returned when a referenced collector or admin
	// account does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicatePayment is returned when a payment with the same id
	// is appended twice. The ledger is append-only and id-unique.
	ErrDuplicatePayment = errors.New("duplicate payment id")

	// ErrInvalidCredentials is returned by the login check.
	ErrInvalidCredentials = errors.New("incorrect credentials")

	// ErrPermissionDenied is returned when a role is not allowed to
	// perform a billing operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidInput is returned for malformed domain input (bad
	// month key, non-positive pledge, unknown payment method).
	ErrInvalidInput = errors.New("invalid input")
)

// IsClientError reports whether the error is due to invalid client
// input rather than a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrDuplicatePayment)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDonorNotFound) || errors.Is(err, ErrUserNotFound)
}
