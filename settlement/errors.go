/*
errors.go - Centralized error types for the settlement engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As; the API layer uses the
  classification helpers to pick HTTP status codes.

ERROR CATEGORIES:
  1. Ledger errors - missing/conflicting day records
  2. Collaborator errors - missing sales/entries/rates
  3. Cascade errors - partial recalculation failures

SEE ALSO:
  - ledger.go: Uses ErrNoPriorRecord, ErrOpeningConflict
  - cascade.go: Wraps store failures in CascadeError
*/
package settlement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoPriorRecord is returned when a ledger day cannot synthesize a
	// predecessor. Fatal only for the very first date in history, where an
	// opening balance must be established manually first.
	ErrNoPriorRecord = errors.New("no prior ledger record")

	// ErrOpeningConflict is returned when establishing an opening balance
	// while a ledger record already exists on or before that date.
	ErrOpeningConflict = errors.New("opening balance conflicts with existing ledger records")

	// ErrRecordNotFound is returned when reading a ledger day that has
	// never been written.
	ErrRecordNotFound = errors.New("ledger record not found")

	// ErrRateNotFound is returned when no rate row matches a
	// (channel, payment method, condition) triple exactly. Fatal for the
	// sale being priced - no sale may be priced with a guessed rate.
	ErrRateNotFound = errors.New("rate not found")

	// ErrSaleNotFound / ErrEntryNotFound are returned by the stores.
	ErrSaleNotFound  = errors.New("sale not found")
	ErrEntryNotFound = errors.New("entry not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RateLookupError reports exactly which rate triple was missing, so the UI
// can say "no rate configured for storefront/bank_transfer" instead of a
// generic failure.
type RateLookupError struct {
	Channel       Channel
	PaymentMethod PaymentMethod
	Condition     string
}

func (e *RateLookupError) Error() string {
	return fmt.Sprintf("no rate configured for %s/%s (condition %q)",
		e.Channel, e.PaymentMethod, e.Condition)
}

func (e *RateLookupError) Unwrap() error { return ErrRateNotFound }

// CascadeError reports the first day a recalculation run failed on. All days
// strictly before Date remain valid; Date and later days are stale and must
// be retried via RecalculateFrom at or before Date.
type CascadeError struct {
	Date Date
	Err  error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade failed at %s: %v", e.Date, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrRateNotFound) ||
		errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoPriorRecord) ||
		errors.Is(err, ErrOpeningConflict)
}
