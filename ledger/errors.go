/*
errors.go - Centralized error types for the settlement engine

PURPOSE:
  All error types in one place. Every reconciliation failure is a
  validation-level error: deterministic, never retried, reported to the
  caller with a readable reason.

ERROR CATEGORIES:
  1. Selection errors - empty selection, unknown or already-settled records
  2. Ownership errors - a record belongs to another distributor
  3. Store errors - concurrent modification, negative balances

USAGE:
  if errors.Is(err, ledger.ErrSaleAlreadySettled) { ... }

  var vErr *ledger.ValidationError
  if errors.As(err, &vErr) {
      log(vErr.Code, vErr.IDs)
  }
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrEmptySaleSelection       = errors.New("no sales selected for settlement")
	ErrSaleAlreadySettled       = errors.New("sale already settled")
	ErrSaleNotFound             = errors.New("sale not found")
	ErrSaleNotForDistributor    = errors.New("sale does not belong to distributor")
	ErrExpenseNotFound          = errors.New("expense not found")
	ErrExpenseAlreadySettled    = errors.New("expense already settled")
	ErrExpenseNotForDistributor = errors.New("expense does not belong to distributor")
	ErrNotAdvancePayment        = errors.New("expense is not a distributor payment")
	ErrDistributorNotFound      = errors.New("distributor not found")
	ErrCustomerNotFound         = errors.New("customer not found")
	ErrSettlementNotFound       = errors.New("settlement not found")
	ErrInvalidAmount            = errors.New("amount must be positive")
	ErrInvalidPeriod            = errors.New("invalid period: end before start")
	ErrInvalidInput             = errors.New("invalid input")

	// ErrConcurrentModification is returned when a customer row changed
	// between read and write (version mismatch).
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrNegativeBalance guards the Balances invariant on write.
	ErrNegativeBalance = errors.New("balance would become negative")
)

// =============================================================================
// VALIDATION ERROR - Carries a machine code and the offending ids
// =============================================================================

const (
	CodeEmptySaleSelection       = "empty_sale_selection"
	CodeSaleAlreadySettled       = "sale_already_settled"
	CodeSaleNotFound             = "sale_not_found"
	CodeSaleNotForDistributor    = "sale_not_for_distributor"
	CodeExpenseNotFound          = "expense_not_found"
	CodeExpenseAlreadySettled    = "expense_already_settled"
	CodeExpenseNotForDistributor = "expense_not_for_distributor"
	CodeNotAdvancePayment        = "not_advance_payment"
	CodeDistributorNotFound      = "distributor_not_found"
	CodeCustomerNotFound         = "customer_not_found"
	CodeInvalidAmount            = "invalid_amount"
	CodeInvalidInput             = "invalid_input"
)

type ValidationError struct {
	Code    string
	Message string
	IDs     []string
	Err     error
}

func NewValidationError(code string, sentinel error, message string, ids ...string) *ValidationError {
	return &ValidationError{Code: code, Message: message, IDs: ids, Err: sentinel}
}

func (e *ValidationError) Error() string {
	if len(e.IDs) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.IDs, ", "))
}

func (e *ValidationError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDistributorNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrSettlementNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return true
	}
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNegativeBalance)
}
