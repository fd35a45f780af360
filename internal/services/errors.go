package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klture/creditwallet/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicateRequest marks an idempotency key replay. It is a success: the
	// caller gets the result of the first request.
	ErrDuplicateRequest = errors.New("duplicate request")
	// ErrStorageUnavailable is transient. Retry with the same idempotency key.
	ErrStorageUnavailable = repository.ErrStorageUnavailable
	// ErrInconsistent means ledger and sales disagree and need manual reconciliation.
	ErrInconsistent = errors.New("ledger inconsistent")
)

// ValidationError rejects a malformed request before anything reaches the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError carries the exact amounts so the UI can ask for the shortfall.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, available %s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

// Shortfall is the top-up needed before the purchase can succeed.
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}

// InconsistencyError lists every spend/sale pair that failed the audit.
type InconsistencyError struct {
	Findings []repository.Mismatch
}

func (e *InconsistencyError) Error() string {
	kinds := make([]string, 0, len(e.Findings))
	for _, f := range e.Findings {
		kinds = append(kinds, fmt.Sprintf("%s(entry=%s sale=%s)", f.Kind, f.EntryID, f.SaleID))
	}
	return fmt.Sprintf("%s: %d finding(s): %s", ErrInconsistent, len(e.Findings), strings.Join(kinds, ", "))
}

func (e *InconsistencyError) Unwrap() error { return ErrInconsistent }

// IsRetryable reports whether the same request may succeed if sent again unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

var (
	ErrVoucherNotFound = errors.New("invalid or expired voucher")
	ErrRateLimited     = errors.New("too many voucher requests")
)
