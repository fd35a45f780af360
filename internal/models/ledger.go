package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind classifies a ledger entry
type EntryKind string

const (
	EntryTopUp      EntryKind = "topup"
	EntrySpend      EntryKind = "spend"
	EntryAdjustment EntryKind = "adjustment"
)

func (k EntryKind) Valid() bool {
	switch k {
	case EntryTopUp, EntrySpend, EntryAdjustment:
		return true
	}
	return false
}

// LedgerEntry is an immutable balance-affecting event. Positive amounts add credit.
type LedgerEntry struct {
	Seq            int64           `json:"-" db:"seq"`
	EntryID        string          `json:"entry_id" db:"entry_id"`
	AccountID      string          `json:"account_id" db:"account_id"`
	Kind           EntryKind       `json:"kind" db:"kind"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Reference      string          `json:"reference,omitempty" db:"reference"`
	Note           string          `json:"note" db:"note"`
	IdempotencyKey string          `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// CheckSign enforces the per-kind sign rules: spend <= 0, topup >= 0.
func (e *LedgerEntry) CheckSign() error {
	switch e.Kind {
	case EntrySpend:
		if e.Amount.IsPositive() {
			return fmt.Errorf("spend entry amount must not be positive, got %s", e.Amount)
		}
	case EntryTopUp:
		if e.Amount.IsNegative() {
			return fmt.Errorf("topup entry amount must not be negative, got %s", e.Amount)
		}
	case EntryAdjustment:
	default:
		return fmt.Errorf("unknown entry kind %q", e.Kind)
	}
	return nil
}

// SaleRecord is the reporting view of a paid enrollment. It always mirrors a spend entry.
type SaleRecord struct {
	SaleID       string          `json:"sale_id" db:"sale_id"`
	AccountID    string          `json:"account_id" db:"account_id"`
	EntryID      string          `json:"entry_id" db:"entry_id"`
	ProgramTitle string          `json:"program_title" db:"program_title"`
	Category     Category        `json:"category" db:"category"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Note         string          `json:"note" db:"note"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Registration records an account's enrollment in a program
type Registration struct {
	RegistrationID string    `json:"registration_id" db:"registration_id"`
	AccountID      string    `json:"account_id" db:"account_id"`
	ProgramTitle   string    `json:"program_title" db:"program_title"`
	Category       Category  `json:"category" db:"category"`
	PreferredDate  string    `json:"preferred_date,omitempty" db:"preferred_date"`
	Message        string    `json:"message,omitempty" db:"message"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// HistoryPage is one page of an account's ledger, oldest first.
// NextCursor is empty when there are no further entries.
type HistoryPage struct {
	Entries    []LedgerEntry `json:"entries"`
	NextCursor string        `json:"next_cursor,omitempty"`
}
