package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseRequest drives one run of the purchase coordinator. It is never stored as-is.
type PurchaseRequest struct {
	AccountID      string          `json:"account_id" validate:"required,email,max=254"`
	ProgramTitle   string          `json:"program_title" validate:"max=200"`
	Price          decimal.Decimal `json:"price" validate:"decimalgte0"`
	IdempotencyKey string          `json:"idempotency_key" validate:"required,max=128"`
	PreferredDate  string          `json:"preferred_date" validate:"max=100"`
	Message        string          `json:"message" validate:"max=2000"`
}

// PurchaseState is a step of the purchase state machine
type PurchaseState string

const (
	StateReceived       PurchaseState = "Received"
	StateBalanceChecked PurchaseState = "BalanceChecked"
	StateCommitted      PurchaseState = "Committed"
	StateRejected       PurchaseState = "Rejected"
)

// Terminal reports whether no further transition is allowed.
func (s PurchaseState) Terminal() bool {
	return s == StateCommitted || s == StateRejected
}

// PurchaseResult is what submitPurchase hands back to the caller. Reason is set
// only for Rejected results and is one of the service error types.
type PurchaseResult struct {
	Status         PurchaseState
	Balance        decimal.Decimal
	Reason         error
	Replayed       bool
	EntryID        string
	SaleID         string
	RegistrationID string
}

// PurchaseRecord maps an idempotency key to the writes it produced.
type PurchaseRecord struct {
	IdempotencyKey string          `db:"idempotency_key"`
	AccountID      string          `db:"account_id"`
	Fingerprint    string          `db:"fingerprint"`
	EntryID        string          `db:"entry_id"`
	SaleID         string          `db:"sale_id"`
	RegistrationID string          `db:"registration_id"`
	Price          decimal.Decimal `db:"price"`
	CreatedAt      time.Time       `db:"created_at"`
}

// Voucher is a pending top-up waiting for a sales operator to confirm payment
type Voucher struct {
	Code      string          `json:"code"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}
