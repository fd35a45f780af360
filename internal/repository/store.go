package repository

import (
	"context"
	"errors"

	"github.com/klture/creditwallet/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateKey       = errors.New("idempotency key already used")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotFound           = errors.New("not found")
)

// Store is the append-only persistence for ledger entries and the records
// written alongside them. There is no update or delete.
type Store interface {
	// WithAccount runs fn while holding the account's serialization lock.
	// Everything fn writes through tx becomes visible together when fn
	// returns nil, and not at all otherwise.
	WithAccount(ctx context.Context, accountID string, fn func(tx AccountTx) error) error

	SumBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	// ListEntries returns up to limit entries with seq > afterSeq, oldest first.
	ListEntries(ctx context.Context, accountID string, afterSeq int64, limit int) ([]models.LedgerEntry, error)
	ListRegistrations(ctx context.Context, accountID string) ([]models.Registration, error)
	// ListSales returns the newest sales first. An empty category matches all.
	ListSales(ctx context.Context, category models.Category, limit int) ([]models.SaleRecord, error)
	// FindMismatches pairs spend entries with sale records and returns every pair that does not line up.
	FindMismatches(ctx context.Context) ([]Mismatch, error)
}

// AccountTx is the view of the store available while an account is locked.
type AccountTx interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
	EntryByKey(ctx context.Context, key string) (*models.LedgerEntry, error)
	// InsertEntry assigns Seq and CreatedAt. A reused idempotency key yields ErrDuplicateKey.
	InsertEntry(ctx context.Context, e *models.LedgerEntry) error
	InsertSale(ctx context.Context, s *models.SaleRecord) error
	InsertRegistration(ctx context.Context, r *models.Registration) error
	FindRegistration(ctx context.Context, programTitle string) (*models.Registration, error)
	PurchaseByKey(ctx context.Context, key string) (*models.PurchaseRecord, error)
	InsertPurchase(ctx context.Context, p *models.PurchaseRecord) error
}

// MismatchKind names what is wrong with a spend/sale pair
type MismatchKind string

const (
	SaleWithoutEntry MismatchKind = "sale_without_entry"
	EntryWithoutSale MismatchKind = "entry_without_sale"
	AmountMismatch   MismatchKind = "amount_mismatch"
	DuplicateSale    MismatchKind = "duplicate_sale"
)

type Mismatch struct {
	Kind        MismatchKind
	AccountID   string
	EntryID     string
	SaleID      string
	EntryAmount decimal.NullDecimal
	SaleAmount  decimal.NullDecimal
}

func classifyMismatch(entryID, saleID string, entryAmount, saleAmount decimal.NullDecimal, saleCount int) (MismatchKind, bool) {
	switch {
	case saleCount > 1:
		return DuplicateSale, true
	case entryID == "":
		return SaleWithoutEntry, true
	case saleID == "":
		// Zero spends never carry a sale.
		if entryAmount.Valid && entryAmount.Decimal.IsZero() {
			return "", false
		}
		return EntryWithoutSale, true
	case !saleAmount.Decimal.Equal(entryAmount.Decimal.Neg()):
		return AmountMismatch, true
	}
	return "", false
}
