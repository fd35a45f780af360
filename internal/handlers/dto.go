package handlers

import (
	"time"

	"github.com/klture/creditwallet/internal/models"
	"github.com/shopspring/decimal"
)

type BalanceResponse struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
}

type EntryResponse struct {
	EntryID   string    `json:"entryId"`
	Kind      string    `json:"kind"`
	Amount    string    `json:"amount"`
	Reference string    `json:"reference,omitempty"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

type HistoryResponse struct {
	Entries    []EntryResponse `json:"entries"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

type PurchaseRequest struct {
	ProgramTitle  string          `json:"programTitle" validate:"max=200"`
	Price         decimal.Decimal `json:"price" validate:"decimalgte0"`
	PreferredDate string          `json:"preferredDate" validate:"max=100"`
	Message       string          `json:"message" validate:"max=2000"`
}

type PurchaseResponse struct {
	Status         string `json:"status"`
	Balance        string `json:"balance"`
	Replayed       bool   `json:"replayed"`
	EntryID        string `json:"entryId,omitempty"`
	SaleID         string `json:"saleId,omitempty"`
	RegistrationID string `json:"registrationId,omitempty"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type ProgramResponse struct {
	Title      string `json:"title"`
	Category   string `json:"category"`
	PriceLabel string `json:"priceLabel"`
	Price      string `json:"price"`
}

type RegistrationResponse struct {
	RegistrationID string    `json:"registrationId"`
	ProgramTitle   string    `json:"programTitle"`
	Category       string    `json:"category"`
	PreferredDate  string    `json:"preferredDate,omitempty"`
	Message        string    `json:"message,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type VoucherRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"decimalgt0"`
}

type VoucherResponse struct {
	Code      string    `json:"code"`
	AccountID string    `json:"accountId"`
	Amount    string    `json:"amount"`
	ExpiresAt time.Time `json:"expiresAt"`
	QRImage   string    `json:"qrImage,omitempty"`
	EntryID   string    `json:"entryId,omitempty"`
}

type RedeemRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type CreditRequest struct {
	AccountID string          `json:"accountId" validate:"required,email,max=254"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note" validate:"max=500"`
}

type CreditResponse struct {
	EntryID   string `json:"entryId"`
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
	Replayed  bool   `json:"replayed"`
}

type SaleResponse struct {
	SaleID       string    `json:"saleId"`
	AccountID    string    `json:"accountId"`
	EntryID      string    `json:"entryId"`
	ProgramTitle string    `json:"programTitle"`
	Category     string    `json:"category"`
	Amount       string    `json:"amount"`
	Note         string    `json:"note"`
	CreatedAt    time.Time `json:"createdAt"`
}

type FindingResponse struct {
	Kind        string `json:"kind"`
	AccountID   string `json:"accountId"`
	EntryID     string `json:"entryId,omitempty"`
	SaleID      string `json:"saleId,omitempty"`
	EntryAmount string `json:"entryAmount,omitempty"`
	SaleAmount  string `json:"saleAmount,omitempty"`
}

type ReconcileResponse struct {
	Status   string            `json:"status"`
	Findings []FindingResponse `json:"findings"`
}

func toEntryResponse(e models.LedgerEntry) EntryResponse {
	return EntryResponse{
		EntryID:   e.EntryID,
		Kind:      string(e.Kind),
		Amount:    e.Amount.StringFixed(2),
		Reference: e.Reference,
		Note:      e.Note,
		CreatedAt: e.CreatedAt,
	}
}

func toSaleResponse(s models.SaleRecord) SaleResponse {
	return SaleResponse{
		SaleID:       s.SaleID,
		AccountID:    s.AccountID,
		EntryID:      s.EntryID,
		ProgramTitle: s.ProgramTitle,
		Category:     string(s.Category),
		Amount:       s.Amount.StringFixed(2),
		Note:         s.Note,
		CreatedAt:    s.CreatedAt,
	}
}

func nullAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
