package audit

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Event is one audit record. It is written as zap fields, never marshalled.
type Event struct {
	Timestamp time.Time
	EventType string
	Reference string
	AccountID string
	Amount    decimal.Decimal
	Status    string
	Details   map[string]string
}

type Logger struct {
	log *zap.Logger
	now func() time.Time
}

func NewLogger(log *zap.Logger) *Logger {
	return &Logger{log: log.Named("audit"), now: time.Now}
}

func (a *Logger) LogPurchase(idempotencyKey, accountID, program string, amount decimal.Decimal, status string) {
	a.emit(Event{
		EventType: "PURCHASE",
		Reference: idempotencyKey,
		AccountID: accountID,
		Amount:    amount,
		Status:    status,
		Details:   map[string]string{"program": program},
	})
}

func (a *Logger) LogRejected(idempotencyKey, accountID string, reason error) {
	a.emit(Event{
		EventType: "REJECTED",
		Reference: idempotencyKey,
		AccountID: accountID,
		Status:    "REJECTED",
		Details:   map[string]string{"reason": reason.Error()},
	})
}

func (a *Logger) LogCredit(eventType, entryID, accountID string, amount decimal.Decimal, operator string) {
	a.emit(Event{
		EventType: eventType,
		Reference: entryID,
		AccountID: accountID,
		Amount:    amount,
		Status:    "SUCCESS",
		Details:   map[string]string{"operator": operator},
	})
}

func (a *Logger) LogInconsistency(kind, entryID, saleID, accountID string) {
	a.emit(Event{
		EventType: "INCONSISTENT",
		Reference: entryID,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"kind": kind, "sale_id": saleID},
	})
}

func (a *Logger) LogError(reference, accountID string, err error) {
	a.emit(Event{
		EventType: "ERROR",
		Reference: reference,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) emit(event Event) {
	event.Timestamp = a.now().UTC()

	level := zap.InfoLevel
	if event.Status == "FAILED" {
		level = zap.ErrorLevel
	}
	a.log.Log(level, "AUDIT",
		zap.String("event_type", event.EventType),
		zap.String("reference", event.Reference),
		zap.String("account_id", event.AccountID),
		zap.String("amount", event.Amount.StringFixed(2)),
		zap.String("status", event.Status),
		zap.Any("details", event.Details),
		zap.Time("event_time", event.Timestamp),
	)
}
