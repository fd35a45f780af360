package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/klture/creditwallet/internal/audit"
	"github.com/klture/creditwallet/internal/models"
	"github.com/klture/creditwallet/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// Ledger idempotency keys carry the prefix of the path that wrote them, so a
// client key sent to one path never replays or blocks an entry of another.
const (
	PurchaseKeyPrefix = "purchase:"
	VoucherKeyPrefix  = "voucher:"
	AdminKeyPrefix    = "admin:"
)

// LedgerService is the append primitive for top-ups and adjustments plus the
// read side of the ledger. Purchases go through PurchaseCoordinator.
type LedgerService struct {
	store    repository.Store
	balances *BalanceService
	audit    *audit.Logger
	logger   *zap.Logger
	newID    func() string
}

func NewLedgerService(store repository.Store, balances *BalanceService, auditLogger *audit.Logger, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		store:    store,
		balances: balances,
		audit:    auditLogger,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Append writes entry under key. A key that was already used returns the
// original entry id together with ErrDuplicateRequest and writes nothing.
func (s *LedgerService) Append(ctx context.Context, entry models.LedgerEntry, key string) (string, error) {
	if err := validateEntry(&entry, key); err != nil {
		return "", err
	}
	entry.EntryID = s.newID()

	var (
		entryID string
		dup     bool
	)
	err := s.store.WithAccount(ctx, entry.AccountID, func(tx repository.AccountTx) error {
		var err error
		entryID, dup, err = appendEntry(ctx, tx, &entry, key)
		return err
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		// Lost a race with another request holding the same key.
		entryID, err = s.lookupKey(ctx, entry.AccountID, key)
		dup = err == nil
	}
	if err != nil {
		s.logger.Error("ledger append failed",
			zap.String("account_id", entry.AccountID), zap.String("kind", string(entry.Kind)), zap.Error(err))
		return "", err
	}
	if dup {
		return entryID, ErrDuplicateRequest
	}

	s.balances.Invalidate(ctx, entry.AccountID)
	s.logger.Info("ledger entry appended",
		zap.String("entry_id", entryID),
		zap.String("account_id", entry.AccountID),
		zap.String("kind", string(entry.Kind)),
		zap.String("amount", entry.Amount.StringFixed(2)))

	return entryID, nil
}

func (s *LedgerService) lookupKey(ctx context.Context, accountID, key string) (string, error) {
	var entryID string
	err := s.store.WithAccount(ctx, accountID, func(tx repository.AccountTx) error {
		existing, err := tx.EntryByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing.AccountID != accountID {
			return invalid("idempotency_key", "already used by another account")
		}
		entryID = existing.EntryID
		return nil
	})
	return entryID, err
}

// appendEntry inserts e inside an account transaction unless key is already
// recorded, in which case it reports the existing entry id.
func appendEntry(ctx context.Context, tx repository.AccountTx, e *models.LedgerEntry, key string) (string, bool, error) {
	existing, err := tx.EntryByKey(ctx, key)
	if err == nil {
		if existing.AccountID != e.AccountID {
			return "", false, invalid("idempotency_key", "already used by another account")
		}
		return existing.EntryID, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", false, err
	}

	e.IdempotencyKey = key
	if err := tx.InsertEntry(ctx, e); err != nil {
		return "", false, err
	}
	return e.EntryID, false, nil
}

func validateEntry(e *models.LedgerEntry, key string) error {
	if e.AccountID == "" {
		return invalid("account_id", "must not be empty")
	}
	if key == "" {
		return invalid("idempotency_key", "must not be empty")
	}
	if !e.Kind.Valid() {
		return invalid("kind", "unknown entry kind %q", e.Kind)
	}
	if err := e.CheckSign(); err != nil {
		return invalid("amount", "%s", err)
	}
	if e.Amount.Exponent() < -2 {
		return invalid("amount", "at most two decimal places")
	}
	return nil
}

// TopUp credits an account. operator is recorded in the audit trail.
func (s *LedgerService) TopUp(ctx context.Context, accountID string, amount decimal.Decimal, note, key, operator string) (string, error) {
	if !amount.IsPositive() {
		return "", invalid("amount", "top-up must be positive")
	}
	if note == "" {
		note = "Top-up"
	}

	entryID, err := s.Append(ctx, models.LedgerEntry{
		AccountID: accountID,
		Kind:      models.EntryTopUp,
		Amount:    amount,
		Note:      note,
	}, key)
	if err == nil {
		s.audit.LogCredit("TOPUP", entryID, accountID, amount, operator)
	}
	return entryID, err
}

// Adjust appends a correcting entry. Either sign is allowed; the note is mandatory.
func (s *LedgerService) Adjust(ctx context.Context, accountID string, amount decimal.Decimal, note, key, operator string) (string, error) {
	if amount.IsZero() {
		return "", invalid("amount", "adjustment must not be zero")
	}
	if note == "" {
		return "", invalid("note", "adjustment needs a reason")
	}

	entryID, err := s.Append(ctx, models.LedgerEntry{
		AccountID: accountID,
		Kind:      models.EntryAdjustment,
		Amount:    amount,
		Note:      note,
	}, key)
	if err == nil {
		s.audit.LogCredit("ADJUSTMENT", entryID, accountID, amount, operator)
	}
	return entryID, err
}

// History returns one page of entries oldest first. cursor is the NextCursor of
// the previous page, or empty for the first page.
func (s *LedgerService) History(ctx context.Context, accountID, cursor string, limit int) (*models.HistoryPage, error) {
	if accountID == "" {
		return nil, invalid("account_id", "must not be empty")
	}

	var after int64
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil || n < 0 {
			return nil, invalid("cursor", "malformed cursor")
		}
		after = n
	}

	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	entries, err := s.store.ListEntries(ctx, accountID, after, limit+1)
	if err != nil {
		return nil, err
	}

	page := &models.HistoryPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		page.NextCursor = strconv.FormatInt(page.Entries[limit-1].Seq, 10)
	}
	return page, nil
}

func (s *LedgerService) ListRegistrations(ctx context.Context, accountID string) ([]models.Registration, error) {
	if accountID == "" {
		return nil, invalid("account_id", "must not be empty")
	}
	return s.store.ListRegistrations(ctx, accountID)
}

// ListSales reports recent sales. An empty category lists every category.
func (s *LedgerService) ListSales(ctx context.Context, category string, limit int) ([]models.SaleRecord, error) {
	var c models.Category
	if category != "" {
		c = models.ParseCategory(category)
	}
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.store.ListSales(ctx, c, limit)
}
