package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/klture/creditwallet/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectAccountLock(mock sqlmock.Sqlmock, accountID string) {
	mock.ExpectBegin()
	mock.ExpectExec("SELECT set_config\\('lock_timeout', \\$1, true\\)").
		WithArgs("2000ms").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO wallet_accounts \\(account_id\\) VALUES \\(\\$1\\) ON CONFLICT \\(account_id\\) DO NOTHING").
		WithArgs(accountID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT account_id FROM wallet_accounts WHERE account_id = \\$1 FOR UPDATE").
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}).AddRow(accountID))
}

func TestPostgresStore_WithAccount(t *testing.T) {
	ctx := context.Background()
	accountID := "ada@example.com"

	t.Run("locks account and commits entry", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		store := NewPostgresStore(db, 2*time.Second)

		created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		expectAccountLock(mock, accountID)
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM ledger_entries WHERE account_id = \\$1").
			WithArgs(accountID).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("100.00"))
		mock.ExpectQuery("INSERT INTO ledger_entries").
			WithArgs("e1", accountID, "spend", decimal.NewFromInt(-85), "s1", "Payment for Mini", "purchase:k1").
			WillReturnRows(sqlmock.NewRows([]string{"seq", "created_at"}).AddRow(7, created))
		mock.ExpectCommit()

		entry := &models.LedgerEntry{
			EntryID: "e1", AccountID: accountID, Kind: models.EntrySpend,
			Amount: decimal.NewFromInt(-85), Reference: "s1", Note: "Payment for Mini", IdempotencyKey: "purchase:k1",
		}
		err = store.WithAccount(ctx, accountID, func(tx AccountTx) error {
			balance, err := tx.Balance(ctx)
			require.NoError(t, err)
			assert.True(t, balance.Equal(decimal.NewFromInt(100)))
			return tx.InsertEntry(ctx, entry)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(7), entry.Seq)
		assert.Equal(t, created, entry.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("callback error rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		store := NewPostgresStore(db, 2*time.Second)

		expectAccountLock(mock, accountID)
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = store.WithAccount(ctx, accountID, func(tx AccountTx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation is a duplicate key", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		store := NewPostgresStore(db, 2*time.Second)

		expectAccountLock(mock, accountID)
		mock.ExpectQuery("INSERT INTO purchases").
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
		mock.ExpectRollback()

		err = store.WithAccount(ctx, accountID, func(tx AccountTx) error {
			return tx.InsertPurchase(ctx, &models.PurchaseRecord{IdempotencyKey: "k1", AccountID: accountID})
		})
		assert.ErrorIs(t, err, ErrDuplicateKey)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock timeout is retryable", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		store := NewPostgresStore(db, 2*time.Second)

		mock.ExpectBegin()
		mock.ExpectExec("SELECT set_config").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO wallet_accounts").WithArgs(accountID).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT account_id FROM wallet_accounts").
			WithArgs(accountID).
			WillReturnError(&pq.Error{Code: "55P03", Message: "canceling statement due to lock timeout"})
		mock.ExpectRollback()

		err = store.WithAccount(ctx, accountID, func(tx AccountTx) error {
			t.Fatal("fn must not run without the lock")
			return nil
		})
		assert.ErrorIs(t, err, ErrStorageUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Lookups(t *testing.T) {
	ctx := context.Background()
	accountID := "ada@example.com"

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db, 0)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wallet_accounts").WithArgs(accountID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT account_id FROM wallet_accounts").
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}).AddRow(accountID))
	mock.ExpectQuery("SELECT (.+) FROM purchases WHERE idempotency_key = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"idempotency_key"}))
	mock.ExpectQuery("SELECT (.+) FROM purchases WHERE idempotency_key = \\$1").
		WithArgs("k1").
		WillReturnRows(sqlmock.NewRows([]string{
			"idempotency_key", "account_id", "fingerprint", "entry_id", "sale_id", "registration_id", "price", "created_at",
		}).AddRow("k1", accountID, "fp", "e1", "s1", "r1", "85.00", time.Now()))
	mock.ExpectCommit()

	err = store.WithAccount(ctx, accountID, func(tx AccountTx) error {
		_, err := tx.PurchaseByKey(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		p, err := tx.PurchaseByKey(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "e1", p.EntryID)
		assert.True(t, p.Price.Equal(decimal.NewFromInt(85)))
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db, 0)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM ledger_entries WHERE account_id = \\$1 AND seq > \\$2 ORDER BY seq ASC LIMIT \\$3").
		WithArgs("ada@example.com", int64(3), 2).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "entry_id", "account_id", "kind", "amount", "reference", "note", "created_at"}).
			AddRow(4, "e4", "ada@example.com", "topup", "100.00", "", "Top-up", now).
			AddRow(5, "e5", "ada@example.com", "spend", "-85.00", "s5", "Payment for Mini", now.Add(time.Microsecond)))

	entries, err := store.ListEntries(context.Background(), "ada@example.com", 3, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.EntrySpend, entries[1].Kind)
	assert.True(t, entries[1].Amount.Equal(decimal.NewFromInt(-85)))
	assert.Equal(t, "s5", entries[1].Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindMismatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db, 0)

	mock.ExpectQuery("FULL OUTER JOIN sale_records").
		WillReturnRows(sqlmock.NewRows([]string{"entry_id", "sale_id", "account_id", "entry_amount", "sale_amount", "sale_count"}).
			AddRow("e1", "", "ada@example.com", "-25.00", nil, 0).
			AddRow("", "s2", "bob@example.com", nil, "15.00", 0).
			AddRow("e3", "s3", "cat@example.com", "-35.00", "30.00", 1))

	findings, err := store.FindMismatches(context.Background())
	require.NoError(t, err)
	require.Len(t, findings, 3)
	assert.Equal(t, EntryWithoutSale, findings[0].Kind)
	assert.Equal(t, SaleWithoutEntry, findings[1].Kind)
	assert.Equal(t, AmountMismatch, findings[2].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		duplicate   bool
		unavailable bool
	}{
		{name: "unique violation", err: &pq.Error{Code: "23505"}, duplicate: true},
		{name: "serialization failure", err: &pq.Error{Code: "40001"}, unavailable: true},
		{name: "connection failure", err: &pq.Error{Code: "08006"}, unavailable: true},
		{name: "bad conn", err: driver.ErrBadConn, unavailable: true},
		{name: "check violation", err: &pq.Error{Code: "23514"}},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.duplicate, errors.Is(got, ErrDuplicateKey))
			assert.Equal(t, tt.unavailable, errors.Is(got, ErrStorageUnavailable))
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.NoError(t, Classify(nil))
}
