package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/klture/creditwallet/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewPostgresStore wraps db. A positive lockTimeout bounds how long a request
// waits for another request on the same account.
func NewPostgresStore(db *sql.DB, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

func (s *PostgresStore) WithAccount(ctx context.Context, accountID string, fn func(tx AccountTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", Classify(err))
	}
	defer tx.Rollback()

	if s.lockTimeout > 0 {
		_, err = tx.ExecContext(ctx, `SELECT set_config('lock_timeout', $1, true)`,
			fmt.Sprintf("%dms", s.lockTimeout.Milliseconds()))
		if err != nil {
			return fmt.Errorf("set lock timeout: %w", Classify(err))
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_accounts (account_id) VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING`, accountID)
	if err != nil {
		return fmt.Errorf("ensure account: %w", Classify(err))
	}

	var locked string
	err = tx.QueryRowContext(ctx, `
		SELECT account_id FROM wallet_accounts WHERE account_id = $1 FOR UPDATE`, accountID).Scan(&locked)
	if err != nil {
		return fmt.Errorf("lock account: %w", Classify(err))
	}

	err = fn(&pgAccountTx{tx: tx, accountID: accountID})
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit tx: %w", Classify(err))
	}

	return nil
}

func (s *PostgresStore) SumBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = $1`, accountID).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum balance: %w", Classify(err))
	}
	return balance, nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, accountID string, afterSeq int64, limit int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, entry_id, account_id, kind, amount, COALESCE(reference, ''), note, created_at
		FROM ledger_entries
		WHERE account_id = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3`, accountID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", Classify(err))
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.Seq, &e.EntryID, &e.AccountID, &e.Kind, &e.Amount, &e.Reference, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", Classify(err))
	}

	return entries, nil
}

func (s *PostgresStore) ListRegistrations(ctx context.Context, accountID string) ([]models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT registration_id, account_id, program_title, category, preferred_date, message, created_at
		FROM registrations
		WHERE account_id = $1
		ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", Classify(err))
	}
	defer rows.Close()

	regs := []models.Registration{}
	for rows.Next() {
		var r models.Registration
		if err := rows.Scan(&r.RegistrationID, &r.AccountID, &r.ProgramTitle, &r.Category, &r.PreferredDate, &r.Message, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", Classify(err))
	}

	return regs, nil
}

func (s *PostgresStore) ListSales(ctx context.Context, category models.Category, limit int) ([]models.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, account_id, entry_id, program_title, category, amount, note, created_at
		FROM sale_records
		WHERE ($1 = '' OR category = $1)
		ORDER BY created_at DESC
		LIMIT $2`, string(category), limit)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", Classify(err))
	}
	defer rows.Close()

	sales := []models.SaleRecord{}
	for rows.Next() {
		var sr models.SaleRecord
		if err := rows.Scan(&sr.SaleID, &sr.AccountID, &sr.EntryID, &sr.ProgramTitle, &sr.Category, &sr.Amount, &sr.Note, &sr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", Classify(err))
	}

	return sales, nil
}

func (s *PostgresStore) FindMismatches(ctx context.Context) ([]Mismatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, sale_id, account_id, entry_amount, sale_amount, sale_count
		FROM (
			SELECT COALESCE(e.entry_id, '') AS entry_id, COALESCE(sr.sale_id, '') AS sale_id,
			       COALESCE(e.account_id, sr.account_id) AS account_id,
			       e.amount AS entry_amount, sr.amount AS sale_amount,
			       CASE WHEN e.entry_id IS NULL OR sr.sale_id IS NULL THEN 0
			            ELSE COUNT(*) OVER (PARTITION BY e.entry_id) END AS sale_count
			FROM (SELECT entry_id, account_id, amount FROM ledger_entries WHERE kind = 'spend') e
			FULL OUTER JOIN sale_records sr ON sr.entry_id = e.entry_id
		) pairs
		WHERE entry_id = '' OR sale_id = '' OR sale_amount <> -entry_amount OR sale_count > 1`)
	if err != nil {
		return nil, fmt.Errorf("find mismatches: %w", Classify(err))
	}
	defer rows.Close()

	var out []Mismatch
	for rows.Next() {
		var (
			m         Mismatch
			saleCount int
		)
		if err := rows.Scan(&m.EntryID, &m.SaleID, &m.AccountID, &m.EntryAmount, &m.SaleAmount, &saleCount); err != nil {
			return nil, fmt.Errorf("scan mismatch: %w", err)
		}
		kind, bad := classifyMismatch(m.EntryID, m.SaleID, m.EntryAmount, m.SaleAmount, saleCount)
		if !bad {
			continue
		}
		m.Kind = kind
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mismatches: %w", Classify(err))
	}

	return out, nil
}

type pgAccountTx struct {
	tx        *sql.Tx
	accountID string
}

func (t *pgAccountTx) Balance(ctx context.Context) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = $1`, t.accountID).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("locked balance: %w", Classify(err))
	}
	return balance, nil
}

func (t *pgAccountTx) EntryByKey(ctx context.Context, key string) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := t.tx.QueryRowContext(ctx, `
		SELECT seq, entry_id, account_id, kind, amount, COALESCE(reference, ''), note, idempotency_key, created_at
		FROM ledger_entries
		WHERE idempotency_key = $1`, key).
		Scan(&e.Seq, &e.EntryID, &e.AccountID, &e.Kind, &e.Amount, &e.Reference, &e.Note, &e.IdempotencyKey, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("entry by key: %w", Classify(err))
	}
	return &e, nil
}

func (t *pgAccountTx) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	var reference sql.NullString
	if e.Reference != "" {
		reference = sql.NullString{String: e.Reference, Valid: true}
	}

	// created_at stays strictly increasing per account even if the clock steps back.
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (entry_id, account_id, kind, amount, reference, note, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, GREATEST(clock_timestamp(),
			(SELECT MAX(created_at) + interval '1 microsecond' FROM ledger_entries WHERE account_id = $2)))
		RETURNING seq, created_at`,
		e.EntryID, e.AccountID, string(e.Kind), e.Amount, reference, e.Note, e.IdempotencyKey).
		Scan(&e.Seq, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert entry: %w", Classify(err))
	}
	return nil
}

func (t *pgAccountTx) InsertSale(ctx context.Context, s *models.SaleRecord) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO sale_records (sale_id, account_id, entry_id, program_title, category, amount, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, clock_timestamp())
		RETURNING created_at`,
		s.SaleID, s.AccountID, s.EntryID, s.ProgramTitle, string(s.Category), s.Amount, s.Note).
		Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sale: %w", Classify(err))
	}
	return nil
}

func (t *pgAccountTx) InsertRegistration(ctx context.Context, r *models.Registration) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO registrations (registration_id, account_id, program_title, category, preferred_date, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, clock_timestamp())
		RETURNING created_at`,
		r.RegistrationID, r.AccountID, r.ProgramTitle, string(r.Category), r.PreferredDate, r.Message).
		Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert registration: %w", Classify(err))
	}
	return nil
}

func (t *pgAccountTx) FindRegistration(ctx context.Context, programTitle string) (*models.Registration, error) {
	var r models.Registration
	err := t.tx.QueryRowContext(ctx, `
		SELECT registration_id, account_id, program_title, category, preferred_date, message, created_at
		FROM registrations
		WHERE account_id = $1 AND program_title = $2
		ORDER BY created_at ASC
		LIMIT 1`, t.accountID, programTitle).
		Scan(&r.RegistrationID, &r.AccountID, &r.ProgramTitle, &r.Category, &r.PreferredDate, &r.Message, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", Classify(err))
	}
	return &r, nil
}

func (t *pgAccountTx) PurchaseByKey(ctx context.Context, key string) (*models.PurchaseRecord, error) {
	var p models.PurchaseRecord
	err := t.tx.QueryRowContext(ctx, `
		SELECT idempotency_key, account_id, fingerprint, COALESCE(entry_id, ''), COALESCE(sale_id, ''),
		       registration_id, price, created_at
		FROM purchases
		WHERE idempotency_key = $1`, key).
		Scan(&p.IdempotencyKey, &p.AccountID, &p.Fingerprint, &p.EntryID, &p.SaleID, &p.RegistrationID, &p.Price, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("purchase by key: %w", Classify(err))
	}
	return &p, nil
}

func (t *pgAccountTx) InsertPurchase(ctx context.Context, p *models.PurchaseRecord) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO purchases (idempotency_key, account_id, fingerprint, entry_id, sale_id, registration_id, price, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, clock_timestamp())
		RETURNING created_at`,
		p.IdempotencyKey, p.AccountID, p.Fingerprint, p.EntryID, p.SaleID, p.RegistrationID, p.Price).
		Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", Classify(err))
	}
	return nil
}

// Classify folds driver errors into the store's sentinels, keeping the original in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505": // unique_violation
			return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
		case pqErr.Code.Class() == "08", // connection_exception
			pqErr.Code == "40001", // serialization_failure
			pqErr.Code == "40P01", // deadlock_detected
			pqErr.Code == "55P03", // lock_not_available
			pqErr.Code == "53300", // too_many_connections
			pqErr.Code == "57P01", // admin_shutdown
			pqErr.Code == "57P03": // cannot_connect_now
			return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return err
}
