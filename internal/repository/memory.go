package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/klture/creditwallet/internal/models"
	"github.com/shopspring/decimal"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps everything in process. Used by tests and local runs without Postgres.
type MemoryStore struct {
	mu            sync.RWMutex
	locks         map[string]chan struct{}
	entries       []models.LedgerEntry
	entryKeys     map[string]int
	sales         []models.SaleRecord
	registrations []models.Registration
	purchases     map[string]models.PurchaseRecord
	lastAt        map[string]time.Time
	seq           int64

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:     make(map[string]chan struct{}),
		entryKeys: make(map[string]int),
		purchases: make(map[string]models.PurchaseRecord),
		lastAt:    make(map[string]time.Time),
		now:       time.Now,
	}
}

func (s *MemoryStore) accountLock(accountID string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[accountID]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[accountID] = l
	}
	return l
}

func (s *MemoryStore) WithAccount(ctx context.Context, accountID string, fn func(tx AccountTx) error) error {
	lock := s.accountLock(accountID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock }()

	tx := &memAccountTx{store: s, accountID: accountID}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.publish(tx)
}

func (s *MemoryStore) publish(tx *memAccountTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Keys are global; another account may have claimed one since tx staged it.
	for _, e := range tx.entries {
		if _, dup := s.entryKeys[e.IdempotencyKey]; dup {
			return ErrDuplicateKey
		}
	}
	for _, p := range tx.purchases {
		if _, dup := s.purchases[p.IdempotencyKey]; dup {
			return ErrDuplicateKey
		}
	}

	for _, e := range tx.entries {
		s.seq++
		e.Seq = s.seq
		s.entryKeys[e.IdempotencyKey] = len(s.entries)
		s.entries = append(s.entries, e)
		s.lastAt[e.AccountID] = e.CreatedAt
	}
	s.sales = append(s.sales, tx.sales...)
	s.registrations = append(s.registrations, tx.registrations...)
	for _, p := range tx.purchases {
		s.purchases[p.IdempotencyKey] = p
	}

	return nil
}

func (s *MemoryStore) SumBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	for _, e := range s.entries {
		if e.AccountID == accountID {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (s *MemoryStore) ListEntries(ctx context.Context, accountID string, afterSeq int64, limit int) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.LedgerEntry{}
	for _, e := range s.entries {
		if e.AccountID != accountID || e.Seq <= afterSeq {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRegistrations(ctx context.Context, accountID string) ([]models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Registration{}
	for i := len(s.registrations) - 1; i >= 0; i-- {
		if s.registrations[i].AccountID == accountID {
			out = append(out, s.registrations[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) ListSales(ctx context.Context, category models.Category, limit int) ([]models.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.SaleRecord{}
	for i := len(s.sales) - 1; i >= 0 && len(out) < limit; i-- {
		if category == "" || s.sales[i].Category == category {
			out = append(out, s.sales[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) FindMismatches(ctx context.Context) ([]Mismatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	salesByEntry := make(map[string]models.SaleRecord, len(s.sales))
	saleCount := make(map[string]int, len(s.sales))
	for _, sr := range s.sales {
		saleCount[sr.EntryID]++
		if _, seen := salesByEntry[sr.EntryID]; !seen {
			salesByEntry[sr.EntryID] = sr
		}
	}

	var out []Mismatch

	matched := make(map[string]bool)
	for _, e := range s.entries {
		if e.Kind != models.EntrySpend {
			continue
		}
		m := Mismatch{AccountID: e.AccountID, EntryID: e.EntryID, EntryAmount: decimal.NewNullDecimal(e.Amount)}
		if sr, ok := salesByEntry[e.EntryID]; ok {
			matched[e.EntryID] = true
			m.SaleID = sr.SaleID
			m.SaleAmount = decimal.NewNullDecimal(sr.Amount)
		}
		if kind, bad := classifyMismatch(m.EntryID, m.SaleID, m.EntryAmount, m.SaleAmount, saleCount[e.EntryID]); bad {
			m.Kind = kind
			out = append(out, m)
		}
	}
	for entryID, sr := range salesByEntry {
		if !matched[entryID] {
			out = append(out, Mismatch{Kind: SaleWithoutEntry, AccountID: sr.AccountID, SaleID: sr.SaleID,
				SaleAmount: decimal.NewNullDecimal(sr.Amount)})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

// memAccountTx stages writes until WithAccount publishes them.
type memAccountTx struct {
	store         *MemoryStore
	accountID     string
	entries       []models.LedgerEntry
	sales         []models.SaleRecord
	registrations []models.Registration
	purchases     []models.PurchaseRecord
}

func (t *memAccountTx) Balance(ctx context.Context) (decimal.Decimal, error) {
	sum, err := t.store.SumBalance(ctx, t.accountID)
	if err != nil {
		return decimal.Zero, err
	}
	for _, e := range t.entries {
		sum = sum.Add(e.Amount)
	}
	return sum, nil
}

func (t *memAccountTx) EntryByKey(ctx context.Context, key string) (*models.LedgerEntry, error) {
	for i := range t.entries {
		if t.entries[i].IdempotencyKey == key {
			e := t.entries[i]
			return &e, nil
		}
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	idx, ok := t.store.entryKeys[key]
	if !ok {
		return nil, ErrNotFound
	}
	e := t.store.entries[idx]
	return &e, nil
}

func (t *memAccountTx) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	if _, err := t.EntryByKey(ctx, e.IdempotencyKey); err == nil {
		return ErrDuplicateKey
	}

	t.store.mu.RLock()
	last := t.store.lastAt[t.accountID]
	t.store.mu.RUnlock()
	if n := len(t.entries); n > 0 {
		last = t.entries[n-1].CreatedAt
	}

	created := t.store.now().UTC()
	if !created.After(last) {
		created = last.Add(time.Microsecond)
	}
	e.CreatedAt = created

	t.entries = append(t.entries, *e)
	return nil
}

func (t *memAccountTx) InsertSale(ctx context.Context, s *models.SaleRecord) error {
	s.CreatedAt = t.store.now().UTC()
	t.sales = append(t.sales, *s)
	return nil
}

func (t *memAccountTx) InsertRegistration(ctx context.Context, r *models.Registration) error {
	r.CreatedAt = t.store.now().UTC()
	t.registrations = append(t.registrations, *r)
	return nil
}

func (t *memAccountTx) FindRegistration(ctx context.Context, programTitle string) (*models.Registration, error) {
	for _, r := range t.registrations {
		if r.ProgramTitle == programTitle {
			return &r, nil
		}
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	for _, r := range t.store.registrations {
		if r.AccountID == t.accountID && r.ProgramTitle == programTitle {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memAccountTx) PurchaseByKey(ctx context.Context, key string) (*models.PurchaseRecord, error) {
	for _, p := range t.purchases {
		if p.IdempotencyKey == key {
			return &p, nil
		}
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	p, ok := t.store.purchases[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memAccountTx) InsertPurchase(ctx context.Context, p *models.PurchaseRecord) error {
	if _, err := t.PurchaseByKey(ctx, p.IdempotencyKey); err == nil {
		return ErrDuplicateKey
	}
	p.CreatedAt = t.store.now().UTC()
	t.purchases = append(t.purchases, *p)
	return nil
}
