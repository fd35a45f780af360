package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/klture/creditwallet/internal/audit"
	"github.com/klture/creditwallet/internal/models"
	"github.com/klture/creditwallet/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Lookup(ctx context.Context, title string) (*models.Program, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Program), args.Error(1)
}

func (m *MockCatalog) List(ctx context.Context) ([]models.Program, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Program), args.Error(1)
}

// faultyStore injects storage failures around a real store.
type faultyStore struct {
	repository.Store

	mu              sync.Mutex
	failSales       int
	failAfterCommit int
}

func (f *faultyStore) WithAccount(ctx context.Context, accountID string, fn func(tx repository.AccountTx) error) error {
	err := f.Store.WithAccount(ctx, accountID, func(tx repository.AccountTx) error {
		return fn(&faultyTx{AccountTx: tx, store: f})
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil && f.failAfterCommit > 0 {
		f.failAfterCommit--
		return fmt.Errorf("%w: connection reset after commit", repository.ErrStorageUnavailable)
	}
	return err
}

type faultyTx struct {
	repository.AccountTx
	store *faultyStore
}

func (t *faultyTx) InsertSale(ctx context.Context, s *models.SaleRecord) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.failSales > 0 {
		t.store.failSales--
		return fmt.Errorf("%w: connection reset", repository.ErrStorageUnavailable)
	}
	return t.AccountTx.InsertSale(ctx, s)
}

const miniProgram = "Mini Program: Closing Sales"

func testPrograms() []models.Program {
	return append(DefaultPrograms(),
		models.Program{Title: miniProgram, Category: models.CategoryMini, PriceLabel: "$85"},
	)
}

type testEnv struct {
	store       repository.Store
	memory      *repository.MemoryStore
	balances    *BalanceService
	ledger      *LedgerService
	coordinator *PurchaseCoordinator
}

func newTestEnv(t *testing.T, wrap func(repository.Store) repository.Store) *testEnv {
	t.Helper()

	memory := repository.NewMemoryStore()
	var store repository.Store = memory
	if wrap != nil {
		store = wrap(memory)
	}

	logger := zap.NewNop()
	auditLogger := audit.NewLogger(logger)
	balances := NewBalanceService(store, nil, 0, logger)

	return &testEnv{
		store:       store,
		memory:      memory,
		balances:    balances,
		ledger:      NewLedgerService(store, balances, auditLogger, logger),
		coordinator: NewPurchaseCoordinator(store, NewStaticCatalog(testPrograms()...), balances, auditLogger, logger),
	}
}

func (e *testEnv) fund(t *testing.T, accountID string, amount string) {
	t.Helper()
	_, err := e.ledger.TopUp(context.Background(), accountID, decimal.RequireFromString(amount), "seed", "seed:"+accountID+":"+amount, "test")
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	b, err := e.balances.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return b
}

func (e *testEnv) sales(t *testing.T) []models.SaleRecord {
	t.Helper()
	sales, err := e.memory.ListSales(context.Background(), "", 1000)
	require.NoError(t, err)
	return sales
}

func (e *testEnv) spends(t *testing.T, accountID string) []models.LedgerEntry {
	t.Helper()
	entries, err := e.memory.ListEntries(context.Background(), accountID, 0, 1000)
	require.NoError(t, err)
	var out []models.LedgerEntry
	for _, en := range entries {
		if en.Kind == models.EntrySpend {
			out = append(out, en)
		}
	}
	return out
}

func purchase(accountID, title, price, key string) models.PurchaseRequest {
	return models.PurchaseRequest{
		AccountID:      accountID,
		ProgramTitle:   title,
		Price:          decimal.RequireFromString(price),
		IdempotencyKey: key,
	}
}
