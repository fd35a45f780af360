package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/klture/creditwallet/internal/audit"
	"github.com/klture/creditwallet/internal/middleware"
	"github.com/klture/creditwallet/internal/models"
	"github.com/klture/creditwallet/internal/repository"
	"github.com/klture/creditwallet/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret = "handler-secret"
	ada        = "ada@example.com"
	operator   = "sales@example.com"
)

type apiEnv struct {
	router chi.Router
	store  *repository.MemoryStore
	ledger *services.LedgerService
	redis  redismock.ClientMock
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	logger := zap.NewNop()
	auditLogger := audit.NewLogger(logger)
	store := repository.NewMemoryStore()
	catalog := services.NewStaticCatalog(services.DefaultPrograms()...)

	balances := services.NewBalanceService(store, nil, 0, logger)
	ledger := services.NewLedgerService(store, balances, auditLogger, logger)
	coordinator := services.NewPurchaseCoordinator(store, catalog, balances, auditLogger, logger)
	reconciler := services.NewReconciliationService(store, auditLogger, logger)

	redisClient, redisMock := redismock.NewClientMock()
	topups := services.NewTopUpService(redisClient, ledger, services.VoucherConfig{
		MaxAmount:    decimal.NewFromInt(500),
		MaxPerWindow: 3,
	}, logger)

	h := Handlers{
		Wallet: NewWalletHandler(ledger, balances, coordinator, catalog, logger),
		TopUp:  NewTopUpHandler(topups, logger),
		Admin:  NewAdminHandler(ledger, balances, reconciler, logger),
	}
	auth := middleware.NewAuthenticator(testSecret)

	return &apiEnv{router: h.Routes(auth.Middleware), store: store, ledger: ledger, redis: redisMock}
}

func bearer(t *testing.T, email, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": email, "role": role})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func (e *apiEnv) do(t *testing.T, method, path, auth string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if auth != "" {
		r.Header.Set("Authorization", auth)
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func (e *apiEnv) fund(t *testing.T, account string, amount int64) {
	t.Helper()
	_, err := e.ledger.TopUp(context.Background(), account, decimal.NewFromInt(amount), "", "seed:"+account, operator)
	require.NoError(t, err)
}

func TestWalletHandler_SubmitPurchase(t *testing.T) {
	const course = "Online: TikTok Ads Course"

	t.Run("committed purchase returns 201 and replays return 200", func(t *testing.T) {
		env := newAPIEnv(t)
		env.fund(t, ada, 100)
		auth := bearer(t, ada, "")
		headers := map[string]string{IdempotencyHeader: "order-1"}
		body := map[string]any{"programTitle": course, "price": "25"}

		w := env.do(t, http.MethodPost, "/wallet/purchases", auth, body, headers)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var first PurchaseResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
		assert.Equal(t, "Committed", first.Status)
		assert.Equal(t, "75.00", first.Balance)
		assert.NotEmpty(t, first.SaleID)
		assert.Equal(t, "order-1", w.Header().Get(IdempotencyHeader))

		w = env.do(t, http.MethodPost, "/wallet/purchases", auth, body, headers)
		require.Equal(t, http.StatusOK, w.Code)

		var replay PurchaseResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &replay))
		assert.True(t, replay.Replayed)
		assert.Equal(t, first.EntryID, replay.EntryID)
		assert.Equal(t, "75.00", replay.Balance)
	})

	t.Run("insufficient credit returns shortfall", func(t *testing.T) {
		env := newAPIEnv(t)
		env.fund(t, ada, 10)

		w := env.do(t, http.MethodPost, "/wallet/purchases", bearer(t, ada, ""),
			map[string]any{"programTitle": course, "price": "25"}, nil)
		require.Equal(t, http.StatusPaymentRequired, w.Code)

		var resp InsufficientFundsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "25.00", resp.Required)
		assert.Equal(t, "10.00", resp.Available)
		assert.Equal(t, "15.00", resp.Shortfall)
		assert.NotEmpty(t, w.Header().Get(IdempotencyHeader))
	})

	t.Run("stale price is rejected", func(t *testing.T) {
		env := newAPIEnv(t)
		env.fund(t, ada, 100)

		w := env.do(t, http.MethodPost, "/wallet/purchases", bearer(t, ada, ""),
			map[string]any{"programTitle": course, "price": "20"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "price")
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		env := newAPIEnv(t)

		w := env.do(t, http.MethodPost, "/wallet/purchases", bearer(t, ada, ""),
			map[string]any{"programTitle": course, "price": "25", "amount": "1"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("requires a token", func(t *testing.T) {
		env := newAPIEnv(t)

		w := env.do(t, http.MethodPost, "/wallet/purchases", "", map[string]any{"programTitle": course}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("free program enrolls without a charge", func(t *testing.T) {
		env := newAPIEnv(t)

		w := env.do(t, http.MethodPost, "/wallet/purchases", bearer(t, ada, ""),
			map[string]any{"programTitle": "", "price": "0", "preferredDate": "Saturdays"}, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp PurchaseResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp.EntryID)
		assert.NotEmpty(t, resp.RegistrationID)
		assert.Equal(t, "0.00", resp.Balance)
	})
}

func TestWalletHandler_BalanceAndHistory(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()
	for i, amount := range []int64{10, 20, 30} {
		_, err := env.ledger.TopUp(ctx, ada, decimal.NewFromInt(amount), "", "t"+string(rune('a'+i)), operator)
		require.NoError(t, err)
	}
	auth := bearer(t, ada, "")

	w := env.do(t, http.MethodGet, "/wallet/balance", auth, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balance BalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, BalanceResponse{AccountID: ada, Balance: "60.00"}, balance)

	w = env.do(t, http.MethodGet, "/wallet/history?limit=2", auth, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "10.00", page.Entries[0].Amount)
	require.NotEmpty(t, page.NextCursor)

	w = env.do(t, http.MethodGet, "/wallet/history?limit=2&cursor="+page.NextCursor, auth, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = HistoryResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "30.00", page.Entries[0].Amount)
	assert.Empty(t, page.NextCursor)

	w = env.do(t, http.MethodGet, "/wallet/history?limit=ten", auth, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/wallet/history?cursor=abc", auth, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWalletHandler_ListPrograms(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodGet, "/programs", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var programs []ProgramResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &programs))
	require.NotEmpty(t, programs)
	for _, p := range programs {
		if p.Title == "Online: All 3 Courses Bundle" {
			assert.Equal(t, "BUNDLE", p.Category)
			assert.Equal(t, "35.00", p.Price)
		}
	}
}

func TestAdminHandler_Credits(t *testing.T) {
	env := newAPIEnv(t)
	admin := bearer(t, operator, middleware.RoleAdmin)

	t.Run("customers cannot top up", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/admin/topups", bearer(t, ada, ""),
			map[string]any{"accountId": ada, "amount": "50"}, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("top-up is idempotent", func(t *testing.T) {
		headers := map[string]string{IdempotencyHeader: "cash-1"}
		body := map[string]any{"accountId": ada, "amount": "50"}

		w := env.do(t, http.MethodPost, "/admin/topups", admin, body, headers)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var first CreditResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
		assert.Equal(t, "50.00", first.Balance)

		w = env.do(t, http.MethodPost, "/admin/topups", admin, body, headers)
		require.Equal(t, http.StatusOK, w.Code)
		var replay CreditResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &replay))
		assert.True(t, replay.Replayed)
		assert.Equal(t, first.EntryID, replay.EntryID)
		assert.Equal(t, "50.00", replay.Balance)
	})

	t.Run("negative top-up is invalid", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/admin/topups", admin,
			map[string]any{"accountId": ada, "amount": "-5"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("adjustment needs a note", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/admin/adjustments", admin,
			map[string]any{"accountId": ada, "amount": "-5"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "note")

		w = env.do(t, http.MethodPost, "/admin/adjustments", admin,
			map[string]any{"accountId": ada, "amount": "-5", "note": "Refund reversal"}, nil)
		require.Equal(t, http.StatusCreated, w.Code)
		var resp CreditResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "45.00", resp.Balance)
	})

	t.Run("admin keys cannot occupy a purchase key", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/admin/topups", admin,
			map[string]any{"accountId": ada, "amount": "50"},
			map[string]string{IdempotencyHeader: "purchase:order-9"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "purchase:order-9", w.Header().Get(IdempotencyHeader))

		w = env.do(t, http.MethodPost, "/wallet/purchases", bearer(t, ada, ""),
			map[string]any{"programTitle": "Online: TikTok Ads Course", "price": "25"},
			map[string]string{IdempotencyHeader: "order-9"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var purchase PurchaseResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &purchase))
		assert.Equal(t, "Committed", purchase.Status)
		assert.False(t, purchase.Replayed)
		assert.Equal(t, "70.00", purchase.Balance)
	})
}

func TestAdminHandler_SalesAndReconcile(t *testing.T) {
	env := newAPIEnv(t)
	env.fund(t, ada, 100)
	admin := bearer(t, operator, middleware.RoleAdmin)

	w := env.do(t, http.MethodPost, "/wallet/purchases", bearer(t, ada, ""),
		map[string]any{"programTitle": "Online: CapCut: Zero to Pro", "price": "15"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/admin/sales?category=online", admin, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sales []SaleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sales))
	require.Len(t, sales, 1)
	assert.Equal(t, "15.00", sales[0].Amount)
	assert.Equal(t, "Paid via Credit Wallet", sales[0].Note)

	w = env.do(t, http.MethodGet, "/admin/sales?category=BUNDLE", admin, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sales))
	assert.Empty(t, sales)

	w = env.do(t, http.MethodGet, "/admin/reconcile", admin, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report ReconcileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "clean", report.Status)
	assert.Empty(t, report.Findings)

	// A spend with no sale is what a half-applied purchase would leave behind.
	_, err := env.ledger.Append(context.Background(), models.LedgerEntry{
		AccountID: ada,
		Kind:      models.EntrySpend,
		Amount:    decimal.NewFromInt(-5),
		Note:      "Payment for orphan",
	}, "orphan-spend")
	require.NoError(t, err)

	w = env.do(t, http.MethodGet, "/admin/reconcile", admin, nil, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "inconsistent", report.Status)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, string(repository.EntryWithoutSale), report.Findings[0].Kind)
	assert.Equal(t, "-5.00", report.Findings[0].EntryAmount)
}

func TestTopUpHandler(t *testing.T) {
	t.Run("redeem credits the voucher owner", func(t *testing.T) {
		env := newAPIEnv(t)
		voucher := models.Voucher{Code: "ABC123", AccountID: ada, Amount: decimal.NewFromInt(40)}
		data, err := json.Marshal(voucher)
		require.NoError(t, err)

		env.redis.ExpectGet("wallet:voucher:ABC123").SetVal(string(data))
		env.redis.ExpectDel("wallet:voucher:ABC123").SetVal(1)

		w := env.do(t, http.MethodPost, "/admin/vouchers/redeem", bearer(t, operator, middleware.RoleAdmin),
			map[string]any{"code": "ABC123"}, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp VoucherResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "40.00", resp.Amount)
		assert.NotEmpty(t, resp.EntryID)

		balance, err := env.store.SumBalance(context.Background(), ada)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(40)))
		assert.NoError(t, env.redis.ExpectationsWereMet())
	})

	t.Run("unknown voucher is 404", func(t *testing.T) {
		env := newAPIEnv(t)
		env.redis.ExpectGet("wallet:voucher:NOPE").RedisNil()

		w := env.do(t, http.MethodPost, "/admin/vouchers/redeem", bearer(t, operator, middleware.RoleAdmin),
			map[string]any{"code": "NOPE"}, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("issue rejects zero amounts before touching redis", func(t *testing.T) {
		env := newAPIEnv(t)

		w := env.do(t, http.MethodPost, "/wallet/vouchers", bearer(t, ada, ""), map[string]any{"amount": "0"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, env.redis.ExpectationsWereMet())
	})

	t.Run("issue is rate limited", func(t *testing.T) {
		env := newAPIEnv(t)
		env.redis.ExpectIncr("wallet:voucher:rate:" + ada).SetVal(4)

		w := env.do(t, http.MethodPost, "/wallet/vouchers", bearer(t, ada, ""), map[string]any{"amount": "20"}, nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}
