package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/klture/creditwallet/internal/middleware"
	"github.com/klture/creditwallet/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AdminHandler struct {
	ledger     *services.LedgerService
	balances   *services.BalanceService
	reconciler *services.ReconciliationService
	validator  *services.ValidationHelper
	logger     *zap.Logger
}

func NewAdminHandler(ledger *services.LedgerService, balances *services.BalanceService, reconciler *services.ReconciliationService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		ledger:     ledger,
		balances:   balances,
		reconciler: reconciler,
		validator:  services.NewValidationHelper(),
		logger:     logger,
	}
}

type creditFunc func(ctx context.Context, accountID string, amount decimal.Decimal, note, key, operator string) (string, error)

// TopUp credits an account directly
// @Summary Top up an account
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Retry token; generated when absent"
// @Param request body CreditRequest true "Top-up"
// @Success 201 {object} CreditResponse
// @Success 200 {object} CreditResponse "Replay of an earlier request"
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /admin/topups [post]
func (h *AdminHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	h.credit(w, r, h.ledger.TopUp)
}

// Adjust appends a correcting entry of either sign
// @Summary Adjust an account
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Retry token; generated when absent"
// @Param request body CreditRequest true "Adjustment; note is required"
// @Success 201 {object} CreditResponse
// @Success 200 {object} CreditResponse "Replay of an earlier request"
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /admin/adjustments [post]
func (h *AdminHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	h.credit(w, r, h.ledger.Adjust)
}

func (h *AdminHandler) credit(w http.ResponseWriter, r *http.Request, apply creditFunc) {
	var req CreditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	key := services.AdminKeyPrefix + idempotencyKey(w, r)
	operator := middleware.AccountID(r.Context())
	entryID, err := apply(r.Context(), req.AccountID, req.Amount, req.Note, key, operator)
	replayed := errors.Is(err, services.ErrDuplicateRequest)
	if err != nil && !replayed {
		writeServiceError(w, err)
		return
	}

	balance, err := h.balances.Recompute(r.Context(), req.AccountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, CreditResponse{
		EntryID:   entryID,
		AccountID: req.AccountID,
		Balance:   balance.StringFixed(2),
		Replayed:  replayed,
	})
}

// ListSales reports recent paid enrollments
// @Summary List sales
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param category query string false "MINI, OTHER, ONLINE, BUNDLE"
// @Param limit query int false "Max rows (default 200)"
// @Success 200 {array} SaleResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /admin/sales [get]
func (h *AdminHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			services.SendErrorResponse(w, "limit must be a number", http.StatusBadRequest, nil)
			return
		}
		limit = n
	}

	sales, err := h.ledger.ListSales(r.Context(), r.URL.Query().Get("category"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]SaleResponse, 0, len(sales))
	for _, s := range sales {
		resp = append(resp, toSaleResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reconcile audits spend entries against sale records
// @Summary Reconcile ledger and sales
// @Description 409 lists every mismatch; nothing is repaired automatically
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ReconcileResponse
// @Failure 409 {object} ReconcileResponse
// @Router /admin/reconcile [get]
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	err := h.reconciler.Audit(r.Context())

	var inconsistent *services.InconsistencyError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ReconcileResponse{Status: "clean", Findings: []FindingResponse{}})
	case errors.As(err, &inconsistent):
		resp := ReconcileResponse{Status: "inconsistent"}
		for _, f := range inconsistent.Findings {
			resp.Findings = append(resp.Findings, FindingResponse{
				Kind:        string(f.Kind),
				AccountID:   f.AccountID,
				EntryID:     f.EntryID,
				SaleID:      f.SaleID,
				EntryAmount: nullAmount(f.EntryAmount),
				SaleAmount:  nullAmount(f.SaleAmount),
			})
		}
		writeJSON(w, http.StatusConflict, resp)
	default:
		writeServiceError(w, err)
	}
}

// Health reports liveness
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
