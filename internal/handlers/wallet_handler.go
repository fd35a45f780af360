package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/klture/creditwallet/internal/middleware"
	"github.com/klture/creditwallet/internal/models"
	"github.com/klture/creditwallet/internal/services"
	"go.uber.org/zap"
)

type WalletHandler struct {
	ledger      *services.LedgerService
	balances    *services.BalanceService
	coordinator *services.PurchaseCoordinator
	catalog     services.Catalog
	validator   *services.ValidationHelper
	logger      *zap.Logger
}

func NewWalletHandler(ledger *services.LedgerService, balances *services.BalanceService, coordinator *services.PurchaseCoordinator, catalog services.Catalog, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		ledger:      ledger,
		balances:    balances,
		coordinator: coordinator,
		catalog:     catalog,
		validator:   services.NewValidationHelper(),
		logger:      logger,
	}
}

// GetBalance returns the caller's credit balance
// @Summary Get wallet balance
// @Description Sum of every ledger entry of the authenticated account
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} BalanceResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /wallet/balance [get]
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountID(r.Context())
	if accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	balance, err := h.balances.GetBalance(r.Context(), accountID)
	if err != nil {
		h.logger.Error("get balance failed", zap.String("account_id", accountID), zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{AccountID: accountID, Balance: balance.StringFixed(2)})
}

// GetHistory returns one page of ledger entries
// @Summary Get wallet history
// @Description Ledger entries oldest first; pass nextCursor back to continue
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Param cursor query string false "Cursor from the previous page"
// @Param limit query int false "Page size (max 200)"
// @Success 200 {object} HistoryResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /wallet/history [get]
func (h *WalletHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountID(r.Context())
	if accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			services.SendErrorResponse(w, "limit must be a number", http.StatusBadRequest, nil)
			return
		}
		limit = n
	}

	page, err := h.ledger.History(r.Context(), accountID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := HistoryResponse{Entries: make([]EntryResponse, 0, len(page.Entries)), NextCursor: page.NextCursor}
	for _, e := range page.Entries {
		resp.Entries = append(resp.Entries, toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubmitPurchase pays for a program from the wallet
// @Summary Purchase a program
// @Description Debits the wallet, records the sale and enrolls the caller in one step. Resend with the same Idempotency-Key to retry safely.
// @Tags Wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Retry token; generated when absent"
// @Param request body PurchaseRequest true "Purchase request"
// @Success 200 {object} PurchaseResponse "Replay of an earlier request"
// @Success 201 {object} PurchaseResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 402 {object} InsufficientFundsResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /wallet/purchases [post]
func (h *WalletHandler) SubmitPurchase(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountID(r.Context())
	if accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req PurchaseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	key := idempotencyKey(w, r)
	result, err := h.coordinator.SubmitPurchase(r.Context(), models.PurchaseRequest{
		AccountID:      accountID,
		ProgramTitle:   req.ProgramTitle,
		Price:          req.Price,
		IdempotencyKey: key,
		PreferredDate:  req.PreferredDate,
		Message:        req.Message,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if result.Status == models.StateRejected {
		var insufficient *services.InsufficientFundsError
		if errors.As(result.Reason, &insufficient) {
			h.logger.Info("purchase rejected for insufficient credit",
				zap.String("account_id", accountID),
				zap.String("shortfall", insufficient.Shortfall().StringFixed(2)))
		}
		writeServiceError(w, result.Reason)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, PurchaseResponse{
		Status:         string(result.Status),
		Balance:        result.Balance.StringFixed(2),
		Replayed:       result.Replayed,
		EntryID:        result.EntryID,
		SaleID:         result.SaleID,
		RegistrationID: result.RegistrationID,
		IdempotencyKey: key,
	})
}

// ListRegistrations lists the caller's enrollments
// @Summary List registrations
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {array} RegistrationResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /wallet/registrations [get]
func (h *WalletHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountID(r.Context())
	if accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	regs, err := h.ledger.ListRegistrations(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]RegistrationResponse, 0, len(regs))
	for _, reg := range regs {
		resp = append(resp, RegistrationResponse{
			RegistrationID: reg.RegistrationID,
			ProgramTitle:   reg.ProgramTitle,
			Category:       string(reg.Category),
			PreferredDate:  reg.PreferredDate,
			Message:        reg.Message,
			CreatedAt:      reg.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListPrograms returns the catalog with parsed prices
// @Summary List programs
// @Tags Catalog
// @Produce json
// @Success 200 {array} ProgramResponse
// @Router /programs [get]
func (h *WalletHandler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("list programs failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	resp := make([]ProgramResponse, 0, len(programs))
	for _, p := range programs {
		resp = append(resp, ProgramResponse{
			Title:      p.Title,
			Category:   string(p.Category),
			PriceLabel: p.PriceLabel,
			Price:      p.Price.StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
