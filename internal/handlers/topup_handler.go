package handlers

import (
	"net/http"

	"github.com/klture/creditwallet/internal/middleware"
	"github.com/klture/creditwallet/internal/services"
	"go.uber.org/zap"
)

type TopUpHandler struct {
	service   *services.TopUpService
	validator *services.ValidationHelper
	logger    *zap.Logger
}

func NewTopUpHandler(service *services.TopUpService, logger *zap.Logger) *TopUpHandler {
	return &TopUpHandler{
		service:   service,
		validator: services.NewValidationHelper(),
		logger:    logger,
	}
}

// IssueVoucher creates a top-up voucher for the caller
// @Summary Request a top-up voucher
// @Description Returns a voucher code and QR image to show to the sales team
// @Tags TopUp
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body VoucherRequest true "Voucher amount"
// @Success 201 {object} VoucherResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /wallet/vouchers [post]
func (h *TopUpHandler) IssueVoucher(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountID(r.Context())
	if accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	if h.service == nil {
		services.SendErrorResponse(w, "Vouchers are unavailable", http.StatusServiceUnavailable, nil)
		return
	}

	var req VoucherRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	voucher, qrImage, err := h.service.IssueVoucher(r.Context(), accountID, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, VoucherResponse{
		Code:      voucher.Code,
		AccountID: voucher.AccountID,
		Amount:    voucher.Amount.StringFixed(2),
		ExpiresAt: voucher.ExpiresAt,
		QRImage:   qrImage,
	})
}

// RedeemVoucher credits a scanned voucher
// @Summary Redeem a top-up voucher
// @Description Sales staff confirm payment; the voucher amount is credited once
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RedeemRequest true "Voucher code"
// @Success 200 {object} VoucherResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/vouchers/redeem [post]
func (h *TopUpHandler) RedeemVoucher(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		services.SendErrorResponse(w, "Vouchers are unavailable", http.StatusServiceUnavailable, nil)
		return
	}

	var req RedeemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	operator := middleware.AccountID(r.Context())
	voucher, entryID, err := h.service.RedeemVoucher(r.Context(), req.Code, operator)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.logger.Info("voucher redeemed", zap.String("code", req.Code), zap.String("operator", operator))
	writeJSON(w, http.StatusOK, VoucherResponse{
		Code:      voucher.Code,
		AccountID: voucher.AccountID,
		Amount:    voucher.Amount.StringFixed(2),
		ExpiresAt: voucher.ExpiresAt,
		EntryID:   entryID,
	})
}
