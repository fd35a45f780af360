package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/klture/creditwallet/internal/services"
)

const maxBodyBytes = 1_048_576

// IdempotencyHeader carries the client's retry token.
const IdempotencyHeader = "Idempotency-Key"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// decodeBody reads exactly one JSON object with no unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	return true
}

// idempotencyKey returns the request's key, minting one when the client sent none.
func idempotencyKey(w http.ResponseWriter, r *http.Request) string {
	key := r.Header.Get(IdempotencyHeader)
	if key == "" {
		key = uuid.NewString()
	}
	w.Header().Set(IdempotencyHeader, key)
	return key
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		verr         *services.ValidationError
		insufficient *services.InsufficientFundsError
	)
	switch {
	case errors.As(err, &verr):
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, verr)
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusPaymentRequired, InsufficientFundsResponse{
			Error:     "Insufficient credit",
			Required:  insufficient.Required.StringFixed(2),
			Available: insufficient.Available.StringFixed(2),
			Shortfall: insufficient.Shortfall().StringFixed(2),
		})
	case errors.Is(err, services.ErrRateLimited):
		services.SendErrorResponse(w, err.Error(), http.StatusTooManyRequests, nil)
	case errors.Is(err, services.ErrVoucherNotFound):
		services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, services.ErrStorageUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		services.SendErrorResponse(w, "Service temporarily unavailable, retry with the same Idempotency-Key", http.StatusServiceUnavailable, nil)
	default:
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}

// InsufficientFundsResponse tells the client how much credit to add.
type InsufficientFundsResponse struct {
	Error     string `json:"error"`
	Required  string `json:"required"`
	Available string `json:"available"`
	Shortfall string `json:"shortfall"`
}
