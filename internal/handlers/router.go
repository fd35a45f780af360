package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/klture/creditwallet/internal/middleware"
)

// Handlers groups every API handler for mounting under /api/v1.
type Handlers struct {
	Wallet *WalletHandler
	TopUp  *TopUpHandler
	Admin  *AdminHandler
}

// Routes builds the versioned API. authn must place the caller's identity in
// the request context.
func (h Handlers) Routes(authn func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", Health)
	r.Get("/programs", h.Wallet.ListPrograms)

	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", h.Wallet.GetBalance)
			r.Get("/history", h.Wallet.GetHistory)
			r.Post("/purchases", h.Wallet.SubmitPurchase)
			r.Get("/registrations", h.Wallet.ListRegistrations)
			r.Post("/vouchers", h.TopUp.IssueVoucher)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleAdmin))

			r.Post("/topups", h.Admin.TopUp)
			r.Post("/adjustments", h.Admin.Adjust)
			r.Post("/vouchers/redeem", h.TopUp.RedeemVoucher)
			r.Get("/sales", h.Admin.ListSales)
			r.Get("/reconcile", h.Admin.Reconcile)
		})
	})

	return r
}
