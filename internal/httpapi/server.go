/*
server.go - HTTP router and middleware configuration.

Generalizes the teacher's api/server.go router: same chi middleware
stack (Logger, Recoverer, RequestID, cors.Handler), same flat
`r.Route("/api", ...)` grouping, but companies scope every sub-route
instead of the teacher's single-tenant "/employees".
*/
package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the full route tree for a Handler.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID", "X-Company-ID", "X-Capabilities"},
		AllowCredentials: false,
	}))

	r.Route("/api/companies/{company}", func(r chi.Router) {
		r.Route("/vouchers", func(r chi.Router) {
			r.Post("/", h.PostVoucher)
			r.Get("/", h.ListVouchers)
			r.Get("/{id}", h.GetVoucher)
			r.Post("/{id}/reverse", h.ReverseVoucher)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", h.PostInvoice)
			r.Get("/outstanding", h.ListOutstandingInvoices)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.PostPayment)
			r.Route("/drafts", func(r chi.Router) {
				r.Post("/", h.CreatePaymentDraft)
				r.Post("/{id}/allocations", h.AllocatePayment)
				r.Delete("/{id}/allocations/{line_id}", h.RemoveAllocation)
				r.Post("/{id}/post", h.PostPaymentDraft)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateSalesOrder)
			r.Post("/{id}/items", h.AddItem)
			r.Post("/{id}/confirm", h.ConfirmOrder)
			r.Post("/{id}/cancel", h.CancelOrder)
		})

		r.Route("/approvals", func(r chi.Router) {
			r.Post("/submit", h.SubmitApproval)
			r.Post("/approve", h.DecideApproval(true))
			r.Post("/reject", h.DecideApproval(false))
			r.Get("/status", h.ApprovalStatus)
		})

		r.Get("/trial-balance", h.TrialBalance)
		r.Get("/aging", h.Aging)
		r.Get("/audit", h.AuditTrail)
	})

	r.Get("/healthz", h.Health)

	return r
}
