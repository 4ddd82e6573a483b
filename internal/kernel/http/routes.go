package kernelhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// MountRoutes registers the /v1 ledger endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/v1", func(r chi.Router) {
		r.Use(tenantScope)
		if h.rateLimit > 0 {
			r.Use(httprate.Limit(h.rateLimit, time.Minute,
				httprate.WithKeyFuncs(rateLimitKey),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "tenant request budget exhausted")
				}),
			))
		}

		r.Post("/sales", h.handleSale)
		r.Post("/purchases", h.handlePurchase)
		r.Post("/expenses", h.handleExpense)
		r.Post("/transfers", h.handleTransfer)
		r.Post("/inventory-adjustments", h.handleInventoryAdjustment)
		r.Post("/payments/received", h.handlePaymentReceived)
		r.Post("/payments/made", h.handlePaymentMade)

		r.Post("/receivables", h.handleCreateReceivable)
		r.Post("/receivables/{id}/payments", h.handleReceivablePayment)
		r.Post("/receivables/{id}/void", h.handleVoidReceivable)
		r.Post("/payables", h.handleCreatePayable)
		r.Post("/payables/{id}/payments", h.handlePayablePayment)
		r.Post("/payables/{id}/void", h.handleVoidPayable)

		r.Get("/journals", h.handleListJournals)
		r.Post("/journals", h.handlePostJournal)
		r.Get("/journals/{id}", h.handleGetJournal)
		r.Post("/journals/{id}/reverse", h.handleReverseJournal)
		r.Post("/journals/{id}/void", h.handleVoidJournal)

		r.Get("/periods", h.handleListPeriods)
		r.Post("/periods", h.handleCreatePeriod)
		r.Post("/periods/{id}/close", h.handleClosePeriod)
		r.Post("/periods/{id}/lock", h.handleLockPeriod)
		r.Post("/periods/{id}/unlock", h.handleUnlockPeriod)

		r.Get("/reports/{name}", h.handleReport)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if tenant := scopeFrom(r.Context()).tenant; tenant != uuid.Nil {
		return "tenant:" + tenant.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
