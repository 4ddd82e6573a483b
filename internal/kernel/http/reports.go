package kernelhttp

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// handleReport serves GET /v1/reports/{name}. Point-in-time reports take as_of, range reports from and to.
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := scopeFrom(ctx).tenant
	name := chi.URLParam(r, "name")

	var (
		report any
		err    error
	)
	switch name {
	case "trial-balance", "balance-sheet", "ar-aging", "ap-aging":
		asOf, perr := queryDate(r, "as_of")
		if perr != nil {
			h.writeError(w, r, perr)
			return
		}
		switch name {
		case "trial-balance":
			report, err = h.ledger.GetTrialBalance(ctx, tenant, asOf)
		case "balance-sheet":
			report, err = h.ledger.GetBalanceSheet(ctx, tenant, asOf)
		case "ar-aging":
			report, err = h.ledger.GetArAging(ctx, tenant, asOf)
		default:
			report, err = h.ledger.GetApAging(ctx, tenant, asOf)
		}
	case "profit-loss", "cash-flow", "general-ledger", "account-ledger":
		from, to, perr := queryRange(r)
		if perr != nil {
			h.writeError(w, r, perr)
			return
		}
		switch name {
		case "profit-loss":
			report, err = h.ledger.GetProfitLoss(ctx, tenant, from, to)
		case "cash-flow":
			report, err = h.ledger.GetCashFlow(ctx, tenant, from, to)
		case "general-ledger":
			report, err = h.ledger.GetGeneralLedger(ctx, tenant, from, to)
		default:
			code := strings.TrimSpace(r.URL.Query().Get("code"))
			if code == "" {
				h.writeError(w, r, fmt.Errorf("%w: code is required", httpx.ErrBadRequest))
				return
			}
			report, err = h.ledger.GetAccountLedger(ctx, tenant, code, from, to)
		}
	default:
		h.writeError(w, r, fmt.Errorf("%w: unknown report %q", httpx.ErrNotFound, name))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
