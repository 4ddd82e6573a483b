package kernelhttp

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/kernel"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/subledger"
)

func (h *Handler) handleSale(w http.ResponseWriter, r *http.Request) {
	var evt integration.SaleEvent
	if err := httpx.DecodeJSON(r, &evt); err != nil {
		h.writeError(w, r, badJSON(err))
		return
	}
	res, err := h.ledger.RecordSale(r.Context(), scopeFrom(r.Context()).tenant, evt)
	h.writePosting(w, r, res, err)
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var evt integration.PurchaseEvent
	if err := httpx.DecodeJSON(r, &evt); err != nil {
		h.writeError(w, r, badJSON(err))
		return
	}
	res, err := h.ledger.RecordPurchase(r.Context(), scopeFrom(r.Context()).tenant, evt)
	h.writePosting(w, r, res, err)
}

func (h *Handler) handleExpense(w http.ResponseWriter, r *http.Request) {
	var evt integration.ExpenseEvent
	if err := httpx.DecodeJSON(r, &evt); err != nil {
		h.writeError(w, r, badJSON(err))
		return
	}
	res, err := h.ledger.RecordExpense(r.Context(), scopeFrom(r.Context()).tenant, evt)
	h.writePosting(w, r, res, err)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var evt integration.TransferEvent
	if err := httpx.DecodeJSON(r, &evt); err != nil {
		h.writeError(w, r, badJSON(err))
		return
	}
	res, err := h.ledger.RecordTransfer(r.Context(), scopeFrom(r.Context()).tenant, evt)
	h.writePosting(w, r, res, err)
}

func (h *Handler) handleInventoryAdjustment(w http.ResponseWriter, r *http.Request) {
	var evt integration.InventoryAdjustmentEvent
	if err := httpx.DecodeJSON(r, &evt); err != nil {
		h.writeError(w, r, badJSON(err))
		return
	}
	res, err := h.ledger.RecordInventoryAdjustment(r.Context(), scopeFrom(r.Context()).tenant, evt)
	h.writePosting(w, r, res, err)
}

func (h *Handler) handlePostJournal(w http.ResponseWriter, r *http.Request) {
	var evt integration.ManualJournalEvent
	if err := httpx.DecodeJSON(r, &evt); err != nil {
		h.writeError(w, r, badJSON(err))
		return
	}
	res, err := h.ledger.PostJournal(r.Context(), scopeFrom(r.Context()).tenant, evt)
	h.writePosting(w, r, res, err)
}

func (h *Handler) writePosting(w http.ResponseWriter, r *http.Request, res kernel.PostingResult, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, postingStatus(res.IsDuplicate), res)
}

func (h *Handler) handlePaymentReceived(w http.ResponseWriter, r *http.Request) {
	h.paymentEvent(w, r, h.ledger.RecordPaymentReceived)
}

func (h *Handler) handlePaymentMade(w http.ResponseWriter, r *http.Request) {
	h.paymentEvent(w, r, h.ledger.RecordPaymentMade)
}

func (h *Handler) paymentEvent(w http.ResponseWriter, r *http.Request, record func(ctx context.Context, tenantID uuid.UUID, evt integration.PaymentEvent) (kernel.PaymentResult, error)) {
	var evt integration.PaymentEvent
	if err := httpx.DecodeJSON(r, &evt); err != nil {
		h.writeError(w, r, badJSON(err))
		return
	}
	res, err := record(r.Context(), scopeFrom(r.Context()).tenant, evt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, postingStatus(res.IsDuplicate), res)
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) handleCreateReceivable(w http.ResponseWriter, r *http.Request) {
	var in subledger.CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, badJSON(err))
		return
	}
	res, err := h.ledger.CreateReceivable(r.Context(), scopeFrom(r.Context()).tenant, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) handleCreatePayable(w http.ResponseWriter, r *http.Request) {
	var in subledger.CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, badJSON(err))
		return
	}
	res, err := h.ledger.CreatePayable(r.Context(), scopeFrom(r.Context()).tenant, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) handleReceivablePayment(w http.ResponseWriter, r *http.Request) {
	h.itemPayment(w, r, h.ledger.ApplyArPayment)
}

func (h *Handler) handlePayablePayment(w http.ResponseWriter, r *http.Request) {
	h.itemPayment(w, r, h.ledger.ApplyApPayment)
}

func (h *Handler) itemPayment(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, tenantID uuid.UUID, itemID int64, in subledger.PaymentInput) (kernel.PaymentResult, error)) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in subledger.PaymentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, badJSON(err))
		return
	}
	res, err := apply(r.Context(), scopeFrom(r.Context()).tenant, id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) handleVoidReceivable(w http.ResponseWriter, r *http.Request) {
	h.itemVoid(w, r, h.ledger.VoidReceivable)
}

func (h *Handler) handleVoidPayable(w http.ResponseWriter, r *http.Request) {
	h.itemVoid(w, r, h.ledger.VoidPayable)
}

func (h *Handler) itemVoid(w http.ResponseWriter, r *http.Request, void func(ctx context.Context, tenantID uuid.UUID, itemID int64, reason string) (kernel.VoidResult, error)) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body voidRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := void(r.Context(), scopeFrom(r.Context()).tenant, id, body.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

type reverseRequest struct {
	ReversalDate string `json:"reversal_date" validate:"required"`
	Reason       string `json:"reason" validate:"required"`
}

func (h *Handler) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entry, err := h.ledger.GetJournal(r.Context(), scopeFrom(r.Context()).tenant, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) handleListJournals(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	from, err := optionalDate(q.Get("from"), "from")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := optionalDate(q.Get("to"), "to")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter := journals.ListFilter{
		From:       from,
		To:         to,
		SourceType: journals.SourceType(strings.ToUpper(q.Get("source_type"))),
		Status:     journals.JournalStatus(strings.ToUpper(q.Get("status"))),
	}
	res, err := h.ledger.ListJournals(r.Context(), scopeFrom(r.Context()).tenant, filter, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleReverseJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body reverseRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	date, err := parseDate("reversal_date", body.ReversalDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.ledger.ReverseJournal(r.Context(), scopeFrom(r.Context()).tenant, id, date, body.Reason)
	h.writePosting(w, r, res, err)
}

func (h *Handler) handleVoidJournal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body voidRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.ledger.VoidJournal(r.Context(), scopeFrom(r.Context()).tenant, id, body.Reason)
	h.writePosting(w, r, res, err)
}
