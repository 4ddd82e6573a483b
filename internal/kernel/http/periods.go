package kernelhttp

import (
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/kernel"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type createPeriodRequest struct {
	Name      string `json:"period_name" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

type closePeriodRequest struct {
	CreateClosingEntries bool `json:"create_closing_entries"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	list, err := h.ledger.ListPeriods(r.Context(), scopeFrom(r.Context()).tenant)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": list})
}

func (h *Handler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	var body createPeriodRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	start, err := parseDate("start_date", body.StartDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	end, err := parseDate("end_date", body.EndDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.ledger.CreatePeriod(r.Context(), scopeFrom(r.Context()).tenant, body.Name, start, end)
	h.writePeriod(w, r, http.StatusCreated, res, err)
}

func (h *Handler) handleClosePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body closePeriodRequest
	if r.ContentLength != 0 {
		if err := decode(r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	res, err := h.ledger.ClosePeriod(r.Context(), scopeFrom(r.Context()).tenant, id, body.CreateClosingEntries)
	h.writePeriod(w, r, http.StatusOK, res, err)
}

func (h *Handler) handleLockPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body reasonRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.ledger.LockPeriod(r.Context(), scopeFrom(r.Context()).tenant, id, body.Reason)
	h.writePeriod(w, r, http.StatusOK, res, err)
}

func (h *Handler) handleUnlockPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body reasonRequest
	if err := decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	sc := scopeFrom(r.Context())
	res, err := h.ledger.UnlockPeriod(r.Context(), sc.tenant, id, body.Reason, sc.admin)
	h.writePeriod(w, r, http.StatusOK, res, err)
}

func (h *Handler) writePeriod(w http.ResponseWriter, r *http.Request, status int, res kernel.PeriodResult, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, status, res)
}
