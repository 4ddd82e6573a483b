package kernelhttp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// writeError maps the ledger error taxonomy to problem responses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *shared.ValidationError
		period   *shared.PeriodViolation
		overflow *shared.SubledgerOverflow
		gap      *shared.IntegrityGap
	)
	switch {
	case errors.As(err, &verr):
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Detail: verr.Error(),
			Field:  verr.Field,
		})
	case errors.As(err, &period):
		httpx.Problem(w, http.StatusConflict, "Period Not Open", period.Error())
	case errors.As(err, &overflow):
		httpx.Problem(w, http.StatusConflict, "Payment Exceeds Balance", overflow.Error())
	case errors.As(err, &gap):
		httpx.Problem(w, http.StatusInternalServerError, "Integrity Gap", gap.Error())
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrJournalNotFound), errors.Is(err, shared.ErrItemNotFound),
		errors.Is(err, shared.ErrPeriodNotFound), errors.Is(err, shared.ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidStatus), errors.Is(err, shared.ErrAlreadyReversed),
		errors.Is(err, shared.ErrDuplicateTrace):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, httpx.ErrBadRequest), errors.Is(err, httpx.ErrNotFound):
		httpx.RespondError(w, err)
	default:
		h.logger.Error("ledger request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
