package kernel

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/subledger"
)

var tenant = uuid.MustParse("9b2f0c1e-3a55-4c7e-9e64-5f1d2a7b8c90")

func TestRecordCashSaleSettlesThroughMethodAccount(t *testing.T) {
	h := newHarness(nil)
	ctx := WithActor(context.Background(), "pos-terminal-3")

	res, err := h.kernel.RecordSale(ctx, tenant, integration.SaleEvent{
		TransactionID: "TX-1001",
		Date:          day(3),
		Amount:        100000,
		Cost:          40000,
		Method:        "qris",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, res.IsDuplicate)
	require.Nil(t, res.ItemID)
	require.Equal(t, int64(1), res.JournalID)

	require.Len(t, h.journals.requests, 1)
	req := h.journals.requests[0]
	require.Equal(t, journals.SourceSale, req.SourceType)
	require.Equal(t, "sale:TX-1001", req.TraceID)
	require.Equal(t, "pos-terminal-3", req.Actor)
	require.Equal(t, accounts.CodeBank, req.Lines[0].AccountCode)
	require.Len(t, req.Lines, 4)
	require.Empty(t, h.ar.items)
	require.Equal(t, 1, h.work.units)
}

func TestRecordCreditSaleOpensLinkedReceivable(t *testing.T) {
	h := newHarness(nil)
	ctx := context.Background()

	res, err := h.kernel.RecordSale(ctx, tenant, integration.SaleEvent{
		TransactionID: "INV-0042",
		Date:          day(20),
		Amount:        30000,
		OnCredit:      true,
		Customer:      "Toko Makmur",
	})
	require.NoError(t, err)
	require.NotNil(t, res.ItemID)
	require.Equal(t, journals.SourceInvoice, h.journals.requests[0].SourceType)
	require.Equal(t, accounts.CodeAccountsReceivable, h.journals.requests[0].Lines[0].AccountCode)

	require.Len(t, h.ar.items, 1)
	item := h.ar.items[0]
	require.Equal(t, "Toko Makmur", item.Counterparty)
	require.Equal(t, "INV-0042", item.SourceID)
	require.Equal(t, string(journals.SourceInvoice), item.SourceType)
	require.True(t, item.Amount.Equal(decimal.NewFromInt(30000)))
	require.Equal(t, day(20), item.DueDate)
	require.False(t, item.CreateJournal)
	require.NotNil(t, item.JournalID)
	require.Equal(t, res.JournalID, *item.JournalID)
	require.Equal(t, "system", item.Actor)
}

func TestRedeliveredCreditSaleDoesNotOpenSecondReceivable(t *testing.T) {
	h := newHarness(nil)
	evt := integration.SaleEvent{
		TransactionID: "INV-0042",
		Date:          day(20),
		Amount:        30000,
		OnCredit:      true,
		Customer:      "Toko Makmur",
		DueDate:       day(28),
	}

	first, err := h.kernel.RecordSale(context.Background(), tenant, evt)
	require.NoError(t, err)
	second, err := h.kernel.RecordSale(context.Background(), tenant, evt)
	require.NoError(t, err)

	require.True(t, second.IsDuplicate)
	require.Equal(t, first.JournalID, second.JournalID)
	require.Equal(t, first.JournalNumber, second.JournalNumber)
	require.Nil(t, second.ItemID)
	require.Len(t, h.ar.items, 1)
	require.Equal(t, day(28), h.ar.items[0].DueDate)
}

func TestRecordSaleRejectsBadEvents(t *testing.T) {
	cases := []struct {
		name  string
		evt   integration.SaleEvent
		field string
	}{
		{"missing transaction", integration.SaleEvent{Date: day(1), Amount: 10, Method: "cash"}, "transaction_id"},
		{"zero amount", integration.SaleEvent{TransactionID: "TX", Date: day(1), Method: "cash"}, "amount"},
		{"missing date", integration.SaleEvent{TransactionID: "TX", Amount: 10, Method: "cash"}, "date"},
		{"unknown method", integration.SaleEvent{TransactionID: "TX", Date: day(1), Amount: 10, Method: "barter"}, "method"},
		{"credit without customer", integration.SaleEvent{TransactionID: "TX", Date: day(1), Amount: 10, OnCredit: true}, "customer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(nil)
			_, err := h.kernel.RecordSale(context.Background(), tenant, tc.evt)
			var verr *shared.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Field)
			require.Empty(t, h.journals.requests)
		})
	}
}

func TestRecordCreditPurchaseOpensLinkedPayable(t *testing.T) {
	h := newHarness(nil)

	res, err := h.kernel.RecordPurchase(context.Background(), tenant, integration.PurchaseEvent{
		TransactionID: "BILL-7",
		Date:          day(5),
		Amount:        80000,
		OnCredit:      true,
		Supplier:      "PT Sumber Jaya",
		DueDate:       day(25),
	})
	require.NoError(t, err)
	require.NotNil(t, res.ItemID)
	require.Equal(t, journals.SourceBill, h.journals.requests[0].SourceType)
	require.Len(t, h.ap.items, 1)
	require.Equal(t, "PT Sumber Jaya", h.ap.items[0].Counterparty)
	require.Equal(t, string(journals.SourceBill), h.ap.items[0].SourceType)
	require.Equal(t, res.JournalID, *h.ap.items[0].JournalID)

	_, err = h.kernel.RecordPurchase(context.Background(), tenant, integration.PurchaseEvent{
		TransactionID: "BILL-8",
		Date:          day(5),
		Amount:        80000,
		OnCredit:      true,
	})
	require.True(t, shared.IsValidation(err))
}

func TestFollowUpFailureFailsTheCommand(t *testing.T) {
	h := newHarness(nil)
	h.ap.createErr = errors.New("accounts_payable insert: connection reset")

	res, err := h.kernel.RecordPurchase(context.Background(), tenant, integration.PurchaseEvent{
		TransactionID: "BILL-9",
		Date:          day(5),
		Amount:        80000,
		OnCredit:      true,
		Supplier:      "PT Sumber Jaya",
	})
	require.EqualError(t, err, "accounts_payable insert: connection reset")
	require.Zero(t, res)
	require.Equal(t, 1, h.work.units)
}

func TestRecordTransferResolvesBothMethods(t *testing.T) {
	h := newHarness(nil)
	_, err := h.kernel.RecordTransfer(context.Background(), tenant, integration.TransferEvent{
		TransferID: "TRF-1",
		Date:       day(7),
		Amount:     25000,
		FromMethod: "cash",
		ToMethod:   "bank_transfer",
	})
	require.NoError(t, err)
	req := h.journals.requests[0]
	require.Equal(t, journals.SourceTransfer, req.SourceType)
	require.Equal(t, accounts.CodeBank, req.Lines[0].AccountCode)
	require.Equal(t, accounts.CodeCash, req.Lines[1].AccountCode)

	_, err = h.kernel.RecordTransfer(context.Background(), tenant, integration.TransferEvent{
		TransferID: "TRF-2",
		Date:       day(7),
		Amount:     25000,
		FromMethod: "qris",
		ToMethod:   "card",
	})
	require.True(t, shared.IsValidation(err))
}

func TestRecordInventoryAdjustmentLoss(t *testing.T) {
	h := newHarness(nil)
	_, err := h.kernel.RecordInventoryAdjustment(context.Background(), tenant, integration.InventoryAdjustmentEvent{
		AdjustmentID: "ADJ-1",
		Date:         day(27),
		Amount:       -1500,
		Reason:       "stock opname",
	})
	require.NoError(t, err)
	req := h.journals.requests[0]
	require.Equal(t, journals.SourceAdjustment, req.SourceType)
	require.Equal(t, "inventory-adjustment:ADJ-1", req.TraceID)
}

func TestRecordPaymentReceivedIsIdempotent(t *testing.T) {
	h := newHarness(nil)
	evt := integration.PaymentEvent{
		PaymentID:  "RCPT-1",
		DocumentID: "INV-0042",
		Date:       day(25),
		Amount:     30000,
		Method:     "transfer",
	}

	first, err := h.kernel.RecordPaymentReceived(context.Background(), tenant, evt)
	require.NoError(t, err)
	require.False(t, first.IsDuplicate)
	require.NotNil(t, first.JournalID)
	require.Equal(t, string(subledger.StatusPaid), first.Status)
	require.Len(t, h.ar.payments, 1)
	require.Equal(t, "payment-received:RCPT-1", h.ar.payments[0].TraceID)
	require.True(t, h.ar.payments[0].CreateJournal)

	again, err := h.kernel.RecordPaymentReceived(context.Background(), tenant, evt)
	require.NoError(t, err)
	require.True(t, again.IsDuplicate)
	require.Equal(t, *first.JournalID, *again.JournalID)
	require.Len(t, h.ar.payments, 1)
}

func TestRecordPaymentMadeLosingRaceReturnsWinner(t *testing.T) {
	h := newHarness(nil)
	var winner journals.JournalEntry
	// A concurrent delivery commits between the pre-check and the application.
	h.ap.onPay = func(in subledger.PaymentInput) {
		winner = h.journals.post(journals.Request{SourceType: journals.SourcePaymentBill, TraceID: in.TraceID})
	}
	h.ap.payErr = fmt.Errorf("%w: payment-made:PAY-9", shared.ErrDuplicateTrace)

	res, err := h.kernel.RecordPaymentMade(context.Background(), tenant, integration.PaymentEvent{
		PaymentID:  "PAY-9",
		DocumentID: "BILL-7",
		Date:       day(26),
		Amount:     80000,
		Method:     "transfer",
	})
	require.NoError(t, err)
	require.True(t, res.IsDuplicate)
	require.Equal(t, winner.ID, *res.JournalID)
}

func TestRecordPaymentSurfacesIntegrityGap(t *testing.T) {
	h := newHarness(nil)
	h.ar.payErr = &shared.IntegrityGap{Entity: "ar", Ref: "INVOICE:INV-404", Detail: "no linked ar item for payment"}

	_, err := h.kernel.RecordPaymentReceived(context.Background(), tenant, integration.PaymentEvent{
		PaymentID:  "RCPT-2",
		DocumentID: "INV-404",
		Date:       day(25),
		Amount:     100,
		Method:     "cash",
	})
	var gap *shared.IntegrityGap
	require.ErrorAs(t, err, &gap)
	require.Equal(t, "integrity", Reason(err))
}

func TestSubledgerCommandsStampTenantAndActor(t *testing.T) {
	h := newHarness(nil)
	ctx := WithActor(context.Background(), "finance@tenant")

	created, err := h.kernel.CreateReceivable(ctx, tenant, subledger.CreateInput{
		Counterparty: "Toko Makmur",
		SourceID:     "INV-1",
		Amount:       decimal.NewFromInt(500),
		DueDate:      day(28),
	})
	require.NoError(t, err)
	require.True(t, created.Success)
	require.Equal(t, tenant, h.ar.items[0].TenantID)
	require.Equal(t, "finance@tenant", h.ar.items[0].Actor)

	paid, err := h.kernel.ApplyApPayment(ctx, tenant, 3, subledger.PaymentInput{
		PaymentDate: day(10),
		Amount:      decimal.NewFromInt(200),
		Method:      "cash",
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), paid.ItemID)
	require.Equal(t, int64(3), h.ap.payments[0].ItemID)

	_, err = h.kernel.VoidPayable(ctx, tenant, 3, "")
	require.True(t, shared.IsValidation(err))
	voided, err := h.kernel.VoidReceivable(ctx, tenant, 1, "duplicate invoice")
	require.NoError(t, err)
	require.True(t, voided.Success)
	require.Equal(t, "finance@tenant", h.ar.voids[0].Actor)
}

func TestReverseJournalTwiceIsRejected(t *testing.T) {
	h := newHarness(nil)
	res, err := h.kernel.ReverseJournal(context.Background(), tenant, 12, day(15), "wrong customer")
	require.NoError(t, err)
	require.True(t, res.Success)

	_, err = h.kernel.ReverseJournal(context.Background(), tenant, 12, day(16), "again")
	require.ErrorIs(t, err, shared.ErrAlreadyReversed)
}

func TestPeriodCommandsReportOutcome(t *testing.T) {
	h := newHarness(nil)
	ctx := WithActor(context.Background(), "controller")

	created, err := h.kernel.CreatePeriod(ctx, tenant, "2025-02", day(1), day(28))
	require.NoError(t, err)
	require.True(t, created.Success)
	require.Equal(t, int64(7), created.PeriodID)
	require.Equal(t, "period created", created.Message)

	h.periods.err = shared.ErrForbidden
	res, err := h.kernel.UnlockPeriod(ctx, tenant, 7, "audit adjustment", false)
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.False(t, res.Success)
	require.Equal(t, int64(7), res.PeriodID)
	require.NotEmpty(t, res.Errors)

	h.periods.err = shared.Invalid("start_date", "period overlaps existing period")
	res, err = h.kernel.CreatePeriod(ctx, tenant, "2025-02b", day(15), day(28))
	require.Error(t, err)
	require.Equal(t, []string{"start_date: period overlaps existing period"}, res.Errors)
}

func TestProvisionTenantIsRepeatable(t *testing.T) {
	h := newHarness(nil)
	n, err := h.kernel.ProvisionTenant(context.Background(), tenant)
	require.NoError(t, err)
	require.Equal(t, 24, n)
	n, err = h.kernel.ProvisionTenant(context.Background(), tenant)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = h.kernel.ProvisionTenant(context.Background(), uuid.Nil)
	require.True(t, shared.IsValidation(err))
}

func TestMetricsCountPostingsDuplicatesAndRejections(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	h := newHarness(metrics)
	evt := integration.ExpenseEvent{ExpenseID: "EXP-7", Date: day(9), Amount: 7500, Method: "cash"}

	_, err := h.kernel.RecordExpense(context.Background(), tenant, evt)
	require.NoError(t, err)
	_, err = h.kernel.RecordExpense(context.Background(), tenant, evt)
	require.NoError(t, err)
	_, err = h.kernel.RecordExpense(context.Background(), tenant, integration.ExpenseEvent{ExpenseID: "EXP-8", Date: day(9), Method: "cash"})
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.posted.WithLabelValues(integration.KindExpense)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.duplicates.WithLabelValues(integration.KindExpense)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.rejected.WithLabelValues(integration.KindExpense, "validation")))
}

func TestReasonClassification(t *testing.T) {
	cases := map[string]error{
		"validation": shared.Invalid("amount", "must be greater than zero"),
		"period":     &shared.PeriodViolation{PeriodName: "2025-01", Status: "LOCKED", Message: "no postings allowed"},
		"overflow":   &shared.SubledgerOverflow{Amount: decimal.NewFromInt(2), Balance: decimal.NewFromInt(1)},
		"forbidden":  shared.ErrForbidden,
		"not_found":  errors.Join(errors.New("lookup"), shared.ErrItemNotFound),
		"status":     shared.ErrAlreadyReversed,
		"internal":   errors.New("boom"),
	}
	for want, err := range cases {
		require.Equal(t, want, Reason(err), want)
	}
	require.Empty(t, Reason(nil))
}
