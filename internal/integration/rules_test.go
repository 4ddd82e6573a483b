package integration

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

var tenant = uuid.MustParse("8f14e45f-ceea-467a-9f3b-6f2a1d1e0c01")

func sums(req journals.Request) (decimal.Decimal, decimal.Decimal) {
	var dr, cr decimal.Decimal
	for _, l := range req.Lines {
		dr = dr.Add(l.Debit)
		cr = cr.Add(l.Credit)
	}
	return dr, cr
}

func requireBalanced(t *testing.T, req journals.Request) {
	t.Helper()
	require.NoError(t, req.Validate(journals.DefaultTolerance))
	dr, cr := sums(req)
	require.True(t, dr.Equal(cr), "debit %s credit %s", dr, cr)
}

func TestSaleCashWithCost(t *testing.T) {
	date := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	req, err := Sale(tenant, SaleEvent{TransactionID: "TX-1", Date: date, Amount: 100000, Cost: 40000, Method: "cash"}, "1101")
	require.NoError(t, err)
	requireBalanced(t, req)

	require.Equal(t, journals.SourceSale, req.SourceType)
	require.Equal(t, "sale:TX-1", req.TraceID)
	require.Len(t, req.Lines, 4)
	require.Equal(t, "1101", req.Lines[0].AccountCode)
	require.Equal(t, "4101", req.Lines[1].AccountCode)
	require.Equal(t, "5101", req.Lines[2].AccountCode)
	require.True(t, req.Lines[2].Debit.Equal(decimal.NewFromInt(40000)))
	require.Equal(t, "1301", req.Lines[3].AccountCode)
}

func TestSaleOnCreditDebitsReceivable(t *testing.T) {
	req, err := Sale(tenant, SaleEvent{TransactionID: "INV-9", Date: time.Now(), Amount: 5000, OnCredit: true, Customer: "ACME"}, "")
	require.NoError(t, err)
	requireBalanced(t, req)
	require.Equal(t, journals.SourceInvoice, req.SourceType)
	require.Equal(t, "invoice:INV-9", req.TraceID)
	require.Len(t, req.Lines, 2)
	require.Equal(t, "1201", req.Lines[0].AccountCode)
}

func TestSaleRejectsBadInput(t *testing.T) {
	cases := map[string]SaleEvent{
		"missing id":      {Amount: 10},
		"zero amount":     {TransactionID: "a"},
		"negative cost":   {TransactionID: "a", Amount: 10, Cost: -1},
		"missing account": {TransactionID: "a", Amount: 10},
	}
	for name, evt := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Sale(tenant, evt, "")
			require.True(t, shared.IsValidation(err), "got %v", err)
		})
	}
}

func TestPurchase(t *testing.T) {
	t.Run("cash defaults to inventory", func(t *testing.T) {
		req, err := Purchase(tenant, PurchaseEvent{TransactionID: "P-1", Date: time.Now(), Amount: 700, Method: "transfer"}, "1102")
		require.NoError(t, err)
		requireBalanced(t, req)
		require.Equal(t, journals.SourcePurchase, req.SourceType)
		require.Equal(t, "purchase:P-1", req.TraceID)
		require.Equal(t, "1301", req.Lines[0].AccountCode)
		require.Equal(t, "1102", req.Lines[1].AccountCode)
	})
	t.Run("credit becomes a bill", func(t *testing.T) {
		req, err := Purchase(tenant, PurchaseEvent{TransactionID: "B-1", Date: time.Now(), Amount: 700, OnCredit: true, DebitAccount: "6103"}, "")
		require.NoError(t, err)
		requireBalanced(t, req)
		require.Equal(t, journals.SourceBill, req.SourceType)
		require.Equal(t, "bill:B-1", req.TraceID)
		require.Equal(t, "6103", req.Lines[0].AccountCode)
		require.Equal(t, "2101", req.Lines[1].AccountCode)
	})
}

func TestExpenseDefaultsToGeneralExpenses(t *testing.T) {
	req, err := Expense(tenant, ExpenseEvent{ExpenseID: "E-1", Date: time.Now(), Amount: 250, Method: "cash"}, "1101")
	require.NoError(t, err)
	requireBalanced(t, req)
	require.Equal(t, "expense:E-1", req.TraceID)
	require.Equal(t, "6104", req.Lines[0].AccountCode)
	require.Equal(t, "1101", req.Lines[1].AccountCode)
}

func TestTransfer(t *testing.T) {
	req, err := Transfer(tenant, TransferEvent{TransferID: "T-1", Date: time.Now(), Amount: 900, FromMethod: "cash", ToMethod: "transfer"}, "1101", "1102")
	require.NoError(t, err)
	requireBalanced(t, req)
	require.Equal(t, "1102", req.Lines[0].AccountCode)
	require.Equal(t, "1101", req.Lines[1].AccountCode)

	_, err = Transfer(tenant, TransferEvent{TransferID: "T-2", Date: time.Now(), Amount: 900}, "1101", "1101")
	require.True(t, shared.IsValidation(err))
}

func TestInventoryAdjustment(t *testing.T) {
	gain, err := InventoryAdjustment(tenant, InventoryAdjustmentEvent{AdjustmentID: "ADJ-1", Date: time.Now(), Amount: 300})
	require.NoError(t, err)
	requireBalanced(t, gain)
	require.Equal(t, "1301", gain.Lines[0].AccountCode)
	require.Equal(t, "4201", gain.Lines[1].AccountCode)

	loss, err := InventoryAdjustment(tenant, InventoryAdjustmentEvent{AdjustmentID: "ADJ-2", Date: time.Now(), Amount: -120})
	require.NoError(t, err)
	requireBalanced(t, loss)
	require.Equal(t, "6901", loss.Lines[0].AccountCode)
	require.True(t, loss.Lines[0].Debit.Equal(decimal.NewFromInt(120)))
	require.Equal(t, "1301", loss.Lines[1].AccountCode)
	require.Equal(t, "inventory-adjustment:ADJ-2", loss.TraceID)

	_, err = InventoryAdjustment(tenant, InventoryAdjustmentEvent{AdjustmentID: "ADJ-3", Date: time.Now()})
	require.True(t, shared.IsValidation(err))
}

func TestManualJournal(t *testing.T) {
	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	evt := ManualJournalEvent{
		Reference:   "OB-2025",
		Date:        date,
		SourceType:  "opening",
		Description: "opening balances",
		Lines: []ManualJournalLine{
			{AccountCode: " 1101 ", Debit: decimal.RequireFromString("2500000.50")},
			{AccountCode: "3101", Credit: decimal.RequireFromString("2500000.50"), Memo: "capital"},
		},
	}
	req, err := ManualJournal(tenant, evt)
	require.NoError(t, err)
	requireBalanced(t, req)
	require.Equal(t, journals.SourceOpening, req.SourceType)
	require.Equal(t, "manual:OB-2025", req.TraceID)
	require.Equal(t, "OB-2025", req.SourceID)
	require.Equal(t, "1101", req.Lines[0].AccountCode)
	require.Equal(t, "capital", req.Lines[1].Memo)
	require.False(t, req.System)

	evt.SourceType = ""
	req, err = ManualJournal(tenant, evt)
	require.NoError(t, err)
	require.Equal(t, journals.SourceManual, req.SourceType)

	evt.SourceType = "CLOSING"
	_, err = ManualJournal(tenant, evt)
	require.True(t, shared.IsValidation(err))

	evt.SourceType, evt.Reference = "", " "
	_, err = ManualJournal(tenant, evt)
	require.True(t, shared.IsValidation(err))
}
