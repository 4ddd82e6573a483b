package periods

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
)

// BuildSnapshot records every active account as of asOf. Balances must cover every journal up to
// asOf, earlier closing entries included, so NetIncome is the profit not yet closed.
func BuildSnapshot(name string, asOf time.Time, balances []reports.AccountBalance) Snapshot {
	snap := Snapshot{PeriodName: name, AsOf: dateOnly(asOf)}
	for _, b := range balances {
		if !b.IsActive {
			continue
		}
		snap.Accounts = append(snap.Accounts, SnapshotLine{
			Code:          b.Code,
			Name:          b.Name,
			Type:          b.Type,
			NormalBalance: b.NormalBalance,
			Debit:         b.TotalDebit(),
			Credit:        b.TotalCredit(),
			Balance:       b.Closing(),
		})
		if isTemporary(b.Type) {
			snap.NetIncome = snap.NetIncome.Sub(b.Net())
		}
	}
	sort.Slice(snap.Accounts, func(i, j int) bool { return snap.Accounts[i].Code < snap.Accounts[j].Code })
	return snap
}

// ClosingLines zeroes every income and expense balance into retained earnings.
// It returns no lines when nothing is left to close.
func ClosingLines(balances []reports.AccountBalance) []journals.LineRequest {
	var lines []journals.LineRequest
	var netIncome decimal.Decimal
	sorted := append([]reports.AccountBalance(nil), balances...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	for _, b := range sorted {
		if !isTemporary(b.Type) {
			continue
		}
		net := b.Net()
		switch net.Sign() {
		case 1:
			lines = append(lines, journals.LineRequest{AccountCode: b.Code, Credit: net, Memo: "Close " + b.Name})
		case -1:
			lines = append(lines, journals.LineRequest{AccountCode: b.Code, Debit: net.Neg(), Memo: "Close " + b.Name})
		default:
			continue
		}
		netIncome = netIncome.Sub(net)
	}
	if len(lines) == 0 {
		return nil
	}
	memo := "Net income to retained earnings"
	switch netIncome.Sign() {
	case 1:
		lines = append(lines, journals.LineRequest{AccountCode: accounts.CodeRetainedEarnings, Credit: netIncome, Memo: memo})
	case -1:
		lines = append(lines, journals.LineRequest{AccountCode: accounts.CodeRetainedEarnings, Debit: netIncome.Neg(), Memo: memo})
	}
	return lines
}

func isTemporary(t accounts.AccountType) bool {
	return t == accounts.AccountTypeIncome || t == accounts.AccountTypeExpense
}
