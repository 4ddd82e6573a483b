package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// CashFlowLine is one adjustment inside a cash flow section.
type CashFlowLine struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// CashFlowSection groups adjustments.
type CashFlowSection struct {
	Label string          `json:"label"`
	Lines []CashFlowLine  `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

func (s *CashFlowSection) add(label string, amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	s.Lines = append(s.Lines, CashFlowLine{Label: label, Amount: amount})
	s.Total = s.Total.Add(amount)
}

// CashFlow is the indirect-method statement for a window.
type CashFlow struct {
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	NetIncome    decimal.Decimal `json:"net_income"`
	Operating    CashFlowSection `json:"operating"`
	Investing    CashFlowSection `json:"investing"`
	Financing    CashFlowSection `json:"financing"`
	NetChange    decimal.Decimal `json:"net_change"`
	OpeningCash  decimal.Decimal `json:"opening_cash"`
	ClosingCash  decimal.Decimal `json:"closing_cash"`
	CashChange   decimal.Decimal `json:"cash_change"`
	IsReconciled bool            `json:"is_reconciled"`
}

// BuildCashFlow derives the statement from two snapshots taken without closing journals:
// opening as of the day before the window and closing as of its last day.
func BuildCashFlow(from, to time.Time, opening, closing []AccountBalance) CashFlow {
	start := make(map[string]AccountBalance, len(opening))
	for _, acc := range opening {
		start[acc.Code] = acc
	}

	cf := CashFlow{
		From:      from,
		To:        to,
		Operating: CashFlowSection{Label: "Operating Activities"},
		Investing: CashFlowSection{Label: "Investing Activities"},
		Financing: CashFlowSection{Label: "Financing Activities"},
	}

	var (
		depreciation, receivables, inventory, otherCurrentAssets decimal.Decimal
		payables, otherCurrentLiabilities, other                 decimal.Decimal
		fixedAssets, longTermLiabilities, equity                 decimal.Decimal
	)

	sorted := append([]AccountBalance(nil), closing...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	for _, acc := range sorted {
		// delta is the debit-positive change over the window; cash impact is its negation.
		delta := acc.Net().Sub(start[acc.Code].Net())
		if cashAccount(acc.Code) {
			cf.OpeningCash = cf.OpeningCash.Add(start[acc.Code].Net())
			cf.ClosingCash = cf.ClosingCash.Add(acc.Net())
			continue
		}
		impact := delta.Neg()
		switch section := Classify(acc.Code); {
		case section.IsIncomeStatement():
			cf.NetIncome = cf.NetIncome.Add(impact)
		case section == SectionCurrentAssets:
			switch acc.Code {
			case accounts.CodeAccountsReceivable:
				receivables = receivables.Add(impact)
			case accounts.CodeInventory:
				inventory = inventory.Add(impact)
			default:
				otherCurrentAssets = otherCurrentAssets.Add(impact)
			}
		case section == SectionFixedAssets:
			if acc.NormalBalance == accounts.NormalCredit {
				depreciation = depreciation.Add(impact)
			} else {
				fixedAssets = fixedAssets.Add(impact)
			}
		case section == SectionCurrentLiabilities:
			if acc.Code == accounts.CodeAccountsPayable {
				payables = payables.Add(impact)
			} else {
				otherCurrentLiabilities = otherCurrentLiabilities.Add(impact)
			}
		case section == SectionLongTermLiabilities:
			longTermLiabilities = longTermLiabilities.Add(impact)
		case section == SectionEquity:
			equity = equity.Add(impact)
		default:
			other = other.Add(impact)
		}
	}

	cf.Operating.add("Net income", cf.NetIncome)
	cf.Operating.add("Depreciation", depreciation)
	cf.Operating.add("Change in accounts receivable", receivables)
	cf.Operating.add("Change in inventory", inventory)
	cf.Operating.add("Change in other current assets", otherCurrentAssets)
	cf.Operating.add("Change in accounts payable", payables)
	cf.Operating.add("Change in other current liabilities", otherCurrentLiabilities)
	cf.Operating.add("Other", other)
	cf.Investing.add("Purchase of fixed assets", fixedAssets)
	cf.Financing.add("Change in long-term liabilities", longTermLiabilities)
	cf.Financing.add("Change in equity", equity)

	cf.NetChange = cf.Operating.Total.Add(cf.Investing.Total).Add(cf.Financing.Total)
	cf.CashChange = cf.ClosingCash.Sub(cf.OpeningCash)
	cf.IsReconciled = cf.NetChange.Sub(cf.CashChange).Abs().LessThan(Tolerance)
	return cf
}
