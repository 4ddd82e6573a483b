package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ProfitAndLossAccount represents a revenue or expense account summary.
type ProfitAndLossAccount struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// ProfitAndLossSection groups accounts by nature.
type ProfitAndLossSection struct {
	Label    string                 `json:"label"`
	Accounts []ProfitAndLossAccount `json:"accounts"`
	Total    decimal.Decimal        `json:"total"`
}

// ProfitAndLoss contains the structured output for the report.
type ProfitAndLoss struct {
	From              time.Time            `json:"from"`
	To                time.Time            `json:"to"`
	Revenue           ProfitAndLossSection `json:"revenue"`
	CostOfGoodsSold   ProfitAndLossSection `json:"cost_of_goods_sold"`
	OperatingExpenses ProfitAndLossSection `json:"operating_expenses"`
	GrossProfit       decimal.Decimal      `json:"gross_profit"`
	NetIncome         decimal.Decimal      `json:"net_income"`
}

// BuildProfitAndLoss aggregates window movements into revenue, COGS and operating expense sections.
// Callers exclude closing journals from the balances.
func BuildProfitAndLoss(from, to time.Time, balances []AccountBalance) ProfitAndLoss {
	revenue := ProfitAndLossSection{Label: "Revenue"}
	cogs := ProfitAndLossSection{Label: "Cost of Goods Sold"}
	opex := ProfitAndLossSection{Label: "Operating Expenses"}

	for _, acc := range balances {
		if acc.Debit.IsZero() && acc.Credit.IsZero() {
			continue
		}
		row := ProfitAndLossAccount{Code: acc.Code, Name: acc.Name, Amount: acc.Movement()}
		switch Classify(acc.Code) {
		case SectionRevenue:
			row.Amount = row.Amount.Neg()
			revenue.Accounts = append(revenue.Accounts, row)
			revenue.Total = revenue.Total.Add(row.Amount)
		case SectionCostOfGoodsSold:
			cogs.Accounts = append(cogs.Accounts, row)
			cogs.Total = cogs.Total.Add(row.Amount)
		case SectionOperatingExpenses:
			opex.Accounts = append(opex.Accounts, row)
			opex.Total = opex.Total.Add(row.Amount)
		}
	}

	for _, section := range []*ProfitAndLossSection{&revenue, &cogs, &opex} {
		sort.Slice(section.Accounts, func(i, j int) bool { return section.Accounts[i].Code < section.Accounts[j].Code })
	}

	gross := revenue.Total.Sub(cogs.Total)
	return ProfitAndLoss{
		From:              from,
		To:                to,
		Revenue:           revenue,
		CostOfGoodsSold:   cogs,
		OperatingExpenses: opex,
		GrossProfit:       gross,
		NetIncome:         gross.Sub(opex.Total),
	}
}

// netIncome is income minus expense over everything up to the end of the window.
func netIncome(balances []AccountBalance) decimal.Decimal {
	total := decimal.Zero
	for _, acc := range balances {
		if Classify(acc.Code).IsIncomeStatement() {
			total = total.Sub(acc.Net())
		}
	}
	return total
}
