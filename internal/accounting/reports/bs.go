package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CurrentYearEarningsLabel names the synthetic equity line carrying unclosed income.
const CurrentYearEarningsLabel = "Current Year Earnings"

// BalanceSheetAccount summarises an account for assets, liabilities, or equity.
type BalanceSheetAccount struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Label    string                `json:"label"`
	Accounts []BalanceSheetAccount `json:"accounts"`
	Total    decimal.Decimal       `json:"total"`
}

func (s *BalanceSheetSection) add(row BalanceSheetAccount) {
	s.Accounts = append(s.Accounts, row)
	s.Total = s.Total.Add(row.Balance)
}

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	AsOf                      time.Time           `json:"as_of"`
	CurrentAssets             BalanceSheetSection `json:"current_assets"`
	FixedAssets               BalanceSheetSection `json:"fixed_assets"`
	CurrentLiabilities        BalanceSheetSection `json:"current_liabilities"`
	LongTermLiabilities       BalanceSheetSection `json:"long_term_liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	TotalAssets               decimal.Decimal     `json:"total_assets"`
	TotalLiabilities          decimal.Decimal     `json:"total_liabilities"`
	TotalEquity               decimal.Decimal     `json:"total_equity"`
	TotalLiabilitiesAndEquity decimal.Decimal     `json:"total_liabilities_and_equity"`
	IsBalanced                bool                `json:"is_balanced"`
}

// BuildBalanceSheet aggregates cumulative balances as of a date into the standard sections.
// Income and expense not yet closed to retained earnings appear as a synthetic equity line.
func BuildBalanceSheet(asOf time.Time, balances []AccountBalance) BalanceSheet {
	bs := BalanceSheet{
		AsOf:                asOf,
		CurrentAssets:       BalanceSheetSection{Label: "Current Assets"},
		FixedAssets:         BalanceSheetSection{Label: "Fixed Assets"},
		CurrentLiabilities:  BalanceSheetSection{Label: "Current Liabilities"},
		LongTermLiabilities: BalanceSheetSection{Label: "Long-term Liabilities"},
		Equity:              BalanceSheetSection{Label: "Equity"},
	}

	for _, acc := range balances {
		if !acc.HasActivity() {
			continue
		}
		net := acc.Net()
		switch Classify(acc.Code) {
		case SectionCurrentAssets:
			bs.CurrentAssets.add(BalanceSheetAccount{Code: acc.Code, Name: acc.Name, Balance: net})
		case SectionFixedAssets:
			bs.FixedAssets.add(BalanceSheetAccount{Code: acc.Code, Name: acc.Name, Balance: net})
		case SectionCurrentLiabilities:
			bs.CurrentLiabilities.add(BalanceSheetAccount{Code: acc.Code, Name: acc.Name, Balance: net.Neg()})
		case SectionLongTermLiabilities:
			bs.LongTermLiabilities.add(BalanceSheetAccount{Code: acc.Code, Name: acc.Name, Balance: net.Neg()})
		case SectionEquity:
			bs.Equity.add(BalanceSheetAccount{Code: acc.Code, Name: acc.Name, Balance: net.Neg()})
		}
	}

	for _, section := range []*BalanceSheetSection{&bs.CurrentAssets, &bs.FixedAssets, &bs.CurrentLiabilities, &bs.LongTermLiabilities, &bs.Equity} {
		sort.Slice(section.Accounts, func(i, j int) bool { return section.Accounts[i].Code < section.Accounts[j].Code })
	}
	if earnings := netIncome(balances); !earnings.IsZero() {
		bs.Equity.add(BalanceSheetAccount{Name: CurrentYearEarningsLabel, Balance: earnings})
	}

	bs.TotalAssets = bs.CurrentAssets.Total.Add(bs.FixedAssets.Total)
	bs.TotalLiabilities = bs.CurrentLiabilities.Total.Add(bs.LongTermLiabilities.Total)
	bs.TotalEquity = bs.Equity.Total
	bs.TotalLiabilitiesAndEquity = bs.TotalLiabilities.Add(bs.TotalEquity)
	bs.IsBalanced = bs.TotalAssets.Sub(bs.TotalLiabilitiesAndEquity).Abs().LessThan(Tolerance)
	return bs
}
