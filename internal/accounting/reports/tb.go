package reports

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// Tolerance bounds the rounding gap accepted by the balance checks.
var Tolerance = decimal.New(1, -2)

// AccountBalance models a general ledger account with aggregated balances.
// Opening sums lines dated before the query window, Debit and Credit sum lines inside it.
type AccountBalance struct {
	AccountID     int64                  `json:"account_id"`
	Code          string                 `json:"code"`
	Name          string                 `json:"name"`
	Type          accounts.AccountType   `json:"type"`
	NormalBalance accounts.NormalBalance `json:"normal_balance"`
	IsActive      bool                   `json:"is_active"`
	OpeningDebit  decimal.Decimal        `json:"opening_debit"`
	OpeningCredit decimal.Decimal        `json:"opening_credit"`
	Debit         decimal.Decimal        `json:"debit"`
	Credit        decimal.Decimal        `json:"credit"`
}

// Opening is the signed balance before the window.
func (a AccountBalance) Opening() decimal.Decimal {
	return a.NormalBalance.Signed(a.OpeningDebit, a.OpeningCredit)
}

// Closing is the signed balance at the end of the window.
func (a AccountBalance) Closing() decimal.Decimal {
	return a.NormalBalance.Signed(a.TotalDebit(), a.TotalCredit())
}

func (a AccountBalance) TotalDebit() decimal.Decimal  { return a.OpeningDebit.Add(a.Debit) }
func (a AccountBalance) TotalCredit() decimal.Decimal { return a.OpeningCredit.Add(a.Credit) }

// Net is debit minus credit over everything up to the end of the window.
func (a AccountBalance) Net() decimal.Decimal {
	return a.TotalDebit().Sub(a.TotalCredit())
}

// Movement is debit minus credit inside the window.
func (a AccountBalance) Movement() decimal.Decimal {
	return a.Debit.Sub(a.Credit)
}

// HasActivity reports whether any line touched the account up to the end of the window.
func (a AccountBalance) HasActivity() bool {
	return !a.TotalDebit().IsZero() || !a.TotalCredit().IsZero()
}

// GroupKey returns a key used for grouping trial balance rows.
func (a AccountBalance) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}

// TrialBalanceAccount represents a row inside a trial balance group.
type TrialBalanceAccount struct {
	Code          string                 `json:"code"`
	Name          string                 `json:"name"`
	Type          accounts.AccountType   `json:"type"`
	NormalBalance accounts.NormalBalance `json:"normal_balance"`
	Debit         decimal.Decimal        `json:"debit"`
	Credit        decimal.Decimal        `json:"credit"`
	Balance       decimal.Decimal        `json:"balance"`
}

// TrialBalanceGroup aggregates accounts for presentation.
type TrialBalanceGroup struct {
	Key      string                `json:"key"`
	Accounts []TrialBalanceAccount `json:"accounts"`
	Debit    decimal.Decimal       `json:"debit"`
	Credit   decimal.Decimal       `json:"credit"`
}

// TrialBalance is the final structure returned to callers.
type TrialBalance struct {
	AsOf        time.Time           `json:"as_of"`
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
	IsBalanced  bool                `json:"is_balanced"`
}

// BuildTrialBalance converts account balances into grouped trial balance data.
// Accounts without any activity are left out.
func BuildTrialBalance(asOf time.Time, balances []AccountBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, acc := range balances {
		if !acc.HasActivity() {
			continue
		}
		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key}
			groups[key] = grp
			keys = append(keys, key)
		}
		row := TrialBalanceAccount{
			Code:          acc.Code,
			Name:          acc.Name,
			Type:          acc.Type,
			NormalBalance: acc.NormalBalance,
			Debit:         acc.TotalDebit(),
			Credit:        acc.TotalCredit(),
			Balance:       acc.Closing(),
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
	}

	sort.Strings(keys)
	result := TrialBalance{AsOf: asOf}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	result.IsBalanced = result.TotalDebit.Sub(result.TotalCredit).Abs().LessThan(Tolerance)
	return result
}
