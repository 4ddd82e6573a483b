package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// LedgerLine is a journal line joined with its header for ledger listings.
type LedgerLine struct {
	JournalID     int64           `json:"journal_id"`
	JournalNumber string          `json:"journal_number"`
	Date          time.Time       `json:"date"`
	SourceType    string          `json:"source_type"`
	Description   string          `json:"description"`
	AccountCode   string          `json:"account_code"`
	LineNumber    int             `json:"line_number"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Memo          string          `json:"memo,omitempty"`
}

// LedgerEntry is a ledger line with the running balance after it.
type LedgerEntry struct {
	LedgerLine
	Balance decimal.Decimal `json:"balance"`
}

// AccountLedger lists the movements of one account over a window.
type AccountLedger struct {
	Code          string                 `json:"code"`
	Name          string                 `json:"name"`
	Type          accounts.AccountType   `json:"type"`
	NormalBalance accounts.NormalBalance `json:"normal_balance"`
	From          time.Time              `json:"from"`
	To            time.Time              `json:"to"`
	Opening       decimal.Decimal        `json:"opening"`
	Entries       []LedgerEntry          `json:"entries"`
	TotalDebit    decimal.Decimal        `json:"total_debit"`
	TotalCredit   decimal.Decimal        `json:"total_credit"`
	Closing       decimal.Decimal        `json:"closing"`
}

// GeneralLedger holds the ledger of every account with an opening balance or activity.
type GeneralLedger struct {
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
	Accounts []AccountLedger `json:"accounts"`
}

// BuildAccountLedger runs the balance forward from the opening, signed by the normal balance.
func BuildAccountLedger(from, to time.Time, balance AccountBalance, lines []LedgerLine) AccountLedger {
	ledger := AccountLedger{
		Code:          balance.Code,
		Name:          balance.Name,
		Type:          balance.Type,
		NormalBalance: balance.NormalBalance,
		From:          from,
		To:            to,
		Opening:       balance.Opening(),
	}
	running := ledger.Opening
	for _, line := range lines {
		running = running.Add(balance.NormalBalance.Signed(line.Debit, line.Credit))
		ledger.Entries = append(ledger.Entries, LedgerEntry{LedgerLine: line, Balance: running})
		ledger.TotalDebit = ledger.TotalDebit.Add(line.Debit)
		ledger.TotalCredit = ledger.TotalCredit.Add(line.Credit)
	}
	ledger.Closing = running
	return ledger
}

// BuildGeneralLedger groups lines per account. Lines must be ordered by date, journal and line number.
func BuildGeneralLedger(from, to time.Time, balances []AccountBalance, lines []LedgerLine) GeneralLedger {
	byAccount := make(map[string][]LedgerLine)
	for _, line := range lines {
		byAccount[line.AccountCode] = append(byAccount[line.AccountCode], line)
	}
	sorted := append([]AccountBalance(nil), balances...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	gl := GeneralLedger{From: from, To: to}
	for _, acc := range sorted {
		accountLines := byAccount[acc.Code]
		if len(accountLines) == 0 && acc.Opening().IsZero() {
			continue
		}
		gl.Accounts = append(gl.Accounts, BuildAccountLedger(from, to, acc, accountLines))
	}
	return gl
}
