package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
)

// Formatter renders reports as aligned plain-text tables with locale aware amounts.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter builds a formatter for a BCP 47 locale tag such as "en-US" or "id-ID".
func NewFormatter(locale string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("ledgerctl: locale %q: %w", locale, err)
	}
	return &Formatter{printer: message.NewPrinter(tag)}, nil
}

// Amount formats a money value with two fraction digits and locale grouping.
func (f *Formatter) Amount(d decimal.Decimal) string {
	return f.printer.Sprint(number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2)))
}

// TrialBalance writes one line per account followed by the totals.
func (f *Formatter) TrialBalance(w io.Writer, tb reports.TrialBalance) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(tw, "Trial balance as of %s\t\t\t\t\n", tb.AsOf.Format("2006-01-02"))
	_, _ = fmt.Fprintln(tw, "Code\tName\tDebit\tCredit\tBalance\t")
	for _, group := range tb.Groups {
		for _, acc := range group.Accounts {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", acc.Code, acc.Name, f.Amount(acc.Debit), f.Amount(acc.Credit), f.Amount(acc.Balance))
		}
	}
	status := "balanced"
	if !tb.IsBalanced {
		status = "OUT OF BALANCE"
	}
	_, _ = fmt.Fprintf(tw, "\tTotal\t%s\t%s\t%s\t\n", f.Amount(tb.TotalDebit), f.Amount(tb.TotalCredit), status)
	return tw.Flush()
}

// ProfitAndLoss writes the sections of an income statement.
func (f *Formatter) ProfitAndLoss(w io.Writer, pl reports.ProfitAndLoss) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(tw, "Profit and loss %s to %s\t\t\t\n", pl.From.Format("2006-01-02"), pl.To.Format("2006-01-02"))
	for _, section := range []reports.ProfitAndLossSection{pl.Revenue, pl.CostOfGoodsSold, pl.OperatingExpenses} {
		_, _ = fmt.Fprintf(tw, "%s\t\t\t\n", section.Label)
		for _, acc := range section.Accounts {
			_, _ = fmt.Fprintf(tw, "\t%s\t%s\t\n", acc.Code+" "+acc.Name, f.Amount(acc.Amount))
		}
		_, _ = fmt.Fprintf(tw, "\tTotal %s\t%s\t\n", section.Label, f.Amount(section.Total))
	}
	_, _ = fmt.Fprintf(tw, "Gross profit\t\t%s\t\n", f.Amount(pl.GrossProfit))
	_, _ = fmt.Fprintf(tw, "Net income\t\t%s\t\n", f.Amount(pl.NetIncome))
	return tw.Flush()
}

// BalanceSheet writes assets, liabilities and equity with their totals.
func (f *Formatter) BalanceSheet(w io.Writer, bs reports.BalanceSheet) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(tw, "Balance sheet as of %s\t\t\t\n", bs.AsOf.Format("2006-01-02"))
	sections := []reports.BalanceSheetSection{bs.CurrentAssets, bs.FixedAssets, bs.CurrentLiabilities, bs.LongTermLiabilities, bs.Equity}
	for _, section := range sections {
		_, _ = fmt.Fprintf(tw, "%s\t\t\t\n", section.Label)
		for _, acc := range section.Accounts {
			label := acc.Name
			if acc.Code != "" {
				label = acc.Code + " " + acc.Name
			}
			_, _ = fmt.Fprintf(tw, "\t%s\t%s\t\n", label, f.Amount(acc.Balance))
		}
	}
	_, _ = fmt.Fprintf(tw, "Total assets\t\t%s\t\n", f.Amount(bs.TotalAssets))
	_, _ = fmt.Fprintf(tw, "Total liabilities and equity\t\t%s\t\n", f.Amount(bs.TotalLiabilitiesAndEquity))
	if !bs.IsBalanced {
		_, _ = fmt.Fprintln(tw, "OUT OF BALANCE\t\t\t")
	}
	return tw.Flush()
}
