package reports

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/subledger"
)

type posting struct {
	journalID int64
	date      time.Time
	source    string
	line      int
	code      string
	debit     decimal.Decimal
	credit    decimal.Decimal
}

// book is an in-memory journal that aggregates like the SQL read model.
type book struct {
	mu           sync.Mutex
	chart        []accounts.Account
	postings     []posting
	nextJournal  int64
	balanceCalls int
	queries      []BalanceQuery
	// When hold is set, Balances signals entered and blocks until hold closes or ctx ends.
	hold    chan struct{}
	entered chan struct{}
}

func newBook() *book {
	chart := accounts.DefaultChart()
	for i := range chart {
		chart[i].ID = int64(i + 1)
		chart[i].IsActive = true
	}
	return &book{chart: chart}
}

type leg struct {
	code   string
	debit  int64
	credit int64
}

func dr(code string, amount int64) leg { return leg{code: code, debit: amount} }
func cr(code string, amount int64) leg { return leg{code: code, credit: amount} }

func (b *book) post(date, source string, legs ...leg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextJournal++
	for i, l := range legs {
		b.postings = append(b.postings, posting{
			journalID: b.nextJournal,
			date:      mustDay(date),
			source:    source,
			line:      i + 1,
			code:      l.code,
			debit:     decimal.NewFromInt(l.debit),
			credit:    decimal.NewFromInt(l.credit),
		})
	}
}

func (b *book) Balances(ctx context.Context, _ uuid.UUID, q BalanceQuery) ([]AccountBalance, error) {
	if b.hold != nil {
		b.entered <- struct{}{}
		select {
		case <-b.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balanceCalls++
	b.queries = append(b.queries, q)
	from, to := dateOnly(q.From), dateOnly(q.To)
	out := make([]AccountBalance, 0, len(b.chart))
	for _, a := range b.chart {
		row := AccountBalance{
			AccountID:     a.ID,
			Code:          a.Code,
			Name:          a.Name,
			Type:          a.Type,
			NormalBalance: a.NormalBalance,
			IsActive:      a.IsActive,
		}
		for _, p := range b.postings {
			if p.code != a.Code || p.date.After(to) || slices.Contains(q.ExcludeSourceTypes, p.source) {
				continue
			}
			if p.date.Before(from) {
				row.OpeningDebit = row.OpeningDebit.Add(p.debit)
				row.OpeningCredit = row.OpeningCredit.Add(p.credit)
				continue
			}
			row.Debit = row.Debit.Add(p.debit)
			row.Credit = row.Credit.Add(p.credit)
		}
		out = append(out, row)
	}
	return out, nil
}

func (b *book) Lines(_ context.Context, _ uuid.UUID, q LineQuery) ([]LedgerLine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []LedgerLine
	for _, p := range b.postings {
		if p.date.Before(dateOnly(q.From)) || p.date.After(dateOnly(q.To)) {
			continue
		}
		if q.AccountCode != "" && p.code != q.AccountCode {
			continue
		}
		out = append(out, LedgerLine{
			JournalID:   p.journalID,
			Date:        p.date,
			SourceType:  p.source,
			AccountCode: p.code,
			LineNumber:  p.line,
			Debit:       p.debit,
			Credit:      p.credit,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].JournalID != out[j].JournalID {
			return out[i].JournalID < out[j].JournalID
		}
		return out[i].LineNumber < out[j].LineNumber
	})
	return out, nil
}

type stubAging struct {
	report subledger.AgingReport
	asOf   time.Time
}

func (s *stubAging) Aging(_ context.Context, _ uuid.UUID, asOf time.Time) (subledger.AgingReport, error) {
	s.asOf = asOf
	return s.report, nil
}

func mustDay(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func amount(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// februaryBook seeds owner capital in January and a month of trading in February,
// closed into retained earnings on the last day.
func februaryBook() *book {
	b := newBook()
	b.post("2025-01-05", "MANUAL", dr("1101", 200000), cr("3101", 200000))
	b.post("2025-02-03", "SALE", dr("1101", 100000), cr("4101", 100000), dr("5101", 40000), cr("1301", 40000))
	b.post("2025-02-05", "BILL", dr("1301", 80000), cr("2101", 80000))
	b.post("2025-02-10", "PURCHASE", dr("1501", 120000), cr("1101", 120000))
	b.post("2025-02-12", "MANUAL", dr("1102", 100000), cr("2501", 100000))
	b.post("2025-02-20", "INVOICE", dr("1201", 30000), cr("4101", 30000))
	b.post("2025-02-28", "ADJUSTMENT", dr("6105", 2000), cr("1502", 2000))
	b.post("2025-02-28", "CLOSING", dr("4101", 130000), cr("5101", 40000), cr("6105", 2000), cr("3201", 88000))
	return b
}
