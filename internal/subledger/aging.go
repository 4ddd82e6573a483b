package subledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AgingRow holds outstanding balances of one counterparty per bucket.
type AgingRow struct {
	Counterparty string          `json:"counterparty"`
	Current      decimal.Decimal `json:"current"`
	Days1To30    decimal.Decimal `json:"days_1_30"`
	Days31To60   decimal.Decimal `json:"days_31_60"`
	Days61To90   decimal.Decimal `json:"days_61_90"`
	Over90       decimal.Decimal `json:"over_90"`
	Total        decimal.Decimal `json:"total"`
}

func (r *AgingRow) add(daysPastDue int, amount decimal.Decimal) {
	switch {
	case daysPastDue <= 0:
		r.Current = r.Current.Add(amount)
	case daysPastDue <= 30:
		r.Days1To30 = r.Days1To30.Add(amount)
	case daysPastDue <= 60:
		r.Days31To60 = r.Days31To60.Add(amount)
	case daysPastDue <= 90:
		r.Days61To90 = r.Days61To90.Add(amount)
	default:
		r.Over90 = r.Over90.Add(amount)
	}
	r.Total = r.Total.Add(amount)
}

// AgingReport groups open and partially paid items by counterparty.
type AgingReport struct {
	Kind   Kind       `json:"kind"`
	AsOf   time.Time  `json:"as_of"`
	Rows   []AgingRow `json:"rows"`
	Totals AgingRow   `json:"totals"`
}

// BuildAging buckets the outstanding balance of each item by as_of minus due date in days.
func BuildAging(kind Kind, asOf time.Time, items []Item) AgingReport {
	asOf = dateOnly(asOf)
	rows := make(map[string]*AgingRow)
	report := AgingReport{Kind: kind, AsOf: asOf, Totals: AgingRow{Counterparty: "TOTAL"}}
	for _, item := range items {
		if item.Status != StatusOpen && item.Status != StatusPartial {
			continue
		}
		balance := item.Balance()
		if !balance.IsPositive() {
			continue
		}
		days := int(asOf.Sub(dateOnly(item.DueDate)).Hours() / 24)
		row, ok := rows[item.Counterparty]
		if !ok {
			row = &AgingRow{Counterparty: item.Counterparty}
			rows[item.Counterparty] = row
		}
		row.add(days, balance)
		report.Totals.add(days, balance)
	}
	for _, row := range rows {
		report.Rows = append(report.Rows, *row)
	}
	sort.Slice(report.Rows, func(i, j int) bool { return report.Rows[i].Counterparty < report.Rows[j].Counterparty })
	return report
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
