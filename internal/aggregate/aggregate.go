// Package aggregate derives read-only dashboard series from a transaction
// window. Every function is pure: the same transactions and the same now
// always produce the same output.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// MonthBucket holds the income and expense totals of one calendar month.
type MonthBucket struct {
	Year    int
	Month   time.Month
	Income  core.Money
	Expense core.Money
}

// Savings is Income - Expense and may be negative.
func (b MonthBucket) Savings() core.Money {
	return b.Income.Sub(b.Expense)
}

// SavingsPoint is one entry of a savings series.
type SavingsPoint struct {
	Year    int
	Month   time.Month
	Savings core.Money
}

// CategoryShare is one row of a category breakdown.
type CategoryShare struct {
	CategoryID string // empty for uncategorized spend
	Amount     core.Money
	// Percent is the share of the total over every category, not only the
	// returned rows.
	Percent decimal.Decimal
}

// WeekSeries holds expense totals per weekday, Monday first.
type WeekSeries [7]core.Money

type monthKey struct {
	year  int
	month time.Month
}

// MonthlySeries buckets income and expense amounts into monthsBack calendar
// months ending with the month of now. The result is dense and chronological;
// months without transactions are zero.
func MonthlySeries(txs []core.Transaction, monthsBack int, now time.Time) []MonthBucket {
	if monthsBack <= 0 {
		return []MonthBucket{}
	}
	first := core.StartOfMonth(now).AddDate(0, -(monthsBack - 1), 0)

	series := make([]MonthBucket, monthsBack)
	index := make(map[monthKey]int, monthsBack)
	for i := range series {
		m := first.AddDate(0, i, 0)
		series[i] = MonthBucket{Year: m.Year(), Month: m.Month()}
		index[monthKey{m.Year(), m.Month()}] = i
	}

	for _, tx := range txs {
		at := tx.OccurredAt.In(now.Location())
		i, ok := index[monthKey{at.Year(), at.Month()}]
		if !ok {
			continue
		}
		switch tx.Kind {
		case core.Income:
			series[i].Income = series[i].Income.Add(tx.Amount)
		case core.Expense:
			series[i].Expense = series[i].Expense.Add(tx.Amount)
		}
	}
	return series
}

// SavingsSeries derives per-month savings from a monthly series.
func SavingsSeries(series []MonthBucket) []SavingsPoint {
	out := make([]SavingsPoint, len(series))
	for i, b := range series {
		out[i] = SavingsPoint{Year: b.Year, Month: b.Month, Savings: b.Savings()}
	}
	return out
}

// RunningTotals accumulates savings across the series.
func RunningTotals(series []MonthBucket) []core.Money {
	out := make([]core.Money, len(series))
	var acc core.Money
	for i, b := range series {
		acc = acc.Add(b.Savings())
		out[i] = acc
	}
	return out
}

// WeeklyExpenseSeries sums expense amounts of the seven calendar days ending
// with now into weekday slots. Older transactions and transactions after now
// are ignored.
func WeeklyExpenseSeries(txs []core.Transaction, now time.Time) WeekSeries {
	var week WeekSeries
	from := core.StartOfDay(now).AddDate(0, 0, -6)
	for _, tx := range txs {
		if tx.Kind != core.Expense {
			continue
		}
		at := tx.OccurredAt.In(now.Location())
		if at.Before(from) || at.After(now) {
			continue
		}
		slot := (int(at.Weekday()) + 6) % 7
		week[slot] = week[slot].Add(tx.Amount)
	}
	return week
}

// Total sums every slot of the week.
func (w WeekSeries) Total() core.Money {
	var total core.Money
	for _, m := range w {
		total = total.Add(m)
	}
	return total
}

// CategoryBreakdown groups expense amounts by category, sorts them descending
// and keeps the first topN rows. topN <= 0 keeps every category. Ties keep the
// order in which categories first appear in txs. Percentages are truncated so
// their sum stays at or below 100.
func CategoryBreakdown(txs []core.Transaction, topN int) []CategoryShare {
	var (
		order  []string
		totals = make(map[string]core.Money)
		total  core.Money
	)
	for _, tx := range txs {
		if tx.Kind != core.Expense {
			continue
		}
		if _, seen := totals[tx.CategoryID]; !seen {
			order = append(order, tx.CategoryID)
		}
		totals[tx.CategoryID] = totals[tx.CategoryID].Add(tx.Amount)
		total = total.Add(tx.Amount)
	}

	shares := make([]CategoryShare, len(order))
	for i, id := range order {
		shares[i] = CategoryShare{CategoryID: id, Amount: totals[id]}
	}
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Amount.Cents > shares[j].Amount.Cents
	})
	if topN > 0 && len(shares) > topN {
		shares = shares[:topN]
	}
	for i := range shares {
		shares[i].Percent = core.PercentFloor(shares[i].Amount, total)
	}
	return shares
}
