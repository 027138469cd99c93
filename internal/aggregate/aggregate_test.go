package aggregate

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func tx(kind core.TransactionKind, category string, cents int64, at time.Time) core.Transaction {
	return core.Transaction{OwnerID: "u1", Kind: kind, CategoryID: category, Amount: core.Cents(cents), OccurredAt: at}
}

func TestMonthlySeriesEmpty(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	series := MonthlySeries(nil, 6, now)
	if len(series) != 6 {
		t.Fatalf("len = %d, want 6", len(series))
	}
	want := []time.Month{time.October, time.November, time.December, time.January, time.February, time.March}
	for i, b := range series {
		if b.Month != want[i] {
			t.Fatalf("bucket %d month = %s, want %s", i, b.Month, want[i])
		}
		if !b.Income.IsZero() || !b.Expense.IsZero() {
			t.Fatalf("bucket %d not zero: %+v", i, b)
		}
	}
	if series[0].Year != 2024 || series[5].Year != 2025 {
		t.Fatalf("year rollover wrong: %+v", series)
	}
	if got := MonthlySeries(nil, 0, now); len(got) != 0 {
		t.Fatalf("monthsBack 0 should be empty, got %d", len(got))
	}
}

func TestMonthlySeriesBuckets(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		tx(core.Income, "salary", 300000, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		tx(core.Expense, "food", 1250, time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)),
		tx(core.Expense, "food", 750, time.Date(2025, 1, 31, 23, 59, 0, 0, time.UTC)),
		tx(core.Transfer, "", 99999, time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)),
		tx(core.Expense, "food", 99999, time.Date(2024, 9, 30, 9, 0, 0, 0, time.UTC)),
	}
	series := MonthlySeries(txs, 3, now)

	want := []MonthBucket{
		{Year: 2025, Month: time.January, Expense: core.Cents(750)},
		{Year: 2025, Month: time.February},
		{Year: 2025, Month: time.March, Income: core.Cents(300000), Expense: core.Cents(1250)},
	}
	if !reflect.DeepEqual(series, want) {
		t.Fatalf("series = %+v\nwant %+v", series, want)
	}

	savings := SavingsSeries(series)
	if savings[0].Savings.Cents != -750 || savings[1].Savings.Cents != 0 || savings[2].Savings.Cents != 298750 {
		t.Fatalf("savings = %+v", savings)
	}
	running := RunningTotals(series)
	if running[2].Cents != 298000 {
		t.Fatalf("running total = %+v", running)
	}
}

func TestMonthlySeriesDeterministic(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		tx(core.Expense, "a", 100, now.AddDate(0, -1, 0)),
		tx(core.Income, "b", 500, now),
	}
	first := MonthlySeries(txs, 4, now)
	second := MonthlySeries(txs, 4, now)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ between calls")
	}
}

func TestWeeklyExpenseSeries(t *testing.T) {
	// Wednesday
	now := time.Date(2025, 1, 15, 18, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		tx(core.Expense, "food", 1000, time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)),  // Wed
		tx(core.Expense, "food", 500, time.Date(2025, 1, 13, 8, 0, 0, 0, time.UTC)),   // Mon
		tx(core.Expense, "food", 200, time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)),    // Thu, first day of window
		tx(core.Expense, "food", 9999, time.Date(2025, 1, 8, 23, 0, 0, 0, time.UTC)),  // too old
		tx(core.Expense, "food", 9999, time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC)), // after now
		tx(core.Income, "pay", 9999, time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC)),
	}
	week := WeeklyExpenseSeries(txs, now)

	want := WeekSeries{core.Cents(500), {}, core.Cents(1000), core.Cents(200), {}, {}, {}}
	if week != want {
		t.Fatalf("week = %+v, want %+v", week, want)
	}
	if week.Total().Cents != 1700 {
		t.Fatalf("total = %s", week.Total())
	}
}

func TestCategoryBreakdown(t *testing.T) {
	at := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		tx(core.Expense, "transport", 5000, at),
		tx(core.Expense, "food", 6000, at),
		tx(core.Expense, "other", 1000, at),
		tx(core.Expense, "food", 4000, at),
		tx(core.Income, "salary", 100000, at),
	}
	shares := CategoryBreakdown(txs, 2)
	if len(shares) != 2 {
		t.Fatalf("len = %d, want 2", len(shares))
	}
	if shares[0].CategoryID != "food" || shares[0].Amount.Cents != 10000 || shares[0].Percent.String() != "62.5" {
		t.Fatalf("first row = %+v", shares[0])
	}
	if shares[1].CategoryID != "transport" || shares[1].Amount.Cents != 5000 || shares[1].Percent.String() != "31.25" {
		t.Fatalf("second row = %+v", shares[1])
	}
}

func TestCategoryBreakdownPercentagesNeverExceedHundred(t *testing.T) {
	at := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	splits := [][]int64{
		{100, 100, 400},
		{1, 1, 1},
		{333, 333, 334},
		{1, 2, 3, 4, 5, 6, 7},
		{9999, 1},
	}
	for _, amounts := range splits {
		var txs []core.Transaction
		for i, cents := range amounts {
			txs = append(txs, tx(core.Expense, string(rune('a'+i)), cents, at))
		}
		sum := decimal.Zero
		for _, s := range CategoryBreakdown(txs, 0) {
			sum = sum.Add(s.Percent)
		}
		if sum.GreaterThan(decimal.NewFromInt(100)) {
			t.Fatalf("amounts %v: percentages sum to %s", amounts, sum)
		}
	}

	shares := CategoryBreakdown([]core.Transaction{
		tx(core.Expense, "a", 100, at),
		tx(core.Expense, "b", 100, at),
		tx(core.Expense, "c", 400, at),
	}, 0)
	if got := shares[0].Percent.String(); got != "66.66" {
		t.Fatalf("largest share = %s, want 66.66", got)
	}
}

func TestCategoryBreakdownTiesAndAll(t *testing.T) {
	at := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		tx(core.Expense, "b", 100, at),
		tx(core.Expense, "", 300, at),
		tx(core.Expense, "a", 100, at),
		tx(core.Expense, "c", 100, at),
	}
	shares := CategoryBreakdown(txs, 0)
	got := make([]string, len(shares))
	for i, s := range shares {
		got[i] = s.CategoryID
	}
	if want := []string{"", "b", "a", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %q, want %q", got, want)
	}
	if len(CategoryBreakdown(nil, 5)) != 0 {
		t.Fatalf("empty input should give empty breakdown")
	}
}
