package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/events"
)

func createBudget(t *testing.T, f *fixture, owner, category string, cents int64, period core.Period) core.Budget {
	t.Helper()
	b, err := f.budgets.Create(context.Background(), CreateBudgetRequest{
		OwnerID:    owner,
		CategoryID: category,
		Allocated:  core.Cents(cents),
		Period:     period,
	})
	require.NoError(t, err)
	return b
}

func TestBudgetService_CreateDerivesWindow(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		period    core.Period
		wantStart time.Time
		wantEnd   time.Time
	}{
		{core.Weekly, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC)},
		{core.Monthly, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{core.Yearly, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			b := createBudget(t, f, "u1", "food", 10000, tt.period)
			assert.Equal(t, tt.wantStart, b.Start)
			assert.Equal(t, tt.wantEnd.Add(-time.Nanosecond), b.End)
			assert.True(t, b.IsActive)
			assert.True(t, b.Spent.IsZero())
			assert.True(t, b.AlertThreshold.Equal(core.DefaultAlertThreshold))
		})
	}

	_, err := f.budgets.Create(context.Background(), CreateBudgetRequest{
		OwnerID: "u1", CategoryID: "food", Allocated: core.Cents(100), Period: "daily",
	})
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)

	_, err = f.budgets.Create(context.Background(), CreateBudgetRequest{
		OwnerID: "u1", CategoryID: "food", Allocated: core.Cents(100), Period: core.Monthly,
		AlertThreshold: decimal.RequireFromString("1.5"),
	})
	assert.True(t, core.IsValidation(err))
}

func TestBudgetService_CreatePicksUpExistingSpend(t *testing.T) {
	f := newFixture(t)
	f.expense(t, "u1", "food", 1250, testNow.AddDate(0, 0, -3))
	f.expense(t, "u1", "food", 999, time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC))

	b := createBudget(t, f, "u1", "food", 10000, core.Monthly)

	assert.Equal(t, int64(1250), b.Spent.Cents)
}

func TestBudgetService_ReconcileSumsMatchingExpenses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBudget(t, f, "u1", "groceries", 5000, core.Monthly)

	f.expense(t, "u1", "groceries", 1200, testNow.AddDate(0, 0, -10))
	f.expense(t, "u1", "groceries", 2750, testNow)
	f.expense(t, "u1", "transport", 4000, testNow)
	f.expense(t, "u2", "groceries", 4000, testNow)
	f.record(t, "u1", "groceries", core.Income, 8000, testNow)

	got, r, err := f.budgets.Reconcile(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3950), got.Spent.Cents)
	assert.Equal(t, int64(3950), r.Spent.Cents)
	assert.Equal(t, int64(1050), r.Remaining.Cents)
	assert.False(t, r.Exceeded)

	again, r2, err := f.budgets.Reconcile(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Spent, again.Spent)
	assert.Equal(t, r.Spent, r2.Spent)

	_, _, err = f.budgets.Reconcile(ctx, "u2", b.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBudgetService_EmptyBudgetReconcilesToZero(t *testing.T) {
	f := newFixture(t)
	b := createBudget(t, f, "u1", "travel", 5000, core.Weekly)

	_, r, err := f.budgets.Reconcile(context.Background(), "u1", b.ID)

	require.NoError(t, err)
	assert.True(t, r.Spent.IsZero())
	assert.False(t, r.Exceeded)
	assert.False(t, r.ThresholdReached)
}

func TestBudgetService_InlineReconcileSignalsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBudget(t, f, "u1", "food", 10000, core.Monthly)

	f.expense(t, "u1", "food", 7000, testNow)
	assert.Empty(t, f.events.OfType(events.BudgetThresholdReached))

	f.expense(t, "u1", "food", 1000, testNow)
	assert.Len(t, f.events.OfType(events.BudgetThresholdReached), 1)

	f.expense(t, "u1", "food", 500, testNow)
	assert.Len(t, f.events.OfType(events.BudgetThresholdReached), 1)

	f.expense(t, "u1", "food", 2000, testNow)
	assert.Len(t, f.events.OfType(events.BudgetExceeded), 1)

	got, err := f.budgets.Get(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10500), got.Spent.Cents)
	assert.True(t, got.Exceeded())
}

func TestBudgetService_EditsAndDeletesSelfHeal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	food := createBudget(t, f, "u1", "food", 10000, core.Monthly)
	fun := createBudget(t, f, "u1", "fun", 10000, core.Monthly)

	tx := f.expense(t, "u1", "food", 4000, testNow)
	f.expense(t, "u1", "food", 1000, testNow)

	_, err := f.txs.Update(ctx, "u1", tx.ID, core.Transaction{CategoryID: "fun", Amount: core.Cents(3000)})
	require.NoError(t, err)

	gotFood, _ := f.budgets.Get(ctx, "u1", food.ID)
	gotFun, _ := f.budgets.Get(ctx, "u1", fun.ID)
	assert.Equal(t, int64(1000), gotFood.Spent.Cents)
	assert.Equal(t, int64(3000), gotFun.Spent.Cents)

	require.NoError(t, f.txs.Delete(ctx, "u1", tx.ID))
	gotFun, _ = f.budgets.Get(ctx, "u1", fun.ID)
	assert.True(t, gotFun.Spent.IsZero())
}

func TestBudgetService_TotalMonthlySpend(t *testing.T) {
	f := newFixture(t)
	f.expense(t, "u1", "food", 1500, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	f.expense(t, "u1", "", 2500, testNow)
	f.expense(t, "u1", "food", 9999, time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC))
	f.record(t, "u1", "salary", core.Income, 300000, testNow)
	f.expense(t, "u2", "food", 700, testNow)

	total, err := f.budgets.TotalMonthlySpend(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, int64(4000), total.Cents)
}

func TestBudgetService_SweepDeactivatesExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	weekly := createBudget(t, f, "u1", "food", 10000, core.Weekly)
	monthly := createBudget(t, f, "u1", "food", 40000, core.Monthly)
	f.expense(t, "u1", "food", 1200, testNow)

	// Next Tuesday: the weekly window is closed, the monthly one is not.
	f.now = testNow.AddDate(0, 0, 6)
	res, err := f.budgets.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, SweepResult{Reconciled: 2, Deactivated: 1}, res)

	gotWeekly, _ := f.budgets.Get(ctx, "u1", weekly.ID)
	gotMonthly, _ := f.budgets.Get(ctx, "u1", monthly.ID)
	assert.False(t, gotWeekly.IsActive)
	assert.Equal(t, int64(1200), gotWeekly.Spent.Cents)
	assert.True(t, gotMonthly.IsActive)

	res, err = f.budgets.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reconciled)
}

func TestBudgetService_Deactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := createBudget(t, f, "u1", "food", 10000, core.Monthly)

	_, err := f.budgets.Deactivate(ctx, "u2", b.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err := f.budgets.Deactivate(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	// Deactivated budgets still follow ledger edits inside their window.
	f.expense(t, "u1", "food", 5000, testNow)
	got, _ = f.budgets.Get(ctx, "u1", b.ID)
	assert.Equal(t, int64(5000), got.Spent.Cents)
	assert.False(t, got.IsActive)
}

func TestBudgetService_SweptBudgetFollowsLaterEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	weekly := createBudget(t, f, "u1", "food", 10000, core.Weekly)
	lunch := f.expense(t, "u1", "food", 1200, testNow)
	dinner := f.expense(t, "u1", "food", 3000, testNow)

	f.now = testNow.AddDate(0, 0, 6)
	_, err := f.budgets.Sweep(ctx)
	require.NoError(t, err)
	got, _ := f.budgets.Get(ctx, "u1", weekly.ID)
	require.False(t, got.IsActive)
	require.Equal(t, int64(4200), got.Spent.Cents)

	require.NoError(t, f.txs.Delete(ctx, "u1", dinner.ID))
	got, _ = f.budgets.Get(ctx, "u1", weekly.ID)
	assert.Equal(t, int64(1200), got.Spent.Cents)

	_, err = f.txs.Update(ctx, "u1", lunch.ID, core.Transaction{CategoryID: "food", Amount: core.Cents(800)})
	require.NoError(t, err)
	got, _ = f.budgets.Get(ctx, "u1", weekly.ID)
	assert.Equal(t, int64(800), got.Spent.Cents)
	assert.False(t, got.IsActive)
}
