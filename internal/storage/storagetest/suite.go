// Package storagetest holds the behavioural tests every RecordStore
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Factory returns an empty store. The suite closes it when the test ends.
type Factory func(t *testing.T) storage.RecordStore

var baseTime = time.Date(2025, 2, 12, 10, 0, 0, 0, time.UTC)

// Run executes the shared store tests against newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.RecordStore)
	}{
		{"TransactionsRoundTrip", testTransactionsRoundTrip},
		{"TransactionFilters", testTransactionFilters},
		{"DebtMutate", testDebtMutate},
		{"DebtMutateErrorWritesNothing", testDebtMutateErrorWritesNothing},
		{"ConcurrentPayments", testConcurrentPayments},
		{"BudgetLookupAndReconcile", testBudgetLookupAndReconcile},
		{"GoalMutate", testGoalMutate},
		{"Categories", testCategories},
		{"NotFound", testNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func expense(owner, category string, cents int64, at time.Time) core.Transaction {
	return core.Transaction{
		OwnerID:    owner,
		CategoryID: category,
		Kind:       core.Expense,
		Amount:     core.Cents(cents),
		Currency:   "EUR",
		OccurredAt: at,
	}
}

func testTransactionsRoundTrip(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()
	in := expense("u1", "food", 1234, baseTime)
	in.Description = "groceries"

	saved, err := s.InsertTransaction(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := s.GetTransaction(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "groceries", got.Description)
	assert.Equal(t, int64(1234), got.Amount.Cents)
	assert.True(t, got.OccurredAt.Equal(baseTime))

	got.Amount = core.Cents(999)
	got.CategoryID = ""
	_, err = s.UpdateTransaction(ctx, got)
	require.NoError(t, err)

	got, err = s.GetTransaction(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(999), got.Amount.Cents)
	assert.Equal(t, "", got.CategoryID)

	require.NoError(t, s.DeleteTransaction(ctx, saved.ID))
	_, err = s.GetTransaction(ctx, saved.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testTransactionFilters(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()
	seed := []core.Transaction{
		expense("u1", "food", 1000, baseTime),
		expense("u1", "food", 2550, baseTime.Add(time.Hour)),
		expense("u1", "food", 400, baseTime.Add(2*time.Hour)),
		expense("u1", "rent", 50000, baseTime),
		expense("u1", "", 700, baseTime),
		expense("u2", "food", 9999, baseTime),
		{OwnerID: "u1", CategoryID: "food", Kind: core.Income, Amount: core.Cents(5), OccurredAt: baseTime},
		expense("u1", "food", 8888, baseTime.AddDate(0, -1, 0)),
	}
	for _, tx := range seed {
		_, err := s.InsertTransaction(ctx, tx)
		require.NoError(t, err)
	}

	food := "food"
	f := storage.TransactionFilter{CategoryID: &food, Kind: core.Expense, From: baseTime.Add(-time.Minute), To: baseTime.Add(3 * time.Hour)}
	txs, err := s.QueryTransactions(ctx, "u1", f)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.True(t, txs[0].OccurredAt.Before(txs[2].OccurredAt), "results are ordered by occurrence")

	sum, err := s.SumTransactions(ctx, "u1", f)
	require.NoError(t, err)
	assert.Equal(t, int64(3950), sum.Cents)

	none := ""
	txs, err = s.QueryTransactions(ctx, "u1", storage.TransactionFilter{CategoryID: &none})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(700), txs[0].Amount.Cents)

	all, err := s.QueryTransactions(ctx, "u1", storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 7)

	empty, err := s.SumTransactions(ctx, "nobody", storage.TransactionFilter{})
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}

func newDebt(t *testing.T, s storage.RecordStore, cents int64) core.Debt {
	t.Helper()
	d, err := core.NewDebt(core.Debt{OwnerID: "u1", Type: core.IOwe, Original: core.Cents(cents), CreditorName: "Bank", DueDate: baseTime.AddDate(0, 1, 0)}, baseTime)
	require.NoError(t, err)
	saved, err := s.InsertDebt(context.Background(), d)
	require.NoError(t, err)
	return saved
}

func testDebtMutate(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()
	d := newDebt(t, s, 10000)

	updated, err := s.MutateDebt(ctx, d.ID, func(d *core.Debt) error {
		return d.ApplyPayment(core.Cents(4000), baseTime)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6000), updated.Remaining.Cents)
	assert.Equal(t, d.Version+1, updated.Version)

	got, err := s.GetDebt(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Remaining, got.Remaining)
	assert.Equal(t, updated.Version, got.Version)
	assert.True(t, got.DueDate.Equal(d.DueDate))
	assert.Equal(t, core.PriorityLow, got.Priority)

	list, err := s.ListDebts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func testDebtMutateErrorWritesNothing(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()
	d := newDebt(t, s, 10000)

	_, err := s.MutateDebt(ctx, d.ID, func(d *core.Debt) error {
		return d.ApplyPayment(core.Cents(20000), baseTime)
	})
	require.Error(t, err)
	var oe *core.OverpaymentError
	require.True(t, errors.As(err, &oe))

	got, err := s.GetDebt(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.Remaining.Cents)
	assert.Equal(t, d.Version, got.Version)
}

func testConcurrentPayments(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()
	d := newDebt(t, s, 10000)

	const payers = 10
	var wg sync.WaitGroup
	errs := make(chan error, payers)
	for i := 0; i < payers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.MutateDebt(ctx, d.ID, func(d *core.Debt) error {
				return d.ApplyPayment(core.Cents(500), baseTime)
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	applied := 0
	for err := range errs {
		if err == nil {
			applied++
			continue
		}
		require.ErrorIs(t, err, core.ErrConflict, "only conflicts may fail a valid payment")
	}

	got, err := s.GetDebt(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000-500*applied), got.Remaining.Cents, "no payment may be lost")
	assert.Equal(t, d.Version+int64(applied), got.Version)
}

func testBudgetLookupAndReconcile(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()
	b, err := core.NewBudget("u1", "food", core.Cents(5000), core.Monthly, decimal.Zero, baseTime)
	require.NoError(t, err)
	b, err = s.InsertBudget(ctx, b)
	require.NoError(t, err)

	other, err := core.NewBudget("u1", "rent", core.Cents(5000), core.Monthly, decimal.RequireFromString("0.5"), baseTime)
	require.NoError(t, err)
	_, err = s.InsertBudget(ctx, other)
	require.NoError(t, err)

	found, err := s.FindBudgets(ctx, "u1", "food", baseTime)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b.ID, found[0].ID)
	assert.True(t, found[0].AlertThreshold.Equal(core.DefaultAlertThreshold))

	found, err = s.FindBudgets(ctx, "u1", "food", baseTime.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, found)

	for _, cents := range []int64{1000, 2550, 400} {
		_, err := s.InsertTransaction(ctx, expense("u1", "food", cents, baseTime))
		require.NoError(t, err)
	}
	_, err = s.InsertTransaction(ctx, expense("u1", "food", 7777, baseTime.AddDate(0, -1, 0)))
	require.NoError(t, err)

	reconciled, r, err := s.ReconcileBudget(ctx, b.ID, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(3950), r.Spent.Cents)
	assert.Equal(t, int64(3950), reconciled.Spent.Cents)
	assert.False(t, r.Exceeded)

	again, r2, err := s.ReconcileBudget(ctx, b.ID, baseTime)
	require.NoError(t, err)
	assert.Equal(t, r.Spent, r2.Spent, "reconcile is idempotent")
	assert.Equal(t, reconciled.Version+1, again.Version)

	_, err = s.MutateBudget(ctx, b.ID, func(b *core.Budget) error {
		b.IsActive = false
		return nil
	})
	require.NoError(t, err)

	active, err := s.ListActiveBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "rent", active[0].CategoryID)

	found, err = s.FindBudgets(ctx, "u1", "food", baseTime)
	require.NoError(t, err)
	require.Len(t, found, 1, "inactive budgets are still found by window")
	assert.False(t, found[0].IsActive)

	all, err := s.ListBudgets(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testGoalMutate(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()
	g, err := core.NewGoal(core.Goal{OwnerID: "u1", Name: "Holiday", Target: core.Cents(10000), Current: core.Cents(8000)}, baseTime)
	require.NoError(t, err)
	g, err = s.InsertGoal(ctx, g)
	require.NoError(t, err)

	var c core.Contribution
	updated, err := s.MutateGoal(ctx, g.ID, func(g *core.Goal) error {
		var err error
		c, err = g.Contribute(core.Cents(5000), baseTime)
		return err
	})
	require.NoError(t, err)
	assert.True(t, c.JustAchieved)
	assert.Equal(t, int64(10000), updated.Current.Cents)

	got, err := s.GetGoal(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAchieved)
	assert.True(t, got.AchievedAt.Equal(baseTime))

	goals, err := s.ListGoals(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, goals, 1)
}

func testCategories(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()
	require.NoError(t, s.UpsertCategory(ctx, core.Category{ID: "food", Kind: core.Expense, Labels: map[string]string{"en": "Food"}}))
	require.NoError(t, s.UpsertCategory(ctx, core.Category{ID: "food", Kind: core.Expense, Labels: map[string]string{"en": "Food", "it": "Cibo"}}))
	require.NoError(t, s.UpsertCategory(ctx, core.Category{ID: "pets", OwnerID: "u1", Kind: core.Expense}))
	require.NoError(t, s.UpsertCategory(ctx, core.Category{ID: "boat", OwnerID: "u2", Kind: core.Expense}))

	cats, err := s.ListCategories(ctx, "u1")
	require.NoError(t, err)

	ids := map[string]core.Category{}
	for _, c := range cats {
		ids[c.ID] = c
	}
	assert.Contains(t, ids, "food")
	assert.Contains(t, ids, "pets")
	assert.NotContains(t, ids, "boat")
	assert.Equal(t, "Cibo", ids["food"].Label("it"))
}

func testNotFound(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()
	missing := core.NewID()

	_, err := s.GetDebt(ctx, missing)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetBudget(ctx, missing)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetGoal(ctx, missing)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.MutateDebt(ctx, missing, func(*core.Debt) error { return nil })
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = s.ReconcileBudget(ctx, missing, baseTime)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, missing), core.ErrNotFound)
}
