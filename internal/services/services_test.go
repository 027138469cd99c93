package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/storage/memory"
)

// Wednesday.
var testNow = time.Date(2025, 2, 12, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	events    *events.Recorder
	debts     *DebtService
	budgets   *BudgetService
	goals     *GoalService
	txs       *TransactionService
	dashboard *DashboardService
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.New(),
		events: &events.Recorder{},
		now:    testNow,
	}
	clock := func() time.Time { return f.now }

	f.debts = NewDebtService(f.store, f.events)
	f.debts.now = clock
	f.budgets = NewBudgetService(f.store, f.events)
	f.budgets.now = clock
	f.goals = NewGoalService(f.store, f.events)
	f.goals.now = clock
	f.dashboard = NewDashboardService(f.store, cache.NewLRUCache[Dashboard](16, time.Hour))
	f.dashboard.now = clock
	f.txs = NewTransactionService(f.store, f.events,
		WithInlineReconcile(f.budgets),
		WithInvalidator(f.dashboard))
	f.txs.now = clock
	return f
}

func (f *fixture) record(t *testing.T, owner, category string, kind core.TransactionKind, cents int64, at time.Time) core.Transaction {
	t.Helper()
	tx, err := f.txs.Record(context.Background(), core.Transaction{
		OwnerID:    owner,
		CategoryID: category,
		Kind:       kind,
		Amount:     core.Cents(cents),
		Currency:   "EUR",
		OccurredAt: at,
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) expense(t *testing.T, owner, category string, cents int64, at time.Time) core.Transaction {
	t.Helper()
	return f.record(t, owner, category, core.Expense, cents, at)
}
