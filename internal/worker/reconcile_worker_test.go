package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

type fakeReconciler struct {
	touched atomic.Int32
	sweeps  atomic.Int32
	err     error
}

func (f *fakeReconciler) ReconcileTouched(_ context.Context, _ string, touches []events.Touch) ([]core.Reconciliation, error) {
	f.touched.Add(int32(len(touches)))
	return nil, f.err
}

func (f *fakeReconciler) Sweep(context.Context) (services.SweepResult, error) {
	f.sweeps.Add(1)
	return services.SweepResult{}, f.err
}

func TestReconcileWorker_HandleEventUpdatesBudget(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := &events.Recorder{}
	budgets := services.NewBudgetService(store, rec)
	txs := services.NewTransactionService(store, rec)
	w := NewReconcileWorker(budgets, 0)

	b, err := budgets.Create(ctx, services.CreateBudgetRequest{
		OwnerID: "u1", CategoryID: "food", Allocated: core.Cents(10000), Period: core.Monthly,
	})
	require.NoError(t, err)
	_, err = txs.Record(ctx, core.Transaction{OwnerID: "u1", CategoryID: "food", Kind: core.Expense, Amount: core.Cents(4200)})
	require.NoError(t, err)

	for _, e := range rec.OfType(events.TransactionRecorded) {
		require.NoError(t, w.HandleEvent(ctx, e))
	}

	got, err := budgets.Get(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4200), got.Spent.Cents)
}

func TestReconcileWorker_IgnoresNonLedgerEvents(t *testing.T) {
	r := &fakeReconciler{}
	w := NewReconcileWorker(r, 0)

	for _, e := range []events.Event{
		events.New(events.GoalAchieved, "u1", "g1", time.Now()),
		events.ForTransaction(events.TransactionRecorded, core.Transaction{OwnerID: "u1", Kind: core.Income, Amount: core.Cents(1)}, nil, time.Now()),
	} {
		require.NoError(t, w.HandleEvent(context.Background(), e))
	}
	assert.Zero(t, r.touched.Load())
}

func TestReconcileWorker_HandleEventReturnsError(t *testing.T) {
	r := &fakeReconciler{err: errors.New("store down")}
	w := NewReconcileWorker(r, 0)
	e := events.ForTransaction(events.TransactionDeleted,
		core.Transaction{ID: "t1", OwnerID: "u1", CategoryID: "food", Kind: core.Expense, Amount: core.Cents(1), OccurredAt: time.Now()},
		nil, time.Now())

	err := w.HandleEvent(context.Background(), e)

	assert.ErrorContains(t, err, "store down")
	assert.Equal(t, int32(1), r.touched.Load())
}

func TestReconcileWorker_RunSweepsUntilCancelled(t *testing.T) {
	r := &fakeReconciler{}
	w := NewReconcileWorker(r, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.sweeps.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestReconcileWorker_StartupSweep(t *testing.T) {
	r := &fakeReconciler{}
	require.NoError(t, NewReconcileWorker(r, 0).StartupSweep(context.Background()))
	assert.Equal(t, int32(1), r.sweeps.Load())

	r.err = errors.New("boom")
	assert.Error(t, NewReconcileWorker(r, 0).StartupSweep(context.Background()))
}
