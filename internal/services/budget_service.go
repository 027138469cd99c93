package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/events"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// BudgetStore is what reconciliation needs from persistence.
type BudgetStore interface {
	storage.BudgetStore
	SumTransactions(ctx context.Context, ownerID string, f storage.TransactionFilter) (core.Money, error)
}

// DefaultReconcileConcurrency bounds how many budgets are reconciled at once.
const DefaultReconcileConcurrency = 4

// BudgetService keeps every budget's spend in line with the ledger.
type BudgetService struct {
	store       BudgetStore
	publisher   events.Publisher
	now         clock
	concurrency int
}

func NewBudgetService(store BudgetStore, publisher events.Publisher) *BudgetService {
	return &BudgetService{
		store:       store,
		publisher:   publisherOrNop(publisher),
		now:         time.Now,
		concurrency: DefaultReconcileConcurrency,
	}
}

// CreateBudgetRequest carries the caller's input. A zero AlertThreshold
// selects core.DefaultAlertThreshold.
type CreateBudgetRequest struct {
	OwnerID        string
	CategoryID     string
	Allocated      core.Money
	Period         core.Period
	AlertThreshold decimal.Decimal
}

// Create opens a budget for the period window containing now. Spend already
// recorded inside the window is picked up right away.
func (s *BudgetService) Create(ctx context.Context, req CreateBudgetRequest) (core.Budget, error) {
	b, err := core.NewBudget(req.OwnerID, req.CategoryID, req.Allocated, req.Period, req.AlertThreshold, s.now())
	if err != nil {
		return core.Budget{}, err
	}
	saved, err := s.store.InsertBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget created", applog.NewFields().
		WithOwner(saved.OwnerID).
		WithRecord(core.KindBudget, saved.ID).
		With(applog.FieldCategoryID, saved.CategoryID).
		With(applog.FieldPeriod, saved.Period).
		With(applog.FieldStart, saved.Start).
		With(applog.FieldEnd, saved.End).
		ToSlice()...)

	reconciled, _, err := s.reconcile(ctx, saved.ID)
	if err != nil {
		// The budget exists; the next sweep picks up its spend.
		slog.WarnContext(ctx, "Initial budget reconciliation failed",
			applog.NewFields().WithRecord(core.KindBudget, saved.ID).WithError(err).ToSlice()...)
		return saved, nil
	}
	return reconciled, nil
}

func (s *BudgetService) Get(ctx context.Context, ownerID, id string) (core.Budget, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, err
	}
	if err := checkOwner(core.KindBudget, id, b.OwnerID, ownerID); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (s *BudgetService) List(ctx context.Context, ownerID string) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx, ownerID)
}

// Reconcile recomputes the budget's spend from scratch. Running it again
// without ledger changes yields the same result.
func (s *BudgetService) Reconcile(ctx context.Context, ownerID, id string) (core.Budget, core.Reconciliation, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return core.Budget{}, core.Reconciliation{}, err
	}
	return s.reconcile(ctx, id)
}

func (s *BudgetService) reconcile(ctx context.Context, id string) (core.Budget, core.Reconciliation, error) {
	b, r, err := s.store.ReconcileBudget(ctx, id, s.now())
	if err != nil {
		return core.Budget{}, core.Reconciliation{}, fmt.Errorf("reconcile budget %s: %w", id, err)
	}

	if r.CrossedThreshold {
		s.publishBudget(ctx, events.BudgetThresholdReached, b)
	}
	if r.CrossedExceeded {
		s.publishBudget(ctx, events.BudgetExceeded, b)
	}
	slog.DebugContext(ctx, "Budget reconciled", applog.NewFields().
		WithRecord(core.KindBudget, b.ID).
		WithOperation(applog.OpReconcile).
		With(applog.FieldSpentCents, r.Spent.Cents).
		With(applog.FieldAllocatedCents, r.Allocated.Cents).
		With(applog.FieldExceeded, r.Exceeded).
		ToSlice()...)
	return b, r, nil
}

func (s *BudgetService) publishBudget(ctx context.Context, t events.Type, b core.Budget) {
	e := events.New(t, b.OwnerID, b.ID, s.now())
	e.CategoryID = b.CategoryID
	e.AmountCents = b.Spent.Cents
	publish(ctx, s.publisher, e)
}

// ReconcileTouched reconciles every budget of owner that one of the touches
// falls into, including budgets already deactivated by Sweep. Each budget is reconciled once even when several
// touches hit it.
func (s *BudgetService) ReconcileTouched(ctx context.Context, ownerID string, touches []events.Touch) ([]core.Reconciliation, error) {
	seen := map[string]bool{}
	var ids []string
	for _, t := range touches {
		budgets, err := s.store.FindBudgets(ctx, ownerID, t.CategoryID, t.At)
		if err != nil {
			return nil, fmt.Errorf("find budgets: %w", err)
		}
		for _, b := range budgets {
			if !seen[b.ID] {
				seen[b.ID] = true
				ids = append(ids, b.ID)
			}
		}
	}
	return s.reconcileAll(ctx, ids)
}

// reconcileAll fans out over ids with bounded concurrency. Results keep the
// order of ids.
func (s *BudgetService) reconcileAll(ctx context.Context, ids []string) ([]core.Reconciliation, error) {
	out := make([]core.Reconciliation, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			_, r, err := s.reconcile(ctx, id)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// TotalMonthlySpend sums every expense of the owner in the calendar month
// containing now, regardless of budgets.
func (s *BudgetService) TotalMonthlySpend(ctx context.Context, ownerID string) (core.Money, error) {
	from, to := core.CurrentMonth(s.now())
	total, err := s.store.SumTransactions(ctx, ownerID, storage.TransactionFilter{
		Kind: core.Expense,
		From: from,
		To:   to,
	})
	if err != nil {
		return core.Money{}, fmt.Errorf("sum monthly spend: %w", err)
	}
	return total, nil
}

// Deactivate takes a budget out of Sweep. Its spent total still follows
// edits to transactions inside its window.
func (s *BudgetService) Deactivate(ctx context.Context, ownerID, id string) (core.Budget, error) {
	return s.store.MutateBudget(ctx, id, func(b *core.Budget) error {
		if err := checkOwner(core.KindBudget, id, b.OwnerID, ownerID); err != nil {
			return err
		}
		b.IsActive = false
		b.UpdatedAt = s.now()
		return nil
	})
}

// SweepResult summarizes one Sweep pass.
type SweepResult struct {
	Reconciled  int
	Deactivated int
	Failed      int
}

// Sweep reconciles every active budget and deactivates the ones whose window
// has closed, after a final reconciliation. A failing budget is logged and
// counted without stopping the pass.
func (s *BudgetService) Sweep(ctx context.Context) (SweepResult, error) {
	budgets, err := s.store.ListActiveBudgets(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list active budgets: %w", err)
	}

	var (
		mu  sync.Mutex
		res SweepResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, b := range budgets {
		g.Go(func() error {
			deactivated, err := s.sweepOne(gctx, b)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.Failed++
				slog.ErrorContext(gctx, "Budget sweep failed",
					applog.NewFields().WithRecord(core.KindBudget, b.ID).WithError(err).ToSlice()...)
			case deactivated:
				res.Reconciled++
				res.Deactivated++
			default:
				res.Reconciled++
			}
			// Cancellation stops the pass; per-budget failures do not.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	slog.InfoContext(ctx, "Budget sweep completed", applog.NewFields().
		WithOperation(applog.OpSweep).
		With(applog.FieldReconciled, res.Reconciled).
		With(applog.FieldDeactivated, res.Deactivated).
		With(applog.FieldFailed, res.Failed).
		ToSlice()...)
	return res, nil
}

func (s *BudgetService) sweepOne(ctx context.Context, b core.Budget) (bool, error) {
	if _, _, err := s.reconcile(ctx, b.ID); err != nil {
		return false, err
	}
	if !b.Expired(s.now()) {
		return false, nil
	}
	_, err := s.store.MutateBudget(ctx, b.ID, func(cur *core.Budget) error {
		cur.IsActive = false
		cur.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("deactivate budget %s: %w", b.ID, err)
	}
	return true, nil
}
