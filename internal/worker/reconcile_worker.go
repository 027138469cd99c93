package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/events"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

// Reconciler is the slice of the budget service the worker drives.
type Reconciler interface {
	ReconcileTouched(ctx context.Context, ownerID string, touches []events.Touch) ([]core.Reconciliation, error)
	Sweep(ctx context.Context) (services.SweepResult, error)
}

// ReconcileWorker keeps budget spend in line with the ledger when the API
// does not reconcile inline. It reacts to published transaction events and
// runs a periodic full sweep as a backstop for lost messages.
type ReconcileWorker struct {
	budgets  Reconciler
	interval time.Duration
}

func NewReconcileWorker(budgets Reconciler, interval time.Duration) *ReconcileWorker {
	return &ReconcileWorker{budgets: budgets, interval: interval}
}

// HandleEvent reconciles the budgets touched by a transaction event. Other
// event types are acknowledged and ignored.
func (w *ReconcileWorker) HandleEvent(ctx context.Context, e events.Event) error {
	touches := e.Touches()
	if len(touches) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing ledger event", applog.NewFields().
		WithOwner(e.OwnerID).
		With(applog.FieldEventID, e.ID).
		With(applog.FieldEventType, string(e.Type)).
		ToSlice()...)

	results, err := w.budgets.ReconcileTouched(ctx, e.OwnerID, touches)
	if err != nil {
		return fmt.Errorf("reconcile budgets for %s: %w", e.RecordID, err)
	}

	slog.InfoContext(ctx, "Budgets reconciled",
		applog.FieldEventID, e.ID,
		"budgets", len(results))
	return nil
}

// StartupSweep reconciles every active budget once. It recovers from events
// missed while the worker was down.
func (w *ReconcileWorker) StartupSweep(ctx context.Context) error {
	res, err := w.budgets.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("startup sweep: %w", err)
	}
	slog.InfoContext(ctx, "Startup sweep completed",
		"reconciled", res.Reconciled,
		"deactivated", res.Deactivated,
		"errors", res.Failed)
	return nil
}

// Run sweeps on every tick until ctx is done.
func (w *ReconcileWorker) Run(ctx context.Context) {
	if w.interval <= 0 {
		slog.InfoContext(ctx, "Periodic sweep disabled")
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := w.budgets.Sweep(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Periodic sweep failed", "error", err)
				continue
			}
			if res.Failed > 0 {
				slog.WarnContext(ctx, "Periodic sweep left budgets behind", "errors", res.Failed)
			}
		}
	}
}
