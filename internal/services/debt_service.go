package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/events"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// DebtService runs the debt lifecycle against the store.
type DebtService struct {
	store     storage.DebtStore
	publisher events.Publisher
	now       clock
}

func NewDebtService(store storage.DebtStore, publisher events.Publisher) *DebtService {
	return &DebtService{
		store:     store,
		publisher: publisherOrNop(publisher),
		now:       time.Now,
	}
}

// Create validates d, fills in the derived defaults and stores it.
func (s *DebtService) Create(ctx context.Context, d core.Debt) (core.Debt, error) {
	debt, err := core.NewDebt(d, s.now())
	if err != nil {
		return core.Debt{}, err
	}
	saved, err := s.store.InsertDebt(ctx, debt)
	if err != nil {
		return core.Debt{}, fmt.Errorf("save debt: %w", err)
	}
	slog.InfoContext(ctx, "Debt created", applog.NewFields().
		WithOwner(saved.OwnerID).
		WithRecord(core.KindDebt, saved.ID).
		WithAmount(saved.Original.Cents).
		With(applog.FieldDebtType, saved.Type).
		With(applog.FieldPriority, saved.Priority).
		ToSlice()...)
	return saved, nil
}

func (s *DebtService) Get(ctx context.Context, ownerID, id string) (core.Debt, error) {
	d, err := s.store.GetDebt(ctx, id)
	if err != nil {
		return core.Debt{}, err
	}
	if err := checkOwner(core.KindDebt, id, d.OwnerID, ownerID); err != nil {
		return core.Debt{}, err
	}
	return d, nil
}

func (s *DebtService) List(ctx context.Context, ownerID string) ([]core.Debt, error) {
	return s.store.ListDebts(ctx, ownerID)
}

// ApplyPayment reduces the remaining balance by amount. Payments are
// serialized per debt by the store, so concurrent payments never lose an
// update and can never drive the balance below zero.
func (s *DebtService) ApplyPayment(ctx context.Context, ownerID, id string, amount core.Money) (core.Debt, error) {
	d, err := s.mutate(ctx, ownerID, id, func(d *core.Debt, now time.Time) error {
		return d.ApplyPayment(amount, now)
	})
	if err != nil {
		return core.Debt{}, err
	}

	e := events.New(events.DebtPaymentApplied, d.OwnerID, d.ID, s.now())
	e.AmountCents = amount.Cents
	publish(ctx, s.publisher, e)
	if d.IsSettled {
		publish(ctx, s.publisher, events.New(events.DebtSettled, d.OwnerID, d.ID, s.now()))
	}

	slog.InfoContext(ctx, "Debt payment applied", applog.NewFields().
		WithRecord(core.KindDebt, d.ID).
		WithOperation(applog.OpPay).
		WithAmount(amount.Cents).
		With(applog.FieldRemainingCents, d.Remaining.Cents).
		With(applog.FieldSettled, d.IsSettled).
		ToSlice()...)
	return d, nil
}

// Settle force-closes the debt. Settling twice returns the stored debt
// unchanged.
func (s *DebtService) Settle(ctx context.Context, ownerID, id string) (core.Debt, error) {
	var already bool
	d, err := s.mutate(ctx, ownerID, id, func(d *core.Debt, now time.Time) error {
		already = d.IsSettled
		return d.Settle(now)
	})
	if err != nil {
		return core.Debt{}, err
	}
	if !already {
		publish(ctx, s.publisher, events.New(events.DebtSettled, d.OwnerID, d.ID, s.now()))
		slog.InfoContext(ctx, "Debt settled", applog.NewFields().WithRecord(core.KindDebt, d.ID).ToSlice()...)
	}
	return d, nil
}

func (s *DebtService) Cancel(ctx context.Context, ownerID, id string) (core.Debt, error) {
	var already bool
	d, err := s.mutate(ctx, ownerID, id, func(d *core.Debt, now time.Time) error {
		already = d.Status == core.DebtCancelled
		return d.Cancel(now)
	})
	if err != nil {
		return core.Debt{}, err
	}
	if !already {
		publish(ctx, s.publisher, events.New(events.DebtCancelled, d.OwnerID, d.ID, s.now()))
		slog.InfoContext(ctx, "Debt cancelled", applog.NewFields().WithRecord(core.KindDebt, d.ID).ToSlice()...)
	}
	return d, nil
}

// Correct overrides the remaining balance. It is the only path that may
// increase it.
func (s *DebtService) Correct(ctx context.Context, ownerID, id string, remaining core.Money) (core.Debt, error) {
	d, err := s.mutate(ctx, ownerID, id, func(d *core.Debt, now time.Time) error {
		return d.Correct(remaining, now)
	})
	if err != nil {
		return core.Debt{}, err
	}
	slog.WarnContext(ctx, "Debt balance corrected", applog.NewFields().
		WithRecord(core.KindDebt, d.ID).
		WithOperation(applog.OpCorrect).
		With(applog.FieldRemainingCents, d.Remaining.Cents).
		ToSlice()...)
	if d.IsSettled {
		publish(ctx, s.publisher, events.New(events.DebtSettled, d.OwnerID, d.ID, s.now()))
	}
	return d, nil
}

// Summarize folds every debt of the owner into one position.
func (s *DebtService) Summarize(ctx context.Context, ownerID string) (core.DebtSummary, error) {
	debts, err := s.store.ListDebts(ctx, ownerID)
	if err != nil {
		return core.DebtSummary{}, fmt.Errorf("list debts: %w", err)
	}
	return core.SummarizeDebts(debts, s.now()), nil
}

func (s *DebtService) mutate(ctx context.Context, ownerID, id string, fn func(d *core.Debt, now time.Time) error) (core.Debt, error) {
	return s.store.MutateDebt(ctx, id, func(d *core.Debt) error {
		if err := checkOwner(core.KindDebt, id, d.OwnerID, ownerID); err != nil {
			return err
		}
		return fn(d, s.now())
	})
}
