package services

import (
	"context"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/events"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// Reconciler brings the budgets hit by a ledger change up to date.
type Reconciler interface {
	ReconcileTouched(ctx context.Context, ownerID string, touches []events.Touch) ([]core.Reconciliation, error)
}

// Invalidator drops derived read models of an owner.
type Invalidator interface {
	Invalidate(ownerID string)
}

// TransactionService records ledger entries. After every change it
// invalidates the owner's dashboards, reconciles touched budgets when running
// inline, and publishes the change so an out of process worker can do the
// same.
type TransactionService struct {
	store       storage.TransactionStore
	publisher   events.Publisher
	reconciler  Reconciler
	invalidator Invalidator
	now         clock
}

type TransactionOption func(*TransactionService)

// WithInlineReconcile reconciles affected budgets before returning.
func WithInlineReconcile(r Reconciler) TransactionOption {
	return func(s *TransactionService) { s.reconciler = r }
}

func WithInvalidator(i Invalidator) TransactionOption {
	return func(s *TransactionService) { s.invalidator = i }
}

func NewTransactionService(store storage.TransactionStore, publisher events.Publisher, opts ...TransactionOption) *TransactionService {
	s := &TransactionService{
		store:     store,
		publisher: publisherOrNop(publisher),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record stores a new transaction. A zero OccurredAt means now.
func (s *TransactionService) Record(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = s.now()
	}
	tx.ID = ""
	saved, err := s.store.InsertTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	s.afterChange(ctx, events.TransactionRecorded, saved, nil)
	return saved, nil
}

func (s *TransactionService) Get(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := checkOwner(core.KindTransaction, id, tx.OwnerID, ownerID); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (s *TransactionService) List(ctx context.Context, ownerID string, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.store.QueryTransactions(ctx, ownerID, f)
}

// Update applies patch to the stored transaction. The kind cannot change.
func (s *TransactionService) Update(ctx context.Context, ownerID, id string, patch core.Transaction) (core.Transaction, error) {
	cur, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	prev := cur
	if err := cur.ApplyUpdate(patch, s.now()); err != nil {
		return core.Transaction{}, err
	}
	saved, err := s.store.UpdateTransaction(ctx, cur)
	if err != nil {
		return core.Transaction{}, err
	}
	s.afterChange(ctx, events.TransactionUpdated, saved, &prev)
	return saved, nil
}

func (s *TransactionService) Delete(ctx context.Context, ownerID, id string) error {
	cur, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.afterChange(ctx, events.TransactionDeleted, cur, nil)
	return nil
}

func (s *TransactionService) afterChange(ctx context.Context, t events.Type, tx core.Transaction, prev *core.Transaction) {
	e := events.ForTransaction(t, tx, prev, s.now())

	if s.invalidator != nil {
		s.invalidator.Invalidate(tx.OwnerID)
	}
	if s.reconciler != nil {
		if touches := e.Touches(); len(touches) > 0 {
			if _, err := s.reconciler.ReconcileTouched(ctx, tx.OwnerID, touches); err != nil {
				// Reconciliation is a full recomputation; the sweep repairs it.
				slog.ErrorContext(ctx, "Inline budget reconciliation failed", applog.NewFields().
					WithRecord(core.KindTransaction, tx.ID).
					WithOperation(applog.OpReconcile).
					WithError(err).
					ToSlice()...)
			}
		}
	}
	publish(ctx, s.publisher, e)

	slog.InfoContext(ctx, "Transaction changed", applog.NewFields().
		WithOwner(tx.OwnerID).
		WithRecord(core.KindTransaction, tx.ID).
		WithAmount(tx.Amount.Cents).
		With(applog.FieldEventType, string(t)).
		With(applog.FieldKind, tx.Kind).
		ToSlice()...)
}
