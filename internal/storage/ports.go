// Package storage defines the record store consumed by the services and the
// helpers shared by its implementations (memory, sqlite, postgres).
package storage

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// TransactionFilter narrows a transaction query. Zero values do not filter.
type TransactionFilter struct {
	// CategoryID filters on an exact category; a pointer to "" selects
	// uncategorized transactions.
	CategoryID *string
	Kind       core.TransactionKind
	// From and To bound OccurredAt inclusively.
	From time.Time
	To   time.Time
}

// Match reports whether tx passes the filter. Owner scoping is done by the
// caller.
func (f TransactionFilter) Match(tx core.Transaction) bool {
	if f.CategoryID != nil && tx.CategoryID != *f.CategoryID {
		return false
	}
	if f.Kind != "" && tx.Kind != f.Kind {
		return false
	}
	if !f.From.IsZero() && tx.OccurredAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.OccurredAt.After(f.To) {
		return false
	}
	return true
}

// BudgetFilter returns the filter selecting the expenses that count toward b.
func BudgetFilter(b core.Budget) TransactionFilter {
	category := b.CategoryID
	return TransactionFilter{
		CategoryID: &category,
		Kind:       core.Expense,
		From:       b.Start,
		To:         b.End,
	}
}

// Ports for outbound adapters.
//
// Mutate* methods run fn on the freshest copy of the record while holding the
// record's write lock, then persist the result with Version+1. When fn returns
// an error nothing is written and that error is returned unchanged.
// Implementations retry internally on detected write conflicts and surface a
// core.ConflictError only once their attempts are exhausted.
type (
	TransactionStore interface {
		QueryTransactions(ctx context.Context, ownerID string, f TransactionFilter) ([]core.Transaction, error)
		SumTransactions(ctx context.Context, ownerID string, f TransactionFilter) (core.Money, error)
		InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
	}

	DebtStore interface {
		InsertDebt(ctx context.Context, d core.Debt) (core.Debt, error)
		GetDebt(ctx context.Context, id string) (core.Debt, error)
		ListDebts(ctx context.Context, ownerID string) ([]core.Debt, error)
		MutateDebt(ctx context.Context, id string, fn func(*core.Debt) error) (core.Debt, error)
	}

	BudgetStore interface {
		InsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		GetBudget(ctx context.Context, id string) (core.Budget, error)
		ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error)
		// FindBudgets returns the budgets of owner for category whose window
		// contains at, active or not.
		FindBudgets(ctx context.Context, ownerID, categoryID string, at time.Time) ([]core.Budget, error)
		// ListActiveBudgets returns active budgets across every owner.
		ListActiveBudgets(ctx context.Context) ([]core.Budget, error)
		MutateBudget(ctx context.Context, id string, fn func(*core.Budget) error) (core.Budget, error)
		// ReconcileBudget recomputes the budget's spend from its matching
		// transactions and stores it, all under the budget's write lock.
		ReconcileBudget(ctx context.Context, id string, now time.Time) (core.Budget, core.Reconciliation, error)
	}

	GoalStore interface {
		InsertGoal(ctx context.Context, g core.Goal) (core.Goal, error)
		GetGoal(ctx context.Context, id string) (core.Goal, error)
		ListGoals(ctx context.Context, ownerID string) ([]core.Goal, error)
		MutateGoal(ctx context.Context, id string, fn func(*core.Goal) error) (core.Goal, error)
	}

	CategoryStore interface {
		UpsertCategory(ctx context.Context, c core.Category) error
		// ListCategories returns the shared taxonomy plus owner's own entries.
		ListCategories(ctx context.Context, ownerID string) ([]core.Category, error)
	}

	// RecordStore is the full persistence surface of the application.
	RecordStore interface {
		TransactionStore
		DebtStore
		BudgetStore
		GoalStore
		CategoryStore
		Close() error
	}
)
