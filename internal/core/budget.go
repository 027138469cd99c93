package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAlertThreshold is the fraction of the allocation at which a budget
// starts signalling.
var DefaultAlertThreshold = decimal.RequireFromString("0.8")

// Budget is a spending cap for one category over one period window.
// Spent is a cache of the expense transactions inside the window; it is
// always rebuilt by Reconcile, never incremented.
type Budget struct {
	ID             string
	OwnerID        string
	CategoryID     string
	Period         Period
	Allocated      Money
	Start          time.Time
	End            time.Time // zero means the window is still open
	Spent          Money
	AlertThreshold decimal.Decimal
	IsActive       bool
	ReconciledAt   time.Time
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Reconciliation is the outcome of recomputing a budget's spend.
type Reconciliation struct {
	BudgetID  string
	Spent     Money
	Allocated Money
	// Remaining is Allocated - Spent and goes negative once exceeded.
	Remaining        Money
	Exceeded         bool
	ThresholdReached bool
	// CrossedThreshold and CrossedExceeded are set when this pass moved the
	// budget over the alert threshold or the allocation.
	CrossedThreshold bool
	CrossedExceeded  bool
}

// NewBudget creates a budget for the period window containing now.
func NewBudget(ownerID, categoryID string, allocated Money, period Period, threshold decimal.Decimal, now time.Time) (Budget, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Budget{}, invalid("owner_id", ErrMissingField)
	}
	if strings.TrimSpace(categoryID) == "" {
		return Budget{}, invalid("category_id", ErrMissingField)
	}
	if err := allocated.Validate(); err != nil {
		return Budget{}, invalid("amount", err)
	}
	window, err := WindowFor(period)
	if err != nil {
		return Budget{}, invalid("period", err)
	}
	if threshold.IsZero() {
		threshold = DefaultAlertThreshold
	}
	if threshold.IsNegative() || threshold.GreaterThan(decimal.NewFromInt(1)) {
		return Budget{}, invalid("alert_threshold", ErrInvalidThreshold)
	}

	start, end := window.Window(now)
	return Budget{
		ID:             NewID(),
		OwnerID:        ownerID,
		CategoryID:     categoryID,
		Period:         period,
		Allocated:      allocated,
		Start:          start,
		End:            end,
		AlertThreshold: threshold,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Contains reports whether t falls inside [Start, End]; an open End matches
// everything from Start on.
func (b Budget) Contains(t time.Time) bool {
	if t.Before(b.Start) {
		return false
	}
	return b.End.IsZero() || !t.After(b.End)
}

// Matches reports whether tx counts toward this budget.
func (b Budget) Matches(tx Transaction) bool {
	return tx.Kind == Expense &&
		tx.OwnerID == b.OwnerID &&
		tx.CategoryID == b.CategoryID &&
		b.Contains(tx.OccurredAt)
}

// SumSpent adds up every transaction in txs that matches the budget.
func (b Budget) SumSpent(txs []Transaction) Money {
	var total Money
	for _, tx := range txs {
		if b.Matches(tx) {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// Exceeded reports spend strictly above the allocation.
func (b Budget) Exceeded() bool {
	return b.Spent.Cents > b.Allocated.Cents
}

// ThresholdReached reports spend at or above AlertThreshold x Allocated.
func (b Budget) ThresholdReached() bool {
	limit := b.AlertThreshold.Mul(decimal.NewFromInt(b.Allocated.Cents))
	return decimal.NewFromInt(b.Spent.Cents).GreaterThanOrEqual(limit)
}

// Utilization is Spent/Allocated as a percentage with two decimals.
func (b Budget) Utilization() decimal.Decimal {
	return Percent(b.Spent, b.Allocated)
}

// ApplyReconciliation overwrites the cached spend with a freshly computed
// total and reports the resulting signals.
func (b *Budget) ApplyReconciliation(spent Money, now time.Time) Reconciliation {
	wasThreshold, wasExceeded := b.ThresholdReached(), b.Exceeded()
	b.Spent = spent
	b.ReconciledAt = now
	b.UpdatedAt = now

	r := Reconciliation{
		BudgetID:         b.ID,
		Spent:            b.Spent,
		Allocated:        b.Allocated,
		Remaining:        b.Allocated.Sub(b.Spent),
		Exceeded:         b.Exceeded(),
		ThresholdReached: b.ThresholdReached(),
	}
	r.CrossedThreshold = r.ThresholdReached && !wasThreshold
	r.CrossedExceeded = r.Exceeded && !wasExceeded
	return r
}

// Expired reports a budget whose window closed before now.
func (b Budget) Expired(now time.Time) bool {
	return !b.End.IsZero() && b.End.Before(now)
}
