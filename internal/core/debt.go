package core

import (
	"strings"
	"time"
)

const (
	OwedToMe   DebtType = "owed_to_me"
	IOwe       DebtType = "i_owe"
	Loan       DebtType = "loan"
	CreditCard DebtType = "credit_card"

	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"

	DebtActive    DebtStatus = "active"
	DebtPaid      DebtStatus = "paid"
	DebtCancelled DebtStatus = "cancelled"
)

type (
	DebtType   string
	Priority   string
	DebtStatus string

	// Debt is money owed to the owner or owed by the owner.
	//
	// Invariants: 0 <= Remaining <= Original; Remaining only decreases except
	// through Correct; IsSettled implies Remaining == 0 and Status == paid;
	// a cancelled debt accepts no payments.
	Debt struct {
		ID             string
		OwnerID        string
		CreditorName   string
		DebtorName     string
		Type           DebtType
		Original       Money
		Remaining      Money
		MinimumPayment Money
		Currency       string
		DueDate        time.Time // zero when there is no due date
		Priority       Priority
		Status         DebtStatus
		IsSettled      bool
		SettledAt      time.Time
		Description    string
		Version        int64
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}
)

var (
	highPriorityAbove   = Cents(100000) // 1000.00
	mediumPriorityAbove = Cents(50000)  // 500.00
	minPaymentFloor     = Cents(1000)   // 10.00
	minPaymentCeiling   = Cents(5000)   // 50.00
)

func (t DebtType) Valid() bool {
	switch t {
	case OwedToMe, IOwe, Loan, CreditCard:
		return true
	}
	return false
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// DefaultPriority derives a priority from the size of the debt.
func DefaultPriority(amount Money) Priority {
	switch {
	case amount.Cents > highPriorityAbove.Cents:
		return PriorityHigh
	case amount.Cents > mediumPriorityAbove.Cents:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// DefaultMinimumPayment is 10% of the amount clamped to [10, 50].
func DefaultMinimumPayment(amount Money) Money {
	tenth := Cents(amount.Cents / 10)
	if tenth.Cents < minPaymentFloor.Cents {
		return minPaymentFloor
	}
	if tenth.Cents > minPaymentCeiling.Cents {
		return minPaymentCeiling
	}
	return tenth
}

// NewDebt validates a caller-supplied debt and returns it in its initial
// active state. Priority and minimum payment are derived when left empty.
func NewDebt(d Debt, now time.Time) (Debt, error) {
	if strings.TrimSpace(d.OwnerID) == "" {
		return Debt{}, invalid("owner_id", ErrMissingField)
	}
	if !d.Type.Valid() {
		return Debt{}, invalid("debt_type", ErrInvalidKind)
	}
	if err := d.Original.Validate(); err != nil {
		return Debt{}, invalid("original_amount", err)
	}
	if d.Priority != "" && !d.Priority.Valid() {
		return Debt{}, invalid("priority", ErrInvalidKind)
	}
	if d.MinimumPayment.IsNegative() {
		return Debt{}, invalid("minimum_payment", ErrInvalidAmount)
	}
	if len(d.Description) > maxDescriptionLen {
		return Debt{}, invalid("description", ErrDescriptionLong)
	}

	if d.ID == "" {
		d.ID = NewID()
	}
	d.Remaining = d.Original
	d.Status = DebtActive
	d.IsSettled = false
	d.SettledAt = time.Time{}
	if d.Priority == "" {
		d.Priority = DefaultPriority(d.Original)
	}
	if d.MinimumPayment.IsZero() {
		d.MinimumPayment = DefaultMinimumPayment(d.Original)
	}
	d.Version = 0
	d.CreatedAt = now
	d.UpdatedAt = now
	return d, nil
}

// ApplyPayment reduces the remaining balance. A payment that brings the
// balance to exactly zero settles the debt. On error d is left untouched.
func (d *Debt) ApplyPayment(amount Money, now time.Time) error {
	if err := amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	switch d.Status {
	case DebtCancelled:
		return invalid("status", ErrDebtCancelled)
	case DebtPaid:
		return invalid("status", ErrDebtSettled)
	}
	if amount.Cents > d.Remaining.Cents {
		return &OverpaymentError{Requested: amount, Remaining: d.Remaining}
	}

	d.Remaining = d.Remaining.Sub(amount)
	d.UpdatedAt = now
	if d.Remaining.IsZero() {
		d.markPaid(now)
	}
	return nil
}

// Settle force-closes the debt as paid, writing off whatever is left.
// Settling a settled debt is a no-op. Cancelled debts cannot be settled.
func (d *Debt) Settle(now time.Time) error {
	if d.IsSettled {
		return nil
	}
	if d.Status == DebtCancelled {
		return invalid("status", ErrDebtCancelled)
	}
	d.Remaining = Money{}
	d.UpdatedAt = now
	d.markPaid(now)
	return nil
}

// Cancel moves an active debt to cancelled. Cancelling twice is a no-op.
func (d *Debt) Cancel(now time.Time) error {
	switch d.Status {
	case DebtCancelled:
		return nil
	case DebtPaid:
		return invalid("status", ErrDebtSettled)
	}
	d.Status = DebtCancelled
	d.UpdatedAt = now
	return nil
}

// Correct is the administrative path that may move Remaining in either
// direction, bounded by [0, Original]. Correcting to zero settles the debt.
func (d *Debt) Correct(remaining Money, now time.Time) error {
	if d.Status != DebtActive {
		if d.Status == DebtCancelled {
			return invalid("status", ErrDebtCancelled)
		}
		return invalid("status", ErrDebtSettled)
	}
	if remaining.IsNegative() || remaining.Cents > d.Original.Cents {
		return invalid("remaining_amount", ErrInvalidAmount)
	}
	d.Remaining = remaining
	d.UpdatedAt = now
	if remaining.IsZero() {
		d.markPaid(now)
	}
	return nil
}

func (d *Debt) markPaid(now time.Time) {
	d.Status = DebtPaid
	d.IsSettled = true
	d.SettledAt = now
}

// IsOverdue reports an open debt whose due date has passed.
func (d Debt) IsOverdue(now time.Time) bool {
	return d.Status == DebtActive && !d.IsSettled && !d.DueDate.IsZero() && d.DueDate.Before(now)
}
