package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Income   TransactionKind = "income"
	Expense  TransactionKind = "expense"
	Transfer TransactionKind = "transfer"
)

type (
	TransactionKind string

	// Transaction is one entry of the ledger. It is the only input to every
	// derived value (budget spend, dashboard series).
	Transaction struct {
		ID          string
		OwnerID     string
		CategoryID  string // empty when uncategorized
		Kind        TransactionKind
		Amount      Money
		Currency    string
		OccurredAt  time.Time
		Description string
		Note        string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Category is a grouping key for aggregation. Labels maps a locale tag
	// ("en", "it", ...) to its display text.
	Category struct {
		ID      string
		OwnerID string // empty for the shared taxonomy
		Kind    TransactionKind
		Labels  map[string]string
	}
)

const maxDescriptionLen = 200

// NewID returns a fresh opaque record id.
func NewID() string {
	return uuid.NewString()
}

func (k TransactionKind) Valid() bool {
	switch k {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return invalid("owner_id", ErrMissingField)
	}
	if !t.Kind.Valid() {
		return invalid("kind", ErrInvalidKind)
	}
	if t.Amount.IsNegative() {
		return invalid("amount", ErrInvalidAmount)
	}
	if t.OccurredAt.IsZero() {
		return invalid("occurred_at", ErrMissingField)
	}
	if len(t.Description) > maxDescriptionLen {
		return invalid("description", ErrDescriptionLong)
	}
	return nil
}

// IsExpense reports whether the transaction counts toward budgets.
func (t Transaction) IsExpense() bool { return t.Kind == Expense }

// ApplyUpdate copies the editable fields of patch onto t. The kind of a
// transaction is fixed at creation because every aggregate depends on it.
func (t *Transaction) ApplyUpdate(patch Transaction, now time.Time) error {
	if patch.Kind != "" && patch.Kind != t.Kind {
		return invalid("kind", ErrKindImmutable)
	}
	next := *t
	next.CategoryID = patch.CategoryID
	next.Amount = patch.Amount
	if patch.Currency != "" {
		next.Currency = patch.Currency
	}
	if !patch.OccurredAt.IsZero() {
		next.OccurredAt = patch.OccurredAt
	}
	next.Description = patch.Description
	next.Note = patch.Note
	if err := next.Validate(); err != nil {
		return err
	}
	next.UpdatedAt = now
	*t = next
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return invalid("id", ErrMissingField)
	}
	if c.Kind != Income && c.Kind != Expense {
		return invalid("kind", ErrInvalidKind)
	}
	return nil
}

// Label returns the label for locale, falling back to English and then to
// the category id.
func (c Category) Label(locale string) string {
	if l, ok := c.Labels[locale]; ok && l != "" {
		return l
	}
	if base, _, found := strings.Cut(locale, "-"); found {
		if l, ok := c.Labels[base]; ok && l != "" {
			return l
		}
	}
	if l, ok := c.Labels["en"]; ok && l != "" {
		return l
	}
	return c.ID
}
