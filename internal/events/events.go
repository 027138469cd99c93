// Package events defines the domain events emitted after a ledger change and
// the Publisher port that carries them to a notification layer.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

type Type string

const (
	TransactionRecorded    Type = "transaction.recorded"
	TransactionUpdated     Type = "transaction.updated"
	TransactionDeleted     Type = "transaction.deleted"
	BudgetThresholdReached Type = "budget.threshold_reached"
	BudgetExceeded         Type = "budget.exceeded"
	GoalAchieved           Type = "goal.achieved"
	DebtPaymentApplied     Type = "debt.payment_applied"
	DebtSettled            Type = "debt.settled"
	DebtCancelled          Type = "debt.cancelled"
)

var ErrMissingType = errors.New("event type is required")

// IsTransaction reports the event types that change budget spend.
func (t Type) IsTransaction() bool {
	switch t {
	case TransactionRecorded, TransactionUpdated, TransactionDeleted:
		return true
	}
	return false
}

// Event is the JSON envelope published for every domain change. Previous*
// fields are only set on transaction updates, so a consumer can reconcile the
// budget the transaction moved out of.
type Event struct {
	ID                 string    `json:"id"`
	Type               Type      `json:"type"`
	OwnerID            string    `json:"owner_id"`
	RecordID           string    `json:"record_id"`
	CategoryID         string    `json:"category_id,omitempty"`
	Kind               string    `json:"kind,omitempty"`
	AmountCents        int64     `json:"amount_cents"`
	OccurredAt         time.Time `json:"occurred_at,omitzero"`
	PreviousCategoryID string    `json:"previous_category_id,omitempty"`
	PreviousOccurredAt time.Time `json:"previous_occurred_at,omitzero"`
	Timestamp          time.Time `json:"timestamp"`
}

// New returns an event with a fresh id.
func New(t Type, ownerID, recordID string, now time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		OwnerID:   ownerID,
		RecordID:  recordID,
		Timestamp: now,
	}
}

// ForTransaction builds a transaction event. prev is the stored version
// before an update and nil otherwise.
func ForTransaction(t Type, tx core.Transaction, prev *core.Transaction, now time.Time) Event {
	e := New(t, tx.OwnerID, tx.ID, now)
	e.CategoryID = tx.CategoryID
	e.Kind = string(tx.Kind)
	e.AmountCents = tx.Amount.Cents
	e.OccurredAt = tx.OccurredAt
	if prev != nil {
		e.PreviousCategoryID = prev.CategoryID
		e.PreviousOccurredAt = prev.OccurredAt
	}
	return e
}

// Touches returns the (category, instant) pairs whose budgets the event may
// have changed.
func (e Event) Touches() []Touch {
	if e.Kind != string(core.Expense) || !e.Type.IsTransaction() {
		return nil
	}
	out := []Touch{{CategoryID: e.CategoryID, At: e.OccurredAt}}
	if !e.PreviousOccurredAt.IsZero() &&
		(e.PreviousCategoryID != e.CategoryID || !e.PreviousOccurredAt.Equal(e.OccurredAt)) {
		out = append(out, Touch{CategoryID: e.PreviousCategoryID, At: e.PreviousOccurredAt})
	}
	return out
}

// Touch names a budget lookup key.
type Touch struct {
	CategoryID string
	At         time.Time
}

// RoutingKey is the topic the event is published under.
func (e Event) RoutingKey() string {
	return string(e.Type)
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event and rejects envelopes without a type.
func FromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Type == "" {
		return Event{}, ErrMissingType
	}
	return e, nil
}

// Publisher hands events to the notification layer. Delivery is best effort:
// callers log a failed Publish and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory. It is safe for concurrent use.
type Recorder struct {
	// Err, when set, is returned from every Publish after recording.
	Err error

	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType filters the recorded events by type.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
