package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		OwnerID:    "u1",
		Kind:       Expense,
		Amount:     Cents(100),
		OccurredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	zero := good
	zero.Amount = Money{}
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero amount should be accepted, got %v", err)
	}

	bads := []Transaction{
		{Kind: Expense, Amount: Cents(1), OccurredAt: good.OccurredAt},
		{OwnerID: "u1", Kind: "gift", Amount: Cents(1), OccurredAt: good.OccurredAt},
		{OwnerID: "u1", Kind: Income, Amount: Cents(-1), OccurredAt: good.OccurredAt},
		{OwnerID: "u1", Kind: Income, Amount: Cents(1)},
		{OwnerID: "u1", Kind: Income, Amount: Cents(1), OccurredAt: good.OccurredAt, Description: strings.Repeat("x", 201)},
	}
	for i, tx := range bads {
		err := tx.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !IsValidation(err) {
			t.Fatalf("case %d expected ValidationError, got %T", i, err)
		}
	}
}

func TestTransactionApplyUpdate(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	tx := Transaction{OwnerID: "u1", Kind: Expense, Amount: Cents(100), Currency: "EUR", OccurredAt: now}

	if err := tx.ApplyUpdate(Transaction{Kind: Income, Amount: Cents(5)}, now); !errors.Is(err, ErrKindImmutable) {
		t.Fatalf("expected ErrKindImmutable, got %v", err)
	}
	if tx.Amount.Cents != 100 {
		t.Fatalf("failed update mutated record: %+v", tx)
	}

	later := now.Add(time.Hour)
	if err := tx.ApplyUpdate(Transaction{Amount: Cents(250), CategoryID: "food", Description: "lunch"}, later); err != nil {
		t.Fatalf("update: %v", err)
	}
	if tx.Amount.Cents != 250 || tx.CategoryID != "food" || tx.Currency != "EUR" || !tx.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected record after update: %+v", tx)
	}
	if !tx.OccurredAt.Equal(now) {
		t.Fatalf("occurred_at should be kept when patch leaves it empty")
	}
}

func TestCategoryLabel(t *testing.T) {
	c := Category{ID: "food", Kind: Expense, Labels: map[string]string{"en": "Food", "it": "Cibo"}}
	cases := map[string]string{
		"it":    "Cibo",
		"it-CH": "Cibo",
		"en":    "Food",
		"fr":    "Food",
	}
	for locale, want := range cases {
		if got := c.Label(locale); got != want {
			t.Fatalf("Label(%q) = %q, want %q", locale, got, want)
		}
	}
	bare := Category{ID: "misc", Kind: Expense}
	if got := bare.Label("en"); got != "misc" {
		t.Fatalf("Label without labels = %q", got)
	}
	if err := (Category{ID: "x", Kind: Transfer}).Validate(); err == nil {
		t.Fatalf("transfer categories should be rejected")
	}
}
