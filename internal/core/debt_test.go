package core

import (
	"errors"
	"testing"
	"time"
)

var debtNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestDebt(t *testing.T, cents int64) Debt {
	t.Helper()
	d, err := NewDebt(Debt{OwnerID: "u1", Type: IOwe, Original: Cents(cents), CreditorName: "Bank"}, debtNow)
	if err != nil {
		t.Fatalf("NewDebt: %v", err)
	}
	return d
}

func TestNewDebtDefaults(t *testing.T) {
	cases := []struct {
		name     string
		cents    int64
		priority Priority
		minPay   int64
	}{
		{"small debt", 5000, PriorityLow, 1000},
		{"exactly 500", 50000, PriorityLow, 5000},
		{"just above 500", 50001, PriorityMedium, 5000},
		{"mid debt", 25000, PriorityLow, 2500},
		{"large debt", 200000, PriorityHigh, 5000},
		{"exactly 1000", 100000, PriorityMedium, 5000},
		{"just above 1000", 100001, PriorityHigh, 5000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newTestDebt(t, tc.cents)
			if d.Priority != tc.priority {
				t.Errorf("priority = %s, want %s", d.Priority, tc.priority)
			}
			if d.MinimumPayment.Cents != tc.minPay {
				t.Errorf("minimum payment = %d, want %d", d.MinimumPayment.Cents, tc.minPay)
			}
			if d.Remaining != d.Original || d.Status != DebtActive || d.IsSettled {
				t.Errorf("unexpected initial state: %+v", d)
			}
			if d.ID == "" {
				t.Errorf("expected generated id")
			}
		})
	}
}

func TestNewDebtKeepsCallerValues(t *testing.T) {
	d, err := NewDebt(Debt{
		OwnerID:        "u1",
		Type:           OwedToMe,
		Original:       Cents(200000),
		Priority:       PriorityLow,
		MinimumPayment: Cents(700),
	}, debtNow)
	if err != nil {
		t.Fatalf("NewDebt: %v", err)
	}
	if d.Priority != PriorityLow || d.MinimumPayment.Cents != 700 {
		t.Fatalf("caller values overwritten: %+v", d)
	}
}

func TestNewDebtValidation(t *testing.T) {
	bads := []Debt{
		{OwnerID: "u1", Type: IOwe, Original: Cents(0)},
		{OwnerID: "u1", Type: IOwe, Original: Cents(-10)},
		{OwnerID: "", Type: IOwe, Original: Cents(10)},
		{OwnerID: "u1", Type: "mortgage", Original: Cents(10)},
		{OwnerID: "u1", Type: IOwe, Original: Cents(10), Priority: "urgent"},
	}
	for i, d := range bads {
		if _, err := NewDebt(d, debtNow); !IsValidation(err) {
			t.Fatalf("case %d expected ValidationError, got %v", i, err)
		}
	}
}

func TestApplyPaymentSequence(t *testing.T) {
	d := newTestDebt(t, 10000)
	payments := []int64{2500, 1, 4999, 2500}
	prev := d.Remaining
	for i, p := range payments {
		if err := d.ApplyPayment(Cents(p), debtNow); err != nil {
			t.Fatalf("payment %d: %v", i, err)
		}
		if d.Remaining.Cents > prev.Cents || d.Remaining.IsNegative() || d.Remaining.Cents > d.Original.Cents {
			t.Fatalf("payment %d broke invariant: remaining=%d prev=%d", i, d.Remaining.Cents, prev.Cents)
		}
		prev = d.Remaining
	}
	if !d.IsSettled || d.Status != DebtPaid || !d.SettledAt.Equal(debtNow) || !d.Remaining.IsZero() {
		t.Fatalf("expected paid debt, got %+v", d)
	}
}

func TestApplyPaymentRejections(t *testing.T) {
	d := newTestDebt(t, 10000)
	before := d

	err := d.ApplyPayment(Cents(10001), debtNow)
	if !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected overpayment, got %v", err)
	}
	var oe *OverpaymentError
	if !errors.As(err, &oe) || oe.Remaining.Cents != 10000 || oe.Requested.Cents != 10001 {
		t.Fatalf("unexpected overpayment detail: %v", err)
	}
	if d != before {
		t.Fatalf("overpayment mutated the debt")
	}

	for _, amount := range []int64{0, -1} {
		if err := d.ApplyPayment(Cents(amount), debtNow); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if d != before {
		t.Fatalf("invalid amount mutated the debt")
	}

	if err := d.Cancel(debtNow); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := d.ApplyPayment(Cents(1), debtNow); !errors.Is(err, ErrDebtCancelled) {
		t.Fatalf("expected ErrDebtCancelled, got %v", err)
	}
}

func TestSettleIsIdempotent(t *testing.T) {
	d := newTestDebt(t, 10000)
	if err := d.ApplyPayment(Cents(3000), debtNow); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if err := d.Settle(debtNow); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !d.Remaining.IsZero() || !d.IsSettled || d.Status != DebtPaid {
		t.Fatalf("unexpected state after settle: %+v", d)
	}
	settled := d
	if err := d.Settle(debtNow.Add(time.Hour)); err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if d != settled {
		t.Fatalf("second settle changed the record")
	}
	if err := d.ApplyPayment(Cents(1), debtNow); !errors.Is(err, ErrDebtSettled) {
		t.Fatalf("payment on settled debt: %v", err)
	}
}

func TestSettleCancelledDebtRejected(t *testing.T) {
	d := newTestDebt(t, 10000)
	if err := d.Cancel(debtNow); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := d.Cancel(debtNow); err != nil {
		t.Fatalf("second cancel should be a no-op: %v", err)
	}
	if err := d.Settle(debtNow); !errors.Is(err, ErrDebtCancelled) {
		t.Fatalf("expected ErrDebtCancelled, got %v", err)
	}
	if d.Remaining.Cents != 10000 || d.IsSettled {
		t.Fatalf("rejected settle mutated record: %+v", d)
	}
}

func TestCancelPaidDebtRejected(t *testing.T) {
	d := newTestDebt(t, 100)
	if err := d.ApplyPayment(Cents(100), debtNow); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if err := d.Cancel(debtNow); !errors.Is(err, ErrDebtSettled) {
		t.Fatalf("expected ErrDebtSettled, got %v", err)
	}
}

func TestCorrect(t *testing.T) {
	d := newTestDebt(t, 10000)
	if err := d.ApplyPayment(Cents(6000), debtNow); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if err := d.Correct(Cents(5000), debtNow); err != nil {
		t.Fatalf("correct up: %v", err)
	}
	if d.Remaining.Cents != 5000 {
		t.Fatalf("remaining = %d", d.Remaining.Cents)
	}
	if err := d.Correct(Cents(10001), debtNow); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("correct above original: %v", err)
	}
	if err := d.Correct(Cents(0), debtNow); err != nil {
		t.Fatalf("correct to zero: %v", err)
	}
	if !d.IsSettled || d.Status != DebtPaid {
		t.Fatalf("correct to zero should settle: %+v", d)
	}
}

func TestIsOverdue(t *testing.T) {
	d := newTestDebt(t, 1000)
	if d.IsOverdue(debtNow) {
		t.Fatalf("debt without due date cannot be overdue")
	}
	d.DueDate = debtNow.Add(-24 * time.Hour)
	if !d.IsOverdue(debtNow) {
		t.Fatalf("expected overdue")
	}
	_ = d.Settle(debtNow)
	if d.IsOverdue(debtNow) {
		t.Fatalf("settled debt cannot be overdue")
	}
}

func TestSummarizeDebts(t *testing.T) {
	past := debtNow.Add(-48 * time.Hour)
	debts := []Debt{
		{Type: OwedToMe, Remaining: Cents(20000), Status: DebtActive},
		{Type: IOwe, Remaining: Cents(5000), Status: DebtActive, DueDate: past},
		{Type: Loan, Remaining: Cents(100000), Status: DebtActive},
		{Type: IOwe, Remaining: Cents(0), Status: DebtPaid, IsSettled: true},
		{Type: OwedToMe, Remaining: Cents(9999), Status: DebtCancelled},
	}
	s := SummarizeDebts(debts, debtNow)

	if s.TotalOwedToMe.Cents != 20000 || s.TotalIOwe.Cents != 5000 || s.NetPosition.Cents != 15000 {
		t.Fatalf("unexpected totals: %+v", s)
	}
	if s.TotalLoans.Cents != 100000 {
		t.Fatalf("TotalLoans = %d", s.TotalLoans.Cents)
	}
	if s.Unsettled != 3 || s.Overdue != 1 || s.Settled != 1 || s.Cancelled != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}

	neg := SummarizeDebts([]Debt{{Type: IOwe, Remaining: Cents(300), Status: DebtActive}}, debtNow)
	if neg.NetPosition.Cents != -300 {
		t.Fatalf("net position should go negative, got %d", neg.NetPosition.Cents)
	}
}
