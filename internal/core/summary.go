package core

import "time"

// DebtSummary is the owner's aggregate debt position.
type DebtSummary struct {
	TotalOwedToMe Money
	TotalIOwe     Money
	// NetPosition is TotalOwedToMe - TotalIOwe and may be negative.
	NetPosition Money
	// TotalLoans covers open loan and credit card balances; it is reported
	// separately and not folded into NetPosition.
	TotalLoans Money
	Unsettled  int
	Overdue    int
	Settled    int
	Cancelled  int
}

// SummarizeDebts folds a debt collection into a DebtSummary. Cancelled debts
// only contribute to the Cancelled count.
func SummarizeDebts(debts []Debt, now time.Time) DebtSummary {
	var s DebtSummary
	for _, d := range debts {
		if d.Status == DebtCancelled {
			s.Cancelled++
			continue
		}
		if d.IsSettled {
			s.Settled++
			continue
		}
		s.Unsettled++
		if d.IsOverdue(now) {
			s.Overdue++
		}
		switch d.Type {
		case OwedToMe:
			s.TotalOwedToMe = s.TotalOwedToMe.Add(d.Remaining)
		case IOwe:
			s.TotalIOwe = s.TotalIOwe.Add(d.Remaining)
		case Loan, CreditCard:
			s.TotalLoans = s.TotalLoans.Add(d.Remaining)
		}
	}
	s.NetPosition = s.TotalOwedToMe.Sub(s.TotalIOwe)
	return s
}
