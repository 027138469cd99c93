package api

import (
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
	"fintrack/internal/services"
)

// Amounts travel as decimal strings in major units ("12.50"). Responses add
// the integer cents next to them.

func parseAmount(field, s string) (core.Money, error) {
	m, err := core.ParseMoney(s)
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: field, Err: err}
	}
	return m, nil
}

func parseOptionalAmount(field, s string) (core.Money, error) {
	if s == "" {
		return core.Money{}, nil
	}
	return parseAmount(field, s)
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type moneyJSON struct {
	Amount string `json:"amount"`
	Cents  int64  `json:"cents"`
}

func money(m core.Money) moneyJSON {
	return moneyJSON{Amount: m.String(), Cents: m.Cents}
}

// Transactions

type transactionRequest struct {
	CategoryID  string     `json:"category_id"`
	Kind        string     `json:"kind"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	OccurredAt  *time.Time `json:"occurred_at"`
	Description string     `json:"description"`
	Note        string     `json:"note"`
}

func (r transactionRequest) toCore(ownerID string) (core.Transaction, error) {
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		OwnerID:     ownerID,
		CategoryID:  r.CategoryID,
		Kind:        core.TransactionKind(r.Kind),
		Amount:      amount,
		Currency:    r.Currency,
		OccurredAt:  timeOrZero(r.OccurredAt),
		Description: r.Description,
		Note:        r.Note,
	}, nil
}

type transactionResponse struct {
	ID          string    `json:"id"`
	CategoryID  string    `json:"category_id"`
	Kind        string    `json:"kind"`
	Amount      moneyJSON `json:"amount"`
	Currency    string    `json:"currency,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Description string    `json:"description,omitempty"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		CategoryID:  tx.CategoryID,
		Kind:        string(tx.Kind),
		Amount:      money(tx.Amount),
		Currency:    tx.Currency,
		OccurredAt:  tx.OccurredAt,
		Description: tx.Description,
		Note:        tx.Note,
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
}

// Debts

type debtRequest struct {
	Type           string     `json:"type"`
	CreditorName   string     `json:"creditor_name"`
	DebtorName     string     `json:"debtor_name"`
	Amount         string     `json:"amount"`
	MinimumPayment string     `json:"minimum_payment"`
	Currency       string     `json:"currency"`
	DueDate        *time.Time `json:"due_date"`
	Priority       string     `json:"priority"`
	Description    string     `json:"description"`
}

func (r debtRequest) toCore(ownerID string) (core.Debt, error) {
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return core.Debt{}, err
	}
	minPayment, err := parseOptionalAmount("minimum_payment", r.MinimumPayment)
	if err != nil {
		return core.Debt{}, err
	}
	return core.Debt{
		OwnerID:        ownerID,
		Type:           core.DebtType(r.Type),
		CreditorName:   r.CreditorName,
		DebtorName:     r.DebtorName,
		Original:       amount,
		MinimumPayment: minPayment,
		Currency:       r.Currency,
		DueDate:        timeOrZero(r.DueDate),
		Priority:       core.Priority(r.Priority),
		Description:    r.Description,
	}, nil
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type debtResponse struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"`
	CreditorName   string     `json:"creditor_name,omitempty"`
	DebtorName     string     `json:"debtor_name,omitempty"`
	Original       moneyJSON  `json:"original"`
	Remaining      moneyJSON  `json:"remaining"`
	MinimumPayment moneyJSON  `json:"minimum_payment"`
	Currency       string     `json:"currency,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	IsSettled      bool       `json:"is_settled"`
	IsOverdue      bool       `json:"is_overdue"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
	Description    string     `json:"description,omitempty"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toDebtResponse(d core.Debt, now time.Time) debtResponse {
	return debtResponse{
		ID:             d.ID,
		Type:           string(d.Type),
		CreditorName:   d.CreditorName,
		DebtorName:     d.DebtorName,
		Original:       money(d.Original),
		Remaining:      money(d.Remaining),
		MinimumPayment: money(d.MinimumPayment),
		Currency:       d.Currency,
		DueDate:        timeOrNil(d.DueDate),
		Priority:       string(d.Priority),
		Status:         string(d.Status),
		IsSettled:      d.IsSettled,
		IsOverdue:      d.IsOverdue(now),
		SettledAt:      timeOrNil(d.SettledAt),
		Description:    d.Description,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type debtSummaryResponse struct {
	TotalOwedToMe moneyJSON `json:"total_owed_to_me"`
	TotalIOwe     moneyJSON `json:"total_i_owe"`
	NetPosition   moneyJSON `json:"net_position"`
	TotalLoans    moneyJSON `json:"total_loans"`
	Unsettled     int       `json:"unsettled"`
	Overdue       int       `json:"overdue"`
	Settled       int       `json:"settled"`
	Cancelled     int       `json:"cancelled"`
}

func toDebtSummaryResponse(s core.DebtSummary) debtSummaryResponse {
	return debtSummaryResponse{
		TotalOwedToMe: money(s.TotalOwedToMe),
		TotalIOwe:     money(s.TotalIOwe),
		NetPosition:   money(s.NetPosition),
		TotalLoans:    money(s.TotalLoans),
		Unsettled:     s.Unsettled,
		Overdue:       s.Overdue,
		Settled:       s.Settled,
		Cancelled:     s.Cancelled,
	}
}

// Budgets

type budgetRequest struct {
	CategoryID     string           `json:"category_id"`
	Allocated      string           `json:"allocated"`
	Period         string           `json:"period"`
	AlertThreshold *decimal.Decimal `json:"alert_threshold"`
}

func (r budgetRequest) toCore(ownerID string) (services.CreateBudgetRequest, error) {
	allocated, err := parseAmount("allocated", r.Allocated)
	if err != nil {
		return services.CreateBudgetRequest{}, err
	}
	req := services.CreateBudgetRequest{
		OwnerID:    ownerID,
		CategoryID: r.CategoryID,
		Allocated:  allocated,
		Period:     core.Period(r.Period),
	}
	if r.AlertThreshold != nil {
		req.AlertThreshold = *r.AlertThreshold
	}
	return req, nil
}

type budgetResponse struct {
	ID               string          `json:"id"`
	CategoryID       string          `json:"category_id"`
	Period           string          `json:"period"`
	Allocated        moneyJSON       `json:"allocated"`
	Spent            moneyJSON       `json:"spent"`
	Remaining        moneyJSON       `json:"remaining"`
	Utilization      decimal.Decimal `json:"utilization"`
	AlertThreshold   decimal.Decimal `json:"alert_threshold"`
	Exceeded         bool            `json:"exceeded"`
	ThresholdReached bool            `json:"threshold_reached"`
	Start            time.Time       `json:"start"`
	End              *time.Time      `json:"end,omitempty"`
	IsActive         bool            `json:"is_active"`
	ReconciledAt     *time.Time      `json:"reconciled_at,omitempty"`
	Version          int64           `json:"version"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:               b.ID,
		CategoryID:       b.CategoryID,
		Period:           string(b.Period),
		Allocated:        money(b.Allocated),
		Spent:            money(b.Spent),
		Remaining:        money(b.Allocated.Sub(b.Spent)),
		Utilization:      b.Utilization(),
		AlertThreshold:   b.AlertThreshold,
		Exceeded:         b.Exceeded(),
		ThresholdReached: b.ThresholdReached(),
		Start:            b.Start,
		End:              timeOrNil(b.End),
		IsActive:         b.IsActive,
		ReconciledAt:     timeOrNil(b.ReconciledAt),
		Version:          b.Version,
	}
}

// Goals

type goalRequest struct {
	Name       string     `json:"name"`
	Target     string     `json:"target"`
	Current    string     `json:"current"`
	Currency   string     `json:"currency"`
	TargetDate *time.Time `json:"target_date"`
}

func (r goalRequest) toCore(ownerID string) (core.Goal, error) {
	target, err := parseAmount("target", r.Target)
	if err != nil {
		return core.Goal{}, err
	}
	current, err := parseOptionalAmount("current", r.Current)
	if err != nil {
		return core.Goal{}, err
	}
	return core.Goal{
		OwnerID:    ownerID,
		Name:       r.Name,
		Target:     target,
		Current:    current,
		Currency:   r.Currency,
		TargetDate: timeOrZero(r.TargetDate),
	}, nil
}

type goalResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Target     moneyJSON       `json:"target"`
	Current    moneyJSON       `json:"current"`
	Remaining  moneyJSON       `json:"remaining"`
	Progress   decimal.Decimal `json:"progress"`
	Currency   string          `json:"currency,omitempty"`
	TargetDate *time.Time      `json:"target_date,omitempty"`
	IsAchieved bool            `json:"is_achieved"`
	AchievedAt *time.Time      `json:"achieved_at,omitempty"`
	Version    int64           `json:"version"`
}

func toGoalResponse(g core.Goal) goalResponse {
	return goalResponse{
		ID:         g.ID,
		Name:       g.Name,
		Target:     money(g.Target),
		Current:    money(g.Current),
		Remaining:  money(g.Remaining()),
		Progress:   g.Progress(),
		Currency:   g.Currency,
		TargetDate: timeOrNil(g.TargetDate),
		IsAchieved: g.IsAchieved,
		AchievedAt: timeOrNil(g.AchievedAt),
		Version:    g.Version,
	}
}

type contributionResponse struct {
	Goal         goalResponse `json:"goal"`
	Applied      moneyJSON    `json:"applied"`
	Excess       moneyJSON    `json:"excess"`
	JustAchieved bool         `json:"just_achieved"`
}

// Categories

type categoryRequest struct {
	ID     string            `json:"id"`
	Kind   string            `json:"kind"`
	Labels map[string]string `json:"labels"`
}

type categoryResponse struct {
	ID     string            `json:"id"`
	Kind   string            `json:"kind"`
	Label  string            `json:"label"`
	Labels map[string]string `json:"labels,omitempty"`
	Shared bool              `json:"shared"`
}

func toCategoryResponse(c core.Category, locale string) categoryResponse {
	return categoryResponse{
		ID:     c.ID,
		Kind:   string(c.Kind),
		Label:  c.Label(locale),
		Labels: c.Labels,
		Shared: c.OwnerID == "",
	}
}

// Dashboard

type monthJSON struct {
	Year    int       `json:"year"`
	Month   int       `json:"month"`
	Income  moneyJSON `json:"income"`
	Expense moneyJSON `json:"expense"`
	Savings moneyJSON `json:"savings"`
	// Cumulative is the running savings total up to this month.
	Cumulative moneyJSON `json:"cumulative"`
}

type categoryShareJSON struct {
	CategoryID string          `json:"category_id"`
	Amount     moneyJSON       `json:"amount"`
	Percent    decimal.Decimal `json:"percent"`
}

type dashboardResponse struct {
	Months       []monthJSON         `json:"months"`
	Weekly       []moneyJSON         `json:"weekly"`
	WeeklyTotal  moneyJSON           `json:"weekly_total"`
	Categories   []categoryShareJSON `json:"categories"`
	MonthlySpend moneyJSON           `json:"monthly_spend"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

func toDashboardResponse(d services.Dashboard) dashboardResponse {
	months := make([]monthJSON, len(d.Monthly))
	for i, b := range d.Monthly {
		months[i] = monthJSON{
			Year:    b.Year,
			Month:   int(b.Month),
			Income:  money(b.Income),
			Expense: money(b.Expense),
			Savings: money(b.Savings()),
		}
		if i < len(d.RunningSavings) {
			months[i].Cumulative = money(d.RunningSavings[i])
		}
	}
	weekly := make([]moneyJSON, len(d.Weekly))
	for i, m := range d.Weekly {
		weekly[i] = money(m)
	}
	return dashboardResponse{
		Months:       months,
		Weekly:       weekly,
		WeeklyTotal:  money(d.Weekly.Total()),
		Categories:   toCategoryShares(d.Categories),
		MonthlySpend: money(d.MonthlySpend),
		GeneratedAt:  d.GeneratedAt,
	}
}

func toCategoryShares(shares []aggregate.CategoryShare) []categoryShareJSON {
	out := make([]categoryShareJSON, len(shares))
	for i, s := range shares {
		out[i] = categoryShareJSON{CategoryID: s.CategoryID, Amount: money(s.Amount), Percent: s.Percent}
	}
	return out
}
