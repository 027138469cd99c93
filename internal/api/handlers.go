package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func bind(c fiber.Ctx, out any) error {
	if err := c.Bind().JSON(out); err != nil {
		return NewBadRequestError("invalid JSON body")
	}
	return nil
}

func created(c fiber.Ctx, v any) error {
	return c.Status(fiber.StatusCreated).JSON(v)
}

func queryTime(c fiber.Ctx, key string) (time.Time, error) {
	s := c.Query(key)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, NewBadRequestError("invalid " + key + ": use RFC 3339 or YYYY-MM-DD")
	}
	return t, nil
}

func queryInt(c fiber.Ctx, key string) (int, error) {
	s := c.Query(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, NewBadRequestError("invalid " + key + ": must be a non-negative integer")
	}
	return n, nil
}

// Transactions

func (h *handler) listTransactions(c fiber.Ctx) error {
	var f storage.TransactionFilter
	if _, ok := c.Queries()["category"]; ok {
		category := c.Query("category")
		f.CategoryID = &category
	}
	if kind := c.Query("kind"); kind != "" {
		f.Kind = core.TransactionKind(kind)
		if !f.Kind.Valid() {
			return NewBadRequestError("invalid kind")
		}
	}
	var err error
	if f.From, err = queryTime(c, "from"); err != nil {
		return err
	}
	if f.To, err = queryTime(c, "to"); err != nil {
		return err
	}
	if !f.To.IsZero() && len(c.Query("to")) == len(time.DateOnly) {
		// A bare date includes the whole day.
		f.To = f.To.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	txs, err := h.svc.Transactions.List(c.Context(), ownerID(c), f)
	if err != nil {
		return err
	}
	out := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionResponse(tx)
	}
	return c.JSON(fiber.Map{"transactions": out})
}

func (h *handler) createTransaction(c fiber.Ctx) error {
	var req transactionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tx, err := req.toCore(ownerID(c))
	if err != nil {
		return err
	}
	saved, err := h.svc.Transactions.Record(c.Context(), tx)
	if err != nil {
		return err
	}
	return created(c, toTransactionResponse(saved))
}

func (h *handler) getTransaction(c fiber.Ctx) error {
	tx, err := h.svc.Transactions.Get(c.Context(), ownerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toTransactionResponse(tx))
}

func (h *handler) updateTransaction(c fiber.Ctx) error {
	var req transactionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	patch, err := req.toCore(ownerID(c))
	if err != nil {
		return err
	}
	saved, err := h.svc.Transactions.Update(c.Context(), ownerID(c), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(toTransactionResponse(saved))
}

func (h *handler) deleteTransaction(c fiber.Ctx) error {
	if err := h.svc.Transactions.Delete(c.Context(), ownerID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Debts

func (h *handler) listDebts(c fiber.Ctx) error {
	debts, err := h.svc.Debts.List(c.Context(), ownerID(c))
	if err != nil {
		return err
	}
	now := h.now()
	out := make([]debtResponse, len(debts))
	for i, d := range debts {
		out[i] = toDebtResponse(d, now)
	}
	return c.JSON(fiber.Map{"debts": out})
}

func (h *handler) createDebt(c fiber.Ctx) error {
	var req debtRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	d, err := req.toCore(ownerID(c))
	if err != nil {
		return err
	}
	saved, err := h.svc.Debts.Create(c.Context(), d)
	if err != nil {
		return err
	}
	return created(c, toDebtResponse(saved, h.now()))
}

func (h *handler) getDebt(c fiber.Ctx) error {
	d, err := h.svc.Debts.Get(c.Context(), ownerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toDebtResponse(d, h.now()))
}

func (h *handler) debtSummary(c fiber.Ctx) error {
	s, err := h.svc.Debts.Summarize(c.Context(), ownerID(c))
	if err != nil {
		return err
	}
	return c.JSON(toDebtSummaryResponse(s))
}

func (h *handler) applyPayment(c fiber.Ctx) error {
	var req amountRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	d, err := h.svc.Debts.ApplyPayment(c.Context(), ownerID(c), c.Params("id"), amount)
	if err != nil {
		return err
	}
	return c.JSON(toDebtResponse(d, h.now()))
}

func (h *handler) settleDebt(c fiber.Ctx) error {
	d, err := h.svc.Debts.Settle(c.Context(), ownerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toDebtResponse(d, h.now()))
}

func (h *handler) cancelDebt(c fiber.Ctx) error {
	d, err := h.svc.Debts.Cancel(c.Context(), ownerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toDebtResponse(d, h.now()))
}

func (h *handler) correctDebt(c fiber.Ctx) error {
	var req struct {
		Remaining string `json:"remaining"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	remaining, err := parseAmount("remaining", req.Remaining)
	if err != nil {
		return err
	}
	d, err := h.svc.Debts.Correct(c.Context(), ownerID(c), c.Params("id"), remaining)
	if err != nil {
		return err
	}
	return c.JSON(toDebtResponse(d, h.now()))
}

// Budgets

func (h *handler) listBudgets(c fiber.Ctx) error {
	budgets, err := h.svc.Budgets.List(c.Context(), ownerID(c))
	if err != nil {
		return err
	}
	out := make([]budgetResponse, len(budgets))
	for i, b := range budgets {
		out[i] = toBudgetResponse(b)
	}
	return c.JSON(fiber.Map{"budgets": out})
}

func (h *handler) createBudget(c fiber.Ctx) error {
	var req budgetRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	create, err := req.toCore(ownerID(c))
	if err != nil {
		return err
	}
	b, err := h.svc.Budgets.Create(c.Context(), create)
	if err != nil {
		return err
	}
	return created(c, toBudgetResponse(b))
}

func (h *handler) getBudget(c fiber.Ctx) error {
	b, err := h.svc.Budgets.Get(c.Context(), ownerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toBudgetResponse(b))
}

func (h *handler) reconcileBudget(c fiber.Ctx) error {
	b, r, err := h.svc.Budgets.Reconcile(c.Context(), ownerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"budget":            toBudgetResponse(b),
		"crossed_threshold": r.CrossedThreshold,
		"crossed_exceeded":  r.CrossedExceeded,
	})
}

func (h *handler) deactivateBudget(c fiber.Ctx) error {
	b, err := h.svc.Budgets.Deactivate(c.Context(), ownerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toBudgetResponse(b))
}

func (h *handler) monthlySpend(c fiber.Ctx) error {
	total, err := h.svc.Budgets.TotalMonthlySpend(c.Context(), ownerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"total": money(total)})
}

// Goals

func (h *handler) listGoals(c fiber.Ctx) error {
	goals, err := h.svc.Goals.List(c.Context(), ownerID(c))
	if err != nil {
		return err
	}
	out := make([]goalResponse, len(goals))
	for i, g := range goals {
		out[i] = toGoalResponse(g)
	}
	return c.JSON(fiber.Map{"goals": out})
}

func (h *handler) createGoal(c fiber.Ctx) error {
	var req goalRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	g, err := req.toCore(ownerID(c))
	if err != nil {
		return err
	}
	saved, err := h.svc.Goals.Create(c.Context(), g)
	if err != nil {
		return err
	}
	return created(c, toGoalResponse(saved))
}

func (h *handler) getGoal(c fiber.Ctx) error {
	g, err := h.svc.Goals.Get(c.Context(), ownerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toGoalResponse(g))
}

func (h *handler) contribute(c fiber.Ctx) error {
	var req amountRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	g, contribution, err := h.svc.Goals.Contribute(c.Context(), ownerID(c), c.Params("id"), amount)
	if err != nil {
		return err
	}
	return c.JSON(contributionResponse{
		Goal:         toGoalResponse(g),
		Applied:      money(contribution.Applied),
		Excess:       money(contribution.Excess),
		JustAchieved: contribution.JustAchieved,
	})
}

// Categories

func (h *handler) listCategories(c fiber.Ctx) error {
	cats, err := h.svc.Categories.ListCategories(c.Context(), ownerID(c))
	if err != nil {
		return err
	}
	locale := c.Query("locale", "en")
	out := make([]categoryResponse, len(cats))
	for i, cat := range cats {
		out[i] = toCategoryResponse(cat, locale)
	}
	return c.JSON(fiber.Map{"categories": out})
}

func (h *handler) upsertCategory(c fiber.Ctx) error {
	var req categoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	cat := core.Category{
		ID:      req.ID,
		OwnerID: ownerID(c),
		Kind:    core.TransactionKind(req.Kind),
		Labels:  req.Labels,
	}
	if err := cat.Validate(); err != nil {
		return err
	}
	if err := h.svc.Categories.UpsertCategory(c.Context(), cat); err != nil {
		return err
	}
	return created(c, toCategoryResponse(cat, c.Query("locale", "en")))
}

// Dashboard

func (h *handler) dashboard(c fiber.Ctx) error {
	months, err := queryInt(c, "months")
	if err != nil {
		return err
	}
	top, err := queryInt(c, "top")
	if err != nil {
		return err
	}
	d, err := h.svc.Dashboard.Overview(c.Context(), ownerID(c), months, top)
	if err != nil {
		return err
	}
	return c.JSON(toDashboardResponse(d))
}
