// Package api exposes the ledger services as a JSON API.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// Services are the application services behind the routes.
type Services struct {
	Transactions *services.TransactionService
	Debts        *services.DebtService
	Budgets      *services.BudgetService
	Goals        *services.GoalService
	Dashboard    *services.DashboardService
	Categories   storage.CategoryStore
}

type Config struct {
	AppName string
	Auth    AuthConfig
	Logger  *applog.Logger
	// Ready reports backend health for /health. Nil means always ready.
	Ready func(ctx context.Context) error
	// RateLimiter throttles each owner on /v1. Nil disables limiting.
	RateLimiter *ratelimit.Limiter
	// Now is used for derived response fields such as overdue flags.
	Now func() time.Time
}

type handler struct {
	svc Services
	now func() time.Time
}

// New builds the fiber app with every route registered.
func New(svc Services, cfg Config) *fiber.App {
	if cfg.Logger == nil {
		cfg.Logger = applog.New(applog.DefaultConfig())
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AppName == "" {
		cfg.AppName = "fintrack"
	}
	logger := cfg.Logger.WithComponent(applog.ComponentHTTP)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: ErrorHandler(logger),
		BodyLimit:    1 << 20,
	})

	app.Use(RequestLogger(logger))
	app.Use(security.Headers(security.DefaultHeadersConfig()))
	app.Use(security.NewDetector().Middleware())

	app.Get("/health", func(c fiber.Ctx) error {
		if cfg.Ready != nil {
			if err := cfg.Ready(c.Context()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "unavailable",
				})
			}
		}
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": cfg.AppName,
		})
	})

	h := &handler{svc: svc, now: cfg.Now}
	v1 := app.Group("/v1", Auth(cfg.Auth))
	if cfg.RateLimiter != nil {
		v1.Use(cfg.RateLimiter.Middleware(ownerID, nil))
	}

	v1.Get("/transactions", h.listTransactions)
	v1.Post("/transactions", h.createTransaction)
	v1.Get("/transactions/:id", h.getTransaction)
	v1.Put("/transactions/:id", h.updateTransaction)
	v1.Delete("/transactions/:id", h.deleteTransaction)

	v1.Get("/debts", h.listDebts)
	v1.Post("/debts", h.createDebt)
	v1.Get("/debts/summary", h.debtSummary)
	v1.Get("/debts/:id", h.getDebt)
	v1.Post("/debts/:id/payments", h.applyPayment)
	v1.Post("/debts/:id/settle", h.settleDebt)
	v1.Post("/debts/:id/cancel", h.cancelDebt)
	v1.Post("/debts/:id/correct", h.correctDebt)

	v1.Get("/budgets", h.listBudgets)
	v1.Post("/budgets", h.createBudget)
	v1.Get("/budgets/monthly-spend", h.monthlySpend)
	v1.Get("/budgets/:id", h.getBudget)
	v1.Post("/budgets/:id/reconcile", h.reconcileBudget)
	v1.Post("/budgets/:id/deactivate", h.deactivateBudget)

	v1.Get("/goals", h.listGoals)
	v1.Post("/goals", h.createGoal)
	v1.Get("/goals/:id", h.getGoal)
	v1.Post("/goals/:id/contributions", h.contribute)

	v1.Get("/categories", h.listCategories)
	v1.Post("/categories", h.upsertCategory)

	v1.Get("/dashboard", h.dashboard)

	return app
}
