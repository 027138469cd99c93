package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.IsProduction())

	ctx := context.Background()
	store := cli.OpenStore(ctx, logger, cfg)

	amqpClient := cli.ConnectAMQP(logger, cfg, !cfg.ReconcileInline)
	publisher := cli.Publisher(amqpClient)

	cacheManager := cache.NewManager()
	var dashboardCache cache.Cache[services.Dashboard]
	if cfg.DashboardCacheSize > 0 {
		lru := cache.NewLRUCache[services.Dashboard](cfg.DashboardCacheSize, cfg.DashboardCacheTTL)
		cacheManager.Register(lru)
		dashboardCache = lru
	}
	cacheManager.StartCleanup(time.Minute)

	budgets := services.NewBudgetService(store.Store, publisher)
	dashboard := services.NewDashboardService(store.Store, dashboardCache)
	txOpts := []services.TransactionOption{services.WithInvalidator(dashboard)}
	if cfg.ReconcileInline {
		txOpts = append(txOpts, services.WithInlineReconcile(budgets))
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	}

	var ready func(context.Context) error
	if p, ok := store.Store.(interface{ Ping(context.Context) error }); ok {
		ready = p.Ping
	}

	app := api.New(api.Services{
		Transactions: services.NewTransactionService(store.Store, publisher, txOpts...),
		Debts:        services.NewDebtService(store.Store, publisher),
		Budgets:      budgets,
		Goals:        services.NewGoalService(store.Store, publisher),
		Dashboard:    dashboard,
		Categories:   store.Store,
	}, api.Config{
		AppName: "fintrack",
		Auth: api.AuthConfig{
			ClerkSecretKey: cfg.ClerkSecretKey,
			AllowDevHeader: !cfg.IsProduction(),
		},
		Logger:      logger,
		Ready:       ready,
		RateLimiter: limiter,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := app.ShutdownWithContext(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if limiter != nil {
			limiter.Stop()
		}
		if amqpClient != nil {
			amqpClient.Close()
		}
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close record store", "error", err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"reconcile_inline", cfg.ReconcileInline,
		"events", amqpClient != nil)
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.WithComponent(applog.ComponentHTTP).Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
