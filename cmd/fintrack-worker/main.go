package main

import (
	"context"
	"errors"
	"os"

	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.IsProduction()).WithComponent(applog.ComponentWorker)

	logger.Info("Starting fintrack-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the reconcile worker")
		os.Exit(1)
	}

	store := cli.OpenStore(context.Background(), logger, cfg)
	amqpClient := cli.ConnectAMQP(logger, cfg, true)

	// Threshold events go out through the same broker.
	budgets := services.NewBudgetService(store.Store, cli.Publisher(amqpClient))
	reconciler := worker.NewReconcileWorker(budgets, cfg.SweepInterval)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		amqpClient.Close()
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close record store", "error", err)
		}
	})

	// Catch up on anything missed while the worker was down.
	if err := reconciler.StartupSweep(ctx); err != nil {
		logger.Error("Failed startup sweep", "error", err)
		// Don't exit - the periodic sweep retries
	}

	go func() {
		if err := amqpClient.Consume(ctx, reconciler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			os.Exit(1)
		}
	}()

	go reconciler.Run(ctx)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
