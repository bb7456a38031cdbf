package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"fambudget/internal/amqp"
	"fambudget/internal/config"
	"fambudget/internal/core"
	"fambudget/internal/services"
	"fambudget/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting recurring-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var notifier services.Notifier
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, notifications fall back to direct writes", "error", err)
			notifier = services.NewDirectNotifier(repo)
		} else {
			defer amqpClient.Close()
			notifier = services.NewAMQPNotifier(amqpClient)
			logger.Info("AMQP client initialized - materializations publish to the broker")
		}
	} else {
		notifier = services.NewDirectNotifier(repo)
		logger.Info("AMQP disabled - notifications are written directly")
	}

	processor := services.NewRecurringProcessor(repo, notifier)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := func() {
		asOf := core.DateOf(time.Now())
		count, err := processor.ProcessAllFamilies(ctx, asOf)
		if err != nil {
			logger.Error("Recurring processing failed", "error", err, "as_of", asOf.String())
			return
		}
		logger.Info("Recurring processing complete", "transactions_created", count, "as_of", asOf.String())
	}

	// Catch up immediately on startup, then follow the cron schedule
	logger.Info("Running initial recurring processing...")
	run()

	scheduler := cron.New(cron.WithParser(cron.NewParser(
		cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
	if _, err := scheduler.AddFunc(cfg.RecurringCronSpec, run); err != nil {
		logger.Error("Failed to schedule recurring processing", "error", err, "spec", cfg.RecurringCronSpec)
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("Recurring processor scheduled", "spec", cfg.RecurringCronSpec, "sqlite_db", cfg.SQLiteDBPath)

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("Timed out waiting for running jobs")
	}
	logger.Info("Recurring-worker stopped gracefully")
}
