package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fambudget/internal/amqp"
	"fambudget/internal/config"
	apphttp "fambudget/internal/http"
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

	logger.Info("Starting fambudget server")

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

	// AMQP is optional: without a broker, materialization notifications are
	// written straight to storage instead of flowing through the
	// notification-worker.
	var notifier services.Notifier
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, notifications fall back to direct writes", "error", err)
			notifier = services.NewDirectNotifier(repo)
		} else {
			defer amqpClient.Close()
			notifier = services.NewAMQPNotifier(amqpClient)
			logger.Info("AMQP client initialized - notifications flow through the broker")
		}
	} else {
		notifier = services.NewDirectNotifier(repo)
		logger.Info("AMQP disabled - notifications are written directly")
	}

	catalog := services.NewCachedCatalog(repo, cfg.CategoryCacheSize, cfg.CategoryCacheTTL)
	catalog.StartSweeper(cfg.CategoryCacheTTL)
	defer catalog.StopSweeper()

	ruleService := services.NewRuleService(repo, catalog)
	ledgerService := services.NewLedgerService(repo, catalog)
	processor := services.NewRecurringProcessor(repo, notifier)

	srv := apphttp.NewServer(":"+cfg.Port, repo, ruleService, ledgerService, processor, cfg.RateLimitPerMinute)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
