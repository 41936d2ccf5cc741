package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	ledgerhttp "github.com/odyssey-erp/odyssey-ledger/internal/ledger/http"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if args := os.Args[1:]; len(args) > 0 && args[0] != "serve" {
		if err := runCommand(ctx, cfg, logger, args, os.Stdout); err != nil {
			if errors.Is(err, errUsage) {
				fmt.Fprintln(os.Stderr, usage)
				os.Exit(2)
			}
			logger.Error("command failed", slog.String("command", args[0]), slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	repo, closeRepo, err := app.OpenRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("open ledger repository", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeRepo()

	ledgerService, rowCache := app.NewLedgerService(cfg, repo, redisClient)

	debouncer := shared.NewDebouncer(cfg.LedgerBumpDebounce)
	defer debouncer.Stop()
	if err := rowCache.ListenForInvalidation(ctx, debouncer, func(version int64) {
		logger.Info("ledger rows invalidated", slog.Int64("version", version))
	}); err != nil {
		logger.Warn("row cache invalidation listener", slog.Any("error", err))
	}

	assistantService, err := app.NewAssistantService(ctx, cfg, ledgerService, logger)
	if err != nil {
		logger.Error("init assistant", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	// A typed nil would defeat the handler's nil checks.
	var (
		assistantAPI ledgerhttp.AssistantService
		taskQueue    ledgerhttp.TaskQueue
	)
	if assistantService != nil {
		assistantAPI = assistantService
		taskQueue = jobClient
	}
	ledgerHandler := ledgerhttp.NewHandler(logger, ledgerService, assistantAPI, taskQueue)

	sessionManager := shared.NewSessionManager("odyssey_ledger_session", cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		LedgerHandler:  ledgerHandler,
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.LedgerBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
