package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/assistant"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// OpenRepository connects the configured row backend. The returned close
// function releases the underlying pool or file handle.
func OpenRepository(ctx context.Context, cfg *Config, logger *slog.Logger) (ledger.Repository, func(), error) {
	switch cfg.LedgerBackend {
	case BackendSQLite:
		repo, err := ledger.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("ledger rows from sqlite", slog.String("path", cfg.SQLitePath))
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Warn("sqlite close", slog.Any("error", err))
			}
		}, nil
	case BackendPostgres:
		if cfg.LedgerAutoMigrate {
			if err := ledger.MigratePostgres(cfg.PGDSN); err != nil {
				return nil, nil, err
			}
		}
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("ledger rows from postgres")
		return ledger.NewPostgresRepository(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported LEDGER_BACKEND %q", cfg.LedgerBackend)
	}
}

// NewLedgerService builds the ledger facade with its Redis-backed cache and
// criteria store.
func NewLedgerService(cfg *Config, repo ledger.Repository, client *redis.Client) (*ledger.Service, *ledger.Cache) {
	rowCache := ledger.NewCache(client, cfg.LedgerRowsCacheTTL)
	store := ledger.NewRedisCriteriaStore(client, cfg.SessionTTL)
	svc := ledger.NewService(repo, rowCache, store, ledger.ServiceConfig{
		PageSize:   cfg.LedgerPageSize,
		Categories: cfg.Categories(),
	})
	return svc, rowCache
}

// NewAssistantService wires the Gemini collaborators. It returns nil when no
// API key is configured or when running in test mode.
func NewAssistantService(ctx context.Context, cfg *Config, l assistant.Ledger, logger *slog.Logger) (*assistant.Service, error) {
	if !cfg.AssistantEnabled() || InTestMode() {
		logger.Info("assistant disabled")
		return nil, nil
	}
	gemini, err := assistant.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("init gemini: %w", err)
	}
	return assistant.NewService(l, gemini, gemini, gemini, assistant.Options{
		Timeout:    cfg.AssistantTimeout,
		SampleSize: cfg.ComplianceSampleSize,
	}, logger.With(slog.String("component", "assistant"))), nil
}
