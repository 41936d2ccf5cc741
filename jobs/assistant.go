package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/assistant"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// AssistantRunner is the assistant surface executed by the worker.
type AssistantRunner interface {
	Converse(ctx context.Context, req assistant.ConverseRequest) (assistant.ConverseResult, error)
	Compliance(ctx context.Context, req assistant.ComplianceRequest) (assistant.ComplianceResult, error)
}

// AssistantJob executes assistant and compliance tasks and stores their
// results for polling.
type AssistantJob struct {
	Assistant AssistantRunner
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewAssistantJob wires dependencies for the assistant handlers.
func NewAssistantJob(runner AssistantRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *AssistantJob {
	return &AssistantJob{Assistant: runner, Logger: logger, Metrics: metrics}
}

// HandleQuery processes TaskAssistantQuery tasks.
func (j *AssistantJob) HandleQuery(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Assistant == nil {
		return errors.New("assistant query: handler not configured")
	}
	var req assistant.ConverseRequest
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskAssistantQuery)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger(TaskAssistantQuery).With(slog.String("entity_id", req.EntityID))
	result, err := j.Assistant.Converse(ctx, req)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyMessage) {
			resultErr = err
			return asynq.SkipRetry
		}
		resultErr = err
		logger.Error("assistant query failed", slog.Any("error", err))
		return resultErr
	}
	if err := writeResult(t, result); err != nil {
		resultErr = err
		return resultErr
	}
	logger.Info("assistant query completed",
		slog.Bool("applied", result.Applied),
		slog.Bool("degraded", result.Degraded),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// HandleCompliance processes TaskComplianceCheck tasks.
func (j *AssistantJob) HandleCompliance(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Assistant == nil {
		return errors.New("compliance check: handler not configured")
	}
	var req assistant.ComplianceRequest
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskComplianceCheck)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger(TaskComplianceCheck).With(slog.String("entity_id", req.EntityID))
	result, err := j.Assistant.Compliance(ctx, req)
	if err != nil {
		resultErr = err
		logger.Error("compliance check failed", slog.Any("error", err))
		return resultErr
	}
	if err := writeResult(t, result); err != nil {
		resultErr = err
		return resultErr
	}
	logger.Info("compliance check completed",
		slog.Int("issues", len(result.Issues)),
		slog.Int("sampled", result.Sampled),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *AssistantJob) logger(job string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func (j *AssistantJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
