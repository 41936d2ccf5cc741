package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

const scanConcurrency = 4

// VoucherSource lists entities and their unbalanced vouchers.
type VoucherSource interface {
	Entities(ctx context.Context) ([]string, error)
	UnbalancedVouchers(ctx context.Context, entityID string) ([]ledger.VoucherGroup, error)
}

// VoucherScanResult summarises one scan run.
type VoucherScanResult struct {
	Entities   int                 `json:"entities"`
	Unbalanced map[string][]string `json:"unbalanced"`
}

// VoucherScanJob checks every voucher of the selected entities for balance.
type VoucherScanJob struct {
	Source  VoucherSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewVoucherScanJob initialises the voucher scan handler.
func NewVoucherScanJob(source VoucherSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *VoucherScanJob {
	return &VoucherScanJob{Source: source, Logger: logger, Metrics: metrics}
}

// Handle executes the voucher scan.
func (j *VoucherScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("voucher scan: handler not configured")
	}
	var payload VoucherScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskVoucherScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	result, err := j.Scan(ctx, payload.EntityID)
	if err != nil {
		resultErr = err
		logger.Error("voucher scan failed", slog.Any("error", err))
		return resultErr
	}
	if err := writeResult(t, result); err != nil {
		resultErr = err
		return resultErr
	}
	logger.Info("voucher scan completed",
		slog.Int("entities", result.Entities),
		slog.Int("entities_unbalanced", len(result.Unbalanced)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Scan runs the balance check for one entity, or every entity when entityID is empty.
func (j *VoucherScanJob) Scan(ctx context.Context, entityID string) (VoucherScanResult, error) {
	entities := []string{entityID}
	if entityID == "" {
		list, err := j.Source.Entities(ctx)
		if err != nil {
			return VoucherScanResult{}, fmt.Errorf("list entities: %w", err)
		}
		entities = list
	}

	result := VoucherScanResult{Entities: len(entities), Unbalanced: map[string][]string{}}
	var mu sync.Mutex
	logger := j.logger()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for _, id := range entities {
		g.Go(func() error {
			groups, err := j.Source.UnbalancedVouchers(gctx, id)
			if err != nil {
				return fmt.Errorf("scan entity %s: %w", id, err)
			}
			if len(groups) == 0 {
				return nil
			}
			vouchers := make([]string, 0, len(groups))
			for _, group := range groups {
				vouchers = append(vouchers, group.VoucherNo)
				logger.Warn("unbalanced voucher",
					slog.String("entity_id", id),
					slog.String("voucher_no", group.VoucherNo),
					slog.String("debit", group.TotalDebit.StringFixed(2)),
					slog.String("credit", group.TotalCredit.StringFixed(2)),
					slog.String("difference", group.Difference().StringFixed(2)),
				)
			}
			j.metrics().AddUnbalanced(id, len(groups))
			mu.Lock()
			result.Unbalanced[id] = vouchers
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return VoucherScanResult{}, err
	}
	return result, nil
}

func (j *VoucherScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskVoucherScan))
	}
	return slog.Default().With(slog.String("job", TaskVoucherScan))
}

func (j *VoucherScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
