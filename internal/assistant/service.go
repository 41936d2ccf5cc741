package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

const (
	unavailableReply = "The assistant is unavailable right now. Your current filters were kept."
	noAnswerReply    = "Filters were updated, but the assistant could not write a summary right now."
)

// Service orchestrates the parser, responder and checker around the ledger.
// It never changes criteria unless the parser returned an actionable patch.
type Service struct {
	ledger    Ledger
	parser    Parser
	responder Responder
	checker   Checker
	opts      Options
	logger    *slog.Logger
}

// Options tunes calls to the AI collaborators.
type Options struct {
	// Timeout bounds each collaborator call; zero means no extra deadline.
	Timeout time.Duration
	// SampleSize is the compliance sample used when a request names none.
	SampleSize int
}

// NewService wires the collaborators.
func NewService(l Ledger, parser Parser, responder Responder, checker Checker, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	return &Service{ledger: l, parser: parser, responder: responder, checker: checker, opts: opts, logger: logger}
}

func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

// Converse handles one chat turn. AI failures degrade into a user-visible
// reply; only ledger failures are returned as errors.
func (s *Service) Converse(ctx context.Context, req ConverseRequest) (ConverseResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return ConverseResult{}, ErrEmptyMessage
	}
	logger := s.logger.With(slog.String("entity_id", req.EntityID))

	current, err := s.ledger.Criteria(ctx, req.Scope, req.Category)
	if err != nil {
		return ConverseResult{}, err
	}
	periods, err := s.ledger.Periods(ctx, req.EntityID)
	if err != nil {
		return ConverseResult{}, err
	}

	parseCtx, cancelParse := s.callContext(ctx)
	patch, err := s.parser.ParseQuery(parseCtx, message, periods, s.ledger.Categories())
	cancelParse()
	if err != nil {
		logger.Warn("parse query", slog.Any("error", err))
		return ConverseResult{Reply: unavailableReply, Criteria: current, Degraded: true}, nil
	}

	result := ConverseResult{Criteria: current}
	next, applied := ledger.ApplyPatch(current, patch)
	if applied {
		view, err := s.ledger.UpdateCriteria(ctx, req.Scope, req.EntityID, next)
		if err != nil {
			return ConverseResult{}, err
		}
		result.Criteria = next
		result.Applied = true
		result.View = &view
	}

	stats, err := s.ledger.Stats(ctx, req.EntityID, result.Criteria)
	if err != nil {
		return ConverseResult{}, err
	}
	result.Stats = &stats

	history := append(append([]Message(nil), req.History...), Message{Role: RoleUser, Content: message})
	replyCtx, cancelReply := s.callContext(ctx)
	reply, err := s.responder.Reply(replyCtx, history, stats)
	cancelReply()
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			logger.Warn("chat reply", slog.Any("error", err))
		}
		result.Degraded = true
		if applied {
			result.Reply = noAnswerReply
		} else {
			result.Reply = unavailableReply
		}
		return result, nil
	}
	result.Reply = strings.TrimSpace(reply)
	logger.Info("assistant turn",
		slog.Bool("applied", result.Applied),
		slog.Int("matched", stats.Count),
	)
	return result, nil
}

// Compliance reviews the first rows of the matched set with the checker and
// adds engine-detected voucher imbalances touching the matched set.
func (s *Service) Compliance(ctx context.Context, req ComplianceRequest) (ComplianceResult, error) {
	matched, _, err := s.ledger.MatchedRows(ctx, req.Scope, req.EntityID, req.Category)
	if err != nil {
		return ComplianceResult{}, err
	}
	size := req.SampleSize
	if size <= 0 {
		size = s.opts.SampleSize
	}
	sample := matched
	if len(sample) > size {
		sample = sample[:size]
	}

	result := ComplianceResult{Issues: []Issue{}, Sampled: len(sample), Matched: len(matched)}
	if len(sample) == 0 {
		return result, nil
	}

	checkCtx, cancelCheck := s.callContext(ctx)
	issues, err := s.checker.Check(checkCtx, sample)
	cancelCheck()
	if err != nil {
		return ComplianceResult{}, fmt.Errorf("assistant: compliance check: %w", err)
	}
	result.Issues = append(result.Issues, issues...)

	unbalanced, err := s.ledger.UnbalancedVouchers(ctx, req.EntityID)
	if err != nil {
		return ComplianceResult{}, err
	}
	inSet := make(map[string]struct{}, len(matched))
	for _, row := range matched {
		inSet[row.VoucherNo] = struct{}{}
	}
	for _, group := range unbalanced {
		if _, ok := inSet[group.VoucherNo]; !ok {
			continue
		}
		result.Issues = append(result.Issues, Issue{
			ID:        uuid.NewString(),
			VoucherNo: group.VoucherNo,
			Severity:  SeverityHigh,
			Message: fmt.Sprintf("voucher %s does not balance: debit %s, credit %s",
				group.VoucherNo, group.TotalDebit.StringFixed(2), group.TotalCredit.StringFixed(2)),
			Source: SourceEngine,
		})
	}
	return result, nil
}
