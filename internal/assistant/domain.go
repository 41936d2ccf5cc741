package assistant

import (
	"context"
	"errors"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// Chat roles accepted in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Issue severities reported by the compliance check.
const (
	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
	SeverityLow    = "LOW"
)

// Issue sources.
const (
	SourceModel  = "model"
	SourceEngine = "engine"
)

// DefaultSampleSize bounds the rows handed to the compliance checker.
const DefaultSampleSize = 50

var (
	// ErrEmptyMessage indicates a blank chat utterance.
	ErrEmptyMessage = errors.New("assistant: message required")
	// ErrEmptyResponse indicates the model returned nothing usable.
	ErrEmptyResponse = errors.New("assistant: empty model response")
)

// Message is one turn of the chat history.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// Issue is a flagged compliance finding.
type Issue struct {
	ID        string `json:"id"`
	RowID     string `json:"rowId,omitempty"`
	VoucherNo string `json:"voucherNo,omitempty"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Source    string `json:"source"`
}

// Parser turns free text into a criteria patch.
type Parser interface {
	ParseQuery(ctx context.Context, query string, periods []string, cfg ledger.CategoryConfig) (ledger.Patch, error)
}

// Responder produces the narrative answer for a conversation.
type Responder interface {
	Reply(ctx context.Context, history []Message, stats ledger.Stats) (string, error)
}

// Checker flags suspicious rows.
type Checker interface {
	Check(ctx context.Context, rows []ledger.Row) ([]Issue, error)
}

// Ledger is the slice of the ledger service the assistant depends on.
type Ledger interface {
	Categories() ledger.CategoryConfig
	Criteria(ctx context.Context, scope string, category ledger.Category) (ledger.Criteria, error)
	UpdateCriteria(ctx context.Context, scope, entityID string, criteria ledger.Criteria) (ledger.View, error)
	Stats(ctx context.Context, entityID string, criteria ledger.Criteria) (ledger.Stats, error)
	Periods(ctx context.Context, entityID string) ([]string, error)
	MatchedRows(ctx context.Context, scope, entityID string, category ledger.Category) ([]ledger.Row, ledger.Criteria, error)
	UnbalancedVouchers(ctx context.Context, entityID string) ([]ledger.VoucherGroup, error)
}

// ConverseRequest is one chat turn against an entity.
type ConverseRequest struct {
	Scope    string          `json:"scope"`
	EntityID string          `json:"entityId"`
	Message  string          `json:"message"`
	History  []Message       `json:"history"`
	Category ledger.Category `json:"category"`
}

// ConverseResult carries the reply and, when the filter changed, the new
// first-page view.
type ConverseResult struct {
	Reply    string          `json:"reply"`
	Criteria ledger.Criteria `json:"criteria"`
	Applied  bool            `json:"applied"`
	Degraded bool            `json:"degraded"`
	Stats    *ledger.Stats   `json:"stats,omitempty"`
	View     *ledger.View    `json:"view,omitempty"`
}

// ComplianceRequest asks for a compliance review of the matched rows.
type ComplianceRequest struct {
	Scope      string          `json:"scope"`
	EntityID   string          `json:"entityId"`
	Category   ledger.Category `json:"category"`
	SampleSize int             `json:"sampleSize"`
}

// ComplianceResult lists the findings for the reviewed sample.
type ComplianceResult struct {
	Issues  []Issue `json:"issues"`
	Sampled int     `json:"sampled"`
	Matched int     `json:"matched"`
}
