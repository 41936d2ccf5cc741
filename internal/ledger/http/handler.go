package ledgerhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/assistant"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/export"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// LedgerService is the query/command surface the handler renders.
type LedgerService interface {
	Categories() ledger.CategoryConfig
	View(ctx context.Context, scope, entityID string, category ledger.Category, page int) (ledger.View, error)
	Criteria(ctx context.Context, scope string, category ledger.Category) (ledger.Criteria, error)
	UpdateCriteria(ctx context.Context, scope, entityID string, criteria ledger.Criteria) (ledger.View, error)
	ResetCriteria(ctx context.Context, scope, entityID string) (ledger.View, error)
	MatchedRows(ctx context.Context, scope, entityID string, category ledger.Category) ([]ledger.Row, ledger.Criteria, error)
	Voucher(ctx context.Context, entityID, voucherNo string) (ledger.VoucherGroup, error)
	Periods(ctx context.Context, entityID string) ([]string, error)
	ImportRows(ctx context.Context, entityID string, rows []ledger.Row) error
}

// AssistantService runs chat turns and compliance reviews synchronously.
type AssistantService interface {
	Converse(ctx context.Context, req assistant.ConverseRequest) (assistant.ConverseResult, error)
	Compliance(ctx context.Context, req assistant.ComplianceRequest) (assistant.ComplianceResult, error)
}

// TaskQueue dispatches the same work to the background worker.
type TaskQueue interface {
	EnqueueAssistantQuery(ctx context.Context, req assistant.ConverseRequest) (*asynq.TaskInfo, error)
	EnqueueComplianceCheck(ctx context.Context, req assistant.ComplianceRequest) (*asynq.TaskInfo, error)
}

const maxImportBytes = 16 << 20

// Handler exposes the ledger over JSON.
type Handler struct {
	logger    *slog.Logger
	ledger    LedgerService
	assistant AssistantService
	tasks     TaskQueue
	validator *validator.Validate
}

// NewHandler constructs a Handler. assistant and tasks may be nil, in which
// case their routes answer 503.
func NewHandler(logger *slog.Logger, ledgerService LedgerService, assistantService AssistantService, tasks TaskQueue) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		ledger:    ledgerService,
		assistant: assistantService,
		tasks:     tasks,
		validator: validator.New(),
	}
}

type criteriaRequest struct {
	Period      string `json:"period" validate:"max=32"`
	SubjectCode string `json:"subjectCode" validate:"max=64"`
	Keyword     string `json:"keyword" validate:"max=200"`
	Category    string `json:"category" validate:"omitempty,oneof=income cost"`
}

type converseRequest struct {
	Message  string              `json:"message" validate:"required,max=2000"`
	History  []assistant.Message `json:"history" validate:"max=50,dive"`
	Category string              `json:"category" validate:"omitempty,oneof=income cost"`
}

type complianceRequest struct {
	Category   string `json:"category" validate:"omitempty,oneof=income cost"`
	SampleSize int    `json:"sampleSize" validate:"omitempty,min=1,max=500"`
}

type taskResponse struct {
	TaskID string `json:"taskId"`
	Queue  string `json:"queue"`
	Type   string `json:"type"`
}

func (h *Handler) handleRows(w http.ResponseWriter, r *http.Request) {
	scope, entityID, ok := h.scope(w, r)
	if !ok {
		return
	}
	category, ok := h.category(w, r, r.URL.Query().Get("category"))
	if !ok {
		return
	}
	page := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			httpx.Problem(w, r, http.StatusBadRequest, "Invalid Page", "page must be a positive integer")
			return
		}
		page = value
	}
	view, err := h.ledger.View(r.Context(), scope, entityID, category, page)
	if err != nil {
		h.fail(w, r, "ledger view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleGetCriteria(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	criteria, err := h.ledger.Criteria(r.Context(), scope, ledger.CategoryNone)
	if err != nil {
		h.fail(w, r, "load criteria", err)
		return
	}
	httpx.JSON(w, http.StatusOK, criteria)
}

func (h *Handler) handlePutCriteria(w http.ResponseWriter, r *http.Request) {
	scope, entityID, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req criteriaRequest
	if !h.decode(w, r, &req) {
		return
	}
	category, _ := ledger.ParseCategory(req.Category)
	criteria := ledger.Criteria{
		Period:      strings.TrimSpace(req.Period),
		SubjectCode: strings.TrimSpace(req.SubjectCode),
		Keyword:     strings.TrimSpace(req.Keyword),
		Category:    category,
	}
	view, err := h.ledger.UpdateCriteria(r.Context(), scope, entityID, criteria)
	if err != nil {
		h.fail(w, r, "update criteria", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleResetCriteria(w http.ResponseWriter, r *http.Request) {
	scope, entityID, ok := h.scope(w, r)
	if !ok {
		return
	}
	view, err := h.ledger.ResetCriteria(r.Context(), scope, entityID)
	if err != nil {
		h.fail(w, r, "reset criteria", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handlePeriods(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	periods, err := h.ledger.Periods(r.Context(), entityID)
	if err != nil {
		h.fail(w, r, "list periods", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": periods})
}

func (h *Handler) handleVoucher(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	voucherNo := chi.URLParam(r, "voucherNo")
	group, err := h.ledger.Voucher(r.Context(), entityID, voucherNo)
	if err != nil {
		if ledger.IsNotFound(err) {
			httpx.Problem(w, r, http.StatusNotFound, "Voucher Not Found", err.Error())
			return
		}
		h.fail(w, r, "load voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	scope, entityID, ok := h.scope(w, r)
	if !ok {
		return
	}
	category, ok := h.category(w, r, r.URL.Query().Get("category"))
	if !ok {
		return
	}
	rows, criteria, err := h.ledger.MatchedRows(r.Context(), scope, entityID, category)
	if err != nil {
		h.fail(w, r, "export rows", err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteRowsCSV(&buf, rows, h.ledger.Categories()); err != nil {
		h.fail(w, r, "write csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", exportFilename(entityID, criteria)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleImportRows(w http.ResponseWriter, r *http.Request) {
	entityID := strings.TrimSpace(chi.URLParam(r, "entityID"))
	rows, err := export.ReadRowsCSV(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		httpx.Problem(w, r, http.StatusBadRequest, "Invalid Sheet", err.Error())
		return
	}
	if err := h.ledger.ImportRows(r.Context(), entityID, rows); err != nil {
		h.fail(w, r, "import rows", err)
		return
	}
	h.logger.Info("rows imported", slog.String("entity_id", entityID), slog.Int("rows", len(rows)))
	httpx.JSON(w, http.StatusOK, map[string]int{"imported": len(rows)})
}

func (h *Handler) handleConverse(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		httpx.Problem(w, r, http.StatusServiceUnavailable, "Assistant Unavailable", "assistant is not configured")
		return
	}
	req, ok := h.converseRequest(w, r)
	if !ok {
		return
	}
	result, err := h.assistant.Converse(r.Context(), req)
	if err != nil {
		h.fail(w, r, "assistant converse", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleConverseTask(w http.ResponseWriter, r *http.Request) {
	if h.tasks == nil {
		httpx.Problem(w, r, http.StatusServiceUnavailable, "Queue Unavailable", "task queue is not configured")
		return
	}
	req, ok := h.converseRequest(w, r)
	if !ok {
		return
	}
	info, err := h.tasks.EnqueueAssistantQuery(r.Context(), req)
	if err != nil {
		h.fail(w, r, "enqueue assistant query", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, taskResponse{TaskID: info.ID, Queue: info.Queue, Type: info.Type})
}

func (h *Handler) handleCompliance(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		httpx.Problem(w, r, http.StatusServiceUnavailable, "Assistant Unavailable", "assistant is not configured")
		return
	}
	req, ok := h.complianceRequest(w, r)
	if !ok {
		return
	}
	result, err := h.assistant.Compliance(r.Context(), req)
	if err != nil {
		h.logger.Warn("compliance check", slog.Any("error", err))
		httpx.Problem(w, r, http.StatusBadGateway, "Compliance Check Failed", "the compliance service could not review the rows")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleComplianceTask(w http.ResponseWriter, r *http.Request) {
	if h.tasks == nil {
		httpx.Problem(w, r, http.StatusServiceUnavailable, "Queue Unavailable", "task queue is not configured")
		return
	}
	req, ok := h.complianceRequest(w, r)
	if !ok {
		return
	}
	info, err := h.tasks.EnqueueComplianceCheck(r.Context(), req)
	if err != nil {
		h.fail(w, r, "enqueue compliance check", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, taskResponse{TaskID: info.ID, Queue: info.Queue, Type: info.Type})
}

func (h *Handler) converseRequest(w http.ResponseWriter, r *http.Request) (assistant.ConverseRequest, bool) {
	scope, entityID, ok := h.scope(w, r)
	if !ok {
		return assistant.ConverseRequest{}, false
	}
	var body converseRequest
	if !h.decode(w, r, &body) {
		return assistant.ConverseRequest{}, false
	}
	category, _ := ledger.ParseCategory(body.Category)
	return assistant.ConverseRequest{
		Scope:    scope,
		EntityID: entityID,
		Message:  body.Message,
		History:  body.History,
		Category: category,
	}, true
}

func (h *Handler) complianceRequest(w http.ResponseWriter, r *http.Request) (assistant.ComplianceRequest, bool) {
	scope, entityID, ok := h.scope(w, r)
	if !ok {
		return assistant.ComplianceRequest{}, false
	}
	var body complianceRequest
	if !h.decode(w, r, &body) {
		return assistant.ComplianceRequest{}, false
	}
	category, _ := ledger.ParseCategory(body.Category)
	return assistant.ComplianceRequest{
		Scope:      scope,
		EntityID:   entityID,
		Category:   category,
		SampleSize: body.SampleSize,
	}, true
}

// scope derives the criteria scope key from the session and entity.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	entityID := strings.TrimSpace(chi.URLParam(r, "entityID"))
	if entityID == "" {
		httpx.Problem(w, r, http.StatusBadRequest, "Invalid Entity", ledger.ErrEntityRequired.Error())
		return "", "", false
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.ID == "" {
		httpx.Problem(w, r, http.StatusUnauthorized, "Session Required", shared.ErrSessionMissing.Error())
		return "", "", false
	}
	return ledger.ScopeKey(sess.ID, entityID), entityID, true
}

func (h *Handler) category(w http.ResponseWriter, r *http.Request, raw string) (ledger.Category, bool) {
	category, ok := ledger.ParseCategory(raw)
	if !ok {
		httpx.Problem(w, r, http.StatusBadRequest, "Invalid Category", "category must be income or cost")
		return ledger.CategoryNone, false
	}
	return category, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, r, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			messages := make([]string, 0, len(fieldErrs))
			for _, fieldErr := range fieldErrs {
				messages = append(messages, fieldErr.Field()+": "+fieldErr.Tag())
			}
			httpx.Problem(w, r, http.StatusBadRequest, "Validation Failed", strings.Join(messages, "; "))
			return false
		}
		httpx.Problem(w, r, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, ledger.ErrEntityRequired) {
		httpx.Problem(w, r, http.StatusBadRequest, "Invalid Entity", err.Error())
		return
	}
	if errors.Is(err, assistant.ErrEmptyMessage) || errors.Is(err, ledger.ErrInvalidRow) {
		httpx.Problem(w, r, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if errors.Is(err, ledger.ErrImportUnsupported) {
		httpx.Problem(w, r, http.StatusNotImplemented, "Import Unsupported", err.Error())
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, r, err)
}

func exportFilename(entityID string, criteria ledger.Criteria) string {
	period := criteria.Period
	if period == "" {
		period = "all"
	}
	name := "ledger-" + entityID + "-" + period + ".csv"
	return strings.Map(func(r rune) rune {
		if r == '"' || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)
}
