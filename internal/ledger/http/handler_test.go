package ledgerhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/assistant"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type memoryRepo struct {
	mu   sync.Mutex
	rows map[string][]ledger.Row
}

func (m *memoryRepo) ListRows(_ context.Context, entityID string) ([]ledger.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[entityID], nil
}

func (m *memoryRepo) ListEntities(context.Context) ([]string, error) {
	return []string{"acme"}, nil
}

func (m *memoryRepo) ReplaceRows(_ context.Context, entityID string, rows []ledger.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[entityID] = rows
	return nil
}

type fakeAssistant struct {
	converseReq   assistant.ConverseRequest
	converseErr   error
	complianceErr error
}

func (f *fakeAssistant) Converse(_ context.Context, req assistant.ConverseRequest) (assistant.ConverseResult, error) {
	f.converseReq = req
	if f.converseErr != nil {
		return assistant.ConverseResult{}, f.converseErr
	}
	return assistant.ConverseResult{Reply: "done"}, nil
}

func (f *fakeAssistant) Compliance(context.Context, assistant.ComplianceRequest) (assistant.ComplianceResult, error) {
	if f.complianceErr != nil {
		return assistant.ComplianceResult{}, f.complianceErr
	}
	return assistant.ComplianceResult{Issues: []assistant.Issue{}, Sampled: 1, Matched: 1}, nil
}

type fakeQueue struct {
	compliance assistant.ComplianceRequest
}

func (f *fakeQueue) EnqueueAssistantQuery(context.Context, assistant.ConverseRequest) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{ID: "t1", Queue: "default", Type: "ledger:assistant_query"}, nil
}

func (f *fakeQueue) EnqueueComplianceCheck(_ context.Context, req assistant.ComplianceRequest) (*asynq.TaskInfo, error) {
	f.compliance = req
	return &asynq.TaskInfo{ID: "t2", Queue: "default", Type: "ledger:compliance_check"}, nil
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func seedRows() []ledger.Row {
	return []ledger.Row{
		{ID: "1", Period: "2024-01", VoucherNo: "V1", SubjectCode: "6602", Summary: "差旅费报销", DebitAmount: d("100")},
		{ID: "2", Period: "2024-01", VoucherNo: "V1", SubjectCode: "1001", Summary: "差旅费报销", CreditAmount: d("100")},
		{ID: "3", Period: "2024-02", VoucherNo: "V2", SubjectCode: "6001", Summary: "销售收入", CreditAmount: d("500")},
	}
}

type testServer struct {
	router chi.Router
	repo   *memoryRepo
}

func newTestServer(t *testing.T, assistantService AssistantService, tasks TaskQueue) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &memoryRepo{rows: map[string][]ledger.Row{"acme": seedRows()}}
	svc := ledger.NewService(repo, ledger.NewCache(client, time.Minute), ledger.NewRedisCriteriaStore(client, time.Hour),
		ledger.ServiceConfig{PageSize: 2, Categories: ledger.CategoryConfig{IncomeSubjectCodes: []string{"6001"}}})
	handler := NewHandler(nil, svc, assistantService, tasks)

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get("X-Test-Session"); id != "" {
				r = r.WithContext(shared.ContextWithSession(r.Context(), &shared.Session{ID: id}))
			}
			next.ServeHTTP(w, r)
		})
	})
	handler.MountRoutes(router)
	return &testServer{router: router, repo: repo}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("X-Test-Session", "sess-1")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) ledger.View {
	t.Helper()
	var view ledger.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func TestHandleRowsPaging(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := srv.do(http.MethodGet, "/ledger/acme/rows?page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	require.Equal(t, 3, view.Total)
	require.Equal(t, 2, view.TotalPages)
	require.Len(t, view.Rows, 1)

	rec = srv.do(http.MethodGet, "/ledger/acme/rows?page=0", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodGet, "/ledger/acme/rows?category=assets", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodGet, "/ledger/acme/rows?category=income", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, decodeView(t, rec).Total)
}

func TestHandleRowsRequiresSession(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/ledger/acme/rows", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHandleCriteriaLifecycle(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := srv.do(http.MethodPut, "/ledger/acme/criteria", `{"period":" 2024-01 ","keyword":"差旅"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	require.Equal(t, 2, view.Total)
	require.Equal(t, "2024-01", view.Criteria.Period)

	rec = srv.do(http.MethodGet, "/ledger/acme/criteria", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var criteria ledger.Criteria
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &criteria))
	require.Equal(t, "差旅", criteria.Keyword)

	rec = srv.do(http.MethodDelete, "/ledger/acme/criteria", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, decodeView(t, rec).Total)
}

func TestHandlePutCriteriaValidation(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := srv.do(http.MethodPut, "/ledger/acme/criteria", `{"category":"assets"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPut, "/ledger/acme/criteria", `{"unknown":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleVoucher(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := srv.do(http.MethodGet, "/ledger/acme/vouchers/V1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var group ledger.VoucherGroup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &group))
	require.True(t, group.IsBalanced)
	require.Len(t, group.Rows, 2)

	rec = srv.do(http.MethodGet, "/ledger/acme/vouchers/V9", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePeriods(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	rec := srv.do(http.MethodGet, "/ledger/acme/periods", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"periods":["2024-01","2024-02"]}`, rec.Body.String())
}

func TestHandleExportCSV(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	require.Equal(t, http.StatusOK, srv.do(http.MethodPut, "/ledger/acme/criteria", `{"period":"2024-01"}`).Code)

	rec := srv.do(http.MethodGet, "/ledger/acme/export.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "ledger-acme-2024-01.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[3], "Total,"))
}

func TestHandleImportRows(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	sheet := "id,period,voucherNo,subjectCode,summary,debitAmount,creditAmount\n" +
		"n1,2024-05,V5,6602,招待费,\"1,200.50\",\n" +
		"n2,2024-05,V5,1001,招待费,,1200.50\n"

	rec := srv.do(http.MethodPut, "/ledger/acme/rows", sheet)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"imported":2}`, rec.Body.String())

	rec = srv.do(http.MethodGet, "/ledger/acme/rows", "")
	view := decodeView(t, rec)
	require.Equal(t, 2, view.Total)
	require.Equal(t, "n1", view.Rows[0].ID)

	rec = srv.do(http.MethodPut, "/ledger/acme/rows", "id,voucherNo\nx,V1\n")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPut, "/ledger/acme/rows", "id,voucherNo,subjectCode,debitAmount,creditAmount\nx,V1,1001,-5,\n")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssistantRoutesUnavailable(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	require.Equal(t, http.StatusServiceUnavailable, srv.do(http.MethodPost, "/ledger/acme/assistant", `{"message":"hi"}`).Code)
	require.Equal(t, http.StatusServiceUnavailable, srv.do(http.MethodPost, "/ledger/acme/compliance", `{}`).Code)
	require.Equal(t, http.StatusServiceUnavailable, srv.do(http.MethodPost, "/ledger/acme/assistant/tasks", `{"message":"hi"}`).Code)
}

func TestHandleConverse(t *testing.T) {
	fake := &fakeAssistant{}
	srv := newTestServer(t, fake, nil)

	rec := srv.do(http.MethodPost, "/ledger/acme/assistant", `{"message":"travel costs","category":"cost","history":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ledger.CategoryCost, fake.converseReq.Category)
	require.Equal(t, ledger.ScopeKey("sess-1", "acme"), fake.converseReq.Scope)

	rec = srv.do(http.MethodPost, "/ledger/acme/assistant", `{"message":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/ledger/acme/assistant", `{"message":"x","history":[{"role":"system","content":"x"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleComplianceFailureIsBadGateway(t *testing.T) {
	srv := newTestServer(t, &fakeAssistant{complianceErr: errors.New("model down")}, nil)
	rec := srv.do(http.MethodPost, "/ledger/acme/compliance", `{"sampleSize":10}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleComplianceTask(t *testing.T) {
	queue := &fakeQueue{}
	srv := newTestServer(t, &fakeAssistant{}, queue)

	rec := srv.do(http.MethodPost, "/ledger/acme/compliance/tasks", `{"category":"income","sampleSize":5}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"taskId":"t2","queue":"default","type":"ledger:compliance_check"}`, rec.Body.String())
	require.Equal(t, ledger.CategoryIncome, queue.compliance.Category)
	require.Equal(t, 5, queue.compliance.SampleSize)
}

func TestExportFilenameSanitises(t *testing.T) {
	require.Equal(t, "ledger-a_b-all.csv", exportFilename("a/b", ledger.Criteria{}))
}
