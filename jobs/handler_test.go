package jobs

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	queue   *asynq.QueueInfo
	task    *asynq.TaskInfo
	err     error
	taskErr error
}

func (f *fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.queue, f.err
}

func (f *fakeInspector) GetTaskInfo(string, string) (*asynq.TaskInfo, error) {
	return f.task, f.taskErr
}

func serveJobs(t *testing.T, inspector Inspector, path string) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	router.Route("/jobs", NewHandler(inspector, nil).MountRoutes)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestJobsHealth(t *testing.T) {
	rec := serveJobs(t, &fakeInspector{queue: &asynq.QueueInfo{Queue: "default", Pending: 3, Active: 1}}, "/jobs/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":3,"active":1}`, rec.Body.String())

	rec = serveJobs(t, &fakeInspector{err: errors.New("redis down")}, "/jobs/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJobsTaskStatus(t *testing.T) {
	inspector := &fakeInspector{task: &asynq.TaskInfo{
		ID:     "t1",
		Type:   TaskComplianceCheck,
		State:  asynq.TaskStateCompleted,
		Result: []byte(`{"sampled":2}`),
	}}
	rec := serveJobs(t, inspector, "/jobs/tasks/t1")
	require.Equal(t, http.StatusOK, rec.Code)

	var out taskStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "completed", out.State)
	require.JSONEq(t, `{"sampled":2}`, string(out.Result))
}

func TestJobsTaskNotFound(t *testing.T) {
	rec := serveJobs(t, &fakeInspector{taskErr: asynq.ErrTaskNotFound}, "/jobs/tasks/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serveJobs(t, &fakeInspector{taskErr: errors.New("timeout")}, "/jobs/tasks/x")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serveJobs(t, nil, "/jobs/tasks/x")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
