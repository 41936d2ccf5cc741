package app

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

// httpsRequest marks the request as proxied over TLS so production SSL
// redirects stay out of the way.
func httpsRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	return req
}

func TestRouterHealthzIssuesSession(t *testing.T) {
	router := NewRouter(RouterParams{
		Config:         &Config{AppEnv: "production", AppRequestTimeout: time.Second},
		SessionManager: shared.NewSessionManager("ledger_session", time.Hour, false),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httpsRequest("/healthz"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rec.Result().Cookies())
	require.Equal(t, "ledger_session", rec.Result().Cookies()[0].Name)
}

func TestRouterNotFoundIsProblem(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{AppEnv: "production"}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httpsRequest("/nope"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestSessionMiddlewareStoresSession(t *testing.T) {
	var seen *shared.Session
	handler := SessionMiddleware(shared.NewSessionManager("s", time.Hour, false))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = shared.SessionFromContext(r.Context())
			_, _ = w.Write([]byte("ok"))
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, seen)
	require.Equal(t, seen.ID, rec.Result().Cookies()[0].Value)
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{AppEnv: "production", LogFormat: "json"}, &buf)
	logger.Debug("hidden")
	logger.Info("visible", slog.String("k", "v"))

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"visible"`)
	require.Contains(t, buf.String(), `"env":"production"`)
}

func TestInTestMode(t *testing.T) {
	require.True(t, InTestMode())
	t.Setenv(TestModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
	t.Setenv(TestModeEnv, "1")
	RefreshTestMode()
}

func TestNewAssistantServiceDisabledInTestMode(t *testing.T) {
	svc, err := NewAssistantService(context.Background(), &Config{GeminiAPIKey: "k"}, nil, slog.Default())
	require.NoError(t, err)
	require.Nil(t, svc)
}
