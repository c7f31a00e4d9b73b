package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/testforge/e2ekit/internal/config"
	"github.com/testforge/e2ekit/internal/observability"
	"github.com/testforge/e2ekit/internal/resilience"
	"github.com/testforge/e2ekit/pkg/httputil"
)

func reportsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"test-report-20250101-100000.html", "test-report-20250102-100000.html"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("<html>"+name+"</html>"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "screenshots"), 0o755))
	return dir
}

func newTestServer(t *testing.T, cfg RouterConfig) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthz(t *testing.T) {
	breakers := resilience.NewRegistry(func(name string) resilience.Config {
		return resilience.Config{
			Name:     name,
			Cooldown: time.Hour,
			Trip:     func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 1 },
		}
	})
	breakers.Get("claude")
	srv := newTestServer(t, RouterConfig{Breakers: breakers, Version: "test"})

	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var got struct {
		Data struct {
			Status   string            `json:"status"`
			Version  string            `json:"version"`
			Breakers map[string]string `json:"breakers"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "healthy", got.Data.Status)
	assert.Equal(t, "test", got.Data.Version)
	assert.Equal(t, map[string]string{"claude": "closed"}, got.Data.Breakers)

	_ = breakers.Get("openrouter").Do(context.Background(), func(context.Context) error {
		return errors.New("upstream down")
	})
	_, body = get(t, srv.URL+"/healthz")
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "degraded", got.Data.Status)
	assert.Equal(t, "open", got.Data.Breakers["openrouter"])
}

func TestMetrics(t *testing.T) {
	m := observability.NewMetrics("", prometheus.NewRegistry())
	srv := newTestServer(t, RouterConfig{Metrics: m})

	get(t, srv.URL+"/healthz")
	resp, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `e2ekit_http_requests_total{method="GET",path="/healthz",status="200"} 1`)
}

func TestListReports(t *testing.T) {
	srv := newTestServer(t, RouterConfig{ReportsDir: reportsDir(t)})

	resp, body := get(t, srv.URL+"/api/reports")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Success bool          `json:"success"`
		Data    []ReportEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.Success)
	require.Len(t, got.Data, 2)
	assert.Equal(t, "test-report-20250102-100000.html", got.Data[0].Name, "newest first")
	assert.Equal(t, "/reports/test-report-20250102-100000.html", got.Data[0].URL)
	assert.Positive(t, got.Data[0].Size)
}

func TestListReports_EmptyDir(t *testing.T) {
	srv := newTestServer(t, RouterConfig{ReportsDir: filepath.Join(t.TempDir(), "missing")})

	resp, body := get(t, srv.URL+"/api/reports")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"data":[]}`, string(body))
}

func TestReportFiles(t *testing.T) {
	srv := newTestServer(t, RouterConfig{ReportsDir: reportsDir(t)})

	resp, body := get(t, srv.URL+"/reports/test-report-20250101-100000.html")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Equal(t, "<html>test-report-20250101-100000.html</html>", string(body))

	tests := []string{"/reports/missing.html", "/reports/screenshots/", "/reports/screenshots", "/nope"}
	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			resp, body := get(t, srv.URL+path)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)

			var got httputil.Response
			require.NoError(t, json.Unmarshal(body, &got))
			require.NotNil(t, got.Error)
			assert.Equal(t, "NOT_FOUND", got.Error.Code)
			assert.NotEmpty(t, got.Error.RequestID)
		})
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, RouterConfig{AllowedOrigins: []string{"https://dash.example.com"}})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dash.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://dash.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRecoverer(t *testing.T) {
	h := recoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServer_Run(t *testing.T) {
	cfg := config.ServerConfig{Host: "127.0.0.1", Port: freePort(t), ShutdownTimeout: 5 * time.Second}
	s := New(cfg, NewRouter(RouterConfig{}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Addr() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	http.DefaultClient.CloseIdleConnections()
}
