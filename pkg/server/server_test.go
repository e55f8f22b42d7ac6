package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/buildtimes/pkg/config"
	"github.com/ethpandaops/buildtimes/pkg/dashboard"
)

const testDocument = `{"repo_names": ["api"], "datasets": [], "summary": []}`

func dashboardDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, dashboard.FileName), []byte(testDocument), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "dashboard.html"), []byte("<html>ok</html>"), 0o644))

	return dir
}

func newTestServer(t *testing.T, cfg *config.ServerConfig, dir string) *server {
	t.Helper()

	log, _ := test.NewNullLogger()
	srv, ok := NewServer(log, cfg, dir).(*server)
	require.True(t, ok)

	t.Cleanup(func() { close(srv.done) })

	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.1:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestRouter_ServesDashboardFiles(t *testing.T) {
	srv := newTestServer(t, &config.ServerConfig{}, dashboardDir(t))
	router := srv.buildRouter()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "document", path: "/" + dashboard.FileName, wantStatus: http.StatusOK, wantBody: testDocument},
		{name: "html page", path: "/dashboard.html", wantStatus: http.StatusOK, wantBody: "<html>ok</html>"},
		{name: "health", path: "/healthz", wantStatus: http.StatusOK, wantBody: `"status":"ok"`},
		{name: "missing file", path: "/nope.json", wantStatus: http.StatusNotFound},
		{name: "metrics disabled", path: "/metrics", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, router, tt.path)

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRouter_CORS(t *testing.T) {
	srv := newTestServer(t, &config.ServerConfig{
		CORSOrigins: []string{"https://ci.example.org"},
	}, dashboardDir(t))
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/"+dashboard.FileName, nil)
	req.Header.Set("Origin", "https://ci.example.org")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://ci.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Metrics(t *testing.T) {
	srv := newTestServer(t, &config.ServerConfig{Metrics: true}, dashboardDir(t))
	srv.metrics = newHTTPMetrics()
	router := srv.buildRouter()

	require.Equal(t, http.StatusOK, get(t, router, "/healthz").Code)

	rec := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "buildtimes_http_requests_total")
	assert.Contains(t, body, `path="/healthz"`)
}

func TestRouter_RateLimit(t *testing.T) {
	srv := newTestServer(t, &config.ServerConfig{
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2},
	}, dashboardDir(t))
	router := srv.buildRouter()

	path := "/" + dashboard.FileName

	assert.Equal(t, http.StatusOK, get(t, router, path).Code)
	assert.Equal(t, http.StatusOK, get(t, router, path).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, router, path).Code)

	// Health checks are not rate limited.
	assert.Equal(t, http.StatusOK, get(t, router, "/healthz").Code)
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{name: "remote addr", remoteAddr: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "forwarded chain", remoteAddr: "10.0.0.1:5555", xff: "203.0.113.7, 10.0.0.2", want: "203.0.113.7"},
		{name: "forwarded single", remoteAddr: "10.0.0.1:5555", xff: "203.0.113.8", want: "203.0.113.8"},
		{name: "no port", remoteAddr: "10.0.0.3", want: "10.0.0.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr

			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			assert.Equal(t, tt.want, extractIP(req))
		})
	}
}

func TestStart_DashboardMissing(t *testing.T) {
	log, _ := test.NewNullLogger()

	srv := NewServer(log, &config.ServerConfig{Host: "127.0.0.1"}, t.TempDir())

	err := srv.Start(context.Background())
	require.ErrorIs(t, err, ErrDashboardMissing)
	assert.Empty(t, srv.Addr())
}

func TestStart_ServesAndStops(t *testing.T) {
	log, _ := test.NewNullLogger()

	srv := NewServer(log, &config.ServerConfig{Host: "127.0.0.1"}, dashboardDir(t))
	require.NoError(t, srv.Start(context.Background()))

	resp, err := http.Get(fmt.Sprintf("http://%s/%s", srv.Addr(), dashboard.FileName))
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testDocument, string(body))

	require.NoError(t, srv.Stop())
}

func TestListen_FallsBackToNextPort(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = busy.Close() })

	port := busy.Addr().(*net.TCPAddr).Port

	log, hook := test.NewNullLogger()

	ln, err := listen(log, "127.0.0.1", port)
	if err != nil {
		// port+1 happened to be taken by another process.
		t.Skipf("fallback port unavailable: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	assert.Equal(t, strconv.Itoa(port+1), portOf(t, ln.Addr().String()))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func portOf(t *testing.T, addr string) string {
	t.Helper()

	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	return port
}
