package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/loupe/internal/config"
	"github.com/atikulmunna/loupe/internal/engine"
	"github.com/atikulmunna/loupe/internal/export"
	"github.com/atikulmunna/loupe/internal/hub"
	"github.com/atikulmunna/loupe/internal/metrics"
	"github.com/atikulmunna/loupe/internal/model"
	"github.com/atikulmunna/loupe/internal/runs"
)

const accessLog = `10.0.0.1 - - [17/Feb/2026:12:00:01 +0000] "GET /api/users?id=1 HTTP/1.1" 200 512 0.250
10.0.0.2 - - [17/Feb/2026:12:00:02 +0000] "POST /api/orders HTTP/1.1" 500 64 1.500
not an access log line
10.0.0.1 - - [17/Feb/2026:12:01:05 +0000] "GET /api/users HTTP/1.1" 404 0 0.005
`

func newTestServer(t *testing.T) (*Server, *hub.Hub) {
	t.Helper()

	v := viper.New()
	config.SetDefaults(v)
	v.Set("chunk-size", 64)
	cfg, err := config.Load(v)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := hub.New(zerolog.Nop())
	go h.Start(ctx)

	m := metrics.New()
	an := engine.New(zerolog.Nop(), m)
	return New(an, h, runs.New(time.Minute), m, cfg, zerolog.Nop()), h
}

func uploadRequest(t *testing.T, target string, fields map[string]string, body string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", "access.log")
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func upload(t *testing.T, s *Server, fields map[string]string) runView {
	t.Helper()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "/api/analyze", fields, accessLog))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out runView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func get(s *Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAnalyzeUpload(t *testing.T) {
	s, _ := newTestServer(t)

	out := upload(t, s, map[string]string{"format": "nginx"})
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "access.log", out.Name)
	assert.Equal(t, model.FormatNginx, out.Format)

	k := out.Summary.KPIs
	assert.Equal(t, int64(3), k.TotalRecords)
	assert.Equal(t, int64(1), k.DroppedLines)
	assert.Equal(t, int64(2), k.ErrorCount)
	assert.Len(t, out.Summary.SlowRequests, 3)
	assert.Equal(t, "/api/orders", out.Summary.SlowRequests[0].Target)
}

func TestAnalyzeUploadThreshold(t *testing.T) {
	s, _ := newTestServer(t)

	out := upload(t, s, map[string]string{"format": "nginx", "threshold_ms": "200"})
	assert.Equal(t, 200.0, out.ThresholdMs)
	require.Len(t, out.Summary.SlowRequests, 2)
	// KPIs are computed before filtering.
	assert.Equal(t, int64(3), out.Summary.KPIs.TotalRecords)
}

func TestAnalyzeUploadRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"unknown format", map[string]string{"format": "syslog"}},
		{"negative threshold", map[string]string{"threshold_ms": "-1"}},
		{"non-numeric threshold", map[string]string{"threshold_ms": "fast"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, uploadRequest(t, "/api/analyze", tt.fields, accessLog))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAnalyzeUploadMissingFile(t *testing.T) {
	s, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("format", "nginx"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRunAndList(t *testing.T) {
	s, _ := newTestServer(t)
	out := upload(t, s, map[string]string{"format": "nginx"})

	rec := get(s, "/api/runs/"+out.ID+"?threshold_ms=1000")
	require.Equal(t, http.StatusOK, rec.Code)
	var got runView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, out.ID, got.ID)
	require.Len(t, got.Summary.SlowRequests, 1)
	assert.Equal(t, "/api/orders", got.Summary.SlowRequests[0].Target)

	rec = get(s, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), out.ID)

	assert.Equal(t, http.StatusNotFound, get(s, "/api/runs/missing").Code)
	assert.Equal(t, http.StatusBadRequest, get(s, "/api/runs/"+out.ID+"?threshold_ms=x").Code)
}

func TestExportCSV(t *testing.T) {
	s, _ := newTestServer(t)
	out := upload(t, s, map[string]string{"format": "nginx"})

	rec := get(s, "/api/runs/"+out.ID+"/export?threshold_ms=100")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "slow_requests_nginx_")
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))

	rows, err := export.Read(rec.Body)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "/api/orders", rows[0].Target)
	assert.InDelta(t, 1.5, rows[0].ResponseTime, 1e-9)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	upload(t, s, map[string]string{"format": "nginx"})

	rec := get(s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loupe_runs_total")
}

func TestAnalyzeFileStoresRun(t *testing.T) {
	s, _ := newTestServer(t)

	path := filepath.Join(t.TempDir(), "spooled.log")
	require.NoError(t, os.WriteFile(path, []byte(accessLog), 0o644))

	run, err := s.AnalyzeFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "spooled.log", run.Name)

	stored, ok := s.runs.Get(run.ID)
	require.True(t, ok)
	assert.Equal(t, int64(3), stored.Summary.KPIs.TotalRecords)

	_, err = s.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "absent.log"))
	assert.Error(t, err)
}

func TestWebSocketStreamsRunEvents(t *testing.T) {
	s, h := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	req := uploadRequest(t, ts.URL+"/api/analyze", map[string]string{"format": "nginx"}, accessLog)
	req.RequestURI = ""
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var progress []float64
	for {
		var ev model.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == model.EventCompleted {
			assert.Equal(t, "access.log", ev.Name)
			break
		}
		require.Equal(t, model.EventProgress, ev.Type)
		progress = append(progress, ev.Progress)
	}

	require.NotEmpty(t, progress)
	assert.Equal(t, 100.0, progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
}
