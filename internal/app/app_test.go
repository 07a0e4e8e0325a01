package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutridash/internal/platform/config"
	"nutridash/internal/platform/middleware"
	"nutridash/pkg/testutil"
)

func testConfig() config.Server {
	return config.Server{
		Addr:         "127.0.0.1:0",
		StoreBackend: config.BackendMemory,
		Collection:   "nutritionData",
		PageSize:     8,
		SessionTTL:   time.Hour,
		WritePolicy:  config.WritePolicyOptimistic,
	}
}

func newTestServer(t *testing.T) (*Deps, *Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, err := Build(context.Background(), testConfig(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	srv, err := NewServer(deps)
	require.NoError(t, err)
	return deps, srv
}

func TestHealthAndMetrics(t *testing.T) {
	_, srv := newTestServer(t)

	rr := testutil.DoRequest(srv.Handler(), testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = testutil.DoRequest(srv.Handler(), testutil.NewRequest(t, http.MethodGet, "/api/view"))
	testutil.AssertStatusOK(t, rr)

	rr = testutil.DoRequest(srv.Handler(), testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Body.String(), "nutridash_http_request_duration_seconds")
	assert.Contains(t, rr.Body.String(), "nutridash_active_sessions 1")
	assert.Contains(t, rr.Body.String(), "nutridash_docstore_op_duration_seconds")
}

func TestSessionCookieKeepsModel(t *testing.T) {
	deps, srv := newTestServer(t)
	csv := "Country,Income Classification,Severe Wasting,Wasting,Overweight,Stunting,Underweight,U5 Population ('000s)\n" +
		"Chad,0,1.2,4.5,2.1,32.1,18.0,2719.0\n"

	rr := testutil.DoRequest(srv.Handler(), testutil.NewMultipartRequest(t, "/api/ingest", "file", "data.csv", []byte(csv)))
	testutil.AssertStatusOK(t, rr)

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	req := testutil.NewJSONRequest(t, http.MethodPut, "/api/view/search", map[string]string{"term": "chad"})
	req.AddCookie(cookie)
	rr = testutil.DoRequest(srv.Handler(), req)
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "search", "chad")

	recs, err := deps.Records.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestNewModelRejectsUnknownPolicy(t *testing.T) {
	deps, _ := newTestServer(t)
	deps.Config.WritePolicy = "eventual"

	_, err := deps.NewModel()
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	_, srv := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHealthReportsBackendFailure(t *testing.T) {
	deps, srv := newTestServer(t)
	deps.health = append(deps.health, func(context.Context) error { return assert.AnError })

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
