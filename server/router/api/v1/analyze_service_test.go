package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	agent "github.com/hrygo/captain/ai/agents"
	"github.com/hrygo/captain/ai/agents/team"
	"github.com/hrygo/captain/ai/core/llm"
	"github.com/hrygo/captain/ai/metrics"
	"github.com/hrygo/captain/internal/profile"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, task string) *team.Outcome {
	args := m.Called(ctx, task)
	return args.Get(0).(*team.Outcome)
}

// fixedAgent always answers with the same content.
type fixedAgent struct {
	name, reply string
}

func (a fixedAgent) Name() string { return a.name }

func (a fixedAgent) Reply(context.Context, string, []agent.Turn) (string, *llm.LLMCallStats, error) {
	return a.reply, nil, nil
}

func newTestServer(t *testing.T, rt *Runtime) *echo.Echo {
	t.Helper()
	e := echo.New()
	NewAPIV1Service(&profile.Profile{Version: "0.1.0"}, rt).RegisterRoutes(e)
	return e
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthIndependentOfRunner(t *testing.T) {
	for name, rt := range map[string]*Runtime{
		"no runner":   nil,
		"with runner": {Runner: &mockRunner{}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(newTestServer(t, rt), http.MethodGet, "/health", "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, rec))
		})
	}
}

func TestInfo(t *testing.T) {
	rec := doRequest(newTestServer(t, nil), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	info := decode[InfoResponse](t, rec)
	assert.Equal(t, "captain", info.Name)
	assert.Equal(t, "0.1.0", info.Version)
	assert.Equal(t, routes, info.Routes)
}

func TestAnalyzeBadRequestsNeverRunTeam(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "no body", body: "", wantErr: "Missing task field"},
		{name: "empty object", body: `{}`, wantErr: "Missing task field"},
		{name: "other fields", body: `{"question": "BTC?"}`, wantErr: "Missing task field"},
		{name: "null task", body: `{"task": null}`, wantErr: "Missing task field"},
		{name: "json null", body: `null`, wantErr: "Missing task field"},
		{name: "blank task", body: `{"task": "   "}`, wantErr: "task must not be empty"},
		{name: "malformed", body: `{"task": `, wantErr: "invalid JSON body"},
		{name: "wrong type", body: `{"task": 42}`, wantErr: "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			rec := doRequest(newTestServer(t, &Runtime{Runner: runner}), http.MethodPost, "/analyze", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, rec).Error)
			runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
		})
	}
}

func TestAnalyzeUninitialized(t *testing.T) {
	rec := doRequest(newTestServer(t, &Runtime{}), http.MethodPost, "/analyze", `{"task": "Analyze BTC"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "analysis team is not initialized", decode[ErrorResponse](t, rec).Error)
}

func TestAnalyzeJoinsSegmentsInRunOrder(t *testing.T) {
	tm, err := team.New([]team.Agent{
		fixedAgent{"technical_analyst", "RSI is 70"},
		fixedAgent{"news_analyst", "ETF inflows"},
		fixedAgent{"decision_maker", "HOLD"},
	}, team.Config{})
	require.NoError(t, err)

	rec := doRequest(newTestServer(t, &Runtime{Runner: tm}), http.MethodPost, "/analyze", `{"task": "Analyze BTC"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"technical_analyst: RSI is 70\nnews_analyst: ETF inflows\ndecision_maker: HOLD",
		decode[AnalyzeResponse](t, rec).Result,
	)
}

func TestAnalyzeFailureIsGeneric(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, "Analyze BTC").Return(&team.Outcome{
		RunID:  "r1",
		Reason: "agent news_analyst failed on turn 2",
		Err:    errors.New("error, status code: 401, message: invalid api key sk-secret"),
	})

	rec := doRequest(newTestServer(t, &Runtime{Runner: runner}), http.MethodPost, "/analyze", `{"task": "Analyze BTC"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "analysis failed", decode[ErrorResponse](t, rec).Error)
	assert.NotContains(t, rec.Body.String(), "sk-secret")
	runner.AssertExpectations(t)
}

func TestAnalyzeRecordsMetrics(t *testing.T) {
	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, "t").Return(&team.Outcome{RunID: "r"})

	e := newTestServer(t, &Runtime{Runner: runner, Metrics: exporter})
	doRequest(e, http.MethodPost, "/analyze", `{"task": "t"}`)
	doRequest(e, http.MethodPost, "/analyze", `{}`)

	rec := doRequest(e, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `captain_http_analyze_requests_total{code="200"} 1`)
	assert.Contains(t, rec.Body.String(), `captain_http_analyze_requests_total{code="400"} 1`)
}

// blockingRunner tracks how many runs overlap.
type blockingRunner struct {
	active, peak atomic.Int32
	release      chan struct{}
}

func (r *blockingRunner) Run(context.Context, string) *team.Outcome {
	n := r.active.Add(1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-r.release
	r.active.Add(-1)
	return &team.Outcome{RunID: "r", Segments: []team.Segment{{Source: "a", Content: "ok"}}}
}

func TestAnalyzeBoundsConcurrentRuns(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	e := newTestServer(t, &Runtime{Runner: runner, MaxConcurrentRuns: 2})

	var wg sync.WaitGroup
	codes := make([]int, 5)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = doRequest(e, http.MethodPost, "/analyze", `{"task": "t"}`).Code
		}(i)
	}

	require.Eventually(t, func() bool { return runner.active.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(runner.release)
	wg.Wait()

	assert.Equal(t, int32(2), runner.peak.Load())
	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
}

func TestAnalyzeCanceledWhileWaiting(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	e := newTestServer(t, &Runtime{Runner: runner, MaxConcurrentRuns: 1})

	go doRequest(e, http.MethodPost, "/analyze", `{"task": "first"}`)
	require.Eventually(t, func() bool { return runner.active.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"task": "second"}`)).WithContext(ctx)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	close(runner.release)
}

func TestValidateTask(t *testing.T) {
	_, err := validateTask(nil)
	assert.Equal(t, errMissingTask, err)

	empty := " \n"
	_, err = validateTask(&empty)
	assert.Equal(t, errEmptyTask, err)

	task := "Analyze Bitcoin for today"
	got, err := validateTask(&task)
	require.NoError(t, err)
	assert.Equal(t, task, got)
}
