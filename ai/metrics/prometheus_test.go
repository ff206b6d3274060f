package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/captain/ai/core/llm"
)

func TestObserveTurn(t *testing.T) {
	e := NewPrometheusExporter(DefaultConfig())

	e.ObserveTurn("technical_analyst", 2*time.Second, &llm.LLMCallStats{PromptTokens: 100, CompletionTokens: 40, CacheReadTokens: 30}, "")
	e.ObserveTurn("technical_analyst", time.Second, nil, "")
	e.ObserveTurn("news_analyst", time.Second, nil, "transient")

	assert.InDelta(t, 2, testutil.ToFloat64(e.agentTurns.WithLabelValues("technical_analyst", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(e.agentTurns.WithLabelValues("news_analyst", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(e.agentErrors.WithLabelValues("news_analyst", "transient")), 0)
	assert.InDelta(t, 100, testutil.ToFloat64(e.llmTokensUsed.WithLabelValues("technical_analyst", "prompt")), 0)
	assert.InDelta(t, 40, testutil.ToFloat64(e.llmTokensUsed.WithLabelValues("technical_analyst", "completion")), 0)
	assert.InDelta(t, 30, testutil.ToFloat64(e.llmTokensCached.WithLabelValues("technical_analyst")), 0)
}

func TestObserveRunAndActive(t *testing.T) {
	e := NewPrometheusExporter(DefaultConfig())

	done := e.RunStarted()
	assert.InDelta(t, 1, testutil.ToFloat64(e.runsActive), 0)
	done()
	assert.InDelta(t, 0, testutil.ToFloat64(e.runsActive), 0)

	e.ObserveRun("success", 3, 30*time.Second)
	e.ObserveRun("error", 1, 5*time.Second)
	assert.InDelta(t, 1, testutil.ToFloat64(e.runs.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(e.runs.WithLabelValues("error")), 0)
}

func TestPrometheusExporterHandler(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())

	exporter.RecordAnalyzeRequest(http.StatusOK, 100*time.Millisecond)
	exporter.ObserveRun("success", 3, time.Second)
	exporter.ObserveTurn("decision_maker", time.Second, &llm.LLMCallStats{PromptTokens: 1}, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	w := httptest.NewRecorder()
	exporter.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `captain_http_analyze_requests_total{code="200"} 1`)
	assert.Contains(t, body, "captain_team_runs_total")
	assert.Contains(t, body, "captain_agent_turns_total")
	assert.Contains(t, body, "captain_llm_tokens_total")
}

func TestRuntimeCollectors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RegisterRuntime = true
	exporter := NewPrometheusExporter(cfg)

	families, err := exporter.GetRegistry().Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() == "go_goroutines" {
			found = true
		}
	}
	assert.True(t, found)
}
