package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzeServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalysisClientSuccess(t *testing.T) {
	var gotTask string
	srv := analyzeServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotTask = body["task"]
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"technical_analyst: bullish"}`))
	})

	result, err := NewAnalysisClient(srv.URL, time.Second).Analyze(context.Background(), "Analyze Bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "technical_analyst: bullish", result)
	assert.Equal(t, "Analyze Bitcoin", gotTask)
}

func TestAnalysisClientMissingResult(t *testing.T) {
	srv := analyzeServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	result, err := NewAnalysisClient(srv.URL, time.Second).Analyze(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, NoResult, result)
}

func TestAnalysisClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    ErrorKind
		status  int
		message string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"analysis failed"}`))
			},
			kind:    KindBadStatus,
			status:  http.StatusInternalServerError,
			message: "the analysis service failed (HTTP 500)",
		},
		{
			name: "bad request carries service detail",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"task must not be empty"}`))
			},
			kind:    KindBadStatus,
			status:  http.StatusBadRequest,
			message: "request rejected (task must not be empty)",
		},
		{
			name: "unavailable without body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			kind:    KindBadStatus,
			status:  http.StatusServiceUnavailable,
			message: "the analysis service failed (HTTP 503)",
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>gateway</html>`))
			},
			kind:    KindBadResponse,
			message: "the analysis service sent an unreadable response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := analyzeServer(t, tt.handler)

			_, err := NewAnalysisClient(srv.URL, time.Second).Analyze(context.Background(), "task")
			require.Error(t, err)

			var analysisErr *AnalysisError
			require.ErrorAs(t, err, &analysisErr)
			assert.Equal(t, tt.kind, analysisErr.Kind)
			assert.Equal(t, tt.status, analysisErr.StatusCode)
			assert.Equal(t, tt.message, analysisErr.UserMessage())
		})
	}
}

func TestAnalysisClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := analyzeServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	_, err := NewAnalysisClient(srv.URL, 50*time.Millisecond).Analyze(context.Background(), "task")

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, KindTimeout, analysisErr.Kind)
}

func TestAnalysisClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewAnalysisClient(url, time.Second).Analyze(context.Background(), "task")

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, KindUnavailable, analysisErr.Kind)
	assert.Equal(t, "the analysis service is unavailable", analysisErr.UserMessage())
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "unavailable", KindUnavailable.String())
	assert.Equal(t, "bad_status", KindBadStatus.String())
	assert.Equal(t, "bad_response", KindBadResponse.String())
	assert.Equal(t, "unknown", ErrorKind(42).String())
}
