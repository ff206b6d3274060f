package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/captain/ai/metrics"
	"github.com/hrygo/captain/internal/logging"
)

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Task *string `json:"task"`
}

// AnalyzeResponse is the success body of POST /analyze.
type AnalyzeResponse struct {
	Result string `json:"result"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RouteInfo describes one endpoint on GET /.
type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// InfoResponse is the body of GET /.
type InfoResponse struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Routes  []RouteInfo `json:"routes"`
}

var routes = []RouteInfo{
	{Method: http.MethodGet, Path: "/health", Description: "Liveness check"},
	{Method: http.MethodPost, Path: "/analyze", Description: `Run the analysis team on {"task": "..."}`},
	{Method: http.MethodGet, Path: "/metrics", Description: "Prometheus metrics"},
}

type AnalyzeService struct {
	Runner  Runner
	Metrics *metrics.PrometheusExporter
	Version string

	runSem *semaphore.Weighted
}

// Health always reports ok, whether or not the team is initialized.
func (s *AnalyzeService) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *AnalyzeService) Info(c echo.Context) error {
	return c.JSON(http.StatusOK, InfoResponse{
		Name:    "captain",
		Version: s.Version,
		Routes:  routes,
	})
}

// Analyze runs the team on the task and answers with the joined transcript.
func (s *AnalyzeService) Analyze(c echo.Context) error {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		if s.Metrics != nil {
			s.Metrics.RecordAnalyzeRequest(status, time.Since(start))
		}
	}()

	fail := func(code int, msg string) error {
		status = code
		return c.JSON(code, ErrorResponse{Error: msg})
	}

	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return fail(http.StatusBadRequest, "invalid JSON body")
	}
	task, err := validateTask(req.Task)
	if err != nil {
		return fail(http.StatusBadRequest, err.Error())
	}
	if s.Runner == nil {
		return fail(http.StatusServiceUnavailable, "analysis team is not initialized")
	}

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	ctx, logger := logging.With(c.Request().Context(), "request_id", requestID)
	if err := s.runSem.Acquire(ctx, 1); err != nil {
		logger.Warn("Analyze request abandoned while waiting for a run slot", "error", err)
		return fail(http.StatusServiceUnavailable, "analysis capacity exhausted")
	}
	defer s.runSem.Release(1)

	if s.Metrics != nil {
		done := s.Metrics.RunStarted()
		defer done()
	}

	logger.Info("Received task", "task_length", len(task))

	outcome := s.Runner.Run(ctx, task)
	if !outcome.OK() {
		logger.Error("Analysis failed",
			"run_id", outcome.RunID,
			"reason", outcome.Reason,
			"error", outcome.Err,
		)
		return fail(http.StatusInternalServerError, "analysis failed")
	}

	logger.Info("Analysis completed",
		"run_id", outcome.RunID,
		"segments", len(outcome.Segments),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return c.JSON(http.StatusOK, AnalyzeResponse{Result: outcome.Text()})
}
