package v1

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/captain/ai/agents/team"
	"github.com/hrygo/captain/ai/core/llm"
	"github.com/hrygo/captain/ai/metrics"
	"github.com/hrygo/captain/internal/profile"
)

// Runner executes an analysis task. *team.Team satisfies it.
type Runner interface {
	Run(ctx context.Context, task string) *team.Outcome
}

// Runtime is everything the handlers need, constructed once at startup and
// passed in explicitly.
type Runtime struct {
	Runner  Runner
	LLM     llm.Service
	Metrics *metrics.PrometheusExporter

	// MaxConcurrentRuns bounds concurrent team runs. Defaults to 4.
	MaxConcurrentRuns int64
}

type APIV1Service struct {
	AnalyzeService *AnalyzeService

	Profile *profile.Profile
	Metrics *metrics.PrometheusExporter
}

func NewAPIV1Service(profile *profile.Profile, rt *Runtime) *APIV1Service {
	if rt == nil {
		rt = &Runtime{}
	}
	limit := rt.MaxConcurrentRuns
	if limit <= 0 {
		limit = 4
	}

	service := &APIV1Service{
		Profile: profile,
		Metrics: rt.Metrics,
		AnalyzeService: &AnalyzeService{
			Runner:  rt.Runner,
			Metrics: rt.Metrics,
			Version: profile.Version,
			runSem:  semaphore.NewWeighted(limit),
		},
	}

	if rt.Runner == nil {
		slog.Warn("Analysis team is not initialized, /analyze will answer 503")
	}

	return service
}

// RegisterRoutes registers the analysis API on the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.GET("/", s.AnalyzeService.Info)
	echoServer.GET("/health", s.AnalyzeService.Health)
	echoServer.POST("/analyze", s.AnalyzeService.Analyze)

	if s.Metrics != nil {
		echoServer.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}
}
