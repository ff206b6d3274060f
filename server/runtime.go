package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/captain/ai"
	agent "github.com/hrygo/captain/ai/agents"
	"github.com/hrygo/captain/ai/agents/team"
	"github.com/hrygo/captain/ai/configloader"
	"github.com/hrygo/captain/ai/metrics"
	"github.com/hrygo/captain/internal/profile"
	apiv1 "github.com/hrygo/captain/server/router/api/v1"
)

// NewRuntime loads the agent library, builds the model client and assembles
// the analysis team. Any failure here is fatal for the serve command.
func NewRuntime(p *profile.Profile) (*apiv1.Runtime, error) {
	aiConfig := ai.NewConfigFromProfile(p)
	if err := aiConfig.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid AI configuration")
	}

	library, err := agent.LoadLibrary(configloader.NewLoader("."), aiConfig.Team.Library)
	if err != nil {
		return nil, err
	}
	descriptors, err := agent.SelectTeam(library, aiConfig.Team.Size)
	if err != nil {
		return nil, err
	}

	llmService, err := ai.NewLLMService(&aiConfig.LLM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize LLM service")
	}
	slog.Info("LLM service initialized",
		"provider", aiConfig.LLM.Provider,
		"model", aiConfig.LLM.Model,
	)

	metricsCfg := metrics.DefaultConfig()
	metricsCfg.RegisterRuntime = true
	exporter := metrics.NewPrometheusExporter(metricsCfg)

	tm, err := team.FromDescriptors(descriptors, llmService, team.Config{
		MaxTurns:           aiConfig.Team.MaxTurns,
		TerminationKeyword: aiConfig.Team.TerminationKeyword,
	}, team.WithObserver(exporter))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build analysis team")
	}
	slog.Info("Analysis team ready",
		"library", aiConfig.Team.Library,
		"agents", tm.Names(),
		"max_turns", tm.MaxTurns(),
		"max_concurrent_runs", aiConfig.Team.MaxConcurrentRuns,
	)

	// Warmup LLM connection asynchronously to reduce first-request latency.
	go func() {
		warmupCtx, warmupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer warmupCancel()
		llmService.Warmup(warmupCtx)
	}()

	return &apiv1.Runtime{
		Runner:            tm,
		LLM:               llmService,
		Metrics:           exporter,
		MaxConcurrentRuns: int64(aiConfig.Team.MaxConcurrentRuns),
	}, nil
}
