// Package team runs a fixed group of agents round-robin over a shared
// transcript and reports the result as an explicit Outcome.
package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	agent "github.com/hrygo/captain/ai/agents"
	"github.com/hrygo/captain/ai/core/llm"
	"github.com/hrygo/captain/internal/logging"
)

// Segment is one agent's labeled contribution to a run.
type Segment = agent.Turn

// Agent is a participant of a team.
type Agent interface {
	Name() string
	Reply(ctx context.Context, task string, history []agent.Turn) (string, *llm.LLMCallStats, error)
}

// Observer receives per-turn and per-run measurements.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveTurn(agentName string, latency time.Duration, stats *llm.LLMCallStats, errorClass string)
	ObserveRun(status string, turns int, latency time.Duration)
}

// Config tunes a team run.
type Config struct {
	// MaxTurns caps the number of agent turns. Zero means one round.
	MaxTurns int

	// TerminationKeyword ends the run after the turn that contains it.
	// Empty disables early termination.
	TerminationKeyword string
}

// Team is an immutable set of agents. Run keeps all per-run state local,
// so a Team may serve concurrent runs.
type Team struct {
	agents   []Agent
	maxTurns int
	keyword  string
	observer Observer
}

// Option configures a Team.
type Option func(*Team)

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(t *Team) {
		t.observer = o
	}
}

// New creates a team. Agent names must be non-empty and unique.
func New(agents []Agent, cfg Config, opts ...Option) (*Team, error) {
	if len(agents) == 0 {
		return nil, errors.New("team needs at least one agent")
	}
	if cfg.MaxTurns < 0 {
		return nil, fmt.Errorf("max turns must not be negative, got %d", cfg.MaxTurns)
	}

	seen := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		name := a.Name()
		if name == "" {
			return nil, errors.New("agent name must not be empty")
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("duplicate agent name %q", name)
		}
		seen[name] = struct{}{}
	}

	t := &Team{
		agents:   append([]Agent(nil), agents...),
		maxTurns: cfg.MaxTurns,
		keyword:  cfg.TerminationKeyword,
	}
	if t.maxTurns == 0 {
		t.maxTurns = len(agents)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// FromDescriptors builds a team of LLM-backed assistants.
func FromDescriptors(descriptors []agent.Descriptor, llmService llm.Service, cfg Config, opts ...Option) (*Team, error) {
	agents := make([]Agent, 0, len(descriptors))
	for _, d := range descriptors {
		agents = append(agents, agent.NewAssistant(d, llmService))
	}
	return New(agents, cfg, opts...)
}

// Names returns the agent names in speaking order.
func (t *Team) Names() []string {
	names := make([]string, len(t.agents))
	for i, a := range t.agents {
		names[i] = a.Name()
	}
	return names
}

// MaxTurns returns the turn cap of a run.
func (t *Team) MaxTurns() int {
	return t.maxTurns
}

// Run drives the agents round-robin on task until the turn cap is reached,
// an agent emits the termination keyword, or an agent fails.
// Failures are reported in the Outcome, never as a panic or partial result.
func (t *Team) Run(ctx context.Context, task string) *Outcome {
	runID := shortuuid.New()
	start := time.Now()
	ctx, logger := logging.With(ctx, "run_id", runID)

	logger.Info("Team run started", "agents", t.Names(), "max_turns", t.maxTurns)

	var segments []Segment
	for turn := 0; turn < t.maxTurns; turn++ {
		a := t.agents[turn%len(t.agents)]

		turnStart := time.Now()
		content, stats, err := a.Reply(ctx, task, segments)
		latency := time.Since(turnStart)

		if err != nil {
			class := agent.ClassifyError(err)
			t.observeTurn(a.Name(), latency, stats, class.String())
			logger.Error("Team run failed",
				"agent", a.Name(),
				"turn", turn+1,
				"error_class", class.String(),
				"error", err,
			)
			outcome := failure(runID, fmt.Sprintf("agent %s failed on turn %d", a.Name(), turn+1), err)
			t.observeRun(outcome, turn, time.Since(start))
			return outcome
		}
		t.observeTurn(a.Name(), latency, stats, "")

		segments = append(segments, Segment{Source: a.Name(), Content: content})
		logger.Debug("Agent turn completed",
			"agent", a.Name(),
			"turn", turn+1,
			"content_length", len(content),
			"duration_ms", latency.Milliseconds(),
		)

		if t.keyword != "" && strings.Contains(content, t.keyword) {
			logger.Info("Team run terminated by keyword", "agent", a.Name(), "turn", turn+1)
			break
		}
	}

	outcome := success(runID, segments)
	t.observeRun(outcome, len(segments), time.Since(start))
	logger.Info("Team run completed", "turns", len(segments), "duration_ms", time.Since(start).Milliseconds())
	return outcome
}

func (t *Team) observeTurn(name string, latency time.Duration, stats *llm.LLMCallStats, errorClass string) {
	if t.observer != nil {
		t.observer.ObserveTurn(name, latency, stats, errorClass)
	}
}

func (t *Team) observeRun(o *Outcome, turns int, latency time.Duration) {
	if t.observer != nil {
		t.observer.ObserveRun(o.Status(), turns, latency)
	}
}
