package ai

import (
	"errors"

	"github.com/hrygo/captain/ai/core/llm"
	"github.com/hrygo/captain/internal/profile"
)

// DefaultTerminationKeyword ends a team run early when an agent emits it.
const DefaultTerminationKeyword = "TERMINATE"

// Config represents AI configuration.
type Config struct {
	LLM  LLMConfig
	Team TeamConfig
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider    string // deepseek, openai, ollama, anthropic
	Model       string // deepseek-chat, claude-3-5-sonnet-20241022
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 2048
	Temperature float32 // default: 0.7
	Timeout     int     // seconds
}

// TeamConfig describes the analysis team built from the agent library.
type TeamConfig struct {
	Library            string // JSON or YAML descriptor file
	Size               int    // first N descriptors form the team
	MaxTurns           int    // 0 means one round
	TerminationKeyword string
	MaxConcurrentRuns  int
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		LLM: LLMConfig{
			Provider:    p.LLMProvider,
			Model:       p.LLMModel,
			APIKey:      p.LLMAPIKey,
			BaseURL:     p.LLMBaseURL,
			MaxTokens:   p.LLMMaxTokens,
			Temperature: p.LLMTemperature,
			Timeout:     p.LLMTimeout,
		},
		Team: TeamConfig{
			Library:            p.AgentLibrary,
			Size:               p.TeamSize,
			MaxTurns:           p.MaxTurns,
			TerminationKeyword: p.TerminationKeyword,
			MaxConcurrentRuns:  p.MaxConcurrentRuns,
		},
	}

	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.Team.TerminationKeyword == "" {
		cfg.Team.TerminationKeyword = DefaultTerminationKeyword
	}
	if cfg.Team.MaxConcurrentRuns <= 0 {
		cfg.Team.MaxConcurrentRuns = 4
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}

	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}

	if c.LLM.Model == "" {
		return errors.New("LLM model is required")
	}

	if c.Team.Library == "" {
		return errors.New("agent library is required")
	}

	if c.Team.Size < 1 {
		return errors.New("team size must be at least 1")
	}

	return nil
}

// ToLLMConfig converts the AI LLM settings into the llm package config.
func (c *LLMConfig) ToLLMConfig() *llm.Config {
	return &llm.Config{
		Provider:    c.Provider,
		Model:       c.Model,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
	}
}

// NewLLMService builds the model client for the configured provider.
func NewLLMService(c *LLMConfig) (llm.Service, error) {
	return llm.NewService(c.ToLLMConfig())
}
