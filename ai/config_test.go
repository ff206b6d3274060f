package ai

import (
	"testing"

	"github.com/hrygo/captain/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigFromProfile(t *testing.T) {
	prof := &profile.Profile{
		LLMProvider:       "deepseek",
		LLMAPIKey:         "deepseek-key",
		LLMBaseURL:        "https://api.deepseek.com/v1",
		LLMModel:          "deepseek-chat",
		LLMTimeout:        90,
		LLMMaxTokens:      1024,
		LLMTemperature:    0.3,
		AgentLibrary:      "agent_library.json",
		TeamSize:          3,
		MaxTurns:          6,
		MaxConcurrentRuns: 2,
	}

	cfg := NewConfigFromProfile(prof)

	assert.Equal(t, LLMConfig{
		Provider:    "deepseek",
		Model:       "deepseek-chat",
		APIKey:      "deepseek-key",
		BaseURL:     "https://api.deepseek.com/v1",
		MaxTokens:   1024,
		Temperature: 0.3,
		Timeout:     90,
	}, cfg.LLM)
	assert.Equal(t, TeamConfig{
		Library:            "agent_library.json",
		Size:               3,
		MaxTurns:           6,
		TerminationKeyword: DefaultTerminationKeyword,
		MaxConcurrentRuns:  2,
	}, cfg.Team)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfigFromProfileDefaults(t *testing.T) {
	cfg := NewConfigFromProfile(&profile.Profile{LLMProvider: "ollama", LLMModel: "llama3.1"})

	assert.Equal(t, 2048, cfg.LLM.MaxTokens)
	assert.Equal(t, "TERMINATE", cfg.Team.TerminationKeyword)
	assert.Equal(t, 4, cfg.Team.MaxConcurrentRuns)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LLM:  LLMConfig{Provider: "openai", Model: "gpt-4o", APIKey: "k"},
			Team: TeamConfig{Library: "lib.json", Size: 3},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid"},
		{name: "no provider", mutate: func(c *Config) { c.LLM.Provider = "" }, wantErr: "LLM provider is required"},
		{name: "no key", mutate: func(c *Config) { c.LLM.APIKey = "" }, wantErr: "LLM API key is required"},
		{name: "ollama without key", mutate: func(c *Config) { c.LLM.Provider = "ollama"; c.LLM.APIKey = "" }},
		{name: "no model", mutate: func(c *Config) { c.LLM.Model = "" }, wantErr: "LLM model is required"},
		{name: "no library", mutate: func(c *Config) { c.Team.Library = "" }, wantErr: "agent library is required"},
		{name: "zero size", mutate: func(c *Config) { c.Team.Size = 0 }, wantErr: "team size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			if tt.mutate != nil {
				tt.mutate(c)
			}
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLLMService(t *testing.T) {
	svc, err := NewLLMService(&LLMConfig{Provider: "deepseek", Model: "deepseek-chat", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "deepseek", svc.Provider())
	assert.Equal(t, "deepseek-chat", svc.Model())
}
