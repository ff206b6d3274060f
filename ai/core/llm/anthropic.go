package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
)

// anthropicService talks to the Anthropic Messages API, which is not
// OpenAI-compatible: the system prompt travels outside the message list and
// roles must alternate.
type anthropicService struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     int
}

func newAnthropicService(cfg *Config) (Service, error) {
	opts := []anthropic.ClientOption{
		anthropic.WithHTTPClient(newHTTPClient()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		// The Messages API rejects requests without max_tokens.
		maxTokens = 2048
	}

	return &anthropicService{
		client:      anthropic.NewClient(cfg.APIKey, opts...),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		timeout:     timeoutOrDefault(cfg.Timeout),
	}, nil
}

func (s *anthropicService) Model() string    { return s.model }
func (s *anthropicService) Provider() string { return "anthropic" }

func (s *anthropicService) Chat(ctx context.Context, messages []Message) (string, *LLMCallStats, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.timeout)*time.Second)
	defer cancel()

	system, converted := convertAnthropicMessages(messages)
	if len(converted) == 0 {
		return "", nil, fmt.Errorf("anthropic chat requires at least one non-system message")
	}

	temperature := s.temperature
	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(s.model),
		Messages:    converted,
		MaxTokens:   s.maxTokens,
		Temperature: &temperature,
	}
	if system != "" {
		req.System = system
	}

	startTime := time.Now()
	resp, err := s.client.CreateMessages(ctx, req)
	if err != nil {
		slog.Error("LLM: Anthropic request failed", "model", s.model, "error", err)
		return "", nil, fmt.Errorf("LLM chat failed: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			content.WriteString(*block.Text)
		}
	}
	if content.Len() == 0 {
		return "", nil, fmt.Errorf("empty response from LLM")
	}

	totalDuration := time.Since(startTime)
	stats := &LLMCallStats{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		TotalDurationMs:  totalDuration.Milliseconds(),
	}

	slog.Debug("LLM: Anthropic response received",
		"content_length", content.Len(),
		"total_tokens", stats.TotalTokens,
		"stop_reason", resp.StopReason,
		"duration_ms", totalDuration.Milliseconds(),
	)

	return content.String(), stats, nil
}

func (s *anthropicService) Warmup(ctx context.Context) {
	warmup(ctx, s)
}

// convertAnthropicMessages splits out system prompts and merges consecutive
// messages with the same role.
func convertAnthropicMessages(messages []Message) (string, []anthropic.Message) {
	var systemParts []string
	var out []anthropic.Message
	var texts []string
	var current anthropic.ChatRole

	flush := func() {
		if len(texts) == 0 {
			return
		}
		text := strings.Join(texts, "\n\n")
		out = append(out, anthropic.Message{
			Role:    current,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(text)},
		})
		texts = nil
	}

	for _, m := range messages {
		if m.Role == "system" {
			systemParts = append(systemParts, m.Content)
			continue
		}
		role := anthropic.RoleUser
		if m.Role == "assistant" {
			role = anthropic.RoleAssistant
		}
		if role != current {
			flush()
			current = role
		}
		texts = append(texts, m.Content)
	}
	flush()

	return strings.Join(systemParts, "\n\n"), out
}
