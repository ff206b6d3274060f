package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/captain/ai/core/llm"
	"github.com/hrygo/captain/internal/logging"
)

// Turn is one contribution to a shared conversation.
type Turn struct {
	Source  string
	Content string
}

// String renders the turn as "source: content".
func (t Turn) String() string {
	return fmt.Sprintf("%s: %s", t.Source, t.Content)
}

// Assistant is an agent that answers from its role instructions using an
// LLM service. It holds no per-conversation state and is safe for
// concurrent use.
type Assistant struct {
	descriptor Descriptor
	llm        llm.Service
}

// NewAssistant creates an agent for the descriptor.
func NewAssistant(d Descriptor, llmService llm.Service) *Assistant {
	d.Name = NormalizeName(d.Name)
	return &Assistant{
		descriptor: d,
		llm:        llmService,
	}
}

// Name returns the agent identifier.
func (a *Assistant) Name() string {
	return a.descriptor.Name
}

// Reply asks the model for this agent's next turn on task, given what has
// been said so far.
func (a *Assistant) Reply(ctx context.Context, task string, history []Turn) (string, *llm.LLMCallStats, error) {
	messages := a.BuildMessages(task, history)
	logging.FromContext(ctx).Debug("Agent reply requested",
		"agent", a.descriptor.Name,
		"messages_count", len(messages),
	)

	content, stats, err := a.llm.Chat(ctx, messages)
	if err != nil {
		return "", stats, err
	}
	return strings.TrimSpace(content), stats, nil
}

// BuildMessages lays out the conversation from this agent's point of view:
// its own earlier turns are assistant messages, everyone else's are user
// messages prefixed with the speaker's name.
func (a *Assistant) BuildMessages(task string, history []Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.SystemPrompt(a.descriptor.SystemMessage))
	messages = append(messages, llm.UserMessage(task))
	for _, turn := range history {
		if turn.Source == a.descriptor.Name {
			messages = append(messages, llm.AssistantMessage(turn.Content))
			continue
		}
		messages = append(messages, llm.UserMessage(turn.String()))
	}
	return messages
}
