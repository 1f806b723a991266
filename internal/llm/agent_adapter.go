package llm

import (
	"context"

	"github.com/clinvoy/secretary/internal/agent"
)

// AgentAdapter adapts the Provider interface to the agent's LLMProvider
// interface.
type AgentAdapter struct {
	provider Provider
	model    string
}

// NewAgentAdapter creates an adapter for the agent to use an LLM provider.
func NewAgentAdapter(p Provider, model string) *AgentAdapter {
	return &AgentAdapter{provider: p, model: model}
}

// Chat implements agent.LLMProvider.
func (a *AgentAdapter) Chat(ctx context.Context, messages []agent.ChatMessage, systemPrompt string) (string, error) {
	var llmMessages []Message
	for _, msg := range messages {
		llmMessages = append(llmMessages, Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	resp, err := a.provider.Chat(ctx, &ChatRequest{
		Model:        a.model,
		SystemPrompt: systemPrompt,
		Messages:     llmMessages,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
