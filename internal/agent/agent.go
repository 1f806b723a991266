// Package agent implements the autonomous tool-agent the router delegates
// to. Given a task string it runs a bounded reason/act loop: the model either
// answers directly or requests one of the registered tools, the tool result
// is folded back into the conversation, and the loop continues until the
// model produces a final free-text answer or the step limit is hit.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/clinvoy/secretary/internal/tools"
)

// LLMProvider is the capability the agent reasons with.
type LLMProvider interface {
	Chat(ctx context.Context, messages []ChatMessage, systemPrompt string) (string, error)
}

// ChatMessage represents a message for the LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DefaultMaxSteps bounds the reason/act loop.
const DefaultMaxSteps = 6

// Agent orchestrates multi-step tool execution.
type Agent struct {
	llm      LLMProvider
	executor *tools.Executor
	maxSteps int
}

// Config configures the agent.
type Config struct {
	MaxSteps int // Maximum tool execution steps (default: DefaultMaxSteps)
}

// New creates a new Agent.
func New(llm LLMProvider, executor *tools.Executor, cfg *Config) *Agent {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	return &Agent{
		llm:      llm,
		executor: executor,
		maxSteps: cfg.MaxSteps,
	}
}

// RunOption adjusts a single Run invocation.
type RunOption func(*runState)

type runState struct {
	preferredDomains []string
	imagePath        string
}

// WithPreferredDomains restricts web searches in this run to the given
// sites. Passed through from the chat request unvalidated.
func WithPreferredDomains(domains []string) RunOption {
	return func(s *runState) {
		s.preferredDomains = domains
	}
}

// WithImagePath supplies the attachment the classifier tool should read
// when the model does not name one itself.
func WithImagePath(path string) RunOption {
	return func(s *runState) {
		s.imagePath = path
	}
}

// Run executes a delegated task and returns the agent's free-text answer.
func (a *Agent) Run(ctx context.Context, task string, opts ...RunOption) (string, error) {
	var state runState
	for _, opt := range opts {
		opt(&state)
	}

	log.Info().Str("task", truncate(task, 80)).Msg("agent task started")

	systemPrompt := SystemPrompt(a.executor.Names())
	messages := []ChatMessage{{Role: "user", Content: task}}

	for step := 0; step < a.maxSteps; step++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		reply, err := a.llm.Chat(ctx, messages, systemPrompt)
		if err != nil {
			return "", fmt.Errorf("LLM error: %w", err)
		}

		calls, cleaned := ParseToolCalls(reply)
		if len(calls) == 0 {
			if strings.TrimSpace(cleaned) == "" {
				return "", fmt.Errorf("agent produced empty answer")
			}
			log.Info().Int("steps", step+1).Msg("agent task complete")
			return cleaned, nil
		}

		// One tool per step keeps the transcript linear; extra calls in the
		// same reply are ignored, the model can re-request them next step.
		call := calls[0]
		result := a.executeCall(ctx, call, &state)

		messages = append(messages,
			ChatMessage{Role: "assistant", Content: reply},
			ChatMessage{Role: "user", Content: formatToolResult(call.Name, result)},
		)
	}

	// Step limit reached: ask for a final answer with tools withheld.
	messages = append(messages, ChatMessage{
		Role:    "user",
		Content: "Stop using tools. Give your final answer now based on what you have found so far.",
	})
	reply, err := a.llm.Chat(ctx, messages, systemPrompt)
	if err != nil {
		return "", fmt.Errorf("LLM error: %w", err)
	}
	_, cleaned := ParseToolCalls(reply)
	if strings.TrimSpace(cleaned) == "" {
		return "", fmt.Errorf("agent exceeded %d steps without an answer", a.maxSteps)
	}
	return cleaned, nil
}

// executeCall dispatches one tool call and renders a result the model can
// read. Tool failures are reported back into the loop rather than aborting
// the run; the model decides whether to retry or answer without the tool.
func (a *Agent) executeCall(ctx context.Context, call *ToolCall, state *runState) string {
	req := &tools.Request{
		Tool:   tools.ToolType(call.Name),
		Params: map[string]interface{}{},
	}

	switch req.Tool {
	case tools.ToolWebSearch:
		req.Input = call.Params["query"]
		if len(state.preferredDomains) > 0 {
			req.Params["preferred_domains"] = state.preferredDomains
		}
	case tools.ToolBrainTumor:
		req.Input = call.Params["image_path"]
		if req.Input == "" {
			req.Input = state.imagePath
		}
	default:
		req.Input = call.Params["input"]
	}

	result, err := a.executor.Execute(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("tool", call.Name).Msg("tool call failed")
		return fmt.Sprintf("Tool %s failed: %v", call.Name, err)
	}
	return result.Output
}

func formatToolResult(name, output string) string {
	return fmt.Sprintf("Result of %s:\n%s", name, output)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
