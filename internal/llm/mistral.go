package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MistralProvider implements the Provider interface for the Mistral API.
// The chat surface is OpenAI-compatible; the one extension we rely on is
// the response_format knob for JSON-object output.
type MistralProvider struct {
	baseProvider
}

// NewMistralProvider creates a new Mistral provider.
func NewMistralProvider(cfg *ProviderConfig) *MistralProvider {
	return &MistralProvider{
		baseProvider: newBaseProvider(cfg, "mistral"),
	}
}

// Chat sends a chat request to Mistral.
func (p *MistralProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("Mistral API key not configured")
	}

	start := time.Now()

	mistralReq := mistralChatRequest{
		Model: req.Model,
	}
	if mistralReq.Model == "" {
		mistralReq.Model = p.config.Model
	}

	if req.SystemPrompt != "" {
		mistralReq.Messages = append(mistralReq.Messages, mistralMessage{
			Role:    "system",
			Content: req.SystemPrompt,
		})
	}

	for _, msg := range req.Messages {
		mistralReq.Messages = append(mistralReq.Messages, mistralMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	mistralReq.MaxTokens = req.MaxTokens
	if mistralReq.MaxTokens == 0 {
		mistralReq.MaxTokens = p.config.MaxTokens
	}
	mistralReq.Temperature = req.Temperature
	if mistralReq.Temperature == 0 {
		mistralReq.Temperature = p.config.Temperature
	}
	if req.ResponseFormat != "" {
		mistralReq.ResponseFormat = &mistralResponseFormat{Type: req.ResponseFormat}
	}

	body, err := json.Marshal(mistralReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, fmt.Errorf("Mistral error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var mistralResp mistralChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&mistralResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(mistralResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := mistralResp.Choices[0]
	return &ChatResponse{
		Content:          choice.Message.Content,
		Model:            mistralResp.Model,
		PromptTokens:     mistralResp.Usage.PromptTokens,
		CompletionTokens: mistralResp.Usage.CompletionTokens,
		TokensUsed:       mistralResp.Usage.TotalTokens,
		Duration:         time.Since(start),
		FinishReason:     choice.FinishReason,
	}, nil
}

// Mistral API types
type mistralChatRequest struct {
	Model          string                 `json:"model"`
	Messages       []mistralMessage       `json:"messages"`
	MaxTokens      int                    `json:"max_tokens,omitempty"`
	Temperature    float64                `json:"temperature,omitempty"`
	ResponseFormat *mistralResponseFormat `json:"response_format,omitempty"`
}

type mistralResponseFormat struct {
	Type string `json:"type"`
}

type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      mistralMessage `json:"message"`
		FinishReason string         `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
