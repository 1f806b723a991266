// Package secretary wraps the scripted-reply capability. Every call builds
// an instruction-augmented prompt, merges the conversation transcript, asks
// the model for a JSON object, and validates the result against the fixed
// reply schema. A reply that fails to parse or misses a required field is a
// hard error for the turn, never a fabricated default.
package secretary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/clinvoy/secretary/internal/convo"
	"github.com/clinvoy/secretary/internal/llm"
	"github.com/clinvoy/secretary/internal/tools"
)

var (
	// ErrBadReply reports a model reply that is not valid JSON.
	ErrBadReply = errors.New("secretary reply is not valid JSON")

	// ErrSchema reports a reply that parses but violates the schema.
	ErrSchema = errors.New("secretary reply violates schema")
)

// Reply is the structured contract every secretary call returns.
type Reply struct {
	Response      string   `json:"response"`
	SuggestedTool string   `json:"suggested_tool,omitempty"`
	TriggerAgent  bool     `json:"trigger_agent"`
	Sources       []string `json:"sources"`
}

// Client drives the scripted-reply model.
type Client struct {
	provider llm.Provider
	model    string
}

// NewClient creates a secretary client on top of an LLM provider. model may
// be empty to use the provider default.
func NewClient(provider llm.Provider, model string) *Client {
	return &Client{provider: provider, model: model}
}

// Converse sends one secretary turn. imageRef is the attachment path or
// empty; transcript carries every prior turn verbatim.
func (c *Client) Converse(ctx context.Context, message, imageRef string, transcript []convo.Turn) (*Reply, error) {
	composed := composeMessage(message, imageRef)

	messages := make([]llm.Message, 0, len(transcript)+1)
	for _, turn := range transcript {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: convo.RoleUser, Content: composed})

	resp, err := c.provider.Chat(ctx, &llm.ChatRequest{
		Model:          c.model,
		Messages:       messages,
		ResponseFormat: llm.ResponseFormatJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("secretary call: %w", err)
	}

	reply, err := ParseReply(resp.Content)
	if err != nil {
		log.Error().Err(err).Str("raw", truncate(resp.Content, 200)).Msg("secretary reply rejected")
		return nil, err
	}
	return reply, nil
}

// composeMessage concatenates the instruction template, the caller's text,
// and the trailing image fragment when an attachment is present.
func composeMessage(message, imageRef string) string {
	template := promptSystem
	if imageRef != "" {
		template = strings.Replace(template, promptOpening, promptOpeningImage, 1)
		return template + message + ". Image URL: " + imageRef
	}
	return template + message
}

// rawReply distinguishes absent required fields from zero values.
type rawReply struct {
	Response      *string  `json:"response"`
	SuggestedTool *string  `json:"suggested_tool"`
	TriggerAgent  *bool    `json:"trigger_agent"`
	Sources       []string `json:"sources"`
}

// ParseReply parses and validates the model's JSON text against the reply
// schema.
func ParseReply(text string) (*Reply, error) {
	var raw rawReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadReply, err)
	}

	if raw.Response == nil || strings.TrimSpace(*raw.Response) == "" {
		return nil, fmt.Errorf("%w: missing response", ErrSchema)
	}
	if raw.TriggerAgent == nil {
		return nil, fmt.Errorf("%w: missing trigger_agent", ErrSchema)
	}

	suggested := normalizeTool(raw.SuggestedTool)
	if suggested != "" && !tools.Known(suggested) {
		return nil, fmt.Errorf("%w: unknown suggested_tool %q", ErrSchema, suggested)
	}

	sources := raw.Sources
	if sources == nil {
		sources = []string{}
	}

	return &Reply{
		Response:      *raw.Response,
		SuggestedTool: suggested,
		TriggerAgent:  *raw.TriggerAgent,
		Sources:       sources,
	}, nil
}

// normalizeTool maps the template's "or null" phrasing to an absent tool.
// Models following the reference prompt occasionally emit the literal
// strings "None" or "null" instead of a JSON null.
func normalizeTool(tool *string) string {
	if tool == nil {
		return ""
	}
	t := strings.TrimSpace(*tool)
	switch strings.ToLower(t) {
	case "", "none", "null":
		return ""
	}
	return t
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
