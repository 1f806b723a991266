package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clinvoy/secretary/internal/agent"
	"github.com/clinvoy/secretary/internal/convo"
)

// Bridge formats delegation tasks for the tool-agent and relays its raw
// textual result. Agent failures are not caught here; they propagate to the
// router and from there to the request boundary.
type Bridge struct {
	agent *agent.Agent
}

// NewBridge creates a bridge over the tool-agent.
func NewBridge(a *agent.Agent) *Bridge {
	return &Bridge{agent: a}
}

// Delegate builds the task string and invokes the agent synchronously.
func (b *Bridge) Delegate(ctx context.Context, priorReply, message string, preferredSources []string, transcript []convo.Turn, imageRef string) (string, error) {
	task := buildTask(priorReply, message, preferredSources, transcript, imageRef)

	opts := []agent.RunOption{}
	if len(preferredSources) > 0 {
		opts = append(opts, agent.WithPreferredDomains(preferredSources))
	}
	if imageRef != "" {
		opts = append(opts, agent.WithImagePath(imageRef))
	}

	return b.agent.Run(ctx, task, opts...)
}

// buildTask embeds the prior scripted reply, the literal user request, the
// pass-through preferred-source list, the serialized transcript, and the
// attachment reference (or an explicit no-attachment marker).
func buildTask(priorReply, message string, preferredSources []string, transcript []convo.Turn, imageRef string) string {
	historyJSON, err := json.Marshal(transcript)
	if err != nil {
		historyJSON = []byte("[]")
	}

	sources := "none"
	if len(preferredSources) > 0 {
		sources = strings.Join(preferredSources, ", ")
	}

	image := "No image provided"
	if imageRef != "" {
		image = imageRef
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are the AI agent. Your secretary just answered this to the doctor: %s.\n", priorReply))
	sb.WriteString(fmt.Sprintf("The doctor wants: %s\n", message))
	sb.WriteString(fmt.Sprintf("Preferred sources: %s\n", sources))
	sb.WriteString(fmt.Sprintf("Previous conversation context: %s\n", historyJSON))
	sb.WriteString(fmt.Sprintf("Image: %s\n", image))
	sb.WriteString("If you use web search, you must explicitly give the links you found.\n")
	sb.WriteString("Interpret the results considering the full conversation context.\n")
	sb.WriteString("If you are using websearch, PLEASE CITE YOUR SOURCES!\n")
	return sb.String()
}
