package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinvoy/secretary/internal/agent"
	"github.com/clinvoy/secretary/internal/convo"
	"github.com/clinvoy/secretary/internal/tools"
)

func TestBuildTask(t *testing.T) {
	transcript := []convo.Turn{
		{Role: convo.RoleUser, Content: "question"},
		{Role: convo.RoleAssistant, Content: "answer"},
	}

	task := buildTask(`{"response":"I'll search."}`, "the doctor's request", []string{"vidal.fr", "who.int"}, transcript, "/uploads/temp_a.jpg")

	assert.Contains(t, task, `{"response":"I'll search."}`)
	assert.Contains(t, task, "The doctor wants: the doctor's request")
	assert.Contains(t, task, "Preferred sources: vidal.fr, who.int")
	assert.Contains(t, task, `"content":"question"`)
	assert.Contains(t, task, "Image: /uploads/temp_a.jpg")
	assert.Contains(t, task, "CITE YOUR SOURCES")
}

func TestBuildTaskNoImageNoSources(t *testing.T) {
	task := buildTask("prior", "msg", nil, nil, "")
	assert.Contains(t, task, "Image: No image provided")
	assert.Contains(t, task, "Preferred sources: none")
}

// directLLM answers without tool calls so the agent finishes in one step.
type directLLM struct {
	lastTask string
}

func (d *directLLM) Chat(_ context.Context, messages []agent.ChatMessage, _ string) (string, error) {
	d.lastTask = messages[0].Content
	return "free text result", nil
}

func TestBridgeDelegate(t *testing.T) {
	llm := &directLLM{}
	bridge := NewBridge(agent.New(llm, tools.NewExecutor(), nil))

	out, err := bridge.Delegate(context.Background(), "prior", "user request", []string{"who.int"}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "free text result", out)

	// The task string embeds the literal user request.
	assert.Contains(t, llm.lastTask, "The doctor wants: user request")
}
