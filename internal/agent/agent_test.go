package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinvoy/secretary/internal/tools"
)

// scriptedLLM replays canned replies in order.
type scriptedLLM struct {
	replies []string
	calls   [][]ChatMessage
}

func (s *scriptedLLM) Chat(_ context.Context, messages []ChatMessage, _ string) (string, error) {
	s.calls = append(s.calls, messages)
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

func searchExecutor(t *testing.T) (*tools.Executor, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tools.TavilyResponse{
			Results: []tools.TavilyResult{
				{Title: "WHO guidance", URL: "https://who.int/page", Content: "avoid tetracyclines"},
			},
		})
	}))
	t.Cleanup(server.Close)

	exec := tools.NewExecutor()
	require.NoError(t, exec.Register(tools.NewWebSearchTool(tools.WithAPIKey("k"), tools.WithEndpoint(server.URL))))
	return exec, server
}

func TestRunDirectAnswer(t *testing.T) {
	exec, _ := searchExecutor(t)
	llm := &scriptedLLM{replies: []string{"Paracetamol is generally considered safe."}}

	answer, err := New(llm, exec, nil).Run(context.Background(), "is paracetamol safe?")
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol is generally considered safe.", answer)
	assert.Len(t, llm.calls, 1)
}

func TestRunWithToolStep(t *testing.T) {
	exec, _ := searchExecutor(t)
	llm := &scriptedLLM{replies: []string{
		`<tool>websearch</tool><params>{"query": "antibiotics pregnancy"}</params>`,
		"Avoid tetracyclines. Source: https://who.int/page",
	}}

	answer, err := New(llm, exec, nil).Run(context.Background(), "prohibited antibiotics for pregnant women")
	require.NoError(t, err)
	assert.Contains(t, answer, "https://who.int/page")

	// Second LLM call must see the tool output.
	require.Len(t, llm.calls, 2)
	last := llm.calls[1][len(llm.calls[1])-1]
	assert.Contains(t, last.Content, "who.int")
}

func TestRunStepLimitForcesAnswer(t *testing.T) {
	exec, _ := searchExecutor(t)
	llm := &scriptedLLM{replies: []string{
		`<tool>websearch</tool><params>{"query": "a"}</params>`,
		`<tool>websearch</tool><params>{"query": "b"}</params>`,
		"Best effort answer.",
	}}

	answer, err := New(llm, exec, &Config{MaxSteps: 2}).Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, "Best effort answer.", answer)
}

func TestParseToolCalls(t *testing.T) {
	calls, cleaned := ParseToolCalls(`I will search. <tool>websearch</tool><params>{"query": "x"}</params>`)
	require.Len(t, calls, 1)
	assert.Equal(t, "websearch", calls[0].Name)
	assert.Equal(t, "x", calls[0].Params["query"])
	assert.Equal(t, "I will search.", cleaned)

	calls, cleaned = ParseToolCalls("no tools here")
	assert.Empty(t, calls)
	assert.Equal(t, "no tools here", cleaned)

	// Sloppy params still salvage the JSON object.
	calls, _ = ParseToolCalls(`<tool>websearch</tool><params>params: {"query": "y"}</params>`)
	require.Len(t, calls, 1)
	assert.Equal(t, "y", calls[0].Params["query"])
}

func TestSystemPromptListsTools(t *testing.T) {
	prompt := SystemPrompt([]tools.ToolType{tools.ToolBrainTumor, tools.ToolWebSearch})
	assert.Contains(t, prompt, "websearch")
	assert.Contains(t, prompt, "brain_tumor")
	assert.Contains(t, prompt, "source URLs")
}
