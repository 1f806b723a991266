package secretary

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinvoy/secretary/internal/convo"
	"github.com/clinvoy/secretary/internal/llm"
)

// stubProvider returns a fixed reply and records the request it saw.
type stubProvider struct {
	reply string
	req   *llm.ChatRequest
}

func (s *stubProvider) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	s.req = req
	return &llm.ChatResponse{Content: s.reply}, nil
}

func (s *stubProvider) Name() string    { return "stub" }
func (s *stubProvider) Available() bool { return true }

func TestConverseComposesPrompt(t *testing.T) {
	stub := &stubProvider{reply: `{"response":"ok","suggested_tool":null,"trigger_agent":false,"sources":[]}`}
	client := NewClient(stub, "test-model")

	transcript := []convo.Turn{
		{Role: convo.RoleUser, Content: "earlier question"},
		{Role: convo.RoleAssistant, Content: "earlier answer"},
	}

	reply, err := client.Converse(context.Background(), "new question", "", transcript)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Response)

	// Prior turns are forwarded verbatim, composed message comes last.
	require.Len(t, stub.req.Messages, 3)
	assert.Equal(t, "earlier question", stub.req.Messages[0].Content)
	assert.Equal(t, convo.RoleAssistant, stub.req.Messages[1].Role)

	final := stub.req.Messages[2]
	assert.Equal(t, convo.RoleUser, final.Role)
	assert.Contains(t, final.Content, "You are talking to a doctor.")
	assert.Contains(t, final.Content, "new question")
	assert.NotContains(t, final.Content, "Image URL:")

	// JSON output mode is always requested.
	assert.Equal(t, llm.ResponseFormatJSON, stub.req.ResponseFormat)
	assert.Equal(t, "test-model", stub.req.Model)
}

func TestConverseWithImage(t *testing.T) {
	stub := &stubProvider{reply: `{"response":"ok","trigger_agent":false}`}
	client := NewClient(stub, "")

	_, err := client.Converse(context.Background(), "check this scan", "/uploads/temp_x.jpg", nil)
	require.NoError(t, err)

	final := stub.req.Messages[len(stub.req.Messages)-1].Content
	assert.Contains(t, final, "The doctor has provided an image for analysis.")
	assert.Contains(t, final, "Image URL: /uploads/temp_x.jpg")
}

func TestParseReply(t *testing.T) {
	reply, err := ParseReply(`{"response":"hi","suggested_tool":"websearch","trigger_agent":true,"sources":["https://a.example"]}`)
	require.NoError(t, err)
	assert.Equal(t, "websearch", reply.SuggestedTool)
	assert.True(t, reply.TriggerAgent)
	assert.Equal(t, []string{"https://a.example"}, reply.Sources)

	// Absent sources become an empty array, never nil.
	reply, err = ParseReply(`{"response":"hi","trigger_agent":false}`)
	require.NoError(t, err)
	assert.NotNil(t, reply.Sources)
	assert.Empty(t, reply.Sources)
}

func TestParseReplyNormalizesNoneTool(t *testing.T) {
	for _, tool := range []string{"None", "null", ""} {
		reply, err := ParseReply(`{"response":"hi","suggested_tool":"` + tool + `","trigger_agent":false}`)
		require.NoError(t, err, tool)
		assert.Empty(t, reply.SuggestedTool)
	}
}

func TestParseReplyHardErrors(t *testing.T) {
	_, err := ParseReply("this is not json")
	assert.ErrorIs(t, err, ErrBadReply)

	_, err = ParseReply(`{"suggested_tool":"websearch","trigger_agent":true}`)
	assert.ErrorIs(t, err, ErrSchema)

	_, err = ParseReply(`{"response":"hi"}`)
	assert.ErrorIs(t, err, ErrSchema)

	_, err = ParseReply(`{"response":"   ","trigger_agent":false}`)
	assert.ErrorIs(t, err, ErrSchema)

	_, err = ParseReply(`{"response":"hi","suggested_tool":"frobnicator","trigger_agent":false}`)
	assert.ErrorIs(t, err, ErrSchema)
}
