package router

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinvoy/secretary/internal/attach"
	"github.com/clinvoy/secretary/internal/convo"
	"github.com/clinvoy/secretary/internal/secretary"
)

// scriptedSecretary replays canned replies and records every call.
type scriptedSecretary struct {
	replies []*secretary.Reply
	err     error
	calls   []secretaryCall
}

type secretaryCall struct {
	message    string
	imageRef   string
	transcript []convo.Turn
}

func (s *scriptedSecretary) Converse(_ context.Context, message, imageRef string, transcript []convo.Turn) (*secretary.Reply, error) {
	s.calls = append(s.calls, secretaryCall{message, imageRef, transcript})
	if s.err != nil {
		return nil, s.err
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

// recordingDelegator records delegation calls and returns a fixed result.
type recordingDelegator struct {
	result string
	err    error
	calls  []delegateCall
}

type delegateCall struct {
	priorReply string
	message    string
	preferred  []string
	imageRef   string
}

func (d *recordingDelegator) Delegate(_ context.Context, priorReply, message string, preferred []string, _ []convo.Turn, imageRef string) (string, error) {
	d.calls = append(d.calls, delegateCall{priorReply, message, preferred, imageRef})
	if d.err != nil {
		return "", d.err
	}
	return d.result, nil
}

func newTestRouter(t *testing.T, sec Secretary, del Delegator) (*Router, *convo.Store, *attach.Handler) {
	t.Helper()
	store, err := convo.NewStore(16)
	require.NoError(t, err)
	handler, err := attach.NewHandler(t.TempDir())
	require.NoError(t, err)
	return New(store, handler, sec, del), store, handler
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestDirectPath(t *testing.T) {
	sec := &scriptedSecretary{replies: []*secretary.Reply{
		{Response: "Sure, use this tool:", SuggestedTool: "brain_tumor", TriggerAgent: false, Sources: []string{}},
	}}
	del := &recordingDelegator{}
	router, store, handler := newTestRouter(t, sec, del)

	result, err := router.HandleTurn(context.Background(), TurnRequest{
		Message: "Check for a brain tumor in this scan",
		Image:   b64("scan bytes"),
	})
	require.NoError(t, err)

	// Reply returned verbatim plus a freshly minted conversation id.
	assert.Equal(t, "Sure, use this tool:", result.Response)
	assert.Equal(t, "brain_tumor", result.SuggestedTool)
	assert.False(t, result.TriggerAgent)
	assert.NotEmpty(t, result.ConversationID)

	// trigger_agent=false means the delegator is never invoked.
	assert.Empty(t, del.calls)

	// Transcript: user + assistant.
	_, conv := store.GetOrCreate(result.ConversationID)
	require.Equal(t, 2, conv.Len())
	snap := conv.Snapshot()
	assert.Equal(t, convo.RoleUser, snap[0].Role)
	assert.Equal(t, "Check for a brain tumor in this scan", snap[0].Content)
	assert.Equal(t, convo.RoleAssistant, snap[1].Role)

	// The attachment was stored during the pipeline and removed afterwards.
	require.Len(t, sec.calls, 1)
	require.NotEmpty(t, sec.calls[0].imageRef)
	_, statErr := os.Stat(sec.calls[0].imageRef)
	assert.True(t, os.IsNotExist(statErr))

	// The secretary saw the transcript including the just-appended user turn.
	require.Len(t, sec.calls[0].transcript, 1)
	assert.Equal(t, convo.RoleUser, sec.calls[0].transcript[0].Role)

	_ = handler
}

func TestDelegatedWebsearchPath(t *testing.T) {
	sec := &scriptedSecretary{replies: []*secretary.Reply{
		{Response: "I'll search on the internet.", SuggestedTool: "websearch", TriggerAgent: true, Sources: []string{}},
		{Response: "Avoid tetracyclines.", SuggestedTool: "websearch", TriggerAgent: false, Sources: []string{"https://who.int/page"}},
	}}
	del := &recordingDelegator{result: "Findings: avoid tetracyclines. Source: https://who.int/page"}
	router, store, _ := newTestRouter(t, sec, del)

	result, err := router.HandleTurn(context.Background(), TurnRequest{
		Message:        "prohibited antibiotics for pregnant women",
		PreferredLinks: []string{"who.int"},
	})
	require.NoError(t, err)

	// Delegated exactly once, with the literal user message and the
	// pass-through preferred sources.
	require.Len(t, del.calls, 1)
	assert.Equal(t, "prohibited antibiotics for pregnant women", del.calls[0].message)
	assert.Equal(t, []string{"who.int"}, del.calls[0].preferred)
	assert.Contains(t, del.calls[0].priorReply, "I'll search on the internet.")

	// Final reply is the normalized one, citations intact.
	assert.Equal(t, "websearch", result.SuggestedTool)
	assert.NotEmpty(t, result.Sources)

	// The normalization request restates the agent's findings and demands
	// the links be listed again.
	require.Len(t, sec.calls, 2)
	assert.Contains(t, sec.calls[1].message, "Inform the doctor")
	assert.Contains(t, sec.calls[1].message, "explicitly give the links")
	assert.Contains(t, sec.calls[1].message, "https://who.int/page")
	assert.Empty(t, sec.calls[1].imageRef)

	// Transcript: user + intermediate + final.
	_, conv := store.GetOrCreate(result.ConversationID)
	assert.Equal(t, 3, conv.Len())
}

func TestDelegatedOtherToolPrompt(t *testing.T) {
	sec := &scriptedSecretary{replies: []*secretary.Reply{
		{Response: "Running the classifier.", SuggestedTool: "brain_tumor", TriggerAgent: true, Sources: []string{}},
		{Response: "The scan shows no tumor.", SuggestedTool: "brain_tumor", TriggerAgent: false, Sources: []string{}},
	}}
	del := &recordingDelegator{result: "The classifier predicts: notumor"}
	router, _, _ := newTestRouter(t, sec, del)

	_, err := router.HandleTurn(context.Background(), TurnRequest{Message: "classify this scan"})
	require.NoError(t, err)

	require.Len(t, sec.calls, 2)
	assert.Contains(t, sec.calls[1].message, "mention again the tool used")
	assert.NotContains(t, sec.calls[1].message, "websearch")
}

func TestAttachmentCleanupOnSecretaryError(t *testing.T) {
	sec := &scriptedSecretary{err: errors.New("model unavailable")}
	router, _, handler := newTestRouter(t, sec, &recordingDelegator{})

	_, err := router.HandleTurn(context.Background(), TurnRequest{
		Message: "hello",
		Image:   b64("bytes"),
	})
	require.Error(t, err)

	// Nothing transient is left behind on the failure path.
	entries, readErr := os.ReadDir(handler.Dir())
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestBadImageIsDecodeError(t *testing.T) {
	router, _, _ := newTestRouter(t, &scriptedSecretary{}, &recordingDelegator{})

	_, err := router.HandleTurn(context.Background(), TurnRequest{
		Message: "hello",
		Image:   "%%% not base64 %%%",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, attach.ErrDecode)
}

func TestDelegationFailurePropagates(t *testing.T) {
	sec := &scriptedSecretary{replies: []*secretary.Reply{
		{Response: "Searching.", SuggestedTool: "websearch", TriggerAgent: true, Sources: []string{}},
	}}
	del := &recordingDelegator{err: errors.New("agent timeout")}
	router, store, _ := newTestRouter(t, sec, del)

	_, err := router.HandleTurn(context.Background(), TurnRequest{
		Message:        "search something",
		ConversationID: "fixed-id",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent timeout")

	// The user and intermediate turns were recorded before the failure.
	_, conv := store.GetOrCreate("fixed-id")
	assert.Equal(t, 2, conv.Len())
}

func TestConversationContinuity(t *testing.T) {
	sec := &scriptedSecretary{replies: []*secretary.Reply{
		{Response: "first", TriggerAgent: false, Sources: []string{}},
		{Response: "second", TriggerAgent: false, Sources: []string{}},
	}}
	router, store, _ := newTestRouter(t, sec, &recordingDelegator{})

	first, err := router.HandleTurn(context.Background(), TurnRequest{Message: "one"})
	require.NoError(t, err)

	second, err := router.HandleTurn(context.Background(), TurnRequest{
		Message:        "two",
		ConversationID: first.ConversationID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	// Second turn's secretary call saw the whole history.
	require.Len(t, sec.calls, 2)
	assert.Len(t, sec.calls[1].transcript, 3)

	_, conv := store.GetOrCreate(first.ConversationID)
	assert.Equal(t, 4, conv.Len())
}

func TestEmptyMessageRejected(t *testing.T) {
	router, _, _ := newTestRouter(t, &scriptedSecretary{}, &recordingDelegator{})
	_, err := router.HandleTurn(context.Background(), TurnRequest{})
	assert.Error(t, err)
}
