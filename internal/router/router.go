// Package router implements the per-turn dialogue-routing state machine.
// Each inbound turn flows AWAITING_INPUT → SECRETARY_REPLIED and then either
// terminates directly or passes through AGENT_DELEGATED → AGENT_NORMALIZED.
// The first secretary reply's trigger_agent flag is trusted unconditionally:
// one decision per turn, no re-evaluation after delegation.
package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/clinvoy/secretary/internal/attach"
	"github.com/clinvoy/secretary/internal/convo"
	"github.com/clinvoy/secretary/internal/secretary"
	"github.com/clinvoy/secretary/internal/tools"
)

// Pipeline states, recorded on log lines for tracing a turn.
const (
	stateAwaitingInput    = "awaiting_input"
	stateSecretaryReplied = "secretary_replied"
	stateDirectDone       = "direct_done"
	stateAgentDelegated   = "agent_delegated"
	stateAgentNormalized  = "agent_normalized"
)

// Secretary is the scripted-reply capability the router consults.
type Secretary interface {
	Converse(ctx context.Context, message, imageRef string, transcript []convo.Turn) (*secretary.Reply, error)
}

// Delegator hands a task to the autonomous tool-agent.
type Delegator interface {
	Delegate(ctx context.Context, priorReply, message string, preferredSources []string, transcript []convo.Turn, imageRef string) (string, error)
}

// TurnRequest is the inbound request envelope.
type TurnRequest struct {
	Message        string   `json:"message"`
	Image          string   `json:"image,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	PreferredLinks []string `json:"preferred_links,omitempty"`
}

// TurnResult is the outbound reply: the structured secretary reply plus the
// conversation identifier the turn ran under.
type TurnResult struct {
	secretary.Reply
	ConversationID string `json:"conversation_id"`
}

// Router wires the turn pipeline together.
type Router struct {
	store       *convo.Store
	attachments *attach.Handler
	secretary   Secretary
	delegator   Delegator
}

// New creates a router.
func New(store *convo.Store, attachments *attach.Handler, sec Secretary, delegator Delegator) *Router {
	return &Router{
		store:       store,
		attachments: attachments,
		secretary:   sec,
		delegator:   delegator,
	}
}

// HandleTurn runs one inbound turn through the pipeline. The transient
// attachment, if any, is discarded on every exit path; a cleanup failure is
// logged but never overrides the turn's outcome.
func (r *Router) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("message is required")
	}

	id, conv := r.store.GetOrCreate(req.ConversationID)
	log.Debug().Str("conversation_id", id).Str("state", stateAwaitingInput).Msg("turn started")

	var imagePath string
	if req.Image != "" {
		path, err := r.attachments.Store(req.Image)
		if err != nil {
			return nil, fmt.Errorf("process image: %w", err)
		}
		imagePath = path
		defer func() {
			_ = r.attachments.Discard(imagePath)
		}()
	}

	conv.Append(convo.Turn{Role: convo.RoleUser, Content: req.Message})

	reply, err := r.secretary.Converse(ctx, req.Message, imagePath, conv.Snapshot())
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("conversation_id", id).
		Str("state", stateSecretaryReplied).
		Bool("trigger_agent", reply.TriggerAgent).
		Str("suggested_tool", reply.SuggestedTool).
		Msg("secretary replied")

	conv.Append(convo.Turn{Role: convo.RoleAssistant, Content: reply.Response})

	if !reply.TriggerAgent {
		log.Debug().Str("conversation_id", id).Str("state", stateDirectDone).Msg("turn done")
		return &TurnResult{Reply: *reply, ConversationID: id}, nil
	}

	// The intermediate reply is embedded in the delegation task verbatim,
	// as structured text, for context continuity.
	priorJSON, err := json.Marshal(reply)
	if err != nil {
		return nil, fmt.Errorf("encode prior reply: %w", err)
	}

	log.Debug().Str("conversation_id", id).Str("state", stateAgentDelegated).Msg("delegating to agent")
	agentOut, err := r.delegator.Delegate(ctx, string(priorJSON), req.Message, req.PreferredLinks, conv.Snapshot(), imagePath)
	if err != nil {
		return nil, err
	}

	final, err := r.secretary.Converse(ctx, normalizationRequest(reply.SuggestedTool, agentOut), "", conv.Snapshot())
	if err != nil {
		return nil, err
	}
	log.Debug().Str("conversation_id", id).Str("state", stateAgentNormalized).Msg("agent result normalized")

	conv.Append(convo.Turn{Role: convo.RoleAssistant, Content: final.Response})

	return &TurnResult{Reply: *final, ConversationID: id}, nil
}

// normalizationRequest builds the second secretary call's message, folding
// the agent's free-text result back into schema-valid form. The websearch
// branch additionally demands the source links be restated.
func normalizationRequest(suggestedTool, agentResult string) string {
	if suggestedTool == string(tools.ToolWebSearch) {
		return fmt.Sprintf(
			"The AI agent just answered this. Inform the doctor: %s and explicitly give the links the agent used as sources. Please mention again 'suggested_tool'='websearch'.",
			agentResult,
		)
	}
	return fmt.Sprintf(
		"The AI agent just answered this. Inform the doctor: %s. Please mention again the tool used in 'suggested_tool'.",
		agentResult,
	)
}
