// ABOUTME: Pure reducer projecting unified stream events onto client state
// ABOUTME: Total function: unknown events pass through, errors keep streamed content

package client

import (
	"encoding/json"

	"github.com/mauromedda/tandem/pkg/ai"
)

// Finish reasons on StreamingMessage.
const (
	FinishStop  = "stop"
	FinishError = "error"
)

// StreamingMessage is the client-side view of one streamed conversation
// turn, built incrementally by Reduce. The zero value is the state at
// turn start.
type StreamingMessage struct {
	MessageID      string        `json:"messageId,omitempty"`
	Content        string        `json:"content,omitempty"`
	Thinking       string        `json:"thinking,omitempty"`
	ToolCalls      []ai.ToolCall `json:"toolCalls,omitempty"`
	RequiresAction bool          `json:"requiresAction,omitempty"`
	FinishReason   string        `json:"finishReason,omitempty"`
}

// Reduce projects one event onto state and returns the successor. Pure and
// total: no input panics, unknown event types return the state unchanged,
// and the input's tool-call slice is never mutated, so replaying the same
// events always yields the same states.
func Reduce(state StreamingMessage, ev ai.StreamEvent) StreamingMessage {
	switch ev.Type {
	case ai.EventMessageStart:
		// Providers that assign ids asynchronously correct mid-stream.
		if ev.MessageID != "" {
			state.MessageID = ev.MessageID
		}
	case ai.EventMessageDelta:
		state.Content += ev.Content
	case ai.EventThinkingDelta:
		state.Thinking += ev.Content
	case ai.EventToolCalls:
		state.ToolCalls = appendCalls(state.ToolCalls, ev.ToolCalls)
		state.RequiresAction = true
	case ai.EventMessageEnd:
		state.FinishReason = FinishStop
	case ai.EventDone:
		state.FinishReason = FinishStop
		state.RequiresAction = ev.RequiresAction
	case ai.EventError:
		// Content and thinking accumulated so far stay visible.
		state.FinishReason = FinishError
	}
	return state
}

// appendCalls copies into a fresh slice so two successors of the same
// state never share a backing array. Empty argument objects are filled in;
// adapters guarantee arguments are otherwise complete.
func appendCalls(existing, incoming []ai.ToolCall) []ai.ToolCall {
	out := make([]ai.ToolCall, 0, len(existing)+len(incoming))
	out = append(out, existing...)
	for _, call := range incoming {
		if len(call.Args) == 0 {
			call.Args = json.RawMessage(`{}`)
		}
		out = append(out, call)
	}
	return out
}

// IsComplete reports whether the stream reached a terminal transition.
func IsComplete(state StreamingMessage) bool {
	return state.FinishReason != ""
}

// HasContent reports whether any text or thinking accumulated.
func HasContent(state StreamingMessage) bool {
	return state.Content != "" || state.Thinking != ""
}

// Message converts the reduced state into a conversation message, ready to
// append to a history for resubmission.
func (s StreamingMessage) Message() ai.Message {
	return ai.Message{
		ID:        s.MessageID,
		Role:      ai.RoleAssistant,
		Content:   s.Content,
		Thinking:  s.Thinking,
		ToolCalls: s.ToolCalls,
	}
}
