// ABOUTME: Unified stream event protocol emitted by every provider adapter
// ABOUTME: String-typed events so the same value serves in-process and on the wire

package ai

// EventType tags a StreamEvent. Consumers must skip types they do not
// recognize; new tags may appear without a protocol version bump.
type EventType string

const (
	EventMessageStart  EventType = "message:start"
	EventMessageDelta  EventType = "message:delta"
	EventThinkingDelta EventType = "thinking:delta"
	EventToolCalls     EventType = "tool_calls"
	EventMessageEnd    EventType = "message:end"
	EventDone          EventType = "done"
	EventError         EventType = "error"
)

// StreamEvent is one event in the unified protocol. Exactly one terminal
// event (done or error) ends every invocation; message:start precedes any
// delta for the message it opens.
//
// Err carries the in-process cause for error events and does not survive
// JSON round-trips; Message always does.
type StreamEvent struct {
	Type           EventType  `json:"type"`
	MessageID      string     `json:"messageId,omitempty"`      // message:start
	Content        string     `json:"content,omitempty"`        // message:delta, thinking:delta
	ToolCalls      []ToolCall `json:"toolCalls,omitempty"`      // tool_calls
	RequiresAction bool       `json:"requiresAction,omitempty"` // done
	Message        string     `json:"message,omitempty"`        // error
	Err            error      `json:"-"`
}

// Terminal reports whether ev ends an invocation.
func (ev StreamEvent) Terminal() bool {
	return ev.Type == EventDone || ev.Type == EventError
}

func MessageStartEvent(id string) StreamEvent {
	return StreamEvent{Type: EventMessageStart, MessageID: id}
}

func MessageDeltaEvent(text string) StreamEvent {
	return StreamEvent{Type: EventMessageDelta, Content: text}
}

func ThinkingDeltaEvent(text string) StreamEvent {
	return StreamEvent{Type: EventThinkingDelta, Content: text}
}

func ToolCallsEvent(calls []ToolCall) StreamEvent {
	return StreamEvent{Type: EventToolCalls, ToolCalls: calls}
}

func MessageEndEvent() StreamEvent {
	return StreamEvent{Type: EventMessageEnd}
}

func DoneEvent(requiresAction bool) StreamEvent {
	return StreamEvent{Type: EventDone, RequiresAction: requiresAction}
}

func ErrorEvent(err error) StreamEvent {
	ev := StreamEvent{Type: EventError, Err: err}
	if err != nil {
		ev.Message = err.Error()
	}
	return ev
}
