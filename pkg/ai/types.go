// ABOUTME: Core runtime types: Message, ToolCall, ToolSchema, Usage, Request
// ABOUTME: Shared across all providers; wire-format agnostic

package ai

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role represents a message role in the conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopToolUse   StopReason = "tool_use"
	StopError     StopReason = "error"
)

// ToolCall is a single model-requested tool invocation. Args is always a
// complete JSON object by the time a ToolCall leaves a provider; partial
// argument fragments never escape the adapter that accumulated them.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Message represents one conversation entry. Content is plain text; tool
// invocations live in ToolCalls and tool results in tool-role messages
// linked back through ToolCallID.
type Message struct {
	ID          string       `json:"id,omitempty"`
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	Thinking    string       `json:"thinking,omitempty"`
	ToolCalls   []ToolCall   `json:"toolCalls,omitempty"`
	ToolCallID  string       `json:"toolCallId,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"createdAt,omitempty"`
}

// NewUserMessage creates a user message with a fresh ID.
func NewUserMessage(text string, attachments ...Attachment) Message {
	return Message{
		ID:          uuid.NewString(),
		Role:        RoleUser,
		Content:     text,
		Attachments: attachments,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewAssistantMessage creates an assistant message with a fresh ID.
func NewAssistantMessage(text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}
}

// ToolResult is the envelope serialized into every tool-role message so the
// model sees a uniform success/error shape regardless of which side executed
// the call.
type ToolResult struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewToolResultMessage wraps a handler result in the success envelope and
// links it to callID. result must be JSON-marshalable.
func NewToolResultMessage(callID string, result any) (Message, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Message{}, fmt.Errorf("marshal tool result for %s: %w", callID, err)
	}
	body, err := json.Marshal(ToolResult{Success: true, Result: raw})
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:         uuid.NewString(),
		Role:       RoleTool,
		Content:    string(body),
		ToolCallID: callID,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// NewToolErrorMessage wraps a failure in the error envelope. Used both for
// handler errors and for synthesized refusals (rejected or unanswerable
// calls); the conversation stays consistent because every call still gets
// exactly one result.
func NewToolErrorMessage(callID, errMsg string) Message {
	body, _ := json.Marshal(ToolResult{Success: false, Error: errMsg})
	return Message{
		ID:         uuid.NewString(),
		Role:       RoleTool,
		Content:    string(body),
		ToolCallID: callID,
		CreatedAt:  time.Now().UTC(),
	}
}

// PendingToolCalls returns the tool calls in msgs that have no matching
// tool-role result yet, in emission order. An assistant message with a
// non-empty return here is awaiting action.
func PendingToolCalls(msgs []Message) []ToolCall {
	answered := make(map[string]bool)
	for _, m := range msgs {
		if m.Role == RoleTool && m.ToolCallID != "" {
			answered[m.ToolCallID] = true
		}
	}
	var pending []ToolCall
	for _, m := range msgs {
		if m.Role != RoleAssistant {
			continue
		}
		for _, tc := range m.ToolCalls {
			if !answered[tc.ID] {
				pending = append(pending, tc)
			}
		}
	}
	return pending
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	CacheRead    int `json:"cache_read_input_tokens,omitempty"`
	CacheCreate  int `json:"cache_creation_input_tokens,omitempty"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheRead += other.CacheRead
	u.CacheCreate += other.CacheCreate
}

// ToolSchema is the wire-facing declaration of a tool: name, description and
// JSON Schema for its arguments. No handler; execution stays on whichever
// side registered the tool.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Request is the canonical model invocation: vendor-independent, converted
// to the wire shape by each provider.
type Request struct {
	System   string         `json:"system,omitempty"`
	Messages []Message      `json:"messages"`
	Tools    []ToolSchema   `json:"tools,omitempty"`
	Options  RequestOptions `json:"options,omitempty"`
}

// RequestOptions configures a single invocation.
type RequestOptions struct {
	MaxTokens      int      `json:"max_tokens,omitempty"`
	Temperature    float64  `json:"temperature,omitempty"`
	TopP           float64  `json:"top_p,omitempty"`
	StopSequences  []string `json:"stop_sequences,omitempty"`
	Thinking       bool     `json:"thinking,omitempty"`
	ThinkingBudget int      `json:"thinking_budget,omitempty"`
	PromptCaching  bool     `json:"prompt_caching,omitempty"`
}

// AssistantTurn is the accumulated result of one streamed model turn.
// Message.Content equals the concatenation of every message:delta emitted
// during the turn.
type AssistantTurn struct {
	Message    Message    `json:"message"`
	StopReason StopReason `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
	Model      string     `json:"model"`
}
