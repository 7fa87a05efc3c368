// ABOUTME: Accumulates streaming chunks into the final assistant turn
// ABOUTME: Tool argument fragments are assembled by choice index, never leaked

package openai

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/ai/partjson"
)

// accumulator gathers streaming data into a final AssistantTurn. Tool call
// fragments are keyed by the index field because id and name arrive only on
// the first fragment of each call.
type accumulator struct {
	messageID string
	model     string
	finish    string
	usage     ai.Usage
	content   strings.Builder
	thinking  strings.Builder
	calls     []*toolCallState
}

type toolCallState struct {
	id   string
	name string
	args strings.Builder
}

func newAccumulator() *accumulator {
	return &accumulator{}
}

// applyToolDelta merges one tool_calls fragment into the call at its index.
func (a *accumulator) applyToolDelta(d toolCallDelta) {
	for len(a.calls) <= d.Index {
		a.calls = append(a.calls, &toolCallState{})
	}
	tc := a.calls[d.Index]
	if d.ID != "" {
		tc.id = d.ID
	}
	if d.Name != "" {
		tc.name = d.Name
	}
	tc.args.WriteString(d.Args)
}

// finalizeCalls assembles the accumulated fragments into complete calls.
// Argument text must parse to a JSON object; recoverable truncation is
// salvaged, anything else fails the stream.
func (a *accumulator) finalizeCalls() ([]ai.ToolCall, error) {
	if len(a.calls) == 0 {
		return nil, nil
	}
	out := make([]ai.ToolCall, 0, len(a.calls))
	for _, tc := range a.calls {
		args, ok := partjson.CompleteObject(tc.args.String())
		if !ok {
			return nil, fmt.Errorf("tool %s: malformed arguments %q", tc.name, tc.args.String())
		}
		out = append(out, ai.ToolCall{ID: tc.id, Name: tc.name, Args: args})
	}
	return out, nil
}

// buildTurn constructs the final AssistantTurn from accumulated data.
func (a *accumulator) buildTurn(calls []ai.ToolCall, fallbackModel string) *ai.AssistantTurn {
	id := a.messageID
	if id == "" {
		id = uuid.NewString()
	}

	model := a.model
	if model == "" {
		model = fallbackModel
	}

	stop := mapFinishReason(a.finish)
	if a.finish == "" {
		if len(calls) > 0 {
			stop = ai.StopToolUse
		} else {
			stop = ai.StopEndTurn
		}
	}

	return &ai.AssistantTurn{
		Message: ai.Message{
			ID:        id,
			Role:      ai.RoleAssistant,
			Content:   a.content.String(),
			Thinking:  a.thinking.String(),
			ToolCalls: calls,
			CreatedAt: time.Now().UTC(),
		},
		StopReason: stop,
		Usage:      a.usage,
		Model:      model,
	}
}

func mapFinishReason(reason string) ai.StopReason {
	switch reason {
	case "length":
		return ai.StopMaxTokens
	case "tool_calls", "function_call":
		return ai.StopToolUse
	default:
		return ai.StopEndTurn
	}
}
