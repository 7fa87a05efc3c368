// ABOUTME: Accumulates streaming deltas into the final assistant turn
// ABOUTME: Tool argument fragments stay here until complete; never leak outward

package anthropic

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/ai/partjson"
)

// accumulator gathers streaming data into a final AssistantTurn.
type accumulator struct {
	messageID  string
	model      string
	stopReason ai.StopReason
	usage      ai.Usage
	text       strings.Builder
	thinking   strings.Builder
	calls      []ai.ToolCall
	current    *blockState
}

// blockState tracks the in-progress content block.
type blockState struct {
	kind string
	id   string
	name string
	args strings.Builder
}

func newAccumulator() *accumulator {
	return &accumulator{}
}

// startBlock begins accumulating a new content block.
func (a *accumulator) startBlock(kind, id, name string) {
	a.current = &blockState{kind: kind, id: id, name: name}
}

// appendText adds assistant text. Text blocks concatenate in order in the
// flat message model.
func (a *accumulator) appendText(text string) {
	a.text.WriteString(text)
}

// appendThinking adds reasoning trace text.
func (a *accumulator) appendThinking(text string) {
	a.thinking.WriteString(text)
}

// appendArgs adds a partial JSON fragment to the current tool_use block.
func (a *accumulator) appendArgs(partial string) {
	if a.current != nil {
		a.current.args.WriteString(partial)
	}
}

// finishBlock finalizes the current block. Tool blocks must parse to a
// complete JSON object; truncated-but-recoverable input is salvaged, anything
// else is an error surfaced on the stream by the caller.
func (a *accumulator) finishBlock() error {
	if a.current == nil {
		return nil
	}
	block := a.current
	a.current = nil

	if block.kind != "tool_use" {
		return nil
	}

	args, ok := partjson.CompleteObject(block.args.String())
	if !ok {
		return fmt.Errorf("tool %s: malformed arguments %q", block.name, block.args.String())
	}

	a.calls = append(a.calls, ai.ToolCall{ID: block.id, Name: block.name, Args: args})
	return nil
}

// buildTurn constructs the final AssistantTurn from accumulated data.
func (a *accumulator) buildTurn() *ai.AssistantTurn {
	id := a.messageID
	if id == "" {
		id = uuid.NewString()
	}

	stop := a.stopReason
	if stop == "" {
		if len(a.calls) > 0 {
			stop = ai.StopToolUse
		} else {
			stop = ai.StopEndTurn
		}
	}

	return &ai.AssistantTurn{
		Message: ai.Message{
			ID:        id,
			Role:      ai.RoleAssistant,
			Content:   a.text.String(),
			Thinking:  a.thinking.String(),
			ToolCalls: a.calls,
			CreatedAt: time.Now().UTC(),
		},
		StopReason: stop,
		Usage:      a.usage,
		Model:      a.model,
	}
}
