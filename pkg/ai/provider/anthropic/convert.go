// ABOUTME: Request conversion from canonical types to the Anthropic Messages API
// ABOUTME: Flat messages become content blocks; tool results group into user turns

package anthropic

import (
	"encoding/json"

	"github.com/mauromedda/tandem/pkg/ai"
)

const defaultThinkingBudget = 4096

// buildRequestBody constructs the full Anthropic Messages API request body.
func buildRequestBody(model *ai.Model, req *ai.Request) map[string]any {
	body := map[string]any{
		"model":      model.ID,
		"stream":     true,
		"max_tokens": resolveMaxTokens(model, req.Options),
	}

	if req.System != "" {
		body["system"] = convertSystem(req.System, req.Options.PromptCaching)
	}

	if msgs := convertMessages(req.Messages); len(msgs) > 0 {
		body["messages"] = msgs
	}

	if len(req.Tools) > 0 {
		body["tools"] = convertTools(req.Tools, req.Options.PromptCaching)
	}

	applyOptions(body, model, req.Options)

	return body
}

// convertSystem renders the system prompt. With caching enabled it becomes a
// block list so cache_control can ride on it; Anthropic caches the prefix up
// to the last annotated block.
func convertSystem(system string, caching bool) any {
	if !caching {
		return system
	}
	return []map[string]any{
		{
			"type":          "text",
			"text":          system,
			"cache_control": map[string]string{"type": "ephemeral"},
		},
	}
}

// convertMessages transforms the flat conversation into Anthropic turns.
// Runs of tool-role messages collapse into a single user turn of tool_result
// blocks, which is the only placement the API accepts for them.
func convertMessages(msgs []ai.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))

	for i := 0; i < len(msgs); {
		switch msgs[i].Role {
		case ai.RoleTool:
			var blocks []map[string]any
			for i < len(msgs) && msgs[i].Role == ai.RoleTool {
				blocks = append(blocks, toolResultBlock(msgs[i]))
				i++
			}
			out = append(out, map[string]any{"role": "user", "content": blocks})
		case ai.RoleAssistant:
			if blocks := assistantBlocks(msgs[i]); len(blocks) > 0 {
				out = append(out, map[string]any{"role": "assistant", "content": blocks})
			}
			i++
		default:
			// User content; stray system-role messages ride along as user text.
			if blocks := userBlocks(msgs[i]); len(blocks) > 0 {
				out = append(out, map[string]any{"role": "user", "content": blocks})
			}
			i++
		}
	}

	return out
}

// toolResultBlock converts a tool-role message. The result envelope string is
// passed through as-is; is_error is derived from its success flag so the
// model sees failures marked the way the API expects.
func toolResultBlock(m ai.Message) map[string]any {
	block := map[string]any{
		"type":        "tool_result",
		"tool_use_id": m.ToolCallID,
		"content":     m.Content,
	}

	var envelope ai.ToolResult
	if json.Unmarshal([]byte(m.Content), &envelope) == nil && !envelope.Success {
		block["is_error"] = true
	}

	return block
}

// assistantBlocks converts an assistant message into text and tool_use
// blocks. Thinking traces are not replayed: without their signatures the API
// rejects them, and they carry no conversational state.
func assistantBlocks(m ai.Message) []map[string]any {
	var blocks []map[string]any

	if m.Content != "" {
		blocks = append(blocks, map[string]any{"type": "text", "text": m.Content})
	}

	for _, tc := range m.ToolCalls {
		input := tc.Args
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		blocks = append(blocks, map[string]any{
			"type":  "tool_use",
			"id":    tc.ID,
			"name":  tc.Name,
			"input": input,
		})
	}

	return blocks
}

// userBlocks converts a user message into text plus inline image blocks.
func userBlocks(m ai.Message) []map[string]any {
	var blocks []map[string]any

	if m.Content != "" {
		blocks = append(blocks, map[string]any{"type": "text", "text": m.Content})
	}

	for _, att := range m.Attachments {
		if att.Kind != ai.AttachmentImage {
			continue
		}
		blocks = append(blocks, map[string]any{
			"type": "image",
			"source": map[string]any{
				"type":       "base64",
				"media_type": att.MediaType,
				"data":       att.Base64(),
			},
		})
	}

	return blocks
}

// convertTools transforms tool schemas into Anthropic API format. With
// caching enabled the last tool gets cache_control, extending the cached
// prefix over the whole tool list.
func convertTools(tools []ai.ToolSchema, caching bool) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		entry := map[string]any{
			"name":        t.Name,
			"description": t.Description,
		}
		if t.InputSchema != nil {
			entry["input_schema"] = t.InputSchema
		}
		out = append(out, entry)
	}
	if caching && len(out) > 0 {
		out[len(out)-1]["cache_control"] = map[string]string{"type": "ephemeral"}
	}
	return out
}

// resolveMaxTokens returns the max tokens value, preferring options over
// model defaults.
func resolveMaxTokens(model *ai.Model, opts ai.RequestOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return model.MaxOutputTokens
}

// applyOptions applies optional sampling and thinking parameters.
func applyOptions(body map[string]any, model *ai.Model, opts ai.RequestOptions) {
	if opts.Temperature > 0 {
		body["temperature"] = opts.Temperature
	}
	if opts.TopP > 0 {
		body["top_p"] = opts.TopP
	}
	if len(opts.StopSequences) > 0 {
		body["stop_sequences"] = opts.StopSequences
	}
	if opts.Thinking && model.SupportsThinking {
		budget := opts.ThinkingBudget
		if budget <= 0 {
			budget = defaultThinkingBudget
		}
		body["thinking"] = map[string]any{"type": "enabled", "budget_tokens": budget}
	}
}
