// ABOUTME: Request conversion from canonical types to the Chat Completions format
// ABOUTME: Flat messages map to role entries; tool calls ride as function entries

package openai

import (
	"fmt"

	"github.com/mauromedda/tandem/pkg/ai"
)

type chatMessage struct {
	Role       string        `json:"role"`
	Content    any           `json:"content,omitempty"`
	ToolCalls  []toolCallReq `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type toolCallReq struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function toolCallFuncReq `json:"function"`
}

type toolCallFuncReq struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function toolFuncDef `json:"function"`
}

type toolFuncDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters,omitempty"`
}

// buildRequestBody constructs the Chat Completions request. wireModel is the
// identifier the endpoint expects; empty means the endpoint encodes the model
// in its path (Azure deployments) and the field is omitted.
func buildRequestBody(model *ai.Model, wireModel string, req *ai.Request) map[string]any {
	body := map[string]any{
		"stream":         true,
		"stream_options": map[string]any{"include_usage": true},
		"messages":       convertMessages(req),
	}
	if wireModel != "" {
		body["model"] = wireModel
	}

	if len(req.Tools) > 0 {
		body["tools"] = convertTools(req.Tools)
	}

	opts := req.Options
	if opts.MaxTokens > 0 {
		body["max_tokens"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		body["temperature"] = opts.Temperature
	}
	if opts.TopP > 0 {
		body["top_p"] = opts.TopP
	}
	if len(opts.StopSequences) > 0 {
		body["stop"] = opts.StopSequences
	}
	if opts.Thinking && model.SupportsThinking {
		body["reasoning_effort"] = "medium"
	}

	return body
}

func convertMessages(req *ai.Request) []chatMessage {
	msgs := make([]chatMessage, 0, len(req.Messages)+1)

	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}

	for _, m := range req.Messages {
		switch m.Role {
		case ai.RoleTool:
			msgs = append(msgs, chatMessage{
				Role:       "tool",
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		case ai.RoleAssistant:
			msg := chatMessage{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				args := string(tc.Args)
				if args == "" {
					args = "{}"
				}
				msg.ToolCalls = append(msg.ToolCalls, toolCallReq{
					ID:       tc.ID,
					Type:     "function",
					Function: toolCallFuncReq{Name: tc.Name, Arguments: args},
				})
			}
			msgs = append(msgs, msg)
		default:
			msgs = append(msgs, chatMessage{Role: "user", Content: userContent(m)})
		}
	}

	return msgs
}

// userContent returns a plain string for text-only messages and a part list
// when image attachments need a data URI.
func userContent(m ai.Message) any {
	images := 0
	for _, att := range m.Attachments {
		if att.Kind == ai.AttachmentImage {
			images++
		}
	}
	if images == 0 {
		return m.Content
	}

	parts := make([]map[string]any, 0, images+1)
	if m.Content != "" {
		parts = append(parts, map[string]any{"type": "text", "text": m.Content})
	}
	for _, att := range m.Attachments {
		if att.Kind != ai.AttachmentImage {
			continue
		}
		uri := fmt.Sprintf("data:%s;base64,%s", att.MediaType, att.Base64())
		parts = append(parts, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": uri},
		})
	}
	return parts
}

func convertTools(tools []ai.ToolSchema) []toolDef {
	defs := make([]toolDef, len(tools))
	for i, t := range tools {
		defs[i] = toolDef{
			Type: "function",
			Function: toolFuncDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		}
	}
	return defs
}
