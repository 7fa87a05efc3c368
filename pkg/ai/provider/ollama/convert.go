// ABOUTME: Request conversion and wire types for the Ollama native chat API
// ABOUTME: Tool arguments are JSON objects on this wire, not encoded strings

package ollama

import (
	"encoding/json"

	"github.com/mauromedda/tandem/pkg/ai"
)

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Think    bool           `json:"think,omitempty"`
	Tools    []toolDef      `json:"tools,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Images    []string   `json:"images,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
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

// chatResponse is one NDJSON line. The final line has done true and carries
// the token counters.
type chatResponse struct {
	Model           string      `json:"model"`
	Message         respMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

type respMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Thinking  string     `json:"thinking"`
	ToolCalls []toolCall `json:"tool_calls"`
}

// buildRequestBody constructs the native chat request.
func buildRequestBody(model *ai.Model, req *ai.Request) chatRequest {
	out := chatRequest{
		Model:    model.ID,
		Messages: convertMessages(req),
		Stream:   true,
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]toolDef, len(req.Tools))
		for i, t := range req.Tools {
			out.Tools[i] = toolDef{
				Type: "function",
				Function: toolFuncDef{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				},
			}
		}
	}

	opts := req.Options
	if opts.Thinking && model.SupportsThinking {
		out.Think = true
	}
	options := make(map[string]any)
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.TopP > 0 {
		options["top_p"] = opts.TopP
	}
	if len(opts.StopSequences) > 0 {
		options["stop"] = opts.StopSequences
	}
	if len(options) > 0 {
		out.Options = options
	}

	return out
}

func convertMessages(req *ai.Request) []chatMessage {
	names := make(map[string]string)
	msgs := make([]chatMessage, 0, len(req.Messages)+1)

	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}

	for _, m := range req.Messages {
		switch m.Role {
		case ai.RoleTool:
			msgs = append(msgs, chatMessage{
				Role:     "tool",
				Content:  m.Content,
				ToolName: names[m.ToolCallID],
			})
		case ai.RoleAssistant:
			msg := chatMessage{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				names[tc.ID] = tc.Name
				args := tc.Args
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				msg.ToolCalls = append(msg.ToolCalls, toolCall{
					Function: toolCallFunction{Name: tc.Name, Arguments: args},
				})
			}
			msgs = append(msgs, msg)
		default:
			msg := chatMessage{Role: "user", Content: m.Content}
			for _, att := range m.Attachments {
				if att.Kind != ai.AttachmentImage {
					continue
				}
				msg.Images = append(msg.Images, att.Base64())
			}
			msgs = append(msgs, msg)
		}
	}

	return msgs
}
