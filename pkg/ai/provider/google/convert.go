// ABOUTME: Request conversion and wire types for the Gemini generateContent API
// ABOUTME: Function responses are matched by name; call ids exist only on our side

package google

import (
	"encoding/json"

	"github.com/mauromedda/tandem/pkg/ai"
)

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Tools             []toolDef         `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	InlineData       *inlineData       `json:"inlineData,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type functionResponse struct {
	Name     string `json:"name"`
	Response any    `json:"response"`
}

type toolDef struct {
	FunctionDeclarations []functionDecl `json:"functionDeclarations"`
}

type functionDecl struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens int             `json:"maxOutputTokens,omitempty"`
	Temperature     float64         `json:"temperature,omitempty"`
	TopP            float64         `json:"topP,omitempty"`
	StopSequences   []string        `json:"stopSequences,omitempty"`
	ThinkingConfig  *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget,omitempty"`
	IncludeThoughts bool `json:"includeThoughts,omitempty"`
}

// Streaming response types.
type generateResponse struct {
	Candidates    []candidate `json:"candidates"`
	UsageMetadata *usageMeta  `json:"usageMetadata,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMeta struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	ThoughtsTokenCount   int `json:"thoughtsTokenCount"`
}

// buildRequestBody constructs the generateContent request.
func buildRequestBody(model *ai.Model, req *ai.Request) generateRequest {
	out := generateRequest{Contents: convertMessages(req.Messages)}

	if req.System != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}

	if len(req.Tools) > 0 {
		decls := make([]functionDecl, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = functionDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			}
		}
		out.Tools = []toolDef{{FunctionDeclarations: decls}}
	}

	out.GenerationConfig = buildGenerationConfig(model, req.Options)

	return out
}

func buildGenerationConfig(model *ai.Model, opts ai.RequestOptions) *generationConfig {
	cfg := &generationConfig{
		MaxOutputTokens: opts.MaxTokens,
		Temperature:     opts.Temperature,
		TopP:            opts.TopP,
		StopSequences:   opts.StopSequences,
	}
	if opts.Thinking && model.SupportsThinking {
		budget := opts.ThinkingBudget
		if budget <= 0 {
			budget = defaultThinkingBudget
		}
		cfg.ThinkingConfig = &thinkingConfig{ThinkingBudget: budget, IncludeThoughts: true}
	}
	if cfg.MaxOutputTokens == 0 && cfg.Temperature == 0 && cfg.TopP == 0 &&
		len(cfg.StopSequences) == 0 && cfg.ThinkingConfig == nil {
		return nil
	}
	return cfg
}

// convertMessages transforms the flat conversation into Gemini contents.
// The API has no call ids: function responses are matched by name, and runs
// of tool results collapse into one user content so parallel calls line up
// with their responses.
func convertMessages(msgs []ai.Message) []content {
	names := make(map[string]string)
	out := make([]content, 0, len(msgs))

	for i := 0; i < len(msgs); {
		switch msgs[i].Role {
		case ai.RoleTool:
			var parts []part
			for i < len(msgs) && msgs[i].Role == ai.RoleTool {
				parts = append(parts, part{FunctionResponse: &functionResponse{
					Name:     names[msgs[i].ToolCallID],
					Response: toolResponsePayload(msgs[i].Content),
				}})
				i++
			}
			out = append(out, content{Role: "user", Parts: parts})
		case ai.RoleAssistant:
			c := content{Role: "model"}
			if msgs[i].Content != "" {
				c.Parts = append(c.Parts, part{Text: msgs[i].Content})
			}
			for _, tc := range msgs[i].ToolCalls {
				names[tc.ID] = tc.Name
				args := tc.Args
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				c.Parts = append(c.Parts, part{FunctionCall: &functionCall{Name: tc.Name, Args: args}})
			}
			if len(c.Parts) > 0 {
				out = append(out, c)
			}
			i++
		default:
			c := content{Role: "user"}
			if msgs[i].Content != "" {
				c.Parts = append(c.Parts, part{Text: msgs[i].Content})
			}
			for _, att := range msgs[i].Attachments {
				if att.Kind != ai.AttachmentImage {
					continue
				}
				c.Parts = append(c.Parts, part{InlineData: &inlineData{
					MimeType: att.MediaType,
					Data:     att.Base64(),
				}})
			}
			if len(c.Parts) > 0 {
				out = append(out, c)
			}
			i++
		}
	}

	return out
}

// toolResponsePayload turns the result envelope back into an object; the API
// rejects bare strings in the response field.
func toolResponsePayload(envelope string) any {
	var obj map[string]any
	if json.Unmarshal([]byte(envelope), &obj) == nil {
		return obj
	}
	return map[string]any{"result": envelope}
}
