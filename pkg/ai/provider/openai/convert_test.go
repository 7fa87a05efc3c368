// ABOUTME: Tests for Chat Completions request conversion
// ABOUTME: Covers role mapping, tool call replay, attachments and options

package openai

import (
	"encoding/json"
	"testing"

	"github.com/mauromedda/tandem/pkg/ai"
)

func TestConvertMessagesRoles(t *testing.T) {
	t.Parallel()

	req := &ai.Request{
		System: "Be helpful.",
		Messages: []ai.Message{
			ai.NewUserMessage("Hello"),
			ai.NewAssistantMessage("Hi there"),
		},
	}

	msgs := convertMessages(req)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	wantRoles := []string{"system", "user", "assistant"}
	for i, want := range wantRoles {
		if msgs[i].Role != want {
			t.Errorf("msgs[%d].Role = %q, want %q", i, msgs[i].Role, want)
		}
	}
}

func TestConvertMessagesToolRound(t *testing.T) {
	t.Parallel()

	assistant := ai.NewAssistantMessage("")
	assistant.ToolCalls = []ai.ToolCall{
		{ID: "call_1", Name: "read_file", Args: json.RawMessage(`{"path":"a.txt"}`)},
		{ID: "call_2", Name: "list_files"},
	}
	result, err := ai.NewToolResultMessage("call_1", "contents")
	if err != nil {
		t.Fatal(err)
	}

	msgs := convertMessages(&ai.Request{Messages: []ai.Message{assistant, result}})
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}

	if len(msgs[0].ToolCalls) != 2 {
		t.Fatalf("tool calls = %+v", msgs[0].ToolCalls)
	}
	if msgs[0].ToolCalls[0].Type != "function" {
		t.Errorf("type = %q", msgs[0].ToolCalls[0].Type)
	}
	if msgs[0].ToolCalls[0].Function.Arguments != `{"path":"a.txt"}` {
		t.Errorf("arguments = %q", msgs[0].ToolCalls[0].Function.Arguments)
	}
	// Argument-less replay still needs a JSON object.
	if msgs[0].ToolCalls[1].Function.Arguments != "{}" {
		t.Errorf("empty arguments = %q, want {}", msgs[0].ToolCalls[1].Function.Arguments)
	}

	if msgs[1].Role != "tool" || msgs[1].ToolCallID != "call_1" {
		t.Errorf("tool message = %+v", msgs[1])
	}
}

func TestUserContentWithImage(t *testing.T) {
	t.Parallel()

	m := ai.NewUserMessage("Describe this")
	m.Attachments = []ai.Attachment{
		{Kind: ai.AttachmentImage, MediaType: "image/png", Data: []byte{1, 2, 3}},
	}

	parts, ok := userContent(m).([]map[string]any)
	if !ok {
		t.Fatalf("content = %T, want part list", userContent(m))
	}
	if len(parts) != 2 {
		t.Fatalf("got %d parts", len(parts))
	}
	img := parts[1]["image_url"].(map[string]any)
	if img["url"] != "data:image/png;base64,AQID" {
		t.Errorf("url = %v", img["url"])
	}

	plain := ai.NewUserMessage("just text")
	if s, ok := userContent(plain).(string); !ok || s != "just text" {
		t.Errorf("text-only content = %v", userContent(plain))
	}
}

func TestBuildRequestBodyOptions(t *testing.T) {
	t.Parallel()

	req := &ai.Request{
		Messages: []ai.Message{ai.NewUserMessage("Hi")},
		Options: ai.RequestOptions{
			MaxTokens:     512,
			Temperature:   0.7,
			TopP:          0.95,
			StopSequences: []string{"STOP"},
		},
	}

	body := buildRequestBody(&ai.ModelGPT4o, "gpt-4o", req)
	if body["max_tokens"] != 512 || body["temperature"] != 0.7 || body["top_p"] != 0.95 {
		t.Errorf("options = %v", body)
	}
	if body["model"] != "gpt-4o" {
		t.Errorf("model = %v", body["model"])
	}

	empty := buildRequestBody(&ai.ModelGPT4o, "", req)
	if _, present := empty["model"]; present {
		t.Error("model field present with empty wire model")
	}
}

func TestBuildRequestBodyReasoningEffort(t *testing.T) {
	t.Parallel()

	req := &ai.Request{
		Messages: []ai.Message{ai.NewUserMessage("Hi")},
		Options:  ai.RequestOptions{Thinking: true},
	}

	// o-series models accept reasoning_effort; others must not see it.
	with := buildRequestBody(&ai.ModelO4Mini, ai.ModelO4Mini.ID, req)
	if with["reasoning_effort"] != "medium" {
		t.Errorf("reasoning_effort = %v", with["reasoning_effort"])
	}

	without := buildRequestBody(&ai.ModelGPT4o, "gpt-4o", req)
	if _, present := without["reasoning_effort"]; present {
		t.Error("reasoning_effort sent to a model without thinking support")
	}
}

func TestConvertTools(t *testing.T) {
	t.Parallel()

	defs := convertTools([]ai.ToolSchema{{
		Name:        "read_file",
		Description: "Read a file",
		InputSchema: json.RawMessage(`{"type":"object"}`),
	}})

	if len(defs) != 1 {
		t.Fatalf("got %d defs", len(defs))
	}
	if defs[0].Type != "function" || defs[0].Function.Name != "read_file" {
		t.Errorf("def = %+v", defs[0])
	}
}
