// ABOUTME: Tests for the Ollama provider: NDJSON streaming, tools, thinking
// ABOUTME: Uses httptest.NewServer to mock the native chat API

package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mauromedda/tandem/pkg/ai"
)

func ndjsonServer(t *testing.T, lines []string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamTextContent(t *testing.T) {
	t.Parallel()

	lines := []string{
		`{"model":"llama3.2","message":{"role":"assistant","content":"Hello"},"done":false}`,
		`{"model":"llama3.2","message":{"role":"assistant","content":" there"},"done":false}`,
		`{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":12,"eval_count":6}`,
	}

	srv := ndjsonServer(t, lines, func(r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if body["model"] != "llama3.2" {
			t.Errorf("model = %v", body["model"])
		}
		if body["stream"] != true {
			t.Error("stream not set")
		}
	})

	provider := New(Options{BaseURL: srv.URL})
	if provider.Vendor() != ai.VendorOllama {
		t.Errorf("Vendor() = %q", provider.Vendor())
	}

	stream := provider.Stream(context.Background(), ai.OllamaModel("llama3.2"), &ai.Request{
		Messages: []ai.Message{ai.NewUserMessage("Hi")},
	})

	var text strings.Builder
	var last ai.StreamEvent
	for ev := range stream.Events() {
		last = ev
		if ev.Type == ai.EventMessageDelta {
			text.WriteString(ev.Content)
		}
		if ev.Type == ai.EventError {
			t.Fatalf("unexpected error: %s", ev.Message)
		}
	}

	if last.Type != ai.EventDone || last.RequiresAction {
		t.Errorf("terminal = %+v", last)
	}

	result := stream.Result()
	if result == nil {
		t.Fatal("Result() returned nil")
	}
	if result.Message.Content != "Hello there" || text.String() != "Hello there" {
		t.Errorf("content = %q, deltas = %q", result.Message.Content, text.String())
	}
	if result.Usage.InputTokens != 12 || result.Usage.OutputTokens != 6 {
		t.Errorf("usage = %+v", result.Usage)
	}
	if result.Model != "llama3.2" {
		t.Errorf("model = %q", result.Model)
	}
}

func TestStreamToolCalls(t *testing.T) {
	t.Parallel()

	lines := []string{
		`{"model":"llama3.2","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_weather","arguments":{"city":"Oslo"}}}]},"done":false}`,
		`{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":20,"eval_count":9}`,
	}

	srv := ndjsonServer(t, lines, nil)
	provider := New(Options{BaseURL: srv.URL})

	stream := provider.Stream(context.Background(), ai.OllamaModel("llama3.2"), &ai.Request{
		Messages: []ai.Message{ai.NewUserMessage("Weather in Oslo?")},
		Tools:    []ai.ToolSchema{{Name: "get_weather", Description: "Get weather"}},
	})

	var calls []ai.ToolCall
	var requiresAction bool
	for ev := range stream.Events() {
		switch ev.Type {
		case ai.EventToolCalls:
			calls = ev.ToolCalls
		case ai.EventDone:
			requiresAction = ev.RequiresAction
		case ai.EventError:
			t.Fatalf("unexpected error: %s", ev.Message)
		}
	}

	if len(calls) != 1 || calls[0].Name != "get_weather" {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].ID == "" {
		t.Error("missing synthesized call id")
	}
	// Arguments are a JSON object on this wire; they pass through verbatim.
	var args map[string]string
	if err := json.Unmarshal(calls[0].Args, &args); err != nil || args["city"] != "Oslo" {
		t.Errorf("args = %s (err %v)", calls[0].Args, err)
	}
	if !requiresAction {
		t.Error("done must require action")
	}
	if stream.Result().StopReason != ai.StopToolUse {
		t.Errorf("StopReason = %q", stream.Result().StopReason)
	}
}

func TestStreamThinking(t *testing.T) {
	t.Parallel()

	lines := []string{
		`{"model":"qwen3","message":{"role":"assistant","content":"","thinking":"hmm, "},"done":false}`,
		`{"model":"qwen3","message":{"role":"assistant","content":"","thinking":"let me think"},"done":false}`,
		`{"model":"qwen3","message":{"role":"assistant","content":"Four."},"done":true,"done_reason":"stop"}`,
	}

	srv := ndjsonServer(t, lines, nil)
	provider := New(Options{BaseURL: srv.URL})

	model := ai.OllamaModel("qwen3")
	model.SupportsThinking = true

	stream := provider.Stream(context.Background(), model, &ai.Request{
		Messages: []ai.Message{ai.NewUserMessage("2+2?")},
		Options:  ai.RequestOptions{Thinking: true},
	})

	var thinking strings.Builder
	for ev := range stream.Events() {
		if ev.Type == ai.EventThinkingDelta {
			thinking.WriteString(ev.Content)
		}
	}

	if thinking.String() != "hmm, let me think" {
		t.Errorf("thinking = %q", thinking.String())
	}
	if got := stream.Result().Message.Thinking; got != "hmm, let me think" {
		t.Errorf("result thinking = %q", got)
	}
}

func TestStreamTruncated(t *testing.T) {
	t.Parallel()

	lines := []string{
		`{"model":"llama3.2","message":{"role":"assistant","content":"half"},"done":false}`,
	}

	srv := ndjsonServer(t, lines, nil)
	provider := New(Options{BaseURL: srv.URL})

	stream := provider.Stream(context.Background(), ai.OllamaModel("llama3.2"), &ai.Request{
		Messages: []ai.Message{ai.NewUserMessage("Hi")},
	})

	var last ai.StreamEvent
	for ev := range stream.Events() {
		last = ev
	}
	if last.Type != ai.EventError {
		t.Errorf("terminal = %+v, want error for truncated stream", last)
	}
}

func TestStreamModelMissing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nope\" not found, try pulling it first"}`))
	}))
	t.Cleanup(srv.Close)

	provider := New(Options{BaseURL: srv.URL})
	stream := provider.Stream(context.Background(), ai.OllamaModel("nope"), &ai.Request{
		Messages: []ai.Message{ai.NewUserMessage("Hi")},
	})

	var last ai.StreamEvent
	for ev := range stream.Events() {
		last = ev
	}
	if last.Type != ai.EventError || !strings.Contains(last.Message, "not found") {
		t.Errorf("terminal = %+v", last)
	}
}

func TestBuildRequestBody(t *testing.T) {
	t.Parallel()

	assistant := ai.NewAssistantMessage("")
	assistant.ToolCalls = []ai.ToolCall{
		{ID: "c1", Name: "get_weather", Args: json.RawMessage(`{"city":"Oslo"}`)},
	}
	result, err := ai.NewToolResultMessage("c1", "sunny")
	if err != nil {
		t.Fatal(err)
	}

	req := &ai.Request{
		System:   "Be brief.",
		Messages: []ai.Message{ai.NewUserMessage("Weather?"), assistant, result},
		Options:  ai.RequestOptions{MaxTokens: 256, Temperature: 0.5},
	}

	body := buildRequestBody(ai.OllamaModel("llama3.2"), req)

	if len(body.Messages) != 4 {
		t.Fatalf("messages = %+v", body.Messages)
	}
	if body.Messages[0].Role != "system" {
		t.Errorf("first role = %q", body.Messages[0].Role)
	}
	if body.Messages[2].ToolCalls[0].Function.Name != "get_weather" {
		t.Errorf("tool call = %+v", body.Messages[2].ToolCalls)
	}
	// Tool results resolve the function name from the originating call.
	if body.Messages[3].Role != "tool" || body.Messages[3].ToolName != "get_weather" {
		t.Errorf("tool message = %+v", body.Messages[3])
	}
	if body.Options["num_predict"] != 256 {
		t.Errorf("options = %v", body.Options)
	}
	if body.Think {
		t.Error("think set without model support")
	}
}
