// ABOUTME: Tests for the Anthropic provider: streaming, tool use, thinking, errors
// ABOUTME: Uses httptest.NewServer to mock the Messages API SSE responses

package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mauromedda/tandem/pkg/ai"
)

func sseServer(t *testing.T, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(stream *ai.EventStream) []ai.StreamEvent {
	var events []ai.StreamEvent
	for ev := range stream.Events() {
		events = append(events, ev)
	}
	return events
}

func TestStreamTextContent(t *testing.T) {
	t.Parallel()

	srv := sseServer(t, buildSSEText("Hello", ", world!"), func(r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("got api key %q, want %q", r.Header.Get("x-api-key"), "test-key")
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("got version %q", r.Header.Get("anthropic-version"))
		}
	})

	provider := New(Options{APIKey: "test-key", BaseURL: srv.URL})
	if provider.Vendor() != ai.VendorAnthropic {
		t.Errorf("got Vendor %q, want %q", provider.Vendor(), ai.VendorAnthropic)
	}

	req := &ai.Request{
		System:   "You are a helpful assistant.",
		Messages: []ai.Message{ai.NewUserMessage("Hi")},
		Options:  ai.RequestOptions{MaxTokens: 1024},
	}

	stream := provider.Stream(context.Background(), &ai.ModelClaudeSonnet, req)
	events := collect(stream)

	wantTypes := []ai.EventType{
		ai.EventMessageStart,
		ai.EventMessageDelta,
		ai.EventMessageDelta,
		ai.EventMessageEnd,
		ai.EventDone,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events %v, want %d", len(events), events, len(wantTypes))
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event[%d].Type = %q, want %q", i, events[i].Type, want)
		}
	}
	if events[0].MessageID != "msg_test" {
		t.Errorf("MessageID = %q, want msg_test", events[0].MessageID)
	}
	if events[len(events)-1].RequiresAction {
		t.Error("text-only turn must not require action")
	}

	// Delta concatenation equals the final content.
	var concat strings.Builder
	for _, ev := range events {
		if ev.Type == ai.EventMessageDelta {
			concat.WriteString(ev.Content)
		}
	}

	result := stream.Result()
	if result == nil {
		t.Fatal("Result() returned nil")
	}
	if result.Message.Content != concat.String() {
		t.Errorf("content %q != concatenated deltas %q", result.Message.Content, concat.String())
	}
	if result.Message.Content != "Hello, world!" {
		t.Errorf("content = %q", result.Message.Content)
	}
	if result.StopReason != ai.StopEndTurn {
		t.Errorf("StopReason = %q, want %q", result.StopReason, ai.StopEndTurn)
	}
	if result.Usage.InputTokens != 10 || result.Usage.OutputTokens != 5 {
		t.Errorf("usage = %+v", result.Usage)
	}
}

func TestStreamToolUseSplitArguments(t *testing.T) {
	t.Parallel()

	// Arguments arrive in three fragments; only the assembled object may
	// surface, in a single tool_calls event.
	srv := sseServer(t, buildSSEToolUse("tool_123", "get_weather",
		`{"ci`, `ty":"Par`, `is"}`), nil)

	provider := New(Options{APIKey: "k", BaseURL: srv.URL})
	req := &ai.Request{
		Messages: []ai.Message{ai.NewUserMessage("Weather in Paris?")},
		Tools:    []ai.ToolSchema{{Name: "get_weather", Description: "Get weather"}},
	}

	stream := provider.Stream(context.Background(), &ai.ModelClaudeSonnet, req)
	events := collect(stream)

	var toolEvents []ai.StreamEvent
	for _, ev := range events {
		if ev.Type == ai.EventToolCalls {
			toolEvents = append(toolEvents, ev)
		}
		if ev.Type == ai.EventError {
			t.Fatalf("unexpected error event: %s", ev.Message)
		}
	}

	if len(toolEvents) != 1 {
		t.Fatalf("got %d tool_calls events, want exactly 1", len(toolEvents))
	}
	calls := toolEvents[0].ToolCalls
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].ID != "tool_123" || calls[0].Name != "get_weather" {
		t.Errorf("call = %+v", calls[0])
	}

	var args map[string]string
	if err := json.Unmarshal(calls[0].Args, &args); err != nil {
		t.Fatalf("args not valid JSON: %v", err)
	}
	if args["city"] != "Paris" {
		t.Errorf("city = %q, want Paris", args["city"])
	}

	last := events[len(events)-1]
	if last.Type != ai.EventDone || !last.RequiresAction {
		t.Errorf("terminal = %+v, want done requiring action", last)
	}

	result := stream.Result()
	if result == nil {
		t.Fatal("Result() returned nil")
	}
	if result.StopReason != ai.StopToolUse {
		t.Errorf("StopReason = %q, want %q", result.StopReason, ai.StopToolUse)
	}
	if len(result.Message.ToolCalls) != 1 {
		t.Errorf("result calls = %+v", result.Message.ToolCalls)
	}
}

func TestStreamThinkingDeltas(t *testing.T) {
	t.Parallel()

	srv := sseServer(t, buildSSEThinking("Let me consider.", "Sure."), nil)

	provider := New(Options{APIKey: "k", BaseURL: srv.URL})
	req := &ai.Request{
		Messages: []ai.Message{ai.NewUserMessage("Hi")},
		Options:  ai.RequestOptions{Thinking: true},
	}

	stream := provider.Stream(context.Background(), &ai.ModelClaudeOpus, req)

	var thinking, text strings.Builder
	for ev := range stream.Events() {
		switch ev.Type {
		case ai.EventThinkingDelta:
			thinking.WriteString(ev.Content)
		case ai.EventMessageDelta:
			text.WriteString(ev.Content)
		case ai.EventError:
			t.Fatalf("unexpected error: %s", ev.Message)
		}
	}

	if thinking.String() != "Let me consider." {
		t.Errorf("thinking = %q", thinking.String())
	}
	if text.String() != "Sure." {
		t.Errorf("text = %q", text.String())
	}

	result := stream.Result()
	if result.Message.Thinking != "Let me consider." {
		t.Errorf("result thinking = %q", result.Message.Thinking)
	}
}

func TestStreamErrorResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "authentication_error", "message": "invalid x-api-key"},
		})
	}))
	t.Cleanup(srv.Close)

	provider := New(Options{APIKey: "bad-key", BaseURL: srv.URL})
	req := &ai.Request{Messages: []ai.Message{ai.NewUserMessage("Hi")}}

	stream := provider.Stream(context.Background(), &ai.ModelClaudeSonnet, req)

	var errEvent *ai.StreamEvent
	for ev := range stream.Events() {
		if ev.Type == ai.EventError {
			e := ev
			errEvent = &e
		}
	}

	if errEvent == nil {
		t.Fatal("expected error event for unauthorized response")
	}
	var pe *ai.ProviderError
	if !errors.As(errEvent.Err, &pe) {
		t.Fatalf("error event cause = %v, want ProviderError", errEvent.Err)
	}
	if pe.StatusCode != http.StatusUnauthorized || pe.Retryable {
		t.Errorf("ProviderError = %+v", pe)
	}

	if stream.Result() != nil {
		t.Error("expected nil result on error")
	}
}

func TestStreamInBandErrorKeepsPrefix(t *testing.T) {
	t.Parallel()

	body := buildSSEPrefix("partial answer") +
		"event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n"
	srv := sseServer(t, body, nil)

	provider := New(Options{APIKey: "k", BaseURL: srv.URL})
	stream := provider.Stream(context.Background(), &ai.ModelClaudeSonnet,
		&ai.Request{Messages: []ai.Message{ai.NewUserMessage("Hi")}})

	events := collect(stream)

	var sawDelta bool
	last := events[len(events)-1]
	for _, ev := range events {
		if ev.Type == ai.EventMessageDelta && ev.Content == "partial answer" {
			sawDelta = true
		}
	}
	if !sawDelta {
		t.Error("streamed prefix lost on mid-stream error")
	}
	if last.Type != ai.EventError || !strings.Contains(last.Message, "Overloaded") {
		t.Errorf("terminal = %+v, want overloaded error", last)
	}
}

func TestStreamTruncatedStream(t *testing.T) {
	t.Parallel()

	// Cut off after a delta, before message_stop.
	srv := sseServer(t, buildSSEPrefix("half"), nil)

	provider := New(Options{APIKey: "k", BaseURL: srv.URL})
	stream := provider.Stream(context.Background(), &ai.ModelClaudeSonnet,
		&ai.Request{Messages: []ai.Message{ai.NewUserMessage("Hi")}})

	events := collect(stream)
	last := events[len(events)-1]
	if last.Type != ai.EventError {
		t.Errorf("terminal = %+v, want error for truncated stream", last)
	}
}

func TestStreamMalformedToolArguments(t *testing.T) {
	t.Parallel()

	// "}{" cannot be salvaged into an object.
	srv := sseServer(t, buildSSEToolUse("tool_1", "broken", `}{`), nil)

	provider := New(Options{APIKey: "k", BaseURL: srv.URL})
	stream := provider.Stream(context.Background(), &ai.ModelClaudeSonnet,
		&ai.Request{Messages: []ai.Message{ai.NewUserMessage("Hi")}})

	events := collect(stream)
	last := events[len(events)-1]
	if last.Type != ai.EventError || !strings.Contains(last.Message, "malformed arguments") {
		t.Errorf("terminal = %+v, want malformed arguments error", last)
	}
}

// buildSSEPrefix emits message_start, a text block and one delta without
// closing the message.
func buildSSEPrefix(text string) string {
	return fmt.Sprintf(`event: message_start
data: {"type":"message_start","message":{"id":"msg_test","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-6","stop_reason":null,"usage":{"input_tokens":10,"output_tokens":0}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}

`, text)
}

func buildSSEClose(stopReason string) string {
	return fmt.Sprintf(`event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":%q},"usage":{"output_tokens":5}}

event: message_stop
data: {"type":"message_stop"}

`, stopReason)
}

// buildSSEText constructs a full Messages API text response with one delta
// per chunk.
func buildSSEText(chunks ...string) string {
	var sb strings.Builder
	sb.WriteString(buildSSEPrefix(chunks[0]))
	for _, c := range chunks[1:] {
		fmt.Fprintf(&sb, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":%q}}\n\n", c)
	}
	sb.WriteString("event: ping\ndata: {\"type\":\"ping\"}\n\n")
	sb.WriteString(buildSSEClose("end_turn"))
	return sb.String()
}

// buildSSEToolUse constructs a tool_use response with the argument JSON
// split across the given fragments.
func buildSSEToolUse(id, name string, fragments ...string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `event: message_start
data: {"type":"message_start","message":{"id":"msg_tool","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-6","stop_reason":null,"usage":{"input_tokens":20,"output_tokens":0}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":%q,"name":%q}}

`, id, name)
	for _, frag := range fragments {
		fmt.Fprintf(&sb, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":%q}}\n\n", frag)
	}
	sb.WriteString(buildSSEClose("tool_use"))
	return sb.String()
}

// buildSSEThinking emits a thinking block followed by a text block.
func buildSSEThinking(thinking, text string) string {
	return fmt.Sprintf(`event: message_start
data: {"type":"message_start","message":{"id":"msg_think","type":"message","role":"assistant","content":[],"model":"claude-opus-4-6","stop_reason":null,"usage":{"input_tokens":10,"output_tokens":0}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"thinking"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":%q}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: content_block_start
data: {"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":%q}}

event: content_block_stop
data: {"type":"content_block_stop","index":1}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":8}}

event: message_stop
data: {"type":"message_stop"}

`, thinking, text)
}
