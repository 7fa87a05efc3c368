// ABOUTME: Tests for the hand-maintained streaming chunk decoder
// ABOUTME: Exercises null fields, unknown keys and nested function objects

package openai

import (
	"testing"
)

func TestDecodeChunkText(t *testing.T) {
	t.Parallel()

	data := `{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1730000000,"model":"gpt-4o-2024-08-06","choices":[{"index":0,"delta":{"role":"assistant","content":"Hi"},"logprobs":null,"finish_reason":null}]}`

	var chunk chatCompletionChunk
	if err := decodeChunk([]byte(data), &chunk); err != nil {
		t.Fatalf("decodeChunk: %v", err)
	}

	if chunk.ID != "chatcmpl-1" {
		t.Errorf("ID = %q", chunk.ID)
	}
	if chunk.Model != "gpt-4o-2024-08-06" {
		t.Errorf("Model = %q", chunk.Model)
	}
	if len(chunk.Choices) != 1 {
		t.Fatalf("choices = %+v", chunk.Choices)
	}
	c := chunk.Choices[0]
	if c.Delta.Role != "assistant" || c.Delta.Content != "Hi" {
		t.Errorf("delta = %+v", c.Delta)
	}
	// finish_reason:null must decode as empty, not an error.
	if c.FinishReason != "" {
		t.Errorf("FinishReason = %q", c.FinishReason)
	}
}

func TestDecodeChunkToolCall(t *testing.T) {
	t.Parallel()

	data := `{"id":"chatcmpl-2","choices":[{"index":0,"delta":{"content":null,"tool_calls":[{"index":1,"id":"call_9","type":"function","function":{"name":"get_weather","arguments":"{\"ci"}}]},"finish_reason":null}]}`

	var chunk chatCompletionChunk
	if err := decodeChunk([]byte(data), &chunk); err != nil {
		t.Fatalf("decodeChunk: %v", err)
	}

	tcs := chunk.Choices[0].Delta.ToolCalls
	if len(tcs) != 1 {
		t.Fatalf("tool calls = %+v", tcs)
	}
	tc := tcs[0]
	if tc.Index != 1 || tc.ID != "call_9" || tc.Name != "get_weather" {
		t.Errorf("tool call = %+v", tc)
	}
	if tc.Args != `{"ci` {
		t.Errorf("Args = %q", tc.Args)
	}
}

func TestDecodeChunkUsageOnly(t *testing.T) {
	t.Parallel()

	data := `{"id":"chatcmpl-3","choices":[],"usage":{"prompt_tokens":42,"completion_tokens":7,"total_tokens":49}}`

	var chunk chatCompletionChunk
	if err := decodeChunk([]byte(data), &chunk); err != nil {
		t.Fatalf("decodeChunk: %v", err)
	}

	if len(chunk.Choices) != 0 {
		t.Errorf("choices = %+v", chunk.Choices)
	}
	if chunk.Usage == nil || chunk.Usage.PromptTokens != 42 || chunk.Usage.CompletionTokens != 7 {
		t.Errorf("usage = %+v", chunk.Usage)
	}
}

func TestDecodeChunkReasoningKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"deepseek style", `{"id":"c","choices":[{"index":0,"delta":{"reasoning_content":"hmm"},"finish_reason":null}]}`},
		{"openrouter style", `{"id":"c","choices":[{"index":0,"delta":{"reasoning":"hmm"},"finish_reason":null}]}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var chunk chatCompletionChunk
			if err := decodeChunk([]byte(tt.data), &chunk); err != nil {
				t.Fatalf("decodeChunk: %v", err)
			}
			if chunk.Choices[0].Delta.Reasoning != "hmm" {
				t.Errorf("Reasoning = %q", chunk.Choices[0].Delta.Reasoning)
			}
		})
	}
}

func TestDecodeChunkMalformed(t *testing.T) {
	t.Parallel()

	var chunk chatCompletionChunk
	if err := decodeChunk([]byte(`{"id":`), &chunk); err == nil {
		t.Error("expected error for malformed chunk")
	}
}

func BenchmarkDecodeChunk(b *testing.B) {
	data := []byte(`{"id":"chatcmpl-1","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"token"},"finish_reason":null}]}`)
	for i := 0; i < b.N; i++ {
		var chunk chatCompletionChunk
		if err := decodeChunk(data, &chunk); err != nil {
			b.Fatal(err)
		}
	}
}
