// ABOUTME: SSE chunk types for Chat Completions streaming responses
// ABOUTME: Decoded by the hand-maintained jlexer decoder in decode.go

package openai

// chatCompletionChunk is the top-level SSE chunk for streaming responses.
// With stream_options.include_usage the final chunk carries usage and an
// empty choices list.
type chatCompletionChunk struct {
	ID      string
	Model   string
	Choices []chunkChoice
	Usage   *chunkUsage
}

type chunkChoice struct {
	Index        int
	Delta        chunkDelta
	FinishReason string
}

// chunkDelta carries the incremental message fragment. Reasoning arrives
// under different keys depending on the upstream: "reasoning_content"
// (DeepSeek-style) or "reasoning" (OpenRouter); both normalize to the same
// thinking channel.
type chunkDelta struct {
	Role      string
	Content   string
	Reasoning string
	ToolCalls []toolCallDelta
}

type toolCallDelta struct {
	Index    int
	ID       string
	Name     string
	Args     string
}

type chunkUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
