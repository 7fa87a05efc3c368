// ABOUTME: Hand-maintained jlexer decoder for streaming chunks
// ABOUTME: Avoids encoding/json reflection on the per-token hot path

package openai

import (
	"github.com/mailru/easyjson/jlexer"
)

// decodeChunk parses one SSE data payload. Unknown keys are skipped so new
// upstream fields never break the stream.
func decodeChunk(data []byte, out *chatCompletionChunk) error {
	in := jlexer.Lexer{Data: data}
	decodeChatCompletionChunk(&in, out)
	in.Consumed()
	return in.Error()
}

func decodeChatCompletionChunk(in *jlexer.Lexer, out *chatCompletionChunk) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "id":
			out.ID = in.String()
		case "model":
			out.Model = in.String()
		case "choices":
			in.Delim('[')
			out.Choices = out.Choices[:0]
			for !in.IsDelim(']') {
				var c chunkChoice
				decodeChunkChoice(in, &c)
				out.Choices = append(out.Choices, c)
				in.WantComma()
			}
			in.Delim(']')
		case "usage":
			out.Usage = new(chunkUsage)
			decodeChunkUsage(in, out.Usage)
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

func decodeChunkChoice(in *jlexer.Lexer, out *chunkChoice) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "index":
			out.Index = in.Int()
		case "delta":
			decodeChunkDelta(in, &out.Delta)
		case "finish_reason":
			out.FinishReason = in.String()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

func decodeChunkDelta(in *jlexer.Lexer, out *chunkDelta) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "role":
			out.Role = in.String()
		case "content":
			out.Content = in.String()
		case "reasoning_content", "reasoning":
			out.Reasoning = in.String()
		case "tool_calls":
			in.Delim('[')
			out.ToolCalls = out.ToolCalls[:0]
			for !in.IsDelim(']') {
				var tc toolCallDelta
				decodeToolCallDelta(in, &tc)
				out.ToolCalls = append(out.ToolCalls, tc)
				in.WantComma()
			}
			in.Delim(']')
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

func decodeToolCallDelta(in *jlexer.Lexer, out *toolCallDelta) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "index":
			out.Index = in.Int()
		case "id":
			out.ID = in.String()
		case "function":
			decodeToolCallFunction(in, out)
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

// decodeToolCallFunction flattens the nested function object into the delta.
func decodeToolCallFunction(in *jlexer.Lexer, out *toolCallDelta) {
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "name":
			out.Name = in.String()
		case "arguments":
			out.Args = in.String()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

func decodeChunkUsage(in *jlexer.Lexer, out *chunkUsage) {
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "prompt_tokens":
			out.PromptTokens = in.Int()
		case "completion_tokens":
			out.CompletionTokens = in.Int()
		case "total_tokens":
			out.TotalTokens = in.Int()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}
