// ABOUTME: Anthropic Messages API streaming provider implementation
// ABOUTME: Normalizes SSE frames into unified events; accumulates tool arguments

package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mauromedda/tandem/internal/log"
	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/ai/internal/httputil"
	"github.com/mauromedda/tandem/pkg/ai/internal/sse"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	messagesPath     = "/v1/messages"
	streamBufferSize = 64
)

// Options configures the provider. Credentials are always passed explicitly;
// the adapter never consults the environment.
type Options struct {
	APIKey  string
	BaseURL string
}

// Provider implements ai.Provider for the Anthropic Messages API.
type Provider struct {
	client *httputil.Client
}

// New creates an Anthropic provider.
func New(opts Options) *Provider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = httputil.NormalizeBaseURL(baseURL)

	headers := map[string]string{
		"x-api-key":         opts.APIKey,
		"anthropic-version": anthropicVersion,
		"content-type":      "application/json",
	}

	return &Provider{
		client: httputil.NewClient(baseURL, headers),
	}
}

// Vendor returns the Anthropic vendor identifier.
func (p *Provider) Vendor() ai.Vendor {
	return ai.VendorAnthropic
}

// Stream initiates a streaming call to the Anthropic Messages API.
func (p *Provider) Stream(ctx context.Context, model *ai.Model, req *ai.Request) *ai.EventStream {
	stream := ai.NewEventStream(streamBufferSize)

	go p.runStream(ctx, stream, model, req)

	return stream
}

// runStream performs the HTTP request and processes SSE events in a goroutine.
func (p *Provider) runStream(ctx context.Context, stream *ai.EventStream, model *ai.Model, req *ai.Request) {
	body := buildRequestBody(model, req)

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		stream.FinishWithError(fmt.Errorf("failed to marshal request body: %w", err))
		return
	}

	log.Debug("anthropic: POST %s model=%s messages=%d tools=%d",
		messagesPath, model.ID, len(req.Messages), len(req.Tools))

	reader, resp, err := p.client.StreamSSE(ctx, http.MethodPost, messagesPath, bytes.NewReader(bodyJSON))
	if err != nil {
		stream.FinishWithError(fmt.Errorf("failed to start SSE stream: %w", err))
		return
	}
	defer resp.Body.Close()
	defer reader.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		stream.FinishWithError(ai.ErrorFromStatus(ai.VendorAnthropic, resp.StatusCode, string(body)))
		return
	}

	processEvents(stream, reader)
}

// processEvents reads SSE events and dispatches them until the terminal
// message_stop or a failure. EOF before message_stop is a truncated stream.
func processEvents(stream *ai.EventStream, reader *sse.Reader) {
	acc := newAccumulator()

	for {
		ev, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			stream.FinishWithError(fmt.Errorf("SSE read error: %w", err))
			return
		}

		if !dispatchEvent(stream, acc, ev) {
			return
		}
	}

	stream.FinishWithError(fmt.Errorf("stream ended before message_stop: %w", io.ErrUnexpectedEOF))
}

// dispatchEvent routes a single SSE event. Returns false when the stream is
// finished, successfully or not.
func dispatchEvent(stream *ai.EventStream, acc *accumulator, ev *sse.Event) bool {
	switch ev.Type {
	case "message_start":
		handleMessageStart(stream, acc, ev)
		return true
	case "content_block_start":
		handleContentBlockStart(acc, ev)
		return true
	case "content_block_delta":
		handleContentBlockDelta(stream, acc, ev)
		return true
	case "content_block_stop":
		if err := acc.finishBlock(); err != nil {
			stream.FinishWithError(err)
			return false
		}
		return true
	case "message_delta":
		handleMessageDelta(acc, ev)
		return true
	case "message_stop":
		finishTurn(stream, acc)
		return false
	case "ping":
		return true
	case "error":
		handleSSEError(stream, ev)
		return false
	default:
		// Unknown event types are forward compatibility, not failures.
		return true
	}
}

// handleMessageStart captures identity and usage and opens the message.
func handleMessageStart(stream *ai.EventStream, acc *accumulator, ev *sse.Event) {
	var payload messageStartPayload
	if json.Unmarshal([]byte(ev.Data), &payload) != nil {
		return
	}
	acc.messageID = payload.Message.ID
	acc.model = payload.Message.Model
	acc.usage = payload.Message.Usage
	stream.Send(ai.MessageStartEvent(payload.Message.ID))
}

// handleContentBlockStart begins a new content block in the accumulator.
// No unified event: tool calls surface once, complete, at message_stop.
func handleContentBlockStart(acc *accumulator, ev *sse.Event) {
	var payload contentBlockStartPayload
	if json.Unmarshal([]byte(ev.Data), &payload) != nil {
		return
	}
	acc.startBlock(payload.ContentBlock.Type, payload.ContentBlock.ID, payload.ContentBlock.Name)
}

// handleContentBlockDelta forwards text and thinking immediately; tool input
// fragments stay in the accumulator.
func handleContentBlockDelta(stream *ai.EventStream, acc *accumulator, ev *sse.Event) {
	var payload contentBlockDeltaPayload
	if json.Unmarshal([]byte(ev.Data), &payload) != nil {
		return
	}

	switch payload.Delta.Type {
	case "text_delta":
		acc.appendText(payload.Delta.Text)
		stream.Send(ai.MessageDeltaEvent(payload.Delta.Text))
	case "thinking_delta":
		acc.appendThinking(payload.Delta.Thinking)
		stream.Send(ai.ThinkingDeltaEvent(payload.Delta.Thinking))
	case "input_json_delta":
		acc.appendArgs(payload.Delta.PartialJSON)
	}
}

// handleMessageDelta records message-level updates (stop_reason, usage).
func handleMessageDelta(acc *accumulator, ev *sse.Event) {
	var payload messageDeltaPayload
	if json.Unmarshal([]byte(ev.Data), &payload) != nil {
		return
	}
	acc.stopReason = mapStopReason(payload.Delta.StopReason)
	if payload.Usage.OutputTokens > 0 {
		acc.usage.OutputTokens = payload.Usage.OutputTokens
	}
}

// finishTurn emits the trailing protocol events and completes the stream.
func finishTurn(stream *ai.EventStream, acc *accumulator) {
	turn := acc.buildTurn()

	if len(turn.Message.ToolCalls) > 0 {
		stream.Send(ai.ToolCallsEvent(turn.Message.ToolCalls))
	}
	stream.Send(ai.MessageEndEvent())
	stream.Send(ai.DoneEvent(len(turn.Message.ToolCalls) > 0))
	stream.Finish(turn)
}

// handleSSEError processes an in-stream error event from the API.
func handleSSEError(stream *ai.EventStream, ev *sse.Event) {
	var payload sseErrorPayload
	msg := ev.Data
	if json.Unmarshal([]byte(ev.Data), &payload) == nil && payload.Error.Message != "" {
		msg = payload.Error.Message
	}

	stream.FinishWithError(fmt.Errorf("anthropic stream error: %s", msg))
}

// mapStopReason converts wire stop reasons to the canonical set.
func mapStopReason(wire string) ai.StopReason {
	switch wire {
	case "end_turn", "stop_sequence":
		return ai.StopEndTurn
	case "max_tokens":
		return ai.StopMaxTokens
	case "tool_use":
		return ai.StopToolUse
	default:
		return ai.StopReason(wire)
	}
}
