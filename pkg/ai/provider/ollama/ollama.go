// ABOUTME: Ollama streaming provider over the native chat API with NDJSON framing
// ABOUTME: The done line is the terminal marker and carries the token counters

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mauromedda/tandem/internal/log"
	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/ai/internal/httputil"
	"github.com/mauromedda/tandem/pkg/ai/internal/ndjson"
)

const (
	defaultBaseURL   = "http://localhost:11434"
	chatPath         = "/api/chat"
	streamBufferSize = 64
)

// Options configures the provider. A local daemon needs no credentials.
type Options struct {
	BaseURL string
}

// Provider implements ai.Provider for a local Ollama daemon.
type Provider struct {
	client *httputil.Client
}

// New creates an Ollama provider.
func New(opts Options) *Provider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	headers := map[string]string{
		"Content-Type": "application/json",
	}

	return &Provider{
		client: httputil.NewClient(httputil.NormalizeBaseURL(baseURL), headers),
	}
}

// Vendor returns the Ollama vendor identifier.
func (p *Provider) Vendor() ai.Vendor {
	return ai.VendorOllama
}

// Stream initiates a streaming chat call.
func (p *Provider) Stream(ctx context.Context, model *ai.Model, req *ai.Request) *ai.EventStream {
	stream := ai.NewEventStream(streamBufferSize)

	go p.runStream(ctx, stream, model, req)

	return stream
}

func (p *Provider) runStream(ctx context.Context, stream *ai.EventStream, model *ai.Model, req *ai.Request) {
	body := buildRequestBody(model, req)

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		stream.FinishWithError(fmt.Errorf("failed to marshal request body: %w", err))
		return
	}

	log.Debug("ollama: POST %s model=%s messages=%d tools=%d",
		chatPath, model.ID, len(req.Messages), len(req.Tools))

	reader, resp, err := p.client.StreamNDJSON(ctx, http.MethodPost, chatPath, bytes.NewReader(bodyJSON))
	if err != nil {
		stream.FinishWithError(fmt.Errorf("failed to start stream: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		stream.FinishWithError(ai.ErrorFromStatus(ai.VendorOllama, resp.StatusCode, string(body)))
		return
	}

	processLines(stream, reader, model)
}

// chatState accumulates streamed lines into a final turn.
type chatState struct {
	messageID string
	model     string
	text      strings.Builder
	thinking  strings.Builder
	calls     []ai.ToolCall
}

// processLines reads NDJSON lines until the done line. EOF before it is a
// truncated stream.
func processLines(stream *ai.EventStream, reader *ndjson.Reader, model *ai.Model) {
	state := &chatState{}

	for {
		line, err := reader.Next()
		if err == io.EOF {
			stream.FinishWithError(fmt.Errorf("stream ended before done: %w", io.ErrUnexpectedEOF))
			return
		}
		if err != nil {
			stream.FinishWithError(fmt.Errorf("reading stream: %w", err))
			return
		}

		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			log.Debug("ollama: skipping undecodable line: %v", err)
			continue
		}

		applyLine(stream, state, &chunk)

		if chunk.Done {
			finishTurn(stream, state, &chunk, model)
			return
		}
	}
}

func applyLine(stream *ai.EventStream, state *chatState, chunk *chatResponse) {
	if state.messageID == "" {
		state.messageID = uuid.NewString()
		stream.Send(ai.MessageStartEvent(state.messageID))
	}
	if chunk.Model != "" {
		state.model = chunk.Model
	}

	if chunk.Message.Thinking != "" {
		state.thinking.WriteString(chunk.Message.Thinking)
		stream.Send(ai.ThinkingDeltaEvent(chunk.Message.Thinking))
	}
	if chunk.Message.Content != "" {
		state.text.WriteString(chunk.Message.Content)
		stream.Send(ai.MessageDeltaEvent(chunk.Message.Content))
	}

	// Tool calls arrive whole on this wire; ids are synthesized because the
	// API has none.
	for _, tc := range chunk.Message.ToolCalls {
		args := tc.Function.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		state.calls = append(state.calls, ai.ToolCall{
			ID:   uuid.NewString(),
			Name: tc.Function.Name,
			Args: args,
		})
	}
}

func finishTurn(stream *ai.EventStream, state *chatState, final *chatResponse, model *ai.Model) {
	modelID := state.model
	if modelID == "" {
		modelID = model.ID
	}

	turn := &ai.AssistantTurn{
		Message: ai.Message{
			ID:        state.messageID,
			Role:      ai.RoleAssistant,
			Content:   state.text.String(),
			Thinking:  state.thinking.String(),
			ToolCalls: state.calls,
			CreatedAt: time.Now().UTC(),
		},
		StopReason: mapDoneReason(final.DoneReason, len(state.calls) > 0),
		Usage: ai.Usage{
			InputTokens:  final.PromptEvalCount,
			OutputTokens: final.EvalCount,
		},
		Model: modelID,
	}

	if len(state.calls) > 0 {
		stream.Send(ai.ToolCallsEvent(state.calls))
	}
	stream.Send(ai.MessageEndEvent())
	stream.Send(ai.DoneEvent(len(state.calls) > 0))
	stream.Finish(turn)
}

// mapDoneReason maps the done_reason field; stop with pending calls means
// tool use on this wire.
func mapDoneReason(reason string, hasCalls bool) ai.StopReason {
	switch reason {
	case "length":
		return ai.StopMaxTokens
	default:
		if hasCalls {
			return ai.StopToolUse
		}
		return ai.StopEndTurn
	}
}
