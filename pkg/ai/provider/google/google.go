// ABOUTME: Gemini streaming provider over generateContent with SSE framing
// ABOUTME: Synthesizes tool call ids; thought parts map to the thinking channel

package google

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
	"github.com/mauromedda/tandem/pkg/ai/internal/sse"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com"
	streamBufferSize      = 64
	defaultThinkingBudget = 4096
)

// Options configures the provider. Credentials are always passed explicitly;
// the adapter never consults the environment.
type Options struct {
	APIKey  string
	BaseURL string
}

// Provider implements ai.Provider for the Gemini API.
type Provider struct {
	client *httputil.Client
}

// New creates a Gemini provider.
func New(opts Options) *Provider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	headers := map[string]string{
		"Content-Type":   "application/json",
		"x-goog-api-key": opts.APIKey,
	}

	return &Provider{
		client: httputil.NewClient(httputil.NormalizeBaseURL(baseURL), headers),
	}
}

// Vendor returns the Google vendor identifier.
func (p *Provider) Vendor() ai.Vendor {
	return ai.VendorGoogle
}

// Stream initiates a streaming generateContent call.
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

	path := fmt.Sprintf("/v1beta/models/%s:streamGenerateContent?alt=sse", model.ID)
	log.Debug("google: POST %s messages=%d tools=%d", path, len(req.Messages), len(req.Tools))

	reader, resp, err := p.client.StreamSSE(ctx, http.MethodPost, path, bytes.NewReader(bodyJSON))
	if err != nil {
		stream.FinishWithError(fmt.Errorf("failed to start SSE stream: %w", err))
		return
	}
	defer resp.Body.Close()
	defer reader.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		stream.FinishWithError(ai.ErrorFromStatus(ai.VendorGoogle, resp.StatusCode, string(body)))
		return
	}

	p.processEvents(stream, reader, model)
}

// geminiState accumulates the streamed candidate into a final turn.
type geminiState struct {
	messageID string
	finish    string
	usage     ai.Usage
	text      strings.Builder
	thinking  strings.Builder
	calls     []ai.ToolCall
}

// processEvents reads SSE chunks until EOF. The API has no end sentinel;
// EOF without a finish reason means the stream was cut short.
func (p *Provider) processEvents(stream *ai.EventStream, reader *sse.Reader, model *ai.Model) {
	state := &geminiState{}

	for {
		ev, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			stream.FinishWithError(fmt.Errorf("reading stream: %w", err))
			return
		}

		var chunk generateResponse
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			log.Debug("google: skipping undecodable chunk: %v", err)
			continue
		}

		applyChunk(stream, state, &chunk)
	}

	if state.finish == "" {
		stream.FinishWithError(fmt.Errorf("stream ended without finish reason: %w", io.ErrUnexpectedEOF))
		return
	}

	finishTurn(stream, state, model)
}

// applyChunk folds one response chunk into the state, forwarding text and
// thought deltas. Function calls arrive complete; ids are synthesized because
// the API has none.
func applyChunk(stream *ai.EventStream, state *geminiState, chunk *generateResponse) {
	if state.messageID == "" {
		state.messageID = uuid.NewString()
		stream.Send(ai.MessageStartEvent(state.messageID))
	}

	for _, cand := range chunk.Candidates {
		for _, pt := range cand.Content.Parts {
			switch {
			case pt.FunctionCall != nil:
				args := pt.FunctionCall.Args
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				state.calls = append(state.calls, ai.ToolCall{
					ID:   uuid.NewString(),
					Name: pt.FunctionCall.Name,
					Args: args,
				})
			case pt.Thought && pt.Text != "":
				state.thinking.WriteString(pt.Text)
				stream.Send(ai.ThinkingDeltaEvent(pt.Text))
			case pt.Text != "":
				state.text.WriteString(pt.Text)
				stream.Send(ai.MessageDeltaEvent(pt.Text))
			}
		}
		if cand.FinishReason != "" {
			state.finish = cand.FinishReason
		}
	}

	if chunk.UsageMetadata != nil {
		state.usage = ai.Usage{
			InputTokens:  chunk.UsageMetadata.PromptTokenCount,
			OutputTokens: chunk.UsageMetadata.CandidatesTokenCount + chunk.UsageMetadata.ThoughtsTokenCount,
		}
	}
}

// finishTurn emits the terminal event sequence and resolves the stream.
func finishTurn(stream *ai.EventStream, state *geminiState, model *ai.Model) {
	turn := &ai.AssistantTurn{
		Message: ai.Message{
			ID:        state.messageID,
			Role:      ai.RoleAssistant,
			Content:   state.text.String(),
			Thinking:  state.thinking.String(),
			ToolCalls: state.calls,
			CreatedAt: time.Now().UTC(),
		},
		StopReason: mapFinishReason(state.finish, len(state.calls) > 0),
		Usage:      state.usage,
		Model:      model.ID,
	}

	if len(state.calls) > 0 {
		stream.Send(ai.ToolCallsEvent(state.calls))
	}
	stream.Send(ai.MessageEndEvent())
	stream.Send(ai.DoneEvent(len(state.calls) > 0))
	stream.Finish(turn)
}

// mapFinishReason maps Gemini finish reasons. STOP covers function calls
// too, so tool use is inferred from the calls themselves; safety and
// recitation truncate the turn.
func mapFinishReason(reason string, hasCalls bool) ai.StopReason {
	switch reason {
	case "MAX_TOKENS":
		return ai.StopMaxTokens
	default:
		if hasCalls {
			return ai.StopToolUse
		}
		return ai.StopEndTurn
	}
}
