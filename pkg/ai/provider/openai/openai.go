// ABOUTME: Chat Completions streaming provider and the compat engine behind it
// ABOUTME: Azure, OpenRouter and xAI reuse the engine with endpoint overrides

package openai

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
	defaultBaseURL      = "https://api.openai.com"
	chatCompletionsPath = "/v1/chat/completions"
	streamBufferSize    = 64
	doneSentinel        = "[DONE]"
)

// Options configures the stock OpenAI provider. Credentials are always
// passed explicitly; the adapter never consults the environment.
type Options struct {
	APIKey  string
	BaseURL string
}

// Config is the compat surface: everything an OpenAI-compatible endpoint may
// legitimately vary. The sibling azure, openrouter and xai packages are thin
// configurations of this engine.
type Config struct {
	Vendor  ai.Vendor
	BaseURL string
	Headers map[string]string

	// EndpointPath returns the request path for a model. Nil means the
	// standard /v1/chat/completions.
	EndpointPath func(m *ai.Model) string

	// WireModel returns the model identifier for the request body. Nil means
	// the canonical model ID; an empty return omits the field, for endpoints
	// that encode the model in the path instead.
	WireModel func(m *ai.Model) string
}

// Provider implements ai.Provider for Chat Completions endpoints.
type Provider struct {
	vendor       ai.Vendor
	client       *httputil.Client
	endpointPath func(m *ai.Model) string
	wireModel    func(m *ai.Model) string
}

// New creates the stock OpenAI provider.
func New(opts Options) *Provider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return NewCompat(Config{
		Vendor:  ai.VendorOpenAI,
		BaseURL: baseURL,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + opts.APIKey,
		},
	})
}

// NewCompat creates a provider for any OpenAI-compatible endpoint.
func NewCompat(cfg Config) *Provider {
	path := cfg.EndpointPath
	if path == nil {
		path = func(*ai.Model) string { return chatCompletionsPath }
	}
	wire := cfg.WireModel
	if wire == nil {
		wire = func(m *ai.Model) string { return m.ID }
	}

	return &Provider{
		vendor:       cfg.Vendor,
		client:       httputil.NewClient(httputil.NormalizeBaseURL(cfg.BaseURL), cfg.Headers),
		endpointPath: path,
		wireModel:    wire,
	}
}

// Vendor returns the configured vendor identifier.
func (p *Provider) Vendor() ai.Vendor {
	return p.vendor
}

// Stream initiates a streaming chat completion.
func (p *Provider) Stream(ctx context.Context, model *ai.Model, req *ai.Request) *ai.EventStream {
	stream := ai.NewEventStream(streamBufferSize)

	go p.runStream(ctx, stream, model, req)

	return stream
}

func (p *Provider) runStream(ctx context.Context, stream *ai.EventStream, model *ai.Model, req *ai.Request) {
	body := buildRequestBody(model, p.wireModel(model), req)

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		stream.FinishWithError(fmt.Errorf("failed to marshal request body: %w", err))
		return
	}

	path := p.endpointPath(model)
	log.Debug("%s: POST %s model=%s messages=%d tools=%d",
		p.vendor, path, model.ID, len(req.Messages), len(req.Tools))

	reader, resp, err := p.client.StreamSSE(ctx, http.MethodPost, path, bytes.NewReader(bodyJSON))
	if err != nil {
		stream.FinishWithError(fmt.Errorf("failed to start SSE stream: %w", err))
		return
	}
	defer resp.Body.Close()
	defer reader.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		stream.FinishWithError(ai.ErrorFromStatus(p.vendor, resp.StatusCode, string(body)))
		return
	}

	p.processEvents(stream, reader, model)
}

// processEvents reads SSE chunks until the [DONE] sentinel. EOF before the
// sentinel is a truncated stream.
func (p *Provider) processEvents(stream *ai.EventStream, reader *sse.Reader, model *ai.Model) {
	acc := newAccumulator()

	for {
		ev, err := reader.Next()
		if err == io.EOF {
			stream.FinishWithError(fmt.Errorf("stream ended before %s: %w", doneSentinel, io.ErrUnexpectedEOF))
			return
		}
		if err != nil {
			stream.FinishWithError(fmt.Errorf("reading stream: %w", err))
			return
		}
		if ev.Data == doneSentinel {
			p.finishTurn(stream, acc, model)
			return
		}

		var chunk chatCompletionChunk
		if err := decodeChunk([]byte(ev.Data), &chunk); err != nil {
			log.Debug("%s: skipping undecodable chunk: %v", p.vendor, err)
			continue
		}

		p.applyChunk(stream, acc, &chunk)
	}
}

// applyChunk folds one chunk into the accumulator, forwarding text and
// thinking deltas as they arrive. Tool fragments stay private until complete.
func (p *Provider) applyChunk(stream *ai.EventStream, acc *accumulator, chunk *chatCompletionChunk) {
	if acc.messageID == "" && chunk.ID != "" {
		acc.messageID = chunk.ID
		stream.Send(ai.MessageStartEvent(chunk.ID))
	}
	if chunk.Model != "" {
		acc.model = chunk.Model
	}

	for _, choice := range chunk.Choices {
		if choice.Delta.Content != "" {
			acc.content.WriteString(choice.Delta.Content)
			stream.Send(ai.MessageDeltaEvent(choice.Delta.Content))
		}
		if choice.Delta.Reasoning != "" {
			acc.thinking.WriteString(choice.Delta.Reasoning)
			stream.Send(ai.ThinkingDeltaEvent(choice.Delta.Reasoning))
		}
		for _, tc := range choice.Delta.ToolCalls {
			acc.applyToolDelta(tc)
		}
		if choice.FinishReason != "" {
			acc.finish = choice.FinishReason
		}
	}

	// Usage arrives in a trailing chunk with no choices when
	// stream_options.include_usage is set.
	if chunk.Usage != nil {
		acc.usage = ai.Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
		}
	}
}

// finishTurn emits the terminal event sequence and resolves the stream.
func (p *Provider) finishTurn(stream *ai.EventStream, acc *accumulator, model *ai.Model) {
	calls, err := acc.finalizeCalls()
	if err != nil {
		stream.FinishWithError(err)
		return
	}

	turn := acc.buildTurn(calls, model.ID)
	if len(calls) > 0 {
		stream.Send(ai.ToolCallsEvent(calls))
	}
	stream.Send(ai.MessageEndEvent())
	stream.Send(ai.DoneEvent(len(calls) > 0))
	stream.Finish(turn)
}
