// ABOUTME: Bounded agent loop: stream a turn, execute tool calls, resubmit
// ABOUTME: Server tools run in-loop; client tools pause the loop via requiresAction

package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mauromedda/tandem/internal/log"
	"github.com/mauromedda/tandem/pkg/ai"
)

// DefaultMaxIterations bounds the loop when Options leaves it unset. One
// iteration is one model round-trip whose tool calls were answered
// server-side.
const DefaultMaxIterations = 10

// streamBufferSize is the event buffer for the run-level stream.
const streamBufferSize = 64

// BatchPolicy decides what happens when one tool_calls batch mixes
// server- and client-located tools.
type BatchPolicy int

const (
	// ServerFirst executes the server portion of the batch, then pauses
	// with the client calls outstanding.
	ServerFirst BatchPolicy = iota
	// DeferAll executes nothing; the whole batch rides to the client.
	DeferAll
)

// Options configures a Runtime.
type Options struct {
	Tools         []*ToolDefinition
	System        string
	MaxIterations int
	BatchPolicy   BatchPolicy
	Request       ai.RequestOptions
	// ThreadID is propagated to Finish; generated when empty.
	ThreadID string
	// OnFinish fires exactly once per completed invocation, including
	// pauses that hand tool calls to the client. Failed invocations
	// surface through the stream instead.
	OnFinish func(context.Context, Finish)
}

// Finish is the record delivered to OnFinish.
type Finish struct {
	ThreadID string
	Messages []ai.Message
	Usage    ai.Usage
}

// Result is the collected outcome of Generate: the final history plus
// per-turn steps and usage totals.
type Result struct {
	Messages       []ai.Message
	Text           string
	Usage          ai.Usage
	Steps          []ai.AssistantTurn
	RequiresAction bool
}

// outcome carries the loop's final state to Generate.
type outcome struct {
	result *Result
	err    error
}

// Runtime drives the bounded tool-calling loop against one model handle.
// Runs on the same Runtime share the steering queue, so concurrent
// conversations want one Runtime each.
type Runtime struct {
	handle        *ai.ModelHandle
	tools         map[string]*ToolDefinition
	schemas       []ai.ToolSchema
	system        string
	maxIterations int
	policy        BatchPolicy
	request       ai.RequestOptions
	threadID      string
	onFinish      func(context.Context, Finish)
	steerCh       chan ai.Message
}

// New builds a Runtime. Tool registration problems are programming errors
// and fail here, before any model call.
func New(handle *ai.ModelHandle, opts Options) (*Runtime, error) {
	if handle == nil {
		return nil, errors.New("nil model handle")
	}
	tools, err := buildToolIndex(opts.Tools)
	if err != nil {
		return nil, err
	}
	if len(opts.Tools) > 0 && !handle.Capabilities().SupportsTools {
		log.Warn("model %s does not advertise tool support", handle.Model.ID)
	}

	schemas := make([]ai.ToolSchema, 0, len(opts.Tools))
	for _, t := range opts.Tools {
		schemas = append(schemas, t.Schema())
	}

	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	threadID := opts.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	return &Runtime{
		handle:        handle,
		tools:         tools,
		schemas:       schemas,
		system:        opts.System,
		maxIterations: maxIter,
		policy:        opts.BatchPolicy,
		request:       opts.Request,
		threadID:      threadID,
		onFinish:      opts.OnFinish,
		steerCh:       make(chan ai.Message, 8),
	}, nil
}

// Run starts the loop and returns a live event stream spanning every
// iteration. Events from iteration n+1 never interleave with iteration n,
// and exactly one terminal event ends the stream.
func (r *Runtime) Run(ctx context.Context, messages []ai.Message) *ai.EventStream {
	out, _ := r.start(ctx, append([]ai.Message(nil), messages...))
	return out
}

// Generate runs the loop to completion and returns the collected result.
// Deltas are not surfaced; use Run for live streaming.
func (r *Runtime) Generate(ctx context.Context, messages []ai.Message) (*Result, error) {
	out, outcomeCh := r.start(ctx, append([]ai.Message(nil), messages...))
	for range out.Events() {
	}
	oc := <-outcomeCh
	if oc.err != nil {
		return nil, oc.err
	}
	return oc.result, nil
}

// Resume continues a conversation that paused on client tool calls.
// toolResults carries one tool message per resolved call; any call still
// unanswered after appending gets a synthesized refusal so the resubmitted
// history never holds an open tool call.
func (r *Runtime) Resume(ctx context.Context, messages, toolResults []ai.Message) *ai.EventStream {
	history := make([]ai.Message, 0, len(messages)+len(toolResults))
	history = append(history, messages...)
	history = append(history, toolResults...)
	if pending := ai.PendingToolCalls(history); len(pending) > 0 {
		history = append(history, refuseCalls(pending, "rejected: no result submitted")...)
	}
	out, _ := r.start(ctx, history)
	return out
}

// Steer queues a user message for injection before the next model call.
// Dropped silently when the queue is full.
func (r *Runtime) Steer(msg ai.Message) {
	select {
	case r.steerCh <- msg:
	default:
	}
}

// start launches the loop goroutine. The outcome channel is buffered so
// stream-only callers can ignore it.
func (r *Runtime) start(ctx context.Context, history []ai.Message) (*ai.EventStream, <-chan outcome) {
	out := ai.NewEventStream(streamBufferSize)
	outcomeCh := make(chan outcome, 1)
	go r.loop(ctx, history, out, outcomeCh)
	return out, outcomeCh
}

// loop is the prompt-stream-tool cycle. It owns the history slice for the
// whole invocation and hands it back only through Finish and Result.
func (r *Runtime) loop(ctx context.Context, history []ai.Message, out *ai.EventStream, outcomeCh chan<- outcome) {
	fail := func(err error) {
		outcomeCh <- outcome{err: err}
		out.FinishWithError(err)
	}

	var (
		steps          []ai.AssistantTurn
		total          ai.Usage
		requiresAction bool
	)
	iteration := 0

	for {
		if err := ctx.Err(); err != nil {
			fail(fmt.Errorf("run cancelled: %w", err))
			return
		}
		r.drainSteering(&history)

		turn, err := r.streamTurn(ctx, history, out)
		if err != nil {
			fail(err)
			return
		}
		steps = append(steps, *turn)
		total.Add(turn.Usage)
		history = append(history, turn.Message)

		calls := turn.Message.ToolCalls
		log.Debug("turn %d: stop=%s tool_calls=%d", len(steps), turn.StopReason, len(calls))
		if len(calls) == 0 {
			break
		}

		server, client := r.partitionCalls(calls)
		if r.policy == DeferAll && len(client) > 0 {
			server, client = nil, calls
		}

		if len(server) > 0 {
			// Hard ceiling: a batch arriving past the limit is answered
			// with refusals, never executed.
			if iteration >= r.maxIterations {
				history = append(history, refuseCalls(calls, r.limitReason())...)
				history = append(history, r.emitLimitNotice(out))
				requiresAction = false
				break
			}
			history = append(history, r.executeServerCalls(ctx, server)...)
			iteration++
		}

		if len(client) > 0 {
			requiresAction = true
			break
		}
	}

	finish := Finish{ThreadID: r.threadID, Messages: history, Usage: total}
	if r.onFinish != nil {
		r.onFinish(ctx, finish)
	}

	outcomeCh <- outcome{result: &Result{
		Messages:       history,
		Text:           collectText(steps),
		Usage:          total,
		Steps:          steps,
		RequiresAction: requiresAction,
	}}

	var last *ai.AssistantTurn
	if len(steps) > 0 {
		last = &steps[len(steps)-1]
	}
	out.Send(ai.DoneEvent(requiresAction))
	out.Finish(last)
}

// streamTurn performs one model invocation, forwarding events to out while
// the adapter accumulates the turn. Per-turn done events are swallowed;
// the loop emits its own terminal event once the whole run settles.
func (r *Runtime) streamTurn(ctx context.Context, history []ai.Message, out *ai.EventStream) (*ai.AssistantTurn, error) {
	req := &ai.Request{
		System:   r.system,
		Messages: history,
		Tools:    r.schemas,
		Options:  r.request,
	}

	stream := r.handle.Stream(ctx, req)
	var streamErr error
	for ev := range stream.Events() {
		switch ev.Type {
		case ai.EventDone:
		case ai.EventError:
			streamErr = ev.Err
			if streamErr == nil {
				streamErr = errors.New(ev.Message)
			}
		default:
			out.Send(ev)
		}
	}

	turn := stream.Result()
	if turn == nil {
		if streamErr == nil {
			streamErr = errors.New("stream completed without result")
		}
		return nil, fmt.Errorf("streaming response: %w", streamErr)
	}
	return turn, nil
}

// partitionCalls splits a batch by execution side. Unknown tool names go
// to the server side, which answers them with a refusal.
func (r *Runtime) partitionCalls(calls []ai.ToolCall) (server, client []ai.ToolCall) {
	for _, call := range calls {
		if tool, ok := r.tools[call.Name]; ok && tool.location() == LocationClient {
			client = append(client, call)
		} else {
			server = append(server, call)
		}
	}
	return server, client
}

// executeServerCalls answers every call in the batch: read-only tools run
// concurrently, the rest in call order. Exactly one tool message per call,
// returned in call order.
func (r *Runtime) executeServerCalls(ctx context.Context, calls []ai.ToolCall) []ai.Message {
	results := make([]ai.Message, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		if tool, ok := r.tools[call.Name]; ok && tool.ReadOnly {
			g.Go(func() error {
				results[i] = r.executeCall(gctx, call)
				return nil
			})
		}
	}
	// Handlers report failures as tool messages, never as group errors.
	_ = g.Wait()

	for i, call := range calls {
		if results[i].Role != "" {
			continue
		}
		results[i] = r.executeCall(ctx, call)
	}
	return results
}

// executeCall runs one server call and wraps the outcome in a tool
// message. Unknown tools, handler errors and panics all become structured
// failure results; the loop itself never fails because a tool did.
func (r *Runtime) executeCall(ctx context.Context, call ai.ToolCall) ai.Message {
	tool, ok := r.tools[call.Name]
	if !ok {
		return ai.NewToolErrorMessage(call.ID, fmt.Sprintf("unknown tool: %s", call.Name))
	}

	start := time.Now()
	value, err := invokeHandler(ctx, tool, call.Args)
	log.Debug("tool %s (%s) finished in %s", call.Name, call.ID, time.Since(start).Round(time.Millisecond))
	if err != nil {
		return ai.NewToolErrorMessage(call.ID, err.Error())
	}

	msg, err := ai.NewToolResultMessage(call.ID, value)
	if err != nil {
		return ai.NewToolErrorMessage(call.ID, err.Error())
	}
	return msg
}

// invokeHandler calls the tool handler, converting panics into errors.
func invokeHandler(ctx context.Context, tool *ToolDefinition, args json.RawMessage) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name, rec)
		}
	}()
	return tool.Handler(ctx, args)
}

// emitLimitNotice streams a synthesized closing message explaining the
// ceiling and returns it for the history.
func (r *Runtime) emitLimitNotice(out *ai.EventStream) ai.Message {
	msg := ai.NewAssistantMessage(fmt.Sprintf(
		"Reached the tool iteration limit (%d); remaining tool calls were declined.", r.maxIterations))
	out.Send(ai.MessageStartEvent(msg.ID))
	out.Send(ai.MessageDeltaEvent(msg.Content))
	out.Send(ai.MessageEndEvent())
	return msg
}

// limitReason is the refusal text for calls declined at the ceiling.
func (r *Runtime) limitReason() string {
	return fmt.Sprintf("rejected: tool iteration limit (%d) reached", r.maxIterations)
}

// drainSteering appends queued steering messages before the next model call.
func (r *Runtime) drainSteering(history *[]ai.Message) {
	for {
		select {
		case msg := <-r.steerCh:
			*history = append(*history, msg)
		default:
			return
		}
	}
}

// refuseCalls synthesizes one refusal result per call so the history never
// carries an unanswered tool call.
func refuseCalls(calls []ai.ToolCall, reason string) []ai.Message {
	msgs := make([]ai.Message, 0, len(calls))
	for _, call := range calls {
		msgs = append(msgs, ai.NewToolErrorMessage(call.ID, reason))
	}
	return msgs
}

// collectText joins the assistant text from each step.
func collectText(steps []ai.AssistantTurn) string {
	var parts []string
	for _, s := range steps {
		if s.Message.Content != "" {
			parts = append(parts, s.Message.Content)
		}
	}
	return strings.Join(parts, "\n")
}
