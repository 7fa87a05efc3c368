// ABOUTME: Client-side tool execution: consent lookup, approval prompt, handler run
// ABOUTME: Every call resolves to exactly one tool message, rejected or not

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mauromedda/tandem/internal/log"
	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/client/consent"
	"github.com/mauromedda/tandem/pkg/runtime"
)

// Status tracks one execution through its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusRejected  Status = "rejected"
)

// Approval mirrors the human-approval side of the lifecycle.
type Approval string

const (
	ApprovalNotRequired Approval = "not_required"
	ApprovalPending     Approval = "pending"
	ApprovalApproved    Approval = "approved"
	ApprovalDenied      Approval = "denied"
)

// Execution is the observable record of one tool invocation. Snapshots may
// briefly show StatusCompleted with a nil Result while the final update
// lands; readers render that window as in-flight, never as a failure.
type Execution struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Args     json.RawMessage `json:"args,omitempty"`
	Status   Status          `json:"status"`
	Approval Approval        `json:"approval"`
	Result   json.RawMessage `json:"result,omitempty"`
	Err      string          `json:"error,omitempty"`
}

// Remember scopes how long an approval decision holds.
type Remember string

const (
	// RememberOnce applies to this call only.
	RememberOnce Remember = "once"
	// RememberSession holds in controller memory until the process ends.
	RememberSession Remember = "session"
	// RememberAlways persists through the consent store.
	RememberAlways Remember = "always"
)

// Request is what a Prompter presents to the human.
type Request struct {
	ToolName string
	Message  string
	Args     json.RawMessage
}

// Decision is the human's answer to an approval request.
type Decision struct {
	Approve  bool
	Remember Remember
}

// Prompter blocks for a human approval decision. Calls may arrive
// concurrently when one batch needs several approvals; implementations
// serialize presentation themselves.
type Prompter interface {
	Prompt(ctx context.Context, req Request) (Decision, error)
}

// PromptFunc adapts a function to the Prompter interface.
type PromptFunc func(ctx context.Context, req Request) (Decision, error)

func (f PromptFunc) Prompt(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

// Config wires a Controller.
type Config struct {
	// Tools the client executes. Every definition needs a handler here,
	// whatever its Location says to the loop.
	Tools []*runtime.ToolDefinition
	// Store holds durable consent decisions. Defaults to an in-memory
	// store, which makes every decision session-scoped at best.
	Store consent.Store
	// Prompter resolves approval requests. With no Prompter configured,
	// tools that need approval are rejected.
	Prompter Prompter
}

// Controller runs client-located tools through the consent state machine
// and hands back fully-formed tool messages for resubmission.
type Controller struct {
	tools    map[string]*runtime.ToolDefinition
	store    consent.Store
	prompter Prompter

	mu         sync.Mutex
	session    map[string]bool
	executions []*Execution
}

// NewController validates the tool set and builds a Controller.
func NewController(cfg Config) (*Controller, error) {
	tools := make(map[string]*runtime.ToolDefinition, len(cfg.Tools))
	for _, t := range cfg.Tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, exists := tools[t.Name]; exists {
			return nil, fmt.Errorf("tool %s: name already registered", t.Name)
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tool %s: client execution requires a handler", t.Name)
		}
		tools[t.Name] = t
	}

	store := cfg.Store
	if store == nil {
		store = consent.NewMemory()
	}

	return &Controller{
		tools:    tools,
		store:    store,
		prompter: cfg.Prompter,
		session:  make(map[string]bool),
	}, nil
}

// HandleToolCalls runs the full lifecycle for one batch and returns exactly
// one tool message per call, in call order. Independent calls run
// concurrently; an approval wait blocks only its own call. Per-call
// failures ride inside the messages; the error return reports only context
// cancellation.
func (c *Controller) HandleToolCalls(ctx context.Context, calls []ai.ToolCall) ([]ai.Message, error) {
	msgs := make([]ai.Message, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			msgs[i] = c.handleCall(gctx, call)
			return nil
		})
	}
	_ = g.Wait()

	return msgs, ctx.Err()
}

// Executions returns a snapshot of every execution this controller has
// seen, in creation order.
func (c *Controller) Executions() []Execution {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Execution, len(c.executions))
	for i, e := range c.executions {
		out[i] = *e
	}
	return out
}

// handleCall drives one execution from pending to a terminal state and
// always produces a result message, refusals included.
func (c *Controller) handleCall(ctx context.Context, call ai.ToolCall) ai.Message {
	exec := c.track(call)

	tool, ok := c.tools[call.Name]
	if !ok {
		reason := fmt.Sprintf("unknown tool: %s", call.Name)
		c.update(exec, func(e *Execution) {
			e.Status = StatusRejected
			e.Approval = ApprovalNotRequired
			e.Err = reason
		})
		return ai.NewToolErrorMessage(call.ID, reason)
	}

	denied, err := c.authorize(ctx, exec, tool)
	if err != nil {
		c.update(exec, func(e *Execution) {
			e.Status = StatusError
			e.Err = err.Error()
		})
		return ai.NewToolErrorMessage(call.ID, err.Error())
	}
	if denied != "" {
		c.update(exec, func(e *Execution) {
			e.Status = StatusRejected
			e.Err = denied
		})
		return ai.NewToolErrorMessage(call.ID, denied)
	}

	c.update(exec, func(e *Execution) { e.Status = StatusExecuting })

	value, err := runHandler(ctx, tool, call.Args)
	if err != nil {
		c.update(exec, func(e *Execution) {
			e.Status = StatusError
			e.Err = err.Error()
		})
		return ai.NewToolErrorMessage(call.ID, err.Error())
	}

	msg, err := ai.NewToolResultMessage(call.ID, value)
	if err != nil {
		c.update(exec, func(e *Execution) {
			e.Status = StatusError
			e.Err = err.Error()
		})
		return ai.NewToolErrorMessage(call.ID, err.Error())
	}

	raw, _ := json.Marshal(value)
	c.update(exec, func(e *Execution) {
		e.Status = StatusCompleted
		e.Result = raw
	})
	return msg
}

// authorize resolves the approval half of the lifecycle: durable consent
// short-circuits, session grants hold in controller memory, everything
// else prompts. A non-empty return is the denial reason.
func (c *Controller) authorize(ctx context.Context, exec *Execution, tool *runtime.ToolDefinition) (string, error) {
	if !tool.NeedsApproval {
		return "", nil
	}

	key := consent.NormalizeTool(tool.Name)
	level, err := c.store.Get(key)
	if err != nil {
		return "", fmt.Errorf("consent lookup for %s: %w", tool.Name, err)
	}
	switch level {
	case consent.LevelAllowAlways:
		c.update(exec, func(e *Execution) { e.Approval = ApprovalApproved })
		return "", nil
	case consent.LevelDenyAlways:
		c.update(exec, func(e *Execution) { e.Approval = ApprovalDenied })
		return "rejected: denied by standing consent", nil
	}

	c.mu.Lock()
	granted := c.session[key]
	c.mu.Unlock()
	if granted {
		c.update(exec, func(e *Execution) { e.Approval = ApprovalApproved })
		return "", nil
	}

	if c.prompter == nil {
		c.update(exec, func(e *Execution) { e.Approval = ApprovalDenied })
		return "rejected: approval required but no prompter is configured", nil
	}

	c.update(exec, func(e *Execution) { e.Approval = ApprovalPending })
	decision, err := c.prompter.Prompt(ctx, Request{
		ToolName: tool.Name,
		Message:  approvalMessage(tool),
		Args:     exec.Args,
	})
	if err != nil {
		return "", fmt.Errorf("approval prompt for %s: %w", tool.Name, err)
	}

	c.remember(key, decision)
	if decision.Approve {
		c.update(exec, func(e *Execution) { e.Approval = ApprovalApproved })
		return "", nil
	}
	c.update(exec, func(e *Execution) { e.Approval = ApprovalDenied })
	return "rejected: denied by user", nil
}

// remember records the scope the human attached to a decision. Session
// denials stay one-shot: only grants are worth caching for a session.
func (c *Controller) remember(key string, d Decision) {
	switch d.Remember {
	case RememberSession:
		if d.Approve {
			c.mu.Lock()
			c.session[key] = true
			c.mu.Unlock()
		}
	case RememberAlways:
		level := consent.LevelDenyAlways
		if d.Approve {
			level = consent.LevelAllowAlways
		}
		if err := c.store.Set(key, level); err != nil {
			log.Warn("persist consent for %s: %v", key, err)
		}
	}
}

// track registers a new pending execution and returns its record.
func (c *Controller) track(call ai.ToolCall) *Execution {
	exec := &Execution{
		ID:       call.ID,
		Name:     call.Name,
		Args:     call.Args,
		Status:   StatusPending,
		Approval: ApprovalNotRequired,
	}
	c.mu.Lock()
	c.executions = append(c.executions, exec)
	c.mu.Unlock()
	return exec
}

// update applies a mutation to an execution under the controller lock.
func (c *Controller) update(exec *Execution, fn func(*Execution)) {
	c.mu.Lock()
	fn(exec)
	c.mu.Unlock()
}

// approvalMessage falls back to a generated prompt line.
func approvalMessage(tool *runtime.ToolDefinition) string {
	if tool.ApprovalMessage != "" {
		return tool.ApprovalMessage
	}
	return fmt.Sprintf("Allow %s to run?", tool.Name)
}

// runHandler invokes the tool handler, converting panics into errors.
func runHandler(ctx context.Context, tool *runtime.ToolDefinition, args json.RawMessage) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name, rec)
		}
	}()
	return tool.Handler(ctx, args)
}
