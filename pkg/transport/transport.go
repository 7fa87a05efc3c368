// ABOUTME: Canonical request shape and the runner seam every transport drives
// ABOUTME: Adapters are representational only; loop semantics live in pkg/runtime

package transport

import (
	"context"
	"errors"

	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/runtime"
)

// Request is the JSON body every transport accepts. Messages carry the
// client-held conversation; the optional fields override the bound
// runtime configuration for this invocation only.
type Request struct {
	Messages []ai.Message       `json:"messages"`
	System   string             `json:"system,omitempty"`
	ThreadID string             `json:"threadId,omitempty"`
	Options  *ai.RequestOptions `json:"options,omitempty"`
	// ToolResults resumes a paused invocation; only the websocket and
	// stdio transports accept it.
	ToolResults []ai.Message `json:"toolResults,omitempty"`
}

// Validate rejects bodies no invocation could serve.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return errors.New("messages must not be empty")
	}
	return nil
}

// Runner is the slice of the runtime surface transports drive.
// *runtime.Runtime satisfies it.
type Runner interface {
	Run(ctx context.Context, messages []ai.Message) *ai.EventStream
	Generate(ctx context.Context, messages []ai.Message) (*runtime.Result, error)
	Resume(ctx context.Context, messages []ai.Message, toolResults []ai.Message) *ai.EventStream
}

// Factory builds the runner serving one request, honoring per-request
// overrides. Handlers call it once per invocation.
type Factory func(req *Request) (Runner, error)

// Bind adapts a fixed model handle and runtime configuration into a
// Factory. Request-level System, ThreadID and Options replace their
// configured counterparts when set.
func Bind(handle *ai.ModelHandle, opts runtime.Options) Factory {
	return func(req *Request) (Runner, error) {
		merged := opts
		if req.System != "" {
			merged.System = req.System
		}
		if req.ThreadID != "" {
			merged.ThreadID = req.ThreadID
		}
		if req.Options != nil {
			merged.Request = *req.Options
		}
		return runtime.New(handle, merged)
	}
}

// Static serves every request with the same runner, ignoring per-request
// overrides. Useful for tests and single-conversation embeddings.
func Static(r Runner) Factory {
	return func(*Request) (Runner, error) { return r, nil }
}
