// ABOUTME: Tool definitions offered to the model: location, schema, handler
// ABOUTME: Registration problems fail fast, before any network call

package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mauromedda/tandem/pkg/ai"
)

// Location tells the loop which side of the wire executes a tool.
type Location string

const (
	// LocationServer tools run inside the loop via their Handler.
	LocationServer Location = "server"
	// LocationClient tools pause the loop; the connected client executes
	// them and resumes with the results.
	LocationClient Location = "client"
)

// Handler executes one tool call. Args is always a complete JSON object by
// the time a handler sees it. The returned value must be JSON-marshalable;
// a returned error becomes a structured failure result visible to the
// model, never a loop failure.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// ToolDefinition describes one tool offered to the model. Server tools
// carry the Handler the loop invokes; client tools are schema-only from
// the loop's perspective and execute on the connected client.
type ToolDefinition struct {
	Name            string
	Description     string
	Location        Location
	InputSchema     json.RawMessage
	NeedsApproval   bool
	ApprovalMessage string
	// ReadOnly server tools from one batch run concurrently; everything
	// else runs in call order.
	ReadOnly bool
	Handler  Handler
}

// Schema returns the wire-facing declaration sent to providers. A nil
// InputSchema defaults to an unconstrained object schema.
func (t *ToolDefinition) Schema() ai.ToolSchema {
	schema := t.InputSchema
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	return ai.ToolSchema{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

// location returns the effective location; unset means server.
func (t *ToolDefinition) location() Location {
	if t.Location == "" {
		return LocationServer
	}
	return t.Location
}

// buildToolIndex validates definitions and indexes them by name. Name
// collisions, missing handlers and malformed schemas surface here.
func buildToolIndex(tools []*ToolDefinition) (map[string]*ToolDefinition, error) {
	index := make(map[string]*ToolDefinition, len(tools))
	for _, t := range tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, exists := index[t.Name]; exists {
			return nil, fmt.Errorf("tool %s: name already registered", t.Name)
		}
		switch t.location() {
		case LocationServer:
			if t.Handler == nil {
				return nil, fmt.Errorf("tool %s: server tool requires a handler", t.Name)
			}
		case LocationClient:
		default:
			return nil, fmt.Errorf("tool %s: unknown location %q", t.Name, t.Location)
		}
		if len(t.InputSchema) > 0 && !json.Valid(t.InputSchema) {
			return nil, fmt.Errorf("tool %s: input schema is not valid JSON", t.Name)
		}
		index[t.Name] = t
	}
	return index, nil
}
