// ABOUTME: Registration-time validation tests for tool definitions
// ABOUTME: Collisions, missing handlers and malformed schemas fail before any model call

package runtime

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func noopHandler(context.Context, json.RawMessage) (any, error) {
	return "ok", nil
}

func TestNewRejectsBadRegistrations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tools   []*ToolDefinition
		wantErr string
	}{
		{
			name: "duplicate names",
			tools: []*ToolDefinition{
				{Name: "read", Handler: noopHandler},
				{Name: "read", Handler: noopHandler},
			},
			wantErr: "already registered",
		},
		{
			name:    "empty name",
			tools:   []*ToolDefinition{{Handler: noopHandler}},
			wantErr: "empty name",
		},
		{
			name:    "server tool without handler",
			tools:   []*ToolDefinition{{Name: "read"}},
			wantErr: "requires a handler",
		},
		{
			name: "invalid schema",
			tools: []*ToolDefinition{
				{Name: "read", Handler: noopHandler, InputSchema: json.RawMessage(`{"type":`)},
			},
			wantErr: "not valid JSON",
		},
		{
			name:    "unknown location",
			tools:   []*ToolDefinition{{Name: "read", Location: "remote", Handler: noopHandler}},
			wantErr: "unknown location",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(testHandle(&mockProvider{}), Options{Tools: tt.tools})
			if err == nil {
				t.Fatal("expected registration error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewRejectsNilHandle(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, Options{}); err == nil {
		t.Fatal("expected error for nil handle")
	}
}

func TestClientToolNeedsNoHandler(t *testing.T) {
	t.Parallel()

	_, err := New(testHandle(&mockProvider{}), Options{
		Tools: []*ToolDefinition{{Name: "ask_user", Location: LocationClient}},
	})
	if err != nil {
		t.Fatalf("client tool without handler should register: %v", err)
	}
}

func TestSchemaDefaultsToObject(t *testing.T) {
	t.Parallel()

	def := &ToolDefinition{Name: "bare", Description: "no schema"}
	schema := def.Schema()

	if schema.Name != "bare" || schema.Description != "no schema" {
		t.Errorf("schema = %+v", schema)
	}
	if string(schema.InputSchema) != `{"type":"object"}` {
		t.Errorf("default input schema = %s", schema.InputSchema)
	}

	def.InputSchema = json.RawMessage(`{"type":"object","required":["q"]}`)
	if got := def.Schema().InputSchema; string(got) != `{"type":"object","required":["q"]}` {
		t.Errorf("explicit schema should pass through, got %s", got)
	}
}

func TestLocationDefaultsToServer(t *testing.T) {
	t.Parallel()

	def := &ToolDefinition{Name: "read", Handler: noopHandler}
	if def.location() != LocationServer {
		t.Errorf("location = %q", def.location())
	}

	index, err := buildToolIndex([]*ToolDefinition{def})
	if err != nil {
		t.Fatalf("buildToolIndex: %v", err)
	}
	if _, ok := index["read"]; !ok {
		t.Error("tool missing from index")
	}
}
