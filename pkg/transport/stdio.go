// ABOUTME: JSONL request/response server over stdin/stdout for editor embedding
// ABOUTME: generate buffers; stream and resume interleave event frames before the close

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mauromedda/tandem/pkg/ai"
)

// Stdio methods.
const (
	MethodGenerate = "generate"
	MethodStream   = "stream"
	MethodResume   = "resume"
)

// JSON-RPC error codes, kept for client familiarity.
const (
	ErrCodeParse          = -32700
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

// StdioRequest is one input line.
type StdioRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// StdioResponse is one output line. Streamed invocations interleave
// frames with Event set before the closing frame carrying Result or
// Error.
type StdioResponse struct {
	ID     string          `json:"id"`
	Event  *ai.StreamEvent `json:"event,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  *StdioError     `json:"error,omitempty"`
}

// StdioError mirrors the JSON-RPC error object.
type StdioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// streamClose is the Result of the frame that ends a streamed invocation.
type streamClose struct {
	Finished bool `json:"finished"`
}

// StdioServer serves the canonical request over line-delimited JSON.
// Requests are handled sequentially; a streamed invocation finishes
// before the next line is read.
type StdioServer struct {
	factory Factory
	in      *bufio.Scanner
	out     io.Writer
}

// NewStdioServer creates a server reading stdin and writing stdout.
func NewStdioServer(factory Factory) *StdioServer {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxBodyBytes)
	return &StdioServer{factory: factory, in: scanner, out: os.Stdout}
}

// Run reads request lines until EOF or ctx is done.
func (s *StdioServer) Run(ctx context.Context) error {
	for s.in.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var req StdioRequest
		if err := json.Unmarshal(s.in.Bytes(), &req); err != nil {
			s.sendError("", ErrCodeParse, fmt.Sprintf("parse error: %v", err))
			continue
		}
		if err := s.handle(ctx, req); err != nil {
			return err
		}
	}
	return s.in.Err()
}

func (s *StdioServer) handle(ctx context.Context, req StdioRequest) error {
	switch req.Method {
	case MethodGenerate, MethodStream, MethodResume:
	default:
		s.sendError(req.ID, ErrCodeMethodNotFound, "method not found: "+req.Method)
		return nil
	}

	var body Request
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &body); err != nil {
			s.sendError(req.ID, ErrCodeInvalidParams, err.Error())
			return nil
		}
	}
	if err := body.Validate(); err != nil {
		s.sendError(req.ID, ErrCodeInvalidParams, err.Error())
		return nil
	}
	runner, err := s.factory(&body)
	if err != nil {
		s.sendError(req.ID, ErrCodeInvalidParams, err.Error())
		return nil
	}

	switch req.Method {
	case MethodGenerate:
		result, err := runner.Generate(ctx, body.Messages)
		if err != nil {
			s.sendError(req.ID, ErrCodeInternal, err.Error())
			return nil
		}
		return s.send(StdioResponse{ID: req.ID, Result: GenerateResponse{
			Messages:       result.Messages,
			Text:           result.Text,
			Usage:          result.Usage,
			RequiresAction: result.RequiresAction,
		}})
	case MethodStream:
		return s.pump(req.ID, runner.Run(ctx, body.Messages))
	case MethodResume:
		return s.pump(req.ID, runner.Resume(ctx, body.Messages, body.ToolResults))
	}
	return nil
}

// pump writes every stream event as a frame, then the closing frame.
func (s *StdioServer) pump(id string, stream *ai.EventStream) error {
	for ev := range stream.Events() {
		ev := ev
		if err := s.send(StdioResponse{ID: id, Event: &ev}); err != nil {
			return err
		}
	}
	return s.send(StdioResponse{ID: id, Result: streamClose{Finished: true}})
}

func (s *StdioServer) send(resp StdioResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		s.sendError(resp.ID, ErrCodeInternal, fmt.Sprintf("internal error: %v", err))
		return nil
	}
	data = append(data, '\n')
	if _, err := s.out.Write(data); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

func (s *StdioServer) sendError(id string, code int, message string) {
	resp := StdioResponse{ID: id, Error: &StdioError{Code: code, Message: message}}
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = s.out.Write(data)
}
