// ABOUTME: HTTP adapters for the unified event stream: SSE, buffered JSON, plain text
// ABOUTME: Errors before the first byte map to status codes; after, they ride in-band

package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mauromedda/tandem/internal/log"
	"github.com/mauromedda/tandem/pkg/ai"
)

// maxBodyBytes bounds request bodies; attachments ride base64-encoded
// inside messages, so the ceiling is generous.
const maxBodyBytes = 10 << 20

// GenerateResponse is the buffered envelope JSONHandler returns.
type GenerateResponse struct {
	Messages       []ai.Message `json:"messages"`
	Text           string       `json:"text"`
	Usage          ai.Usage     `json:"usage"`
	RequiresAction bool         `json:"requiresAction,omitempty"`
}

// SSEHandler streams unified events as text/event-stream frames: the
// event field carries the type tag, the data field the JSON payload.
func SSEHandler(factory Factory) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, runner, ok := prepare(w, r, factory)
		if !ok {
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported by response writer"))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		stream := runner.Run(r.Context(), req.Messages)
		for ev := range stream.Events() {
			if err := writeFrame(w, ev); err != nil {
				log.Debug("sse client went away: %v", err)
				return
			}
			flusher.Flush()
		}
	})
}

// JSONHandler runs the invocation to completion and returns the buffered
// result envelope.
func JSONHandler(factory Factory) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, runner, ok := prepare(w, r, factory)
		if !ok {
			return
		}

		result, err := runner.Generate(r.Context(), req.Messages)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, GenerateResponse{
			Messages:       result.Messages,
			Text:           result.Text,
			Usage:          result.Usage,
			RequiresAction: result.RequiresAction,
		})
	})
}

// TextHandler streams message:delta content as plain text chunks. The
// status line is held back until the first delta so early failures still
// map to an error status.
func TextHandler(factory Factory) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, runner, ok := prepare(w, r, factory)
		if !ok {
			return
		}

		flusher, _ := w.(http.Flusher)
		started := false
		stream := runner.Run(r.Context(), req.Messages)
		for ev := range stream.Events() {
			switch ev.Type {
			case ai.EventMessageDelta:
				if !started {
					w.Header().Set("Content-Type", "text/plain; charset=utf-8")
					w.WriteHeader(http.StatusOK)
					started = true
				}
				if _, err := io.WriteString(w, ev.Content); err != nil {
					log.Debug("text client went away: %v", err)
					return
				}
				if flusher != nil {
					flusher.Flush()
				}
			case ai.EventError:
				if !started {
					writeError(w, statusForError(streamError(ev)), streamError(ev))
					return
				}
				log.Warn("text stream failed mid-flight: %s", ev.Message)
				return
			}
		}
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
		}
	})
}

// prepare decodes and validates the body and builds the runner, writing
// the error response itself when anything fails.
func prepare(w http.ResponseWriter, r *http.Request, factory Factory) (*Request, Runner, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("use POST"))
		return nil, nil, false
	}
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, nil, false
	}
	runner, err := factory(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, nil, false
	}
	return req, runner, true
}

func decodeRequest(r *http.Request) (*Request, error) {
	defer r.Body.Close()
	var req Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// writeFrame writes one SSE frame.
func writeFrame(w io.Writer, ev ai.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Debug("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Warn("request failed: %v", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusForError maps invocation errors onto response codes: vendor 4xx
// passes through, vendor 5xx and the rest become 502/500.
func statusForError(err error) int {
	var pe *ai.ProviderError
	if errors.As(err, &pe) {
		if pe.StatusCode >= 400 && pe.StatusCode < 500 {
			return pe.StatusCode
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// streamError recovers the strongest error value an error event carries.
func streamError(ev ai.StreamEvent) error {
	if ev.Err != nil {
		return ev.Err
	}
	if ev.Message != "" {
		return errors.New(ev.Message)
	}
	return errors.New("stream failed")
}
