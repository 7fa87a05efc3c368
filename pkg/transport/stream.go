// ABOUTME: Programmatic facade over an EventStream: callbacks, text, collect, pipe
// ABOUTME: Single-use; one terminal consumer drains the stream exactly once

package transport

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/mauromedda/tandem/pkg/ai"
)

// Stream wraps an EventStream for in-process consumers. Register On
// callbacks first, then call exactly one of Text, Collect, Pipe or
// PipeText to drain.
type Stream struct {
	events   *ai.EventStream
	handlers map[ai.EventType][]func(ai.StreamEvent)
	consumed bool
}

// NewStream wraps es.
func NewStream(es *ai.EventStream) *Stream {
	return &Stream{
		events:   es,
		handlers: make(map[ai.EventType][]func(ai.StreamEvent)),
	}
}

// On registers fn for events of type t. Callbacks run in event order on
// the draining goroutine. Returns s for chaining.
func (s *Stream) On(t ai.EventType, fn func(ai.StreamEvent)) *Stream {
	s.handlers[t] = append(s.handlers[t], fn)
	return s
}

// Text drains the stream and returns the concatenated message content.
func (s *Stream) Text() (string, error) {
	var b strings.Builder
	err := s.drain(func(ev ai.StreamEvent) error {
		if ev.Type == ai.EventMessageDelta {
			b.WriteString(ev.Content)
		}
		return nil
	})
	return b.String(), err
}

// Collect drains the stream and returns every event in order, the
// terminal one included.
func (s *Stream) Collect() ([]ai.StreamEvent, error) {
	var out []ai.StreamEvent
	err := s.drain(func(ev ai.StreamEvent) error {
		out = append(out, ev)
		return nil
	})
	return out, err
}

// Pipe drains the stream as SSE frames into w, flushing after each frame
// when w supports it.
func (s *Stream) Pipe(w io.Writer) error {
	flusher, _ := w.(http.Flusher)
	return s.drain(func(ev ai.StreamEvent) error {
		if err := writeFrame(w, ev); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
}

// PipeText drains the stream writing only message content into w.
func (s *Stream) PipeText(w io.Writer) error {
	flusher, _ := w.(http.Flusher)
	return s.drain(func(ev ai.StreamEvent) error {
		if ev.Type != ai.EventMessageDelta {
			return nil
		}
		if _, err := io.WriteString(w, ev.Content); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
}

// drain consumes the stream once, dispatching On callbacks and the
// consumer sink. An in-band error event surfaces as the returned error
// after the stream is fully consumed.
func (s *Stream) drain(sink func(ai.StreamEvent) error) error {
	if s.consumed {
		return errors.New("stream already consumed")
	}
	s.consumed = true

	var streamErr error
	for ev := range s.events.Events() {
		for _, fn := range s.handlers[ev.Type] {
			fn(ev)
		}
		if ev.Type == ai.EventError {
			streamErr = streamError(ev)
		}
		if err := sink(ev); err != nil {
			// Sink failure: keep draining so the producer finishes.
			for range s.events.Events() {
			}
			return err
		}
	}
	return streamErr
}
