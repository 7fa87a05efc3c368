// ABOUTME: Tests for the programmatic stream facade: callbacks, text, collect, pipe
// ABOUTME: Scripted event streams stand in for real invocations

package transport

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mauromedda/tandem/pkg/ai"
)

func scripted(script func(*ai.EventStream)) *ai.EventStream {
	stream := ai.NewEventStream(16)
	go script(stream)
	return stream
}

func TestStreamTextConcatenatesDeltas(t *testing.T) {
	t.Parallel()

	var deltas int
	s := NewStream(scripted(sayScript("Hello world"))).
		On(ai.EventMessageDelta, func(ai.StreamEvent) { deltas++ })

	text, err := s.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "Hello world" {
		t.Errorf("text = %q", text)
	}
	if deltas != 1 {
		t.Errorf("delta callbacks = %d, want 1", deltas)
	}
}

func TestStreamCollectKeepsTerminalEvent(t *testing.T) {
	t.Parallel()

	events, err := NewStream(scripted(sayScript("hi"))).Collect()
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if last := events[len(events)-1]; last.Type != ai.EventDone {
		t.Errorf("last event = %+v, want done", last)
	}
}

func TestStreamErrorSurfacesAfterDrain(t *testing.T) {
	t.Parallel()

	s := NewStream(scripted(func(stream *ai.EventStream) {
		stream.Send(ai.MessageStartEvent("msg_1"))
		stream.Send(ai.MessageDeltaEvent("par"))
		stream.FinishWithError(errors.New("boom"))
	}))

	text, err := s.Text()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v, want boom", err)
	}
	if text != "par" {
		t.Errorf("text = %q, want streamed prefix retained", text)
	}
}

func TestStreamSingleUse(t *testing.T) {
	t.Parallel()

	s := NewStream(scripted(sayScript("hi")))
	if _, err := s.Collect(); err != nil {
		t.Fatalf("first Collect: %v", err)
	}
	if _, err := s.Collect(); err == nil || !strings.Contains(err.Error(), "consumed") {
		t.Fatalf("second Collect err = %v, want already-consumed", err)
	}
}

func TestStreamPipeWritesFrames(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := NewStream(scripted(sayScript("hi"))).Pipe(&buf); err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	frames := parseFrames(t, buf.String())
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(frames))
	}
	if frames[0].event != "message:start" || frames[3].event != "done" {
		t.Errorf("frames = %+v", frames)
	}
}

func TestStreamPipeTextWritesOnlyContent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := NewStream(scripted(sayScript("just the words"))).PipeText(&buf); err != nil {
		t.Fatalf("PipeText: %v", err)
	}
	if got := buf.String(); got != "just the words" {
		t.Errorf("output = %q", got)
	}
}
