// ABOUTME: Channel-based event streaming for model responses
// ABOUTME: EventStream carries unified events plus the accumulated final turn

package ai

import (
	"sync"
	"sync/atomic"
)

// EventStream provides channel-based access to a single model invocation.
// Consumers range over Events() and check Result() when done. A stream is
// finite and not restartable; replaying a conversation means a new request.
//
// Design: Send writes to an internal events channel that is never closed
// externally. Finish closes only the done channel. A drainer goroutine
// forwards events to the consumer-facing out channel, closing it when
// done fires and all buffered events are drained. This eliminates the
// send-on-closed-channel race between Send and Finish.
type EventStream struct {
	events chan StreamEvent // internal: producers write here via Send
	out    chan StreamEvent // external: consumers read via Events()
	done   chan struct{}
	result atomic.Pointer[AssistantTurn]
	once   sync.Once
}

// NewEventStream creates a new EventStream with the given buffer size.
func NewEventStream(bufSize int) *EventStream {
	s := &EventStream{
		events: make(chan StreamEvent, bufSize),
		out:    make(chan StreamEvent, bufSize),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

// drain forwards events from the internal channel to the consumer channel.
// Closes out when done fires and all buffered events are forwarded.
func (s *EventStream) drain() {
	defer close(s.out)
	for {
		select {
		case ev := <-s.events:
			s.out <- ev
		case <-s.done:
			// Drain remaining buffered events.
			for {
				select {
				case ev := <-s.events:
					s.out <- ev
				default:
					return
				}
			}
		}
	}
}

// Events returns a read-only channel of stream events.
// The channel is closed when the stream is complete.
func (s *EventStream) Events() <-chan StreamEvent {
	return s.out
}

// Send sends an event to the stream. Returns false if the stream is finished.
func (s *EventStream) Send(event StreamEvent) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- event:
		return true
	case <-s.done:
		return false
	}
}

// Finish completes the stream with a final result.
// Only closes the done channel; the events channel is never closed, preventing
// send-on-closed-channel panics. The drainer goroutine closes the consumer
// channel after draining remaining events.
func (s *EventStream) Finish(turn *AssistantTurn) {
	s.once.Do(func() {
		if turn != nil {
			s.result.Store(turn)
		}
		close(s.done)
	})
}

// FinishWithError emits the terminal error event, then completes the stream.
// Content streamed before the failure stays delivered; the error arrives
// in-band like every other event.
func (s *EventStream) FinishWithError(err error) {
	s.Send(ErrorEvent(err))
	s.Finish(nil)
}

// Result blocks until the stream is complete and returns the final turn,
// or nil if the stream ended in error.
func (s *EventStream) Result() *AssistantTurn {
	<-s.done
	return s.result.Load()
}

// Done returns a channel that is closed when the stream completes.
func (s *EventStream) Done() <-chan struct{} {
	return s.done
}
