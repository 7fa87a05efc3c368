// ABOUTME: Typed bubbletea messages exchanged between the app and its bridges
// ABOUTME: Every cross-goroutine signal enters Update as one of these

package chat

import (
	"github.com/mauromedda/tandem/pkg/ai"
	"github.com/mauromedda/tandem/pkg/client"
)

// StreamEventMsg carries one runtime event from the bridge goroutine.
type StreamEventMsg struct {
	Event ai.StreamEvent
}

// HistoryMsg replaces the app's conversation history with the runtime's
// authoritative transcript. It arrives before the terminal event of the
// run that produced it.
type HistoryMsg struct {
	Messages []ai.Message
	Usage    ai.Usage
}

// ApprovalRequestMsg asks the user to rule on a gated tool call. The
// controller goroutine blocks until a Decision is sent on Reply.
type ApprovalRequestMsg struct {
	Request client.Request
	Reply   chan<- client.Decision
}

// RunErrorMsg reports a failure outside the event stream, such as a tool
// continuation that could not complete.
type RunErrorMsg struct {
	Err error
}

// ModelPickedMsg reports the model chosen in the picker overlay.
type ModelPickedMsg struct {
	ID string
}

// DismissOverlayMsg closes the active overlay without further effect.
type DismissOverlayMsg struct{}
