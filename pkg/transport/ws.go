// ABOUTME: Bidirectional websocket chat: unified events out, chat frames in
// ABOUTME: One invocation at a time per connection; cancel frames stop it

package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mauromedda/tandem/internal/log"
	"github.com/mauromedda/tandem/pkg/ai"
)

// Client frame types.
const (
	frameChat        = "chat"
	frameToolResults = "tool_results"
	frameCancel      = "cancel"
)

// wsFrame is one client frame: a type tag over the canonical request.
type wsFrame struct {
	Type string `json:"type"`
	Request
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades the connection and serves a chat session: the server
// pushes unified events as JSON frames, the client sends chat,
// tool_results and cancel frames. The client owns conversation history;
// every chat frame carries it whole.
func WSHandler(factory Factory) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade: %v", err)
			return
		}
		defer conn.Close()

		sess := &wsSession{conn: conn, factory: factory}
		sess.serve(r.Context())
	})
}

type wsSession struct {
	conn    *websocket.Conn
	factory Factory

	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func (s *wsSession) serve(ctx context.Context) {
	defer s.wg.Wait()
	defer s.stop()
	for {
		var frame wsFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read: %v", err)
			}
			return
		}
		s.dispatch(ctx, frame)
	}
}

func (s *wsSession) dispatch(ctx context.Context, frame wsFrame) {
	switch frame.Type {
	case frameChat, frameToolResults:
		s.begin(ctx, frame)
	case frameCancel:
		s.stop()
	default:
		s.writeEvent(ai.ErrorEvent(fmt.Errorf("unknown frame type %q", frame.Type)))
	}
}

// begin starts one invocation and pumps its events to the client.
func (s *wsSession) begin(ctx context.Context, frame wsFrame) {
	if err := frame.Request.Validate(); err != nil {
		s.writeEvent(ai.ErrorEvent(err))
		return
	}
	runner, err := s.factory(&frame.Request)
	if err != nil {
		s.writeEvent(ai.ErrorEvent(err))
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.writeEvent(ai.ErrorEvent(errors.New("an invocation is already running")))
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	var stream *ai.EventStream
	if frame.Type == frameToolResults {
		stream = runner.Resume(runCtx, frame.Messages, frame.ToolResults)
	} else {
		stream = runner.Run(runCtx, frame.Messages)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		for ev := range stream.Events() {
			if !s.writeEvent(ev) {
				// Client gone: stop the invocation and drain so the
				// producer can finish.
				cancel()
				for range stream.Events() {
				}
				break
			}
		}
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
	}()
}

func (s *wsSession) stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
}

func (s *wsSession) writeEvent(ev ai.StreamEvent) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(ev); err != nil {
		log.Debug("websocket write: %v", err)
		return false
	}
	return true
}
