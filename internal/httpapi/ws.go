package httpapi

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dhruvmehra/jyotiline/internal/protocol"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
)

// startWriter pumps outbound messages onto the connection from a single
// goroutine; gorilla connections do not allow concurrent writers. The
// returned channel closes when the pump exits.
func (s *Server) startWriter(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, outbound <-chan any) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.deps.Metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()
	return done
}

func (s *Server) armReadDeadlines(conn *websocket.Conn) {
	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})
}

// enqueue drops on a saturated outbound queue rather than blocking the
// producer; the dropped counter makes the condition visible.
func (s *Server) enqueue(outbound chan<- any, msg any) {
	select {
	case outbound <- msg:
	default:
		s.deps.Metrics.SessionEvents.WithLabelValues("ws_outbound_dropped").Inc()
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.CallControl:
		return m.Type, true
	case protocol.ClientAudioChunk:
		return m.Type, true
	case protocol.ChatMessage:
		return m.Type, true
	case protocol.PlayerEvent:
		return m.Type, true
	case protocol.CallState:
		return m.Type, true
	case protocol.TranscriptEntry:
		return m.Type, true
	case protocol.TranscriptDelta:
		return m.Type, true
	case protocol.AssistantAudioChunk:
		return m.Type, true
	case protocol.PlayerCommand:
		return m.Type, true
	case protocol.PlayerState:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
