package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dhruvmehra/jyotiline/internal/consult"
	"github.com/dhruvmehra/jyotiline/internal/protocol"
	"github.com/dhruvmehra/jyotiline/internal/session"
)

// handleChatWS runs one text consultation. Streamed replies go out as
// transcript_delta frames against the entry announced when the stream
// opened; everything else is a full transcript_entry.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	astro, err := s.deps.Catalog.Astrologer(r.URL.Query().Get("astrologer_id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "astrologer_not_found", "unknown astrologer")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	reg := s.deps.Sessions.Create(session.KindChat, astro.ID)
	s.deps.Metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)

	// sentLen remembers how much of each streaming entry already went out
	// so only the new tail is framed as a delta.
	var deltaMu sync.Mutex
	sentLen := make(map[string]int)

	cs := consult.NewChatSession(astro, s.deps.Chat, func(u consult.Update) {
		switch u.Kind {
		case consult.UpdateState:
			s.enqueue(outbound, protocol.CallState{
				Type:           protocol.TypeCallState,
				State:          string(u.State),
				ElapsedSeconds: u.ElapsedSeconds,
				Detail:         u.Detail,
			})
		case consult.UpdateEntry:
			e := u.Entry
			if !e.Complete && e.Speaker == consult.SpeakerAssistant {
				deltaMu.Lock()
				prev, known := sentLen[e.ID]
				sentLen[e.ID] = len(e.Text)
				deltaMu.Unlock()
				if known {
					if len(e.Text) > prev {
						s.enqueue(outbound, protocol.TranscriptDelta{
							Type:      protocol.TypeTranscriptDelta,
							EntryID:   e.ID,
							TextDelta: e.Text[prev:],
						})
					}
					return
				}
				// First sight of the entry announces it whole.
			}
			if e.Complete {
				deltaMu.Lock()
				delete(sentLen, e.ID)
				deltaMu.Unlock()
			}
			s.enqueue(outbound, protocol.TranscriptEntry{
				Type:     protocol.TypeTranscriptEntry,
				EntryID:  e.ID,
				Speaker:  string(e.Speaker),
				Text:     e.Text,
				Complete: e.Complete,
			})
		}
	})

	s.trackLive(reg.ID, cs.End)
	defer s.dropLive(reg.ID)
	cs.Start(ctx)

	writerDone := s.startWriter(ctx, cancel, conn, outbound)

	go func() {
		select {
		case <-cs.Done():
			time.Sleep(200 * time.Millisecond)
			_ = conn.Close()
		case <-ctx.Done():
		}
	}()

	s.armReadDeadlines(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.enqueue(outbound, protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Source: "gateway",
				Detail: err.Error(),
			})
			continue
		}
		_ = s.deps.Sessions.Touch(reg.ID)
		if t, ok := messageTypeOf(parsed); ok {
			s.deps.Metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		switch m := parsed.(type) {
		case protocol.ChatMessage:
			cs.Submit(m.Text)
		case protocol.CallControl:
			if strings.TrimSpace(m.Action) == protocol.ActionEnd {
				cs.End()
			}
		default:
			s.enqueue(outbound, protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "wrong_channel",
				Source: "gateway",
				Detail: "message type not valid on the chat socket",
			})
		}
	}

	cs.End()
	_, _ = s.deps.Sessions.End(reg.ID)
	cancel()
	<-writerDone
	s.deps.Metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}
