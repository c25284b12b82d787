package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dhruvmehra/jyotiline/internal/consult"
	"github.com/dhruvmehra/jyotiline/internal/protocol"
	"github.com/dhruvmehra/jyotiline/internal/session"
)

// handleCallWS runs one voice consultation over a websocket. The session
// outlives nothing: when the socket goes away, so does the call.
func (s *Server) handleCallWS(w http.ResponseWriter, r *http.Request) {
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

	reg := s.deps.Sessions.Create(session.KindVoice, astro.ID)
	s.deps.Metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)
	var audioSeq atomic.Int64

	vs := consult.NewVoiceSession(astro, s.deps.Voice, s.deps.VoiceCfg, func(u consult.Update) {
		switch u.Kind {
		case consult.UpdateState:
			s.enqueue(outbound, protocol.CallState{
				Type:           protocol.TypeCallState,
				State:          string(u.State),
				Muted:          u.Muted,
				ElapsedSeconds: u.ElapsedSeconds,
				Detail:         u.Detail,
			})
		case consult.UpdateEntry:
			s.enqueue(outbound, protocol.TranscriptEntry{
				Type:     protocol.TypeTranscriptEntry,
				EntryID:  u.Entry.ID,
				Speaker:  string(u.Entry.Speaker),
				Text:     u.Entry.Text,
				Complete: u.Entry.Complete,
			})
		case consult.UpdateAudio:
			s.enqueue(outbound, protocol.AssistantAudioChunk{
				Type:        protocol.TypeAssistantAudioChunk,
				Seq:         int(audioSeq.Add(1)),
				Format:      u.Audio.Format,
				AudioBase64: u.Audio.Base64,
			})
		}
	})

	s.trackLive(reg.ID, vs.End)
	defer s.dropLive(reg.ID)
	vs.Start(ctx)

	writerDone := s.startWriter(ctx, cancel, conn, outbound)

	// Close the socket shortly after the session reaches a terminal state
	// so the janitor and the errored path both hang up, with a beat for the
	// final call_state to flush.
	go func() {
		select {
		case <-vs.Done():
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
		case protocol.CallControl:
			switch strings.TrimSpace(m.Action) {
			case protocol.ActionEnd:
				vs.End()
			case protocol.ActionMute:
				vs.Mute()
			case protocol.ActionUnmute:
				vs.Unmute()
			}
		case protocol.ClientAudioChunk:
			_ = vs.ForwardAudio(m.PCM16Base64, m.SampleRate)
		default:
			s.enqueue(outbound, protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "wrong_channel",
				Source: "gateway",
				Detail: "message type not valid on the call socket",
			})
		}
	}

	vs.End()
	_, _ = s.deps.Sessions.End(reg.ID)
	cancel()
	<-writerDone
	s.deps.Metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}
