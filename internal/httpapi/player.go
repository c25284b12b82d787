package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/dhruvmehra/jyotiline/internal/catalog"
	"github.com/dhruvmehra/jyotiline/internal/playback"
	"github.com/dhruvmehra/jyotiline/internal/protocol"
)

type playlistRequest struct {
	TrackIDs   []string `json:"track_ids"`
	StartIndex int      `json:"start_index"`
}

type seekRequest struct {
	PositionSeconds float64 `json:"position_seconds"`
}

func (s *Server) handlePlayerPlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.TrackIDs) == 0 {
		respondError(w, http.StatusBadRequest, "empty_playlist", "track_ids is required")
		return
	}
	if req.StartIndex < 0 || req.StartIndex >= len(req.TrackIDs) {
		respondError(w, http.StatusBadRequest, "invalid_start_index", "start_index out of range")
		return
	}

	tracks := make([]catalog.Track, 0, len(req.TrackIDs))
	for _, id := range req.TrackIDs {
		t, err := s.deps.Catalog.Track(id)
		if err != nil {
			respondError(w, http.StatusNotFound, "track_not_found", "unknown track "+id)
			return
		}
		tracks = append(tracks, t)
	}

	s.deps.Player.PlayPlaylist(tracks, req.StartIndex)
	s.respondPlayerState(w)
}

func (s *Server) handlePlayerToggle(w http.ResponseWriter, _ *http.Request) {
	s.deps.Player.TogglePlayPause()
	s.respondPlayerState(w)
}

func (s *Server) handlePlayerNext(w http.ResponseWriter, _ *http.Request) {
	s.deps.Player.PlayNext()
	s.respondPlayerState(w)
}

func (s *Server) handlePlayerPrev(w http.ResponseWriter, _ *http.Request) {
	s.deps.Player.PlayPrev()
	s.respondPlayerState(w)
}

func (s *Server) handlePlayerSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.deps.Player.Seek(req.PositionSeconds)
	s.respondPlayerState(w)
}

func (s *Server) handlePlayerClose(w http.ResponseWriter, _ *http.Request) {
	s.deps.Player.ClosePlayer()
	s.respondPlayerState(w)
}

func (s *Server) handlePlayerState(w http.ResponseWriter, _ *http.Request) {
	s.respondPlayerState(w)
}

func (s *Server) respondPlayerState(w http.ResponseWriter) {
	respondJSON(w, http.StatusOK, playerStateMessage(s.deps.Player.State()))
}

func playerStateMessage(st playback.State) protocol.PlayerState {
	msg := protocol.PlayerState{
		Type:            protocol.TypePlayerState,
		Playing:         st.Playing,
		PositionSeconds: st.PositionSeconds,
		DurationSeconds: st.DurationSeconds,
	}
	if st.Track != nil {
		msg.TrackID = st.Track.ID
	}
	return msg
}

// handlePlayerWS attaches the browser's audio element to the playback
// resource. One element at a time; a newer connection displaces the
// previous one.
func (s *Server) handlePlayerWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.deps.Metrics.SessionEvents.WithLabelValues("player_connected").Inc()

	var writeMu sync.Mutex
	send := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}

	s.deps.Element.Attach(func(cmd protocol.PlayerCommand) error {
		if err := send(cmd); err != nil {
			return err
		}
		s.deps.Metrics.WSMessages.WithLabelValues("outbound", string(protocol.TypePlayerCommand)).Inc()
		return nil
	})
	defer s.deps.Element.Detach()

	conn.SetReadLimit(64 << 10)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			_ = send(protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Source: "player",
				Detail: err.Error(),
			})
			continue
		}
		ev, ok := parsed.(protocol.PlayerEvent)
		if !ok {
			continue
		}
		s.deps.Metrics.WSMessages.WithLabelValues("inbound", string(protocol.TypePlayerEvent)).Inc()
		s.deps.Element.HandleEvent(ev)
		// Echo the authoritative state after anything that changes it so
		// every surface mirrors the same player.
		if ev.Kind != protocol.PlayerEventTimeUpdate {
			_ = send(playerStateMessage(s.deps.Player.State()))
		}
	}

	s.deps.Metrics.SessionEvents.WithLabelValues("player_disconnected").Inc()
}
