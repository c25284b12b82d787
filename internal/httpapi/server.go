package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/dhruvmehra/jyotiline/internal/catalog"
	"github.com/dhruvmehra/jyotiline/internal/config"
	"github.com/dhruvmehra/jyotiline/internal/consult"
	"github.com/dhruvmehra/jyotiline/internal/observability"
	"github.com/dhruvmehra/jyotiline/internal/playback"
	"github.com/dhruvmehra/jyotiline/internal/pooja"
	"github.com/dhruvmehra/jyotiline/internal/session"
)

// Deps are the constructed services the API fronts.
type Deps struct {
	Catalog  *catalog.Catalog
	Sessions *session.Manager
	Metrics  *observability.Metrics
	Player   *playback.Controller
	Element  *playback.RemoteElement
	Pooja    *pooja.Service
	Voice    consult.VoiceDeps
	Chat     consult.ChatDeps
	VoiceCfg consult.VoiceConfig
}

type Server struct {
	cfg      config.Config
	deps     Deps
	upgrader websocket.Upgrader

	// live maps registry session IDs to their end functions so the
	// inactivity janitor can tear down the real session, not just the
	// bookkeeping row.
	liveMu sync.Mutex
	live   map[string]func()
}

func New(cfg config.Config, deps Deps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		live: make(map[string]func()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a mic session unless
				// explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
	deps.Sessions.SetExpireHook(func(sess *session.Session) {
		s.endLive(sess.ID)
	})
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/astrologers", s.handleListAstrologers)
	r.Get("/v1/astrologers/{id}", s.handleGetAstrologer)
	r.Get("/v1/bhajans", s.handleListBhajans)
	r.Get("/v1/deities", s.handleListDeities)
	r.Get("/v1/sessions", s.handleListSessions)

	r.Get("/v1/call/ws", s.handleCallWS)
	r.Get("/v1/chat/ws", s.handleChatWS)

	r.Get("/v1/player/ws", s.handlePlayerWS)
	r.Get("/v1/player", s.handlePlayerState)
	r.Post("/v1/player/playlist", s.handlePlayerPlaylist)
	r.Post("/v1/player/toggle", s.handlePlayerToggle)
	r.Post("/v1/player/next", s.handlePlayerNext)
	r.Post("/v1/player/prev", s.handlePlayerPrev)
	r.Post("/v1/player/seek", s.handlePlayerSeek)
	r.Post("/v1/player/close", s.handlePlayerClose)

	r.Post("/v1/pooja/start", s.handlePoojaStart)
	r.Post("/v1/pooja/offer", s.handlePoojaOffer)
	r.Post("/v1/pooja/stop", s.handlePoojaStop)
	r.Get("/v1/pooja", s.handlePoojaState)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.deps.Sessions.ActiveCount(),
	})
}

func (s *Server) handleListAstrologers(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"astrologers": s.deps.Catalog.Astrologers()})
}

func (s *Server) handleGetAstrologer(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Catalog.Astrologer(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "astrologer_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleListBhajans(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"tracks": s.deps.Catalog.Tracks()})
}

func (s *Server) handleListDeities(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"deities": s.deps.Catalog.Deities()})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"sessions": s.deps.Sessions.Active()})
}

func (s *Server) trackLive(id string, end func()) {
	s.liveMu.Lock()
	s.live[id] = end
	s.liveMu.Unlock()
}

func (s *Server) dropLive(id string) {
	s.liveMu.Lock()
	delete(s.live, id)
	s.liveMu.Unlock()
}

func (s *Server) endLive(id string) {
	s.liveMu.Lock()
	end := s.live[id]
	delete(s.live, id)
	s.liveMu.Unlock()
	if end != nil {
		end()
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
