package httpapi

import (
	"errors"
	"net/http"

	"github.com/dhruvmehra/jyotiline/internal/pooja"
)

type poojaStartRequest struct {
	Deity string `json:"deity"`
}

func (s *Server) handlePoojaStart(w http.ResponseWriter, r *http.Request) {
	var req poojaStartRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	st, err := s.deps.Pooja.Start(req.Deity)
	if err != nil {
		if errors.Is(err, pooja.ErrUnknownDeity) {
			respondError(w, http.StatusNotFound, "deity_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "pooja_start_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handlePoojaOffer(w http.ResponseWriter, _ *http.Request) {
	st, err := s.deps.Pooja.Offer()
	if err != nil {
		respondError(w, http.StatusConflict, "no_ritual", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handlePoojaStop(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Pooja.Stop())
}

func (s *Server) handlePoojaState(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Pooja.State())
}
