// Package pooja runs the interactive ritual screen: pick a deity, play
// their aarti through the shared player, and ring the bell with
// offerings.
package pooja

import (
	"errors"
	"sync"
	"time"

	"github.com/dhruvmehra/jyotiline/internal/catalog"
	"github.com/dhruvmehra/jyotiline/internal/observability"
	"github.com/dhruvmehra/jyotiline/internal/playback"
)

// bellThrottle spaces out offering taps so a mashed button rings once.
const bellThrottle = 200 * time.Millisecond

var (
	ErrUnknownDeity = errors.New("unknown deity")
	ErrNoRitual     = errors.New("no ritual in progress")
)

// State is a snapshot of the ritual screen.
type State struct {
	Deity     *catalog.Deity `json:"deity,omitempty"`
	Offerings int            `json:"offerings"`
	Active    bool           `json:"active"`
}

// Service owns the single ritual in progress. The aarti goes through the
// shared playback controller, so starting a ritual displaces whatever the
// player was doing, exactly like picking a new bhajan would.
type Service struct {
	catalog *catalog.Catalog
	player  *playback.Controller
	metrics *observability.Metrics

	mu        sync.Mutex
	deity     *catalog.Deity
	offerings int
	lastBell  time.Time
	now       func() time.Time
}

func NewService(cat *catalog.Catalog, player *playback.Controller, metrics *observability.Metrics) *Service {
	return &Service{
		catalog: cat,
		player:  player,
		metrics: metrics,
		now:     time.Now,
	}
}

// Start begins a ritual for the named deity and plays their aarti.
// Starting over an in-progress ritual switches deities and resets the
// offering count.
func (s *Service) Start(deityName string) (State, error) {
	d, err := s.catalog.Deity(deityName)
	if err != nil {
		return State{}, ErrUnknownDeity
	}

	aarti, err := s.catalog.Track(d.AartiID)
	if err != nil {
		return State{}, err
	}

	s.mu.Lock()
	s.deity = &d
	s.offerings = 0
	s.lastBell = time.Time{}
	s.mu.Unlock()

	s.player.PlayPlaylist([]catalog.Track{aarti}, 0)
	s.metrics.SessionEvents.WithLabelValues("pooja_started").Inc()
	return s.State(), nil
}

// Offer registers one offering tap. Taps inside the bell throttle window
// still count a ring visually on the client but not here; the count is
// what the throttle admits.
func (s *Service) Offer() (State, error) {
	s.mu.Lock()
	if s.deity == nil {
		s.mu.Unlock()
		return State{}, ErrNoRitual
	}
	now := s.now()
	if now.Sub(s.lastBell) >= bellThrottle {
		s.offerings++
		s.lastBell = now
	}
	s.mu.Unlock()
	return s.State(), nil
}

// Stop ends the ritual and releases the player.
func (s *Service) Stop() State {
	s.mu.Lock()
	active := s.deity != nil
	s.deity = nil
	s.offerings = 0
	s.mu.Unlock()

	if active {
		s.player.ClosePlayer()
		s.metrics.SessionEvents.WithLabelValues("pooja_stopped").Inc()
	}
	return s.State()
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{Offerings: s.offerings, Active: s.deity != nil}
	if s.deity != nil {
		d := *s.deity
		st.Deity = &d
	}
	return st
}
