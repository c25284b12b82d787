package playback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dhruvmehra/jyotiline/internal/catalog"
	"github.com/dhruvmehra/jyotiline/internal/observability"
)

// State is a point-in-time snapshot of the playback session.
type State struct {
	Track           *catalog.Track
	Index           int // -1 when no track is selected
	PlaylistLen     int
	Playing         bool
	PositionSeconds float64
	DurationSeconds float64
}

// Controller owns the single audio resource and the playlist cursor. All
// surfaces (mini player, full player, pooja screen) go through the same
// instance, so at most one element ever plays.
type Controller struct {
	res     Resource
	metrics *observability.Metrics

	mu        sync.Mutex
	playlist  []catalog.Track
	cursor    int
	playing   bool
	position  float64
	duration  float64
	loadedSrc string
	playSeq   int64
	closed    bool

	done chan struct{}
}

// NewController attaches to the resource's event stream exactly once for
// the controller's lifetime.
func NewController(res Resource, metrics *observability.Metrics) *Controller {
	c := &Controller{
		res:     res,
		metrics: metrics,
		cursor:  -1,
		done:    make(chan struct{}),
	}
	go c.watchResource()
	return c
}

func (c *Controller) watchResource() {
	events := c.res.Events()
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case EventPosition:
				c.mu.Lock()
				c.position = ev.Seconds
				c.mu.Unlock()
			case EventDuration:
				c.mu.Lock()
				c.duration = ev.Seconds
				c.mu.Unlock()
			case EventEnded:
				c.metrics.PlaybackEvents.WithLabelValues("track_ended").Inc()
				c.PlayNext()
			}
		}
	}
}

// PlayPlaylist replaces the playlist and cursor atomically and starts
// playing. An empty playlist or out-of-range index is a caller bug.
func (c *Controller) PlayPlaylist(tracks []catalog.Track, startIndex int) {
	if len(tracks) == 0 || startIndex < 0 || startIndex >= len(tracks) {
		panic(fmt.Sprintf("playback: invalid playlist start: len=%d index=%d", len(tracks), startIndex))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.playlist = make([]catalog.Track, len(tracks))
	copy(c.playlist, tracks)
	c.cursor = startIndex
	c.playing = true
	c.metrics.PlaybackEvents.WithLabelValues("playlist_started").Inc()
	c.reconcileLocked()
}

// TogglePlayPause flips the desired play state; no-op without a track.
func (c *Controller) TogglePlayPause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.cursor < 0 {
		return
	}
	c.playing = !c.playing
	c.reconcileLocked()
}

// PlayNext advances the cursor with wraparound; no-op on empty playlist.
func (c *Controller) PlayNext() {
	c.step(1)
}

// PlayPrev retreats the cursor with wraparound; no-op on empty playlist.
func (c *Controller) PlayPrev() {
	c.step(-1)
}

func (c *Controller) step(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.playlist) == 0 {
		return
	}
	if c.cursor < 0 {
		c.cursor = 0
	} else {
		n := len(c.playlist)
		c.cursor = (c.cursor + delta + n) % n
	}
	c.playing = true
	c.reconcileLocked()
}

// Seek forwards the request to the resource; bounds are the resource's
// concern.
func (c *Controller) Seek(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.cursor < 0 {
		return
	}
	c.res.Seek(seconds)
}

// ClosePlayer releases the loaded source and resets to the empty session.
// The controller stays usable; a later PlayPlaylist starts fresh.
func (c *Controller) ClosePlayer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.playlist = nil
	c.cursor = -1
	c.playing = false
	c.position = 0
	c.duration = 0
	c.metrics.PlaybackEvents.WithLabelValues("player_closed").Inc()
	c.reconcileLocked()
}

// Shutdown detaches from the resource for good; used at process exit.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
	_ = c.res.Close()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Index:           c.cursor,
		PlaylistLen:     len(c.playlist),
		Playing:         c.playing,
		PositionSeconds: c.position,
		DurationSeconds: c.duration,
	}
	if c.cursor >= 0 {
		track := c.playlist[c.cursor]
		s.Track = &track
	}
	return s
}

// reconcileLocked drives the resource toward (currentTrack, playing).
// Idempotent and re-entrant: a stale play attempt's result is ignored via
// the sequence check, and a rejection caused by a newer load is swallowed
// as the expected race it is.
func (c *Controller) reconcileLocked() {
	if c.cursor < 0 {
		c.res.Pause()
		if c.loadedSrc != "" {
			c.res.Load("")
			c.loadedSrc = ""
		}
		return
	}

	cur := c.playlist[c.cursor]
	if c.loadedSrc != cur.AudioSrc {
		c.res.Load(cur.AudioSrc)
		c.loadedSrc = cur.AudioSrc
		c.position = 0
		c.duration = 0
	}

	if !c.playing {
		c.res.Pause()
		return
	}

	c.playSeq++
	seq := c.playSeq
	result := c.res.Play()
	go func() {
		err := <-result
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || seq != c.playSeq {
			return
		}
		if err != nil && !errors.Is(err, ErrSuperseded) {
			c.playing = false
			c.metrics.PlaybackEvents.WithLabelValues("play_failed").Inc()
		}
	}()
}
