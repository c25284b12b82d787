package playback

import (
	"fmt"
	"sync"

	"github.com/dhruvmehra/jyotiline/internal/protocol"
)

// RemoteElement bridges the Resource contract to a browser <audio>
// element driven over one websocket connection: commands go out, element
// events come back. With no element attached, play requests fail with
// ErrDetached and the controller degrades to paused.
type RemoteElement struct {
	mu      sync.Mutex
	send    func(protocol.PlayerCommand) error
	events  chan Event
	pending map[int64]chan error
	nextID  int64
	closed  bool
}

func NewRemoteElement() *RemoteElement {
	return &RemoteElement{
		events:  make(chan Event, 64),
		pending: make(map[int64]chan error),
	}
}

// Attach binds the element connection. A newly attached element replaces
// any previous one; pending plays against the old element are superseded.
func (r *RemoteElement) Attach(send func(protocol.PlayerCommand) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failPendingLocked(ErrSuperseded)
	r.send = send
}

// Detach drops the element connection; in-flight plays fail detached.
func (r *RemoteElement) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.send = nil
	r.failPendingLocked(ErrDetached)
}

func (r *RemoteElement) failPendingLocked(err error) {
	for id, ch := range r.pending {
		ch <- err
		delete(r.pending, id)
	}
}

func (r *RemoteElement) sendLocked(cmd protocol.PlayerCommand) error {
	if r.send == nil {
		return ErrDetached
	}
	cmd.Type = protocol.TypePlayerCommand
	return r.send(cmd)
}

func (r *RemoteElement) Load(src string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	// Standard media semantics: a new load aborts in-flight play requests.
	r.failPendingLocked(ErrSuperseded)
	_ = r.sendLocked(protocol.PlayerCommand{Command: protocol.PlayerCommandLoad, Src: src})
}

func (r *RemoteElement) Play() <-chan error {
	ch := make(chan error, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		ch <- ErrDetached
		return ch
	}
	r.nextID++
	id := r.nextID
	if err := r.sendLocked(protocol.PlayerCommand{Command: protocol.PlayerCommandPlay, PlayID: id}); err != nil {
		ch <- err
		return ch
	}
	r.pending[id] = ch
	return ch
}

func (r *RemoteElement) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	_ = r.sendLocked(protocol.PlayerCommand{Command: protocol.PlayerCommandPause})
}

func (r *RemoteElement) Seek(seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	_ = r.sendLocked(protocol.PlayerCommand{Command: protocol.PlayerCommandSeek, PositionSeconds: seconds})
}

func (r *RemoteElement) Events() <-chan Event { return r.events }

func (r *RemoteElement) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.send = nil
	r.failPendingLocked(ErrDetached)
	close(r.events)
	return nil
}

// HandleEvent ingests one element report from the websocket.
func (r *RemoteElement) HandleEvent(ev protocol.PlayerEvent) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	if ev.Kind == protocol.PlayerEventPlayResult {
		ch, ok := r.pending[ev.PlayID]
		if ok {
			delete(r.pending, ev.PlayID)
			ch <- playResultError(ev.Code)
		}
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	var out Event
	switch ev.Kind {
	case protocol.PlayerEventTimeUpdate:
		out = Event{Kind: EventPosition, Seconds: ev.PositionSeconds}
	case protocol.PlayerEventDurationChange:
		out = Event{Kind: EventDuration, Seconds: ev.DurationSeconds}
	case protocol.PlayerEventEnded:
		out = Event{Kind: EventEnded}
	default:
		return
	}
	select {
	case r.events <- out:
	default:
		// Position spam from a slow consumer is droppable; ended is not,
		// but the channel is large enough that only timeupdates pile up.
	}
}

func playResultError(code string) error {
	switch code {
	case "":
		return nil
	case "superseded", "aborted", "AbortError":
		return ErrSuperseded
	default:
		return fmt.Errorf("play rejected: %s", code)
	}
}
