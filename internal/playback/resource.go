package playback

import "errors"

// ErrSuperseded marks a play request invalidated by a newer load. This is
// an expected race under rapid track switching, not a failure.
var ErrSuperseded = errors.New("play request superseded by newer load")

// ErrDetached is returned when no audio element is attached to serve the
// request.
var ErrDetached = errors.New("audio element detached")

type EventKind string

const (
	EventPosition EventKind = "position"
	EventDuration EventKind = "duration"
	EventEnded    EventKind = "ended"
)

// Event is a notification from the owned audio resource. Seconds carries
// the observed position or duration; it is advisory, never authoritative.
type Event struct {
	Kind    EventKind
	Seconds float64
}

// Resource is the single owned audio output element.
type Resource interface {
	// Load points the element at a new source; an empty src clears it.
	// Loading invalidates any in-flight play request.
	Load(src string)
	// Play requests playback start. The returned channel yields exactly
	// one value: nil once playback began, ErrSuperseded when a newer load
	// invalidated the request, or another error on failure.
	Play() <-chan error
	// Pause is synchronous and not expected to fail.
	Pause()
	Seek(seconds float64)
	// Events delivers position/duration/ended notifications until Close.
	Events() <-chan Event
	Close() error
}
