package playback

import (
	"errors"
	"sync"
	"testing"

	"github.com/dhruvmehra/jyotiline/internal/protocol"
)

type commandLog struct {
	mu   sync.Mutex
	cmds []protocol.PlayerCommand
	err  error
}

func (l *commandLog) send(cmd protocol.PlayerCommand) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.cmds = append(l.cmds, cmd)
	return nil
}

func (l *commandLog) last() protocol.PlayerCommand {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cmds[len(l.cmds)-1]
}

func TestRemoteElementPlayResolvesFromPlayResult(t *testing.T) {
	r := NewRemoteElement()
	defer r.Close()
	log := &commandLog{}
	r.Attach(log.send)

	r.Load("/audio/a.mp3")
	result := r.Play()

	cmd := log.last()
	if cmd.Command != protocol.PlayerCommandPlay || cmd.PlayID == 0 {
		t.Fatalf("play command = %+v", cmd)
	}

	r.HandleEvent(protocol.PlayerEvent{Kind: protocol.PlayerEventPlayResult, PlayID: cmd.PlayID})
	if err := <-result; err != nil {
		t.Fatalf("play result = %v, want nil", err)
	}
}

func TestRemoteElementAbortCodesMapToSuperseded(t *testing.T) {
	for _, code := range []string{"AbortError", "aborted", "superseded"} {
		r := NewRemoteElement()
		log := &commandLog{}
		r.Attach(log.send)

		result := r.Play()
		r.HandleEvent(protocol.PlayerEvent{Kind: protocol.PlayerEventPlayResult, PlayID: log.last().PlayID, Code: code})
		if err := <-result; !errors.Is(err, ErrSuperseded) {
			t.Fatalf("code %q: play result = %v, want ErrSuperseded", code, err)
		}
		_ = r.Close()
	}
}

func TestRemoteElementOtherCodesAreRealErrors(t *testing.T) {
	r := NewRemoteElement()
	defer r.Close()
	log := &commandLog{}
	r.Attach(log.send)

	result := r.Play()
	r.HandleEvent(protocol.PlayerEvent{Kind: protocol.PlayerEventPlayResult, PlayID: log.last().PlayID, Code: "NotAllowedError"})
	err := <-result
	if err == nil || errors.Is(err, ErrSuperseded) {
		t.Fatalf("play result = %v, want a real error", err)
	}
}

func TestRemoteElementLoadSupersedesPendingPlay(t *testing.T) {
	r := NewRemoteElement()
	defer r.Close()
	log := &commandLog{}
	r.Attach(log.send)

	result := r.Play()
	r.Load("/audio/b.mp3")
	if err := <-result; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("pending play after load = %v, want ErrSuperseded", err)
	}
}

func TestRemoteElementDetachedPlayFails(t *testing.T) {
	r := NewRemoteElement()
	defer r.Close()

	if err := <-r.Play(); !errors.Is(err, ErrDetached) {
		t.Fatalf("detached play = %v, want ErrDetached", err)
	}

	log := &commandLog{}
	r.Attach(log.send)
	result := r.Play()
	r.Detach()
	if err := <-result; !errors.Is(err, ErrDetached) {
		t.Fatalf("play across detach = %v, want ErrDetached", err)
	}
}

func TestRemoteElementEventMapping(t *testing.T) {
	r := NewRemoteElement()
	defer r.Close()
	r.Attach((&commandLog{}).send)

	r.HandleEvent(protocol.PlayerEvent{Kind: protocol.PlayerEventDurationChange, DurationSeconds: 180})
	r.HandleEvent(protocol.PlayerEvent{Kind: protocol.PlayerEventTimeUpdate, PositionSeconds: 12})
	r.HandleEvent(protocol.PlayerEvent{Kind: protocol.PlayerEventEnded})

	want := []Event{
		{Kind: EventDuration, Seconds: 180},
		{Kind: EventPosition, Seconds: 12},
		{Kind: EventEnded},
	}
	for i, w := range want {
		got := <-r.Events()
		if got != w {
			t.Fatalf("event %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestRemoteElementNewAttachReplacesOld(t *testing.T) {
	r := NewRemoteElement()
	defer r.Close()

	old := &commandLog{}
	r.Attach(old.send)
	result := r.Play()

	next := &commandLog{}
	r.Attach(next.send)
	if err := <-result; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("pending play across reattach = %v, want ErrSuperseded", err)
	}

	r.Pause()
	if got := next.last().Command; got != protocol.PlayerCommandPause {
		t.Fatalf("command after reattach went to old element")
	}
}
