package consult

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dhruvmehra/jyotiline/internal/brain"
	"github.com/dhruvmehra/jyotiline/internal/catalog"
	"github.com/dhruvmehra/jyotiline/internal/history"
	"github.com/dhruvmehra/jyotiline/internal/observability"
)

// ChatDeps bundles what a chat session needs; unlike voice it borrows no
// audio resources.
type ChatDeps struct {
	Brain   brain.Client
	History history.Store
	Metrics *observability.Metrics
}

// ChatSession runs one text consultation. Submitted messages appear in
// the transcript immediately; requests to the brain are strictly
// serialized on the session's run goroutine, so replies always land in
// submission order.
type ChatSession struct {
	ID      string
	Subject catalog.Astrologer

	deps   ChatDeps
	notify func(Update)

	ctx    context.Context
	cancel context.CancelFunc

	pending chan string
	done    chan struct{}

	endOnce sync.Once

	mu    sync.Mutex
	state TurnState

	transcript *Transcript
}

func NewChatSession(subject catalog.Astrologer, deps ChatDeps, notify func(Update)) *ChatSession {
	if deps.History == nil {
		deps.History = history.NoopStore{}
	}
	if notify == nil {
		notify = func(Update) {}
	}
	return &ChatSession{
		ID:         uuid.NewString(),
		Subject:    subject,
		deps:       deps,
		notify:     notify,
		pending:    make(chan string, 32),
		done:       make(chan struct{}),
		state:      StateIdle,
		transcript: NewTranscript(),
	}
}

func (s *ChatSession) Start(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.deps.Metrics.ActiveSessions.Inc()
	s.deps.Metrics.SessionEvents.WithLabelValues("chat_started").Inc()
	s.notifyState("")
	go s.run()
}

// Submit queues one user message. The transcript entry appears right
// away; the reply is produced in turn. Blank messages are dropped.
func (s *ChatSession) Submit(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.mu.Lock()
	terminal := s.state.Terminal() || s.state == StateIdle
	s.mu.Unlock()
	if terminal {
		return
	}

	entry := s.transcript.Append(SpeakerUser, text)
	s.notify(Update{Kind: UpdateEntry, Entry: &entry})
	s.saveUtterance(SpeakerUser, text)

	select {
	case s.pending <- text:
	default:
		// A full queue means the client is flooding; drop rather than block
		// the transport goroutine.
		s.deps.Metrics.SessionEvents.WithLabelValues("chat_submit_dropped").Inc()
	}
}

func (s *ChatSession) End() {
	s.mu.Lock()
	started := s.state != StateIdle
	if !started {
		s.state = StateEnded
	}
	s.mu.Unlock()
	if started {
		s.cancel()
	}
}

func (s *ChatSession) Done() <-chan struct{} { return s.done }

func (s *ChatSession) Snapshot() VoiceSnapshot {
	s.mu.Lock()
	snap := VoiceSnapshot{State: s.state}
	s.mu.Unlock()
	snap.Entries = s.transcript.Entries()
	return snap
}

func (s *ChatSession) run() {
	defer s.finish()

	recent, err := s.deps.History.Recent(s.ctx, s.Subject.ID, 12)
	if err != nil {
		log.Printf("chat %s: history unavailable: %v", s.ID, err)
	}

	conv, err := s.deps.Brain.StartConversation(s.ctx, buildPersona(s.Subject, recent))
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.deps.Metrics.ProviderErrors.WithLabelValues("brain", "start").Inc()
		msg := connectFailureMessage
		if brain.IsMissingCredential(err) {
			msg = missingCredentialMessage
		}
		entry := s.transcript.Append(SpeakerAssistant, msg)
		s.notify(Update{Kind: UpdateEntry, Entry: &entry})
		s.setState(StateErrored)
		return
	}
	defer conv.Close()

	s.streamReply(conv, chatGreetingPrompt)

	for {
		s.setState(StateAwaitingUserSubmit)
		select {
		case <-s.ctx.Done():
			return
		case text := <-s.pending:
			s.streamReply(conv, text)
		}
	}
}

// streamReply drives one streamed exchange. A mid-stream failure never
// leaves a dangling in-progress entry: the entry is finalized with the
// apology text and the session returns to accepting input.
func (s *ChatSession) streamReply(conv brain.Conversation, prompt string) {
	s.setState(StateStreamingAssistantResponse)

	entry := s.transcript.Start(SpeakerAssistant)
	s.notify(Update{Kind: UpdateEntry, Entry: &entry})

	full, err := conv.SendStream(s.ctx, prompt, func(delta string) error {
		updated, ok := s.transcript.AppendDelta(entry.ID, delta)
		if ok {
			s.notify(Update{Kind: UpdateEntry, Entry: &updated})
		}
		return nil
	})
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		log.Printf("chat %s: stream failed: %v", s.ID, err)
		s.deps.Metrics.ProviderErrors.WithLabelValues("brain", "stream").Inc()
		if final, ok := s.transcript.Finalize(entry.ID, chatApology); ok {
			s.notify(Update{Kind: UpdateEntry, Entry: &final})
		}
		return
	}

	if final, ok := s.transcript.Finalize(entry.ID, ""); ok {
		s.notify(Update{Kind: UpdateEntry, Entry: &final})
	}
	s.saveUtterance(SpeakerAssistant, full)
}

func (s *ChatSession) finish() {
	s.endOnce.Do(func() {
		s.mu.Lock()
		if !s.state.Terminal() {
			s.state = StateEnded
		}
		final := s.state
		s.mu.Unlock()

		s.cancel()
		s.deps.Metrics.ActiveSessions.Dec()
		if final == StateErrored {
			s.deps.Metrics.SessionEvents.WithLabelValues("chat_errored").Inc()
		} else {
			s.deps.Metrics.SessionEvents.WithLabelValues("chat_ended").Inc()
		}
		s.notifyState("")
		close(s.done)
	})
}

func (s *ChatSession) setState(st TurnState) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()
	s.notifyState("")
}

func (s *ChatSession) notifyState(detail string) {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	s.notify(Update{Kind: UpdateState, State: st, Detail: detail})
}

func (s *ChatSession) saveUtterance(sp Speaker, text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historySaveTimeout)
		defer cancel()
		err := s.deps.History.Save(ctx, history.Utterance{
			SubjectID:   s.Subject.ID,
			SessionID:   s.ID,
			SessionKind: "chat",
			Speaker:     string(sp),
			Text:        text,
		})
		if err != nil {
			log.Printf("chat %s: save transcript line: %v", s.ID, err)
		}
	}()
}
