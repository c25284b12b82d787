package consult

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dhruvmehra/jyotiline/internal/brain"
	"github.com/dhruvmehra/jyotiline/internal/catalog"
	"github.com/dhruvmehra/jyotiline/internal/history"
	"github.com/dhruvmehra/jyotiline/internal/observability"
	"github.com/dhruvmehra/jyotiline/internal/speech"
)

const historySaveTimeout = 3 * time.Second

// VoiceConfig tunes session timing. Zero values mean no delay, which is
// what tests want; production values come from the config package.
type VoiceConfig struct {
	// ConnectDelay is held before opening the brain conversation, giving
	// the call screen its "connecting" moment.
	ConnectDelay time.Duration
	// SilenceRestartDelay spaces out capture restarts when the recognizer
	// keeps ending without hearing anything.
	SilenceRestartDelay time.Duration
}

type UpdateKind string

const (
	UpdateState UpdateKind = "state"
	UpdateEntry UpdateKind = "entry"
	UpdateAudio UpdateKind = "audio"
)

// Update is one notification pushed to the session's transport.
type Update struct {
	Kind           UpdateKind
	State          TurnState
	Muted          bool
	ElapsedSeconds int64
	Detail         string
	Entry          *Entry
	Audio          *speech.AudioChunk
}

// VoiceSnapshot is a point-in-time view for state queries.
type VoiceSnapshot struct {
	State          TurnState
	Muted          bool
	ElapsedSeconds int64
	Detail         string
	Entries        []Entry
}

type voiceEvent struct {
	kind voiceEventKind
	text string
	seq  int64
	ok   bool
	err  error
}

// VoiceDeps bundles the resources a voice session borrows for its
// lifetime.
type VoiceDeps struct {
	Brain       brain.Client
	Recognizer  speech.Recognizer
	Synthesizer speech.Synthesizer
	Guard       *ResourceGuard
	History     history.Store
	Metrics     *observability.Metrics
}

// VoiceSession runs one voice consultation. All state transitions happen
// on a single event loop goroutine; async resource callbacks post events
// into it and become no-ops once the session context is cancelled.
type VoiceSession struct {
	ID      string
	Subject catalog.Astrologer

	cfg    VoiceConfig
	deps   VoiceDeps
	notify func(Update)

	ctx    context.Context
	cancel context.CancelFunc
	events chan voiceEvent
	done   chan struct{}

	teardownOnce sync.Once

	mu        sync.Mutex
	started   bool
	state     TurnState
	muted     bool
	elapsed   int64
	detail    string
	conv      brain.Conversation
	recHandle speech.Recognition
	recActive bool
	synthSeq  int64
	askedAt   time.Time

	transcript *Transcript
}

func NewVoiceSession(subject catalog.Astrologer, deps VoiceDeps, cfg VoiceConfig, notify func(Update)) *VoiceSession {
	if deps.History == nil {
		deps.History = history.NoopStore{}
	}
	if deps.Guard == nil {
		deps.Guard = NewResourceGuard()
	}
	if notify == nil {
		notify = func(Update) {}
	}
	return &VoiceSession{
		ID:         uuid.NewString(),
		Subject:    subject,
		cfg:        cfg,
		deps:       deps,
		notify:     notify,
		events:     make(chan voiceEvent, 32),
		done:       make(chan struct{}),
		state:      StateIdle,
		transcript: NewTranscript(),
	}
}

// Start brings the session up: takes the audio guard, begins the elapsed
// clock machinery, and dials the brain after the connect delay. Calling
// Start twice is a no-op.
func (s *VoiceSession) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.state = StateConnecting
	s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.deps.Guard.Acquire(s.ID, s.End)
	s.deps.Metrics.ActiveSessions.Inc()
	s.deps.Metrics.SessionEvents.WithLabelValues("voice_started").Inc()
	s.notifyState("")

	go s.run()
	go s.connect()
}

// End tears the session down. Idempotent; safe from any goroutine,
// including the guard eviction path.
func (s *VoiceSession) End() {
	s.mu.Lock()
	started := s.started
	if !started && !s.state.Terminal() {
		s.state = StateEnded
	}
	s.mu.Unlock()
	if started {
		s.teardown(StateEnded, "")
	}
}

func (s *VoiceSession) Mute()   { s.postEvent(voiceEvent{kind: evMute}) }
func (s *VoiceSession) Unmute() { s.postEvent(voiceEvent{kind: evUnmute}) }

// Done is closed once teardown has completed.
func (s *VoiceSession) Done() <-chan struct{} { return s.done }

// ForwardAudio relays one captured audio chunk from the client into the
// live recognition, dropping it when no capture is active.
func (s *VoiceSession) ForwardAudio(pcm16Base64 string, sampleRate int) error {
	s.mu.Lock()
	h := s.recHandle
	ctx := s.ctx
	s.mu.Unlock()
	if h == nil || ctx == nil {
		return nil
	}
	return h.SendAudio(ctx, pcm16Base64, sampleRate)
}

func (s *VoiceSession) Snapshot() VoiceSnapshot {
	s.mu.Lock()
	snap := VoiceSnapshot{
		State:          s.state,
		Muted:          s.muted,
		ElapsedSeconds: s.elapsed,
		Detail:         s.detail,
	}
	s.mu.Unlock()
	snap.Entries = s.transcript.Entries()
	return snap
}

func (s *VoiceSession) postEvent(ev voiceEvent) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	select {
	case <-ctx.Done():
	case s.events <- ev:
	}
}

func (s *VoiceSession) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			s.teardown(StateEnded, "")
			return
		case <-ticker.C:
			s.tick()
		case ev := <-s.events:
			if s.handle(ev) {
				return
			}
		}
	}
}

func (s *VoiceSession) connect() {
	if s.cfg.ConnectDelay > 0 {
		t := time.NewTimer(s.cfg.ConnectDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-s.ctx.Done():
			return
		}
	}

	recent, err := s.deps.History.Recent(s.ctx, s.Subject.ID, 12)
	if err != nil {
		log.Printf("voice %s: history unavailable: %v", s.ID, err)
	}

	conv, err := s.deps.Brain.StartConversation(s.ctx, buildPersona(s.Subject, recent))
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.deps.Metrics.ProviderErrors.WithLabelValues("brain", "start").Inc()
		s.postEvent(voiceEvent{kind: evChannelFailed, err: err})
		return
	}

	s.mu.Lock()
	s.conv = conv
	s.mu.Unlock()
	s.postEvent(voiceEvent{kind: evChannelReady})
}

// handle processes one event on the loop goroutine. It returns true when
// the session reached a terminal state and the loop must exit.
func (s *VoiceSession) handle(ev voiceEvent) bool {
	switch ev.kind {
	case evEnd:
		s.teardown(StateEnded, "")
		return true
	case evFatal:
		s.teardown(StateErrored, ev.text)
		return true
	case evChannelFailed:
		if brain.IsMissingCredential(ev.err) {
			s.teardown(StateErrored, missingCredentialMessage)
		} else {
			log.Printf("voice %s: brain channel failed: %v", s.ID, ev.err)
			s.teardown(StateErrored, connectFailureMessage)
		}
		return true
	case evChannelReady:
		s.transition(evChannelReady, "")
		s.ask(voiceGreetingPrompt)
	case evAssistantText:
		s.handleAssistantText(ev.text)
	case evSynthDone:
		s.handleSynthDone(ev)
	case evRecognized:
		s.handleRecognized(ev.text)
	case evRecognitionEnded:
		s.handleRecognitionEnded()
	case evRecognitionRetry:
		if s.current() == StateCapturingUserInput {
			s.startRecognition()
		}
	case evMute:
		s.setMuted(true)
	case evUnmute:
		s.setMuted(false)
	}
	return false
}

func (s *VoiceSession) current() TurnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *VoiceSession) transition(kind voiceEventKind, detail string) bool {
	s.mu.Lock()
	next, ok := voiceTransition(s.state, kind)
	if ok {
		s.state = next
		if detail != "" {
			s.detail = detail
		}
	}
	s.mu.Unlock()
	if ok {
		s.notifyState(detail)
	}
	return ok
}

// ask sends one prompt to the brain off-loop. Transient failures become
// the in-band apology so the conversation keeps flowing; a missing
// credential is fatal.
func (s *VoiceSession) ask(prompt string) {
	s.mu.Lock()
	conv := s.conv
	s.mu.Unlock()
	if conv == nil {
		return
	}
	go func() {
		reply, err := conv.Send(s.ctx, prompt)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if brain.IsMissingCredential(err) {
				s.postEvent(voiceEvent{kind: evFatal, text: missingCredentialMessage})
				return
			}
			log.Printf("voice %s: brain send failed: %v", s.ID, err)
			s.deps.Metrics.ProviderErrors.WithLabelValues("brain", "send").Inc()
			reply = voiceApology
		}
		s.postEvent(voiceEvent{kind: evAssistantText, text: reply})
	}()
}

func (s *VoiceSession) handleAssistantText(text string) {
	if !s.transition(evAssistantText, "") {
		return
	}

	s.mu.Lock()
	if !s.askedAt.IsZero() {
		s.deps.Metrics.ObserveFirstReplyLatency(time.Since(s.askedAt))
		s.askedAt = time.Time{}
	}
	s.mu.Unlock()

	entry := s.transcript.Append(SpeakerAssistant, text)
	s.notifyEntry(entry)
	s.saveUtterance(SpeakerAssistant, text)
	s.speak(text)
}

// speak starts synthesis for one reply. The sequence number ties the
// utterance's completion back to this turn: a later Speak bumps the
// sequence, so the cancelled utterance's completion is ignored and can
// never hand the turn back on the replacement's behalf.
func (s *VoiceSession) speak(text string) {
	s.mu.Lock()
	s.synthSeq++
	seq := s.synthSeq
	s.mu.Unlock()

	utt, err := s.deps.Synthesizer.Speak(s.ctx, text)
	if err != nil {
		// Text-only degradation: the reply is already in the transcript,
		// hand the turn straight back to the user.
		log.Printf("voice %s: synthesis failed: %v", s.ID, err)
		s.deps.Metrics.ProviderErrors.WithLabelValues("synthesizer", "speak").Inc()
		s.handleSynthDone(voiceEvent{kind: evSynthDone, seq: seq, ok: true})
		return
	}

	go func() {
		for chunk := range utt.Audio() {
			c := chunk
			s.notify(Update{Kind: UpdateAudio, Audio: &c})
		}
	}()
	go func() {
		select {
		case finished := <-utt.Done():
			s.postEvent(voiceEvent{kind: evSynthDone, seq: seq, ok: finished})
		case <-s.ctx.Done():
		}
	}()
}

func (s *VoiceSession) handleSynthDone(ev voiceEvent) {
	s.mu.Lock()
	stale := ev.seq != s.synthSeq
	muted := s.muted
	s.mu.Unlock()
	if stale || !ev.ok {
		// Cancelled is not finished: only the live utterance's natural end
		// moves the turn forward.
		return
	}

	kind := evSynthDone
	if muted {
		kind = evSynthDoneMuted
	}
	if !s.transition(kind, "") {
		return
	}
	if !muted {
		s.startRecognition()
	}
}

// startRecognition begins a capture activation unless one is already
// live. The recActive flag is the re-entrancy guard: between a result and
// the activation's end event the flag stays set, so overlapping start
// requests collapse into the one live activation.
func (s *VoiceSession) startRecognition() {
	s.mu.Lock()
	if s.recActive || s.muted {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	rec, events, err := s.deps.Recognizer.Start(s.ctx)
	if err != nil {
		if errors.Is(err, speech.ErrRecognizerBusy) {
			// The prior activation has not signaled its end yet; its end
			// event retriggers capture.
			return
		}
		log.Printf("voice %s: recognition start failed: %v", s.ID, err)
		s.deps.Metrics.ProviderErrors.WithLabelValues("recognizer", "start").Inc()
		s.transition(evRecognitionFailed, "Microphone unavailable. You can still listen.")
		return
	}

	s.mu.Lock()
	s.recActive = true
	s.recHandle = rec
	s.mu.Unlock()
	go s.watchRecognition(events)
}

func (s *VoiceSession) watchRecognition(events <-chan speech.RecognitionEvent) {
	for ev := range events {
		switch ev.Kind {
		case speech.RecognitionResult:
			s.postEvent(voiceEvent{kind: evRecognized, text: ev.Text})
		case speech.RecognitionError:
			// Silence and deliberate aborts are routine; anything else is
			// worth counting.
			if ev.Code != "no-speech" && ev.Code != "aborted" {
				log.Printf("voice %s: recognition error %s: %s", s.ID, ev.Code, ev.Detail)
				s.deps.Metrics.ProviderErrors.WithLabelValues("recognizer", ev.Code).Inc()
			}
		case speech.RecognitionEnd:
			s.postEvent(voiceEvent{kind: evRecognitionEnded})
		}
	}
}

func (s *VoiceSession) handleRecognized(text string) {
	if s.current() != StateCapturingUserInput {
		return
	}

	entry := s.transcript.Append(SpeakerUser, text)
	s.notifyEntry(entry)
	s.saveUtterance(SpeakerUser, text)

	s.mu.Lock()
	s.askedAt = time.Now()
	s.mu.Unlock()
	s.transition(evRecognized, "")
	s.ask(text)
}

// handleRecognitionEnded restarts capture when the activation ended
// without a result, which is how browsers and streaming STT endpoints
// behave on sustained silence. The restart loop is unbounded on purpose:
// a quiet caller should find the mic still listening minutes later.
func (s *VoiceSession) handleRecognitionEnded() {
	s.mu.Lock()
	s.recActive = false
	s.recHandle = nil
	capturing := s.state == StateCapturingUserInput
	s.mu.Unlock()
	if !capturing {
		return
	}

	s.deps.Metrics.SessionEvents.WithLabelValues("recognition_restarted").Inc()
	if s.cfg.SilenceRestartDelay <= 0 {
		s.startRecognition()
		return
	}
	time.AfterFunc(s.cfg.SilenceRestartDelay, func() {
		s.postEvent(voiceEvent{kind: evRecognitionRetry})
	})
}

func (s *VoiceSession) setMuted(muted bool) {
	s.mu.Lock()
	if s.muted == muted {
		s.mu.Unlock()
		return
	}
	s.muted = muted
	handle := s.recHandle
	s.mu.Unlock()

	if muted {
		if handle != nil {
			_ = handle.Abort()
		}
		s.deps.Metrics.SessionEvents.WithLabelValues("muted").Inc()
		s.transition(evMute, "")
		return
	}

	s.deps.Metrics.SessionEvents.WithLabelValues("unmuted").Inc()
	s.transition(evUnmute, "")
	if s.current() == StateCapturingUserInput {
		s.startRecognition()
	}
}

func (s *VoiceSession) tick() {
	s.mu.Lock()
	if !s.state.Active() {
		s.mu.Unlock()
		return
	}
	s.elapsed++
	st, muted, el := s.state, s.muted, s.elapsed
	s.mu.Unlock()
	s.notify(Update{Kind: UpdateState, State: st, Muted: muted, ElapsedSeconds: el})
}

// teardown is the one exit path. It always attempts both halves of the
// audio teardown; a failing recognizer must not leave synthesis running
// and vice versa.
func (s *VoiceSession) teardown(final TurnState, detail string) {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		handle := s.recHandle
		s.recHandle = nil
		s.recActive = false
		conv := s.conv
		s.state = final
		if detail != "" {
			s.detail = detail
		}
		el, muted := s.elapsed, s.muted
		s.mu.Unlock()

		if handle != nil {
			_ = handle.Abort()
		}
		s.deps.Synthesizer.Cancel()
		if conv != nil {
			_ = conv.Close()
		}
		s.deps.Guard.Release(s.ID)
		s.cancel()

		s.deps.Metrics.ActiveSessions.Dec()
		if final == StateErrored {
			s.deps.Metrics.SessionEvents.WithLabelValues("voice_errored").Inc()
		} else {
			s.deps.Metrics.SessionEvents.WithLabelValues("voice_ended").Inc()
		}
		s.notify(Update{Kind: UpdateState, State: final, Muted: muted, ElapsedSeconds: el, Detail: detail})
		close(s.done)
	})
}

func (s *VoiceSession) notifyState(detail string) {
	s.mu.Lock()
	st, muted, el := s.state, s.muted, s.elapsed
	if detail == "" {
		detail = s.detail
	}
	s.mu.Unlock()
	s.notify(Update{Kind: UpdateState, State: st, Muted: muted, ElapsedSeconds: el, Detail: detail})
}

func (s *VoiceSession) notifyEntry(e Entry) {
	s.notify(Update{Kind: UpdateEntry, Entry: &e})
}

func (s *VoiceSession) saveUtterance(sp Speaker, text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historySaveTimeout)
		defer cancel()
		err := s.deps.History.Save(ctx, history.Utterance{
			SubjectID:   s.Subject.ID,
			SessionID:   s.ID,
			SessionKind: "voice",
			Speaker:     string(sp),
			Text:        text,
		})
		if err != nil {
			log.Printf("voice %s: save transcript line: %v", s.ID, err)
		}
	}()
}
