package speech

import (
	"context"
	"encoding/base64"
	"sync"
)

// MockRecognizer is an in-memory recognizer used in mock provider mode and
// by tests. Activations are driven manually through the handle returned by
// Handles, or automatically when AutoResultEvery is set (a result is
// committed after that many audio chunks, mimicking an endpointing STT).
type MockRecognizer struct {
	// AutoResultEvery > 0 commits "simulated voice input" after that many
	// SendAudio calls. Zero means fully manual.
	AutoResultEvery int

	mu       sync.Mutex
	active   bool
	starts   int
	startErr error
	handles  chan *MockRecognition
}

func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{handles: make(chan *MockRecognition, 16)}
}

// FailStart makes the next Start calls return err.
func (r *MockRecognizer) FailStart(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr = err
}

// Starts reports how many activations were actually begun.
func (r *MockRecognizer) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// Handles yields each activation as it starts, for test scripting.
func (r *MockRecognizer) Handles() <-chan *MockRecognition { return r.handles }

func (r *MockRecognizer) Start(_ context.Context) (Recognition, <-chan RecognitionEvent, error) {
	r.mu.Lock()
	if r.startErr != nil {
		err := r.startErr
		r.mu.Unlock()
		return nil, nil, err
	}
	if r.active {
		r.mu.Unlock()
		return nil, nil, ErrRecognizerBusy
	}
	r.active = true
	r.starts++
	rec := &MockRecognition{
		owner:  r,
		auto:   r.AutoResultEvery,
		events: make(chan RecognitionEvent, 8),
	}
	r.mu.Unlock()

	select {
	case r.handles <- rec:
	default:
	}
	return rec, rec.events, nil
}

type MockRecognition struct {
	owner  *MockRecognizer
	auto   int
	events chan RecognitionEvent

	mu     sync.Mutex
	chunks int
	aborts int
	ended  bool
}

func (s *MockRecognition) SendAudio(_ context.Context, _ string, _ int) error {
	s.mu.Lock()
	s.chunks++
	fire := s.auto > 0 && s.chunks%s.auto == 0 && !s.ended
	s.mu.Unlock()
	if fire {
		s.EmitResult("simulated voice input")
		s.End()
	}
	return nil
}

func (s *MockRecognition) Abort() error {
	s.mu.Lock()
	s.aborts++
	s.mu.Unlock()
	s.End()
	return nil
}

// Aborts reports how many times Abort was called.
func (s *MockRecognition) Aborts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborts
}

// EmitResult delivers a recognized utterance without ending the
// activation; callers follow up with End, as the real resource does.
func (s *MockRecognition) EmitResult(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.events <- RecognitionEvent{Kind: RecognitionResult, Text: text}
}

func (s *MockRecognition) EmitError(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.events <- RecognitionEvent{Kind: RecognitionError, Code: code}
}

// End closes the activation: emits End, closes the channel, and frees the
// recognizer for the next Start. Safe to call more than once.
func (s *MockRecognition) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.events <- RecognitionEvent{Kind: RecognitionEnd}
	close(s.events)
	s.mu.Unlock()

	s.owner.mu.Lock()
	s.owner.active = false
	s.owner.mu.Unlock()
}

// MockSynthesizer is an in-memory synthesizer. Each Speak emits one audio
// chunk holding the base64 text; utterances finish manually via the
// handle, or immediately when AutoFinish is set.
type MockSynthesizer struct {
	AutoFinish bool

	mu         sync.Mutex
	current    *MockUtterance
	spoken     []string
	cancels    int
	utterances chan *MockUtterance
}

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{utterances: make(chan *MockUtterance, 16)}
}

func (p *MockSynthesizer) Spoken() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.spoken))
	copy(out, p.spoken)
	return out
}

func (p *MockSynthesizer) Cancels() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancels
}

// Utterances yields each utterance as it starts, for test scripting.
func (p *MockSynthesizer) Utterances() <-chan *MockUtterance { return p.utterances }

func (p *MockSynthesizer) Speak(_ context.Context, text string) (Utterance, error) {
	p.mu.Lock()
	prev := p.current
	p.current = nil
	p.mu.Unlock()
	if prev != nil {
		prev.finish(false)
	}

	utt := &MockUtterance{
		Text:  text,
		audio: make(chan AudioChunk, 4),
		done:  make(chan bool, 1),
	}
	utt.audio <- AudioChunk{Base64: base64.StdEncoding.EncodeToString([]byte(text)), Format: "mock_text_bytes"}

	p.mu.Lock()
	p.current = utt
	p.spoken = append(p.spoken, text)
	p.mu.Unlock()

	select {
	case p.utterances <- utt:
	default:
	}
	if p.AutoFinish {
		utt.finish(true)
	}
	return utt, nil
}

func (p *MockSynthesizer) Cancel() {
	p.mu.Lock()
	prev := p.current
	p.current = nil
	p.cancels++
	p.mu.Unlock()
	if prev != nil {
		prev.finish(false)
	}
}

type MockUtterance struct {
	Text string

	audio   chan AudioChunk
	done    chan bool
	finOnce sync.Once
}

func (u *MockUtterance) Audio() <-chan AudioChunk { return u.audio }
func (u *MockUtterance) Done() <-chan bool        { return u.done }

// Finish completes the utterance as naturally finished.
func (u *MockUtterance) Finish() { u.finish(true) }

func (u *MockUtterance) finish(ok bool) {
	u.finOnce.Do(func() {
		close(u.audio)
		u.done <- ok
		close(u.done)
	})
}
