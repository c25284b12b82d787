package speech

import (
	"context"
	"errors"
)

// ErrRecognizerBusy is returned when Start is called while a prior
// activation has not yet signaled its own end.
var ErrRecognizerBusy = errors.New("recognizer already active")

type RecognitionEventKind string

const (
	RecognitionResult RecognitionEventKind = "result"
	RecognitionError  RecognitionEventKind = "error"
	RecognitionEnd    RecognitionEventKind = "end"
)

type RecognitionEvent struct {
	Kind   RecognitionEventKind
	Text   string
	Code   string
	Detail string
}

// Recognition is one live capture activation.
type Recognition interface {
	// SendAudio forwards one base64 PCM16 chunk from the client.
	SendAudio(ctx context.Context, pcm16Base64 string, sampleRate int) error
	// Abort cancels the activation. The event channel still emits End and
	// closes; Abort is safe to call more than once.
	Abort() error
}

// Recognizer starts capture activations. Per activation the event channel
// emits at most one Result or Error, always followed by End, and then
// closes. A second Start while active returns ErrRecognizerBusy.
type Recognizer interface {
	Start(ctx context.Context) (Recognition, <-chan RecognitionEvent, error)
}

type AudioChunk struct {
	Base64 string
	Format string
}

// Utterance is one in-flight synthesis. Done yields exactly one value:
// true when the utterance finished naturally, false when it was cancelled
// or failed. Audio streams the synthesized chunks and closes with Done.
type Utterance interface {
	Audio() <-chan AudioChunk
	Done() <-chan bool
}

// Synthesizer speaks one utterance at a time. Speak cancels any in-flight
// utterance before starting the new one (last-write-wins, never queued).
type Synthesizer interface {
	Speak(ctx context.Context, text string) (Utterance, error)
	Cancel()
}
