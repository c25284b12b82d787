package brain

import (
	"context"
	"errors"
)

// ErrMissingCredential marks a configuration-fatal condition: no API key is
// present, so retrying a request can never succeed.
var ErrMissingCredential = errors.New("missing api credential")

// Persona binds a conversation to the consulted astrologer's identity.
type Persona struct {
	ID                string
	Name              string
	SystemInstruction string
}

// DeltaHandler receives incremental text chunks from a streamed reply.
// Returning an error aborts the stream.
type DeltaHandler func(delta string) error

// Conversation is a single ordered exchange with the generative backend.
// Replies are serialized per conversation; callers must not issue a new
// Send before the prior one returned.
type Conversation interface {
	// Send returns the complete reply text for one user message.
	Send(ctx context.Context, text string) (string, error)
	// SendStream delivers the reply incrementally through onDelta and
	// returns the accumulated full text. On mid-stream failure the partial
	// text is returned alongside the error.
	SendStream(ctx context.Context, text string, onDelta DeltaHandler) (string, error)
	Close() error
}

// Client opens persona-bound conversations.
type Client interface {
	StartConversation(ctx context.Context, persona Persona) (Conversation, error)
}

// IsMissingCredential reports whether err is the configuration-fatal
// missing-credential condition rather than a transient failure.
func IsMissingCredential(err error) bool {
	return errors.Is(err, ErrMissingCredential)
}
