package brain

import (
	"context"
	"errors"
	"fmt"
)

// FallbackClient attempts a primary client first and falls back on error.
// Context cancellation and missing credentials on the primary are not
// recoverable by switching backends, so those short-circuit only when the
// fallback cannot help either.
type FallbackClient struct {
	primary  Client
	fallback Client
}

func NewFallbackClient(primary, fallback Client) *FallbackClient {
	return &FallbackClient{primary: primary, fallback: fallback}
}

// Primary returns the preferred client used before fallback.
func (c *FallbackClient) Primary() Client {
	if c == nil {
		return nil
	}
	return c.primary
}

func (c *FallbackClient) StartConversation(ctx context.Context, persona Persona) (Conversation, error) {
	if c == nil || c.primary == nil {
		if c != nil && c.fallback != nil {
			return c.fallback.StartConversation(ctx, persona)
		}
		return nil, fmt.Errorf("fallback client misconfigured")
	}

	conv, err := c.primary.StartConversation(ctx, persona)
	if err == nil {
		return conv, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if c.fallback == nil {
		return nil, err
	}

	fbConv, fbErr := c.fallback.StartConversation(ctx, persona)
	if fbErr != nil {
		if IsMissingCredential(err) && IsMissingCredential(fbErr) {
			return nil, ErrMissingCredential
		}
		return nil, fmt.Errorf("primary client error: %w; fallback client error: %v", err, fbErr)
	}
	return fbConv, nil
}
