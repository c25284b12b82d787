package brain

import (
	"context"
	"strings"
	"sync"
)

// MockReply scripts one assistant turn for MockClient.
type MockReply struct {
	Text   string
	Chunks []string      // streamed deltas; defaults to Text in one chunk
	Err    error         // returned after any chunks (mid-stream failure)
	Gate   chan struct{} // when set, the reply blocks until the gate closes
}

// MockClient is a scriptable in-memory backend used by tests and by the
// mock provider mode.
type MockClient struct {
	mu       sync.Mutex
	replies  []MockReply
	received []string
	startErr error
	started  int
}

func NewMockClient(replies ...MockReply) *MockClient {
	return &MockClient{replies: replies}
}

// FailStart makes StartConversation return err.
func (c *MockClient) FailStart(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startErr = err
}

// Received returns every user message sent so far, in order.
func (c *MockClient) Received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.received))
	copy(out, c.received)
	return out
}

func (c *MockClient) Started() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *MockClient) StartConversation(_ context.Context, _ Persona) (Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return nil, c.startErr
	}
	c.started++
	return &mockConversation{client: c}, nil
}

type mockConversation struct {
	client *MockClient
	closed bool
	mu     sync.Mutex
}

func (m *mockConversation) next(text string) MockReply {
	c := m.client
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, text)
	if len(c.replies) == 0 {
		return MockReply{Text: "Theek hai."}
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r
}

func (m *mockConversation) Send(ctx context.Context, text string) (string, error) {
	r := m.next(text)
	if r.Gate != nil {
		select {
		case <-r.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}

func (m *mockConversation) SendStream(ctx context.Context, text string, onDelta DeltaHandler) (string, error) {
	r := m.next(text)
	chunks := r.Chunks
	if chunks == nil && r.Text != "" {
		chunks = []string{r.Text}
	}

	var full strings.Builder
	for _, chunk := range chunks {
		select {
		case <-ctx.Done():
			return full.String(), ctx.Err()
		default:
		}
		full.WriteString(chunk)
		if onDelta != nil {
			if err := onDelta(chunk); err != nil {
				return full.String(), err
			}
		}
	}
	if r.Gate != nil {
		select {
		case <-r.Gate:
		case <-ctx.Done():
			return full.String(), ctx.Err()
		}
	}
	if r.Err != nil {
		return full.String(), r.Err
	}
	return full.String(), nil
}

func (m *mockConversation) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
