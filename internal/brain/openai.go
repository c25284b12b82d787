package brain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient is the fallback generative backend.
type OpenAIClient struct {
	apiKey string
	model  string
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{apiKey: strings.TrimSpace(apiKey), model: model}
}

func (c *OpenAIClient) StartConversation(_ context.Context, persona Persona) (Conversation, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}

	conv := &openaiConversation{
		client: openai.NewClient(c.apiKey),
		model:  c.model,
	}
	if strings.TrimSpace(persona.SystemInstruction) != "" {
		conv.messages = append(conv.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: persona.SystemInstruction,
		})
	}
	return conv, nil
}

// openaiConversation keeps the full message history client-side; the chat
// completion API is stateless per request.
type openaiConversation struct {
	client *openai.Client
	model  string

	mu       sync.Mutex
	messages []openai.ChatCompletionMessage
}

func (o *openaiConversation) Send(ctx context.Context, text string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.messages = append(o.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: o.messages,
	})
	if err != nil {
		// Keep history consistent: the failed user message stays so a retry
		// carries the same context the user saw.
		return "", fmt.Errorf("openai send: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	reply := resp.Choices[0].Message.Content
	o.messages = append(o.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
	return reply, nil
}

func (o *openaiConversation) SendStream(ctx context.Context, text string, onDelta DeltaHandler) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.messages = append(o.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: o.messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai stream open: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full.String(), fmt.Errorf("openai stream recv: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return full.String(), err
			}
		}
	}

	o.messages = append(o.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: full.String(),
	})
	return full.String(), nil
}

func (o *openaiConversation) Close() error { return nil }
