package brain

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient talks to the Gemini API through google.golang.org/genai.
// This is the backend the product shipped with (gemini-2.5-flash).
type GeminiClient struct {
	apiKey string
	model  string
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiClient{apiKey: strings.TrimSpace(apiKey), model: model}
}

func (c *GeminiClient) StartConversation(ctx context.Context, persona Persona) (Conversation, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client init: %w", err)
	}

	var cfg *genai.GenerateContentConfig
	if strings.TrimSpace(persona.SystemInstruction) != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(persona.SystemInstruction, genai.RoleUser),
		}
	}

	chat, err := client.Chats.Create(ctx, c.model, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini chat create: %w", err)
	}
	return &geminiConversation{chat: chat}, nil
}

type geminiConversation struct {
	chat *genai.Chat
}

func (g *geminiConversation) Send(ctx context.Context, text string) (string, error) {
	res, err := g.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", fmt.Errorf("gemini send: %w", err)
	}
	return res.Text(), nil
}

func (g *geminiConversation) SendStream(ctx context.Context, text string, onDelta DeltaHandler) (string, error) {
	var full strings.Builder
	for res, err := range g.chat.SendMessageStream(ctx, genai.Part{Text: text}) {
		if err != nil {
			return full.String(), fmt.Errorf("gemini stream: %w", err)
		}
		delta := res.Text()
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
	return full.String(), nil
}

func (g *geminiConversation) Close() error { return nil }
