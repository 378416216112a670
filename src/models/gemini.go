package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ---------------------------- Google Gemini ----------------------------------

// GeminiProvider implements Provider on the Gemini chat API.
type GeminiProvider struct {
	Client *genai.Client
	Model  string
}

// NewGeminiProvider constructs a client. Falls back to GOOGLE_API_KEY then
// GEMINI_API_KEY from the env when apiKey is empty.
func NewGeminiProvider(ctx context.Context, model, apiKey string) (*GeminiProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("google API key not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiProvider{Client: client, Model: model}, nil
}

func (g *GeminiProvider) Name() string { return "google" }

func (g *GeminiProvider) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	model := g.Client.GenerativeModel(g.Model)

	// Gemini has no system role in chat history; the system turn is folded
	// into the next user message.
	var history []*genai.Content
	var pendingSystem string
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			pendingSystem = m.Content + "\n\n"
		case RoleUser:
			history = append(history, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(pendingSystem + m.Content)},
			})
			pendingSystem = ""
		case RoleAssistant:
			history = append(history, &genai.Content{
				Role:  "model",
				Parts: []genai.Part{genai.Text(m.Content)},
			})
		}
	}
	if len(history) == 0 {
		return "", errors.New("gemini: no messages to send")
	}

	last := history[len(history)-1]
	var lastText string
	if last.Role == "user" {
		if t, ok := last.Parts[0].(genai.Text); ok {
			lastText = string(t)
		}
		history = history[:len(history)-1]
	}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(lastText))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

var _ Provider = (*GeminiProvider)(nil)
