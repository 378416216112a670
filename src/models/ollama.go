package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// ---------------------------- Ollama -----------------------------------------

// OllamaProvider talks to a local Ollama server. No API key needed.
type OllamaProvider struct {
	Client *ollama.Client
	Model  string
	host   string
}

// NewOllamaProvider builds a provider for the given model. baseURL falls back
// to OLLAMA_HOST, then to the default local address.
func NewOllamaProvider(model, baseURL string) (*OllamaProvider, error) {
	host := strings.TrimSpace(baseURL)
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	httpClient := &http.Client{
		Timeout: 120 * time.Second,
	}

	return &OllamaProvider{
		Client: ollama.NewClient(u, httpClient),
		Model:  model,
		host:   host,
	}, nil
}

func (o *OllamaProvider) Name() string { return "ollama" }

func (o *OllamaProvider) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	req := &ollama.ChatRequest{
		Model:    o.Model,
		Messages: toOllamaMessages(messages),
		Stream:   new(bool), // non-streaming
	}

	var text strings.Builder
	err := o.Client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return text.String(), nil
}

func toOllamaMessages(messages []ChatMessage) []ollama.Message {
	out := make([]ollama.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, ollama.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

var _ Provider = (*OllamaProvider)(nil)
