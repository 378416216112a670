package models

import (
	"context"
	"errors"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider on Anthropic's Messages API.
type AnthropicProvider struct {
	Client    *anthropic.Client
	Model     string
	MaxTokens int
}

// NewAnthropicProvider constructs a client. Falls back to ANTHROPIC_API_KEY
// from the env when apiKey is empty.
func NewAnthropicProvider(model, apiKey string) (*AnthropicProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("anthropic API key not configured")
	}
	cl := anthropic.NewClient(anthropicopt.WithAPIKey(apiKey))
	return &AnthropicProvider{
		Client:    &cl,
		Model:     model,
		MaxTokens: 4096,
	}, nil
}

func (a *AnthropicProvider) Name() string { return "anthropic" }

func (a *AnthropicProvider) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	// The Messages API takes the system turn separately from the conversation.
	var system string
	filtered := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		case RoleAssistant:
			filtered = append(filtered, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			filtered = append(filtered, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(a.MaxTokens),
		Messages:  filtered,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String(), nil
}

var _ Provider = (*AnthropicProvider)(nil)
