package models

import "context"

// ChatRole marks who produced a conversation turn.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

func System(content string) ChatMessage    { return ChatMessage{Role: RoleSystem, Content: content} }
func User(content string) ChatMessage      { return ChatMessage{Role: RoleUser, Content: content} }
func Assistant(content string) ChatMessage { return ChatMessage{Role: RoleAssistant, Content: content} }

// Provider is one LLM backend. Chat returns the assistant reply text;
// transport and API failures come back as the error.
type Provider interface {
	Name() string
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
}
