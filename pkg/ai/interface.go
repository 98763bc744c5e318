package ai

import (
	"context"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatOptions struct {
	Temperature float32
	MaxTokens   int
	// JSON asks the provider for a bare JSON answer when it supports it.
	JSON bool
}

// ChatProvider is implemented by every LLM backend (Groq, Gemini, Ollama).
type ChatProvider interface {
	Name() string
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGroq   ProviderType = "groq"
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)

// StripCodeFence removes a surrounding ```json ... ``` fence that models like
// to wrap structured answers in.
func StripCodeFence(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}
