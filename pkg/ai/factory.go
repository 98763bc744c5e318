package ai

import (
	"context"
	"fmt"

	"codentor-backend/pkg/gemini"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // groq, gemini, ollama or auto

	GroqKeys  []string
	GroqModel string

	GeminiAPIKey string
	GeminiModel  string

	// Getters let the settings API retarget Ollama without a restart.
	GetOllamaBaseURL func() string
	GetOllamaModel   func() string
}

// NewChatService builds the provider chain for cfg.Provider. Auto chains
// every configured hosted provider and ends with Ollama.
func NewChatService(ctx context.Context, cfg Config) (ChatProvider, error) {
	ollama := func() ChatProvider {
		if cfg.GetOllamaBaseURL == nil || cfg.GetOllamaModel == nil {
			return NewOllamaService("", "")
		}
		return NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel)
	}

	switch cfg.Provider {
	case ProviderGroq:
		if len(cfg.GroqKeys) == 0 {
			return nil, fmt.Errorf("GROQ_API_KEYS is required for Groq provider")
		}
		return NewGroqService(cfg.GroqKeys, cfg.GroqModel), nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return newGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)

	case ProviderOllama:
		return ollama(), nil

	default:
		var chain []ChatProvider
		if len(cfg.GroqKeys) > 0 {
			chain = append(chain, NewGroqService(cfg.GroqKeys, cfg.GroqModel))
		}
		if cfg.GeminiAPIKey != "" {
			g, err := newGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				return nil, err
			}
			chain = append(chain, g)
		}
		chain = append(chain, ollama())
		return NewFallbackService(chain...), nil
	}
}

type generator interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
}

// geminiProvider adapts the Gemini client to ChatProvider.
type geminiProvider struct {
	gen generator
}

func newGeminiProvider(ctx context.Context, apiKey, model string) (*geminiProvider, error) {
	svc, err := gemini.NewGeminiService(ctx, apiKey, model)
	if err != nil {
		return nil, err
	}
	return &geminiProvider{gen: svc}, nil
}

func (g *geminiProvider) Name() string { return string(ProviderGemini) }

func (g *geminiProvider) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	req := gemini.Request{
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		JSON:        opts.JSON,
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if req.System != "" {
				req.System += "\n\n"
			}
			req.System += m.Content
		case RoleAssistant:
			req.Turns = append(req.Turns, gemini.Turn{Model: true, Text: m.Content})
		default:
			req.Turns = append(req.Turns, gemini.Turn{Text: m.Content})
		}
	}
	return g.gen.Generate(ctx, req)
}
