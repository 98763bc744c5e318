package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"codentor-backend/pkg/keypool"

	openai "github.com/sashabaranov/go-openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// GroqService talks to Groq's OpenAI-compatible API, rotating through the
// configured key pool on quota and auth failures.
type GroqService struct {
	model     string
	baseURL   string
	keys      *keypool.Pool
	newClient func(key, baseURL string) chatCompleter
}

func NewGroqService(keys []string, model string) *GroqService {
	return &GroqService{
		model:   model,
		baseURL: groqBaseURL,
		keys: keypool.New(keys,
			keypool.WithPolicy(keypool.Random),
			keypool.WithRetryable(isRetryableForKey),
		),
		newClient: func(key, baseURL string) chatCompleter {
			cfg := openai.DefaultConfig(key)
			cfg.BaseURL = baseURL
			return openai.NewClientWithConfig(cfg)
		},
	}
}

func (g *GroqService) Name() string { return string(ProviderGroq) }

func (g *GroqService) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	return keypool.Call(ctx, g.keys, func(ctx context.Context, key string) (string, error) {
		resp, err := g.newClient(key, g.baseURL).CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("groq chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("groq returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// isRetryableForKey moves on to the next key for errors another key may not
// hit: rate limits, revoked keys and transient server failures.
func isRetryableForKey(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
		return apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return isQuotaError(err) || isConnectionError(err)
}
