package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Turn is one conversation turn; Model marks assistant output.
type Turn struct {
	Model bool
	Text  string
}

type Request struct {
	System      string
	Turns       []Turn
	Temperature float32
	MaxTokens   int
	JSON        bool
}

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiService struct {
	models generator
	model  string
}

func NewGeminiService(ctx context.Context, apiKey, model string) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiService{models: client.Models, model: model}, nil
}

func (g *GeminiService) Generate(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, t := range req.Turns {
		role := genai.Role(genai.RoleUser)
		if t.Model {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	if len(contents) == 0 {
		return "", errors.New("gemini: empty conversation")
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	result, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return text, nil
}
