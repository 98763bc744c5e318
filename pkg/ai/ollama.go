package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaService implements ChatProvider against a local Ollama server.
type OllamaService struct {
	getBaseURL func() string // Dynamic getter for BaseURL
	getModel   func() string // Dynamic getter for Model
	httpClient *http.Client
}

// NewOllamaService creates a new Ollama service
func NewOllamaService(baseURL, model string) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return NewOllamaServiceWithGetters(
		func() string { return baseURL },
		func() string { return model },
	)
}

// NewOllamaServiceWithGetters reads base URL and model on every call so the
// settings API can retarget a running server.
func NewOllamaServiceWithGetters(getBaseURL, getModel func() string) *OllamaService {
	return &OllamaService{
		getBaseURL: getBaseURL,
		getModel:   getModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (o *OllamaService) Name() string { return string(ProviderOllama) }

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []Message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   string                 `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

func (o *OllamaService) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	url := strings.TrimRight(o.getBaseURL(), "/") + "/api/chat"

	payload := ollamaChatRequest{
		Model:    o.getModel(),
		Messages: messages,
		Stream:   false,
		Options:  map[string]interface{}{},
	}
	if opts.Temperature > 0 {
		payload.Options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		payload.Options["num_predict"] = opts.MaxTokens
	}
	if opts.JSON {
		payload.Format = "json"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result ollamaChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return strings.TrimSpace(result.Message.Content), nil
}

// TestConnection checks that the server answers and the model is pulled.
func (o *OllamaService) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(o.getBaseURL(), "/")+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("failed to parse model list: %w", err)
	}

	model := o.getModel()
	for _, m := range tags.Models {
		if m.Name == model || strings.HasPrefix(m.Name, model+":") {
			return nil
		}
	}
	return fmt.Errorf("model %q is not available on the ollama server", model)
}
