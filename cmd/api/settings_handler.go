package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"codentor-backend/pkg/ai"
	"codentor-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// RuntimeConfig holds runtime-configurable settings
type RuntimeConfig struct {
	OllamaBaseURL string `json:"ollama_base_url"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// SettingsHandler lets an operator retarget the local Ollama provider
// without restarting. The AI chain reads the values on every call.
type SettingsHandler struct {
	mu      sync.RWMutex
	runtime RuntimeConfig
}

func NewSettingsHandler(ollamaBaseURL, ollamaModel string) *SettingsHandler {
	if ollamaBaseURL == "" {
		ollamaBaseURL = "http://localhost:11434"
	}
	if ollamaModel == "" {
		ollamaModel = "llama3"
	}
	return &SettingsHandler{runtime: RuntimeConfig{OllamaBaseURL: ollamaBaseURL, OllamaModel: ollamaModel}}
}

// OllamaBaseURL returns the current runtime Ollama base URL
func (s *SettingsHandler) OllamaBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runtime.OllamaBaseURL
}

// OllamaModel returns the current runtime Ollama model
func (s *SettingsHandler) OllamaModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runtime.OllamaModel
}

func (s *SettingsHandler) snapshot() RuntimeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runtime
}

// UpdateOllamaSettingsRequest represents the request body for updating Ollama settings
type UpdateOllamaSettingsRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// GET /api/settings/ai
func (s *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

// Update replaces the Ollama settings at runtime.
// PUT /api/settings/ai
func (s *SettingsHandler) Update(c *gin.Context) {
	var req UpdateOllamaSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}
	base := strings.TrimSpace(req.OllamaBaseURL)
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		apperror.Respond(c, apperror.Validation("ollama_base_url must be an http(s) URL"))
		return
	}

	s.mu.Lock()
	s.runtime.OllamaBaseURL = strings.TrimRight(base, "/")
	if model := strings.TrimSpace(req.OllamaModel); model != "" {
		s.runtime.OllamaModel = model
	}
	current := s.runtime
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"message":         "Ollama settings updated successfully",
		"ollama_base_url": current.OllamaBaseURL,
		"ollama_model":    current.OllamaModel,
	})
}

// Test checks that the Ollama server answers and has the model pulled. An
// optional body tests candidate settings before saving them.
// POST /api/settings/ai/test
func (s *SettingsHandler) Test(c *gin.Context) {
	target := s.snapshot()
	var req RuntimeConfig
	if err := c.ShouldBindJSON(&req); err == nil {
		if req.OllamaBaseURL != "" {
			target.OllamaBaseURL = strings.TrimRight(strings.TrimSpace(req.OllamaBaseURL), "/")
		}
		if req.OllamaModel != "" {
			target.OllamaModel = req.OllamaModel
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	ollama := ai.NewOllamaService(target.OllamaBaseURL, target.OllamaModel)
	if err := ollama.TestConnection(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected":       false,
			"ollama_base_url": target.OllamaBaseURL,
			"error":           err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":       true,
		"ollama_base_url": target.OllamaBaseURL,
		"ollama_model":    target.OllamaModel,
	})
}
