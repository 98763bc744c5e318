package delivery

import (
	"net/http"

	"codentor-backend/internal/coach/usecase"
	"codentor-backend/pkg/ai"
	"codentor-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type CoachHandler struct {
	coach *usecase.Coach
}

func NewCoachHandler(coach *usecase.Coach) *CoachHandler {
	return &CoachHandler{coach: coach}
}

// Initialize returns the opening message of a coaching session
// POST /api/ai-coach/initialize
func (h *CoachHandler) Initialize(c *gin.Context) {
	reply, err := h.coach.Initialize(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

type chatRequest struct {
	Messages []ai.Message `json:"messages" binding:"required"`
}

// Chat answers the latest user message
// POST /api/ai-coach/chat {messages}
func (h *CoachHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, apperror.Validation(err.Error()))
		return
	}
	reply, err := h.coach.Chat(c.Request.Context(), c.GetString("userID"), req.Messages)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// Suggestions returns AI next-step suggestions for the dashboard
// GET /api/dashboard/ai-suggestions
func (h *CoachHandler) Suggestions(c *gin.Context) {
	suggestions, fallback, err := h.coach.Suggestions(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions, "fallback": fallback})
}

type roadmapRequest struct {
	Goal string `json:"goal" binding:"required"`
}

// GenerateRoadmap builds a learning roadmap with video resources
// POST /api/roadmap/generate {goal}
func (h *CoachHandler) GenerateRoadmap(c *gin.Context) {
	var req roadmapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Respond(c, usecase.ErrGoalRequired)
		return
	}
	roadmap, err := h.coach.GenerateRoadmap(c.Request.Context(), req.Goal)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, roadmap)
}
